package conversation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/infrastructure/database/entities"
	"jan-server/services/support-chat-api/internal/infrastructure/database/transaction"
	"jan-server/services/support-chat-api/internal/utils/idgen"
)

const appendBatchSize = 100

type MessageGormRepository struct {
	db *transaction.Database
}

var _ chat.MessageRepository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *transaction.Database) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

// Append implements chat.MessageRepository.
func (repo *MessageGormRepository) Append(ctx context.Context, params chat.NewMessage) (*chat.Message, error) {
	conversationID, err := repo.resolveConversationID(ctx, params.ConversationID)
	if err != nil {
		return nil, err
	}
	row, err := newMessageRow(conversationID, params)
	if err != nil {
		return nil, err
	}
	if err := repo.db.GetTx(ctx).Create(row).Error; err != nil {
		return nil, storeError(ctx, err, "failed to append message")
	}
	msg := row.EtoD(params.ConversationID)
	return &msg, nil
}

// AppendBatch implements chat.MessageRepository. Rows are inserted in slice
// order so the arrival sequence follows it.
func (repo *MessageGormRepository) AppendBatch(ctx context.Context, conversationPublicID string, messages []chat.NewMessage) error {
	if len(messages) == 0 {
		return nil
	}
	conversationID, err := repo.resolveConversationID(ctx, conversationPublicID)
	if err != nil {
		return err
	}
	rows := make([]*entities.Message, 0, len(messages))
	for _, m := range messages {
		row, err := newMessageRow(conversationID, m)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := repo.db.GetTx(ctx).CreateInBatches(rows, appendBatchSize).Error; err != nil {
		return storeError(ctx, err, "failed to copy messages")
	}
	return nil
}

// ListByConversation implements chat.MessageRepository.
func (repo *MessageGormRepository) ListByConversation(ctx context.Context, conversationPublicID string) ([]chat.Message, error) {
	conversationID, err := repo.resolveConversationID(ctx, conversationPublicID)
	if err != nil {
		return nil, err
	}
	var rows []entities.Message
	if err := repo.db.GetTx(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError(ctx, err, "failed to list messages")
	}
	result := make([]chat.Message, len(rows))
	for i := range rows {
		result[i] = rows[i].EtoD(conversationPublicID)
	}
	return result, nil
}

// DeleteAllForConversation implements chat.MessageRepository.
func (repo *MessageGormRepository) DeleteAllForConversation(ctx context.Context, conversationPublicID string) error {
	conversationID, err := repo.resolveConversationID(ctx, conversationPublicID)
	if err != nil {
		return err
	}
	if err := repo.db.GetTx(ctx).Where("conversation_id = ?", conversationID).Delete(&entities.Message{}).Error; err != nil {
		return storeError(ctx, err, "failed to delete messages")
	}
	return nil
}

type latestRow struct {
	PublicID             string
	ConversationPublicID string
	Role                 string
	Body                 string
	CreatedAt            time.Time
}

// LatestByConversation implements chat.MessageRepository.
func (repo *MessageGormRepository) LatestByConversation(ctx context.Context, conversationPublicIDs []string) (map[string]chat.Message, error) {
	result := make(map[string]chat.Message, len(conversationPublicIDs))
	if len(conversationPublicIDs) == 0 {
		return result, nil
	}

	var rows []latestRow
	err := repo.db.GetTx(ctx).
		Table("messages AS m").
		Select("m.public_id, c.public_id AS conversation_public_id, m.role, m.body, m.created_at").
		Joins("JOIN conversations AS c ON c.id = m.conversation_id").
		Where("c.public_id IN ?", conversationPublicIDs).
		Where("m.id = (SELECT m2.id FROM messages AS m2 WHERE m2.conversation_id = m.conversation_id ORDER BY m2.created_at DESC, m2.id DESC LIMIT 1)").
		Scan(&rows).Error
	if err != nil {
		return nil, storeError(ctx, err, "failed to load latest messages")
	}

	for _, r := range rows {
		result[r.ConversationPublicID] = chat.Message{
			ID:             r.PublicID,
			ConversationID: r.ConversationPublicID,
			Role:           chat.Role(r.Role),
			Body:           r.Body,
			CreatedAt:      r.CreatedAt.UTC(),
		}
	}
	return result, nil
}

func (repo *MessageGormRepository) resolveConversationID(ctx context.Context, publicID string) (uint, error) {
	var row entities.Conversation
	err := repo.db.GetTx(ctx).Select("id").Where("public_id = ?", publicID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, notFound(ctx, publicID)
	}
	if err != nil {
		return 0, storeError(ctx, err, "failed to resolve conversation")
	}
	return row.ID, nil
}

func newMessageRow(conversationID uint, params chat.NewMessage) (*entities.Message, error) {
	publicID, err := idgen.GenerateSecureID(idgen.PrefixMessage, publicIDLength)
	if err != nil {
		return nil, err
	}
	return &entities.Message{
		PublicID:       publicID,
		ConversationID: conversationID,
		Role:           string(params.Role),
		Body:           params.Body,
		CreatedAt:      params.CreatedAt.UTC().Truncate(time.Millisecond),
	}, nil
}
