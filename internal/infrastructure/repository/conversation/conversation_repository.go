package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/infrastructure/database/entities"
	"jan-server/services/support-chat-api/internal/infrastructure/database/transaction"
	"jan-server/services/support-chat-api/internal/utils/idgen"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

const publicIDLength = 16

type ConversationGormRepository struct {
	db *transaction.Database
}

var _ chat.ConversationRepository = (*ConversationGormRepository)(nil)

func NewConversationGormRepository(db *transaction.Database) *ConversationGormRepository {
	return &ConversationGormRepository{db: db}
}

// FindByAnonymousID implements chat.ConversationRepository.
func (repo *ConversationGormRepository) FindByAnonymousID(ctx context.Context, anonymousClientID string) (*chat.Conversation, error) {
	return repo.findOne(ctx, "anonymous_client_id = ?", anonymousClientID)
}

// FindByAccountID implements chat.ConversationRepository.
func (repo *ConversationGormRepository) FindByAccountID(ctx context.Context, accountID string) (*chat.Conversation, error) {
	return repo.findOne(ctx, "account_id = ?", accountID)
}

// FindByID implements chat.ConversationRepository.
func (repo *ConversationGormRepository) FindByID(ctx context.Context, id string) (*chat.Conversation, error) {
	conv, err := repo.findOne(ctx, "public_id = ?", id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, notFound(ctx, id)
	}
	return conv, nil
}

// Create implements chat.ConversationRepository.
func (repo *ConversationGormRepository) Create(ctx context.Context, params chat.NewConversation) (*chat.Conversation, error) {
	publicID, err := idgen.GenerateSecureID(idgen.PrefixConversation, publicIDLength)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	model := entities.NewSchemaConversation(&chat.Conversation{
		ID:                publicID,
		AnonymousClientID: params.AnonymousClientID,
		AccountID:         params.AccountID,
		Contact:           params.Contact,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err := repo.db.GetTx(ctx).Create(model).Error; err != nil {
		return nil, storeError(ctx, err, "failed to create conversation")
	}
	return model.EtoD(), nil
}

// Rebind implements chat.ConversationRepository.
func (repo *ConversationGormRepository) Rebind(ctx context.Context, id string, patch chat.Rebind) (*chat.Conversation, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.AnonymousClientID != nil {
		updates["anonymous_client_id"] = *patch.AnonymousClientID
	}
	if patch.AccountID != nil {
		updates["account_id"] = *patch.AccountID
	}
	if c := patch.Contact; c != nil {
		if c.Name != nil {
			updates["contact_name"] = *c.Name
		}
		if c.Email != nil {
			updates["contact_email"] = *c.Email
		}
		if c.Phone != nil {
			updates["contact_phone"] = *c.Phone
		}
	}

	result := repo.db.GetTx(ctx).Model(&entities.Conversation{}).Where("public_id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, storeError(ctx, result.Error, "failed to rebind conversation")
	}
	if result.RowsAffected == 0 {
		return nil, notFound(ctx, id)
	}
	return repo.FindByID(ctx, id)
}

// Touch implements chat.ConversationRepository.
func (repo *ConversationGormRepository) Touch(ctx context.Context, id string, at time.Time) error {
	result := repo.db.GetTx(ctx).Model(&entities.Conversation{}).Where("public_id = ?", id).Update("updated_at", at.UTC())
	if result.Error != nil {
		return storeError(ctx, result.Error, "failed to touch conversation")
	}
	if result.RowsAffected == 0 {
		return notFound(ctx, id)
	}
	return nil
}

// Delete implements chat.ConversationRepository.
func (repo *ConversationGormRepository) Delete(ctx context.Context, id string) error {
	if err := repo.db.GetTx(ctx).Where("public_id = ?", id).Delete(&entities.Conversation{}).Error; err != nil {
		return storeError(ctx, err, "failed to delete conversation")
	}
	return nil
}

// List implements chat.ConversationRepository.
func (repo *ConversationGormRepository) List(ctx context.Context) ([]*chat.Conversation, error) {
	var rows []entities.Conversation
	if err := repo.db.GetTx(ctx).Order("updated_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, storeError(ctx, err, "failed to list conversations")
	}
	result := make([]*chat.Conversation, len(rows))
	for i := range rows {
		result[i] = rows[i].EtoD()
	}
	return result, nil
}

// LockForUpdate implements chat.ConversationRepository. Rows are locked in
// primary key order. SQLite has no row locks and serialises writers instead.
func (repo *ConversationGormRepository) LockForUpdate(ctx context.Context, ids ...string) error {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	if len(wanted) == 0 {
		return nil
	}
	var locked []string
	err := repo.db.GetTx(ctx).
		Model(&entities.Conversation{}).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("public_id IN ?", ids).
		Order("id").
		Pluck("public_id", &locked).Error
	if err != nil {
		return storeError(ctx, err, "failed to lock conversations")
	}
	if len(locked) != len(wanted) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
			"conversation changed concurrently", fmt.Errorf("%w: %d of %d conversations left to lock", chat.ErrIdentityConflict, len(locked), len(wanted)),
			"chat-store-lock-001")
	}
	return nil
}

func (repo *ConversationGormRepository) findOne(ctx context.Context, query string, arg any) (*chat.Conversation, error) {
	var row entities.Conversation
	err := repo.db.GetTx(ctx).Where(query, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(ctx, err, "failed to find conversation")
	}
	return row.EtoD(), nil
}
