package conversation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/infrastructure/database/dbtest"
	"jan-server/services/support-chat-api/internal/infrastructure/repository/conversation"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

func strPtr(s string) *string { return &s }

func newRepos(t *testing.T) (*conversation.ConversationGormRepository, *conversation.MessageGormRepository) {
	t.Helper()
	_, db := dbtest.OpenTx(t)
	return conversation.NewConversationGormRepository(db), conversation.NewMessageGormRepository(db)
}

func TestConversationRepository_FindReturnsNilWhenAbsent(t *testing.T) {
	convs, _ := newRepos(t)
	ctx := context.Background()

	byAnon, err := convs.FindByAnonymousID(ctx, "anon_missing")
	require.NoError(t, err)
	assert.Nil(t, byAnon)

	byAccount, err := convs.FindByAccountID(ctx, "u_missing")
	require.NoError(t, err)
	assert.Nil(t, byAccount)

	_, err = convs.FindByID(ctx, "conv_missing")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestConversationRepository_UniqueIdentities(t *testing.T) {
	convs, _ := newRepos(t)
	ctx := context.Background()

	_, err := convs.Create(ctx, chat.NewConversation{AnonymousClientID: "c1", AccountID: strPtr("u1")})
	require.NoError(t, err)

	tests := []struct {
		name   string
		params chat.NewConversation
	}{
		{name: "duplicate anonymous client id", params: chat.NewConversation{AnonymousClientID: "c1"}},
		{name: "duplicate account id", params: chat.NewConversation{AnonymousClientID: "c2", AccountID: strPtr("u1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := convs.Create(ctx, tt.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, chat.ErrIdentityConflict))
		})
	}

	// several anonymous-only conversations may coexist
	_, err = convs.Create(ctx, chat.NewConversation{AnonymousClientID: "c3"})
	require.NoError(t, err)
	_, err = convs.Create(ctx, chat.NewConversation{AnonymousClientID: "c4"})
	require.NoError(t, err)
}

func TestConversationRepository_RebindAndTouch(t *testing.T) {
	convs, _ := newRepos(t)
	ctx := context.Background()

	created, err := convs.Create(ctx, chat.NewConversation{
		AnonymousClientID: "c1",
		Contact:           chat.Contact{Name: strPtr("Ada")},
	})
	require.NoError(t, err)
	assert.True(t, len(created.ID) > len("conv_"))

	updated, err := convs.Rebind(ctx, created.ID, chat.Rebind{
		AnonymousClientID: strPtr("c2"),
		AccountID:         strPtr("u1"),
		Contact:           &chat.Contact{Email: strPtr("ada@example.com")},
	})
	require.NoError(t, err)
	assert.Equal(t, "c2", updated.AnonymousClientID)
	require.NotNil(t, updated.AccountID)
	assert.Equal(t, "u1", *updated.AccountID)
	require.NotNil(t, updated.Contact.Name)
	assert.Equal(t, "Ada", *updated.Contact.Name)
	require.NotNil(t, updated.Contact.Email)
	assert.Equal(t, "ada@example.com", *updated.Contact.Email)

	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, convs.Touch(ctx, created.ID, at))
	found, err := convs.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, found.UpdatedAt.Equal(at))

	err = convs.Touch(ctx, "conv_missing", at)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestConversationRepository_ListOrdersByUpdatedAtDesc(t *testing.T) {
	convs, _ := newRepos(t)
	ctx := context.Background()

	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, anon := range []string{"c1", "c2", "c3"} {
		c, err := convs.Create(ctx, chat.NewConversation{AnonymousClientID: anon})
		require.NoError(t, err)
		require.NoError(t, convs.Touch(ctx, c.ID, base.Add(time.Duration(i)*time.Minute)))
		ids = append(ids, c.ID)
	}
	require.NoError(t, convs.Touch(ctx, ids[0], base.Add(time.Hour)))

	list, err := convs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{ids[0], ids[2], ids[1]}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestConversationRepository_LockForUpdate(t *testing.T) {
	convs, _ := newRepos(t)
	ctx := context.Background()

	a, err := convs.Create(ctx, chat.NewConversation{AnonymousClientID: "c1"})
	require.NoError(t, err)
	b, err := convs.Create(ctx, chat.NewConversation{AnonymousClientID: "c2"})
	require.NoError(t, err)

	require.NoError(t, convs.LockForUpdate(ctx, b.ID, a.ID))
	require.NoError(t, convs.LockForUpdate(ctx, a.ID, a.ID), "repeated ids lock once")
	require.NoError(t, convs.LockForUpdate(ctx))

	require.NoError(t, convs.Delete(ctx, b.ID))
	err = convs.LockForUpdate(ctx, a.ID, b.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrIdentityConflict)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))
}

func TestMessageRepository_OrderingAndBatch(t *testing.T) {
	convs, msgs := newRepos(t)
	ctx := context.Background()

	conv, err := convs.Create(ctx, chat.NewConversation{AnonymousClientID: "c1"})
	require.NoError(t, err)

	t0 := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err = msgs.Append(ctx, chat.NewMessage{ConversationID: conv.ID, Role: chat.RoleVisitor, Body: "late", CreatedAt: t0.Add(2 * time.Second)})
	require.NoError(t, err)
	require.NoError(t, msgs.AppendBatch(ctx, conv.ID, []chat.NewMessage{
		{Role: chat.RoleVisitor, Body: "first", CreatedAt: t0},
		{Role: chat.RoleOperator, Body: "tie-a", CreatedAt: t0.Add(time.Second)},
		{Role: chat.RoleVisitor, Body: "tie-b", CreatedAt: t0.Add(time.Second)},
	}))

	history, err := msgs.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	bodies := make([]string, len(history))
	for i, m := range history {
		bodies[i] = m.Body
		assert.Equal(t, conv.ID, m.ConversationID)
	}
	assert.Equal(t, []string{"first", "tie-a", "tie-b", "late"}, bodies)
	assert.Equal(t, chat.RoleOperator, history[1].Role)

	latest, err := msgs.LatestByConversation(ctx, []string{conv.ID, "conv_missing"})
	require.NoError(t, err)
	require.Contains(t, latest, conv.ID)
	assert.Equal(t, "late", latest[conv.ID].Body)
	assert.NotContains(t, latest, "conv_missing")

	require.NoError(t, msgs.DeleteAllForConversation(ctx, conv.ID))
	history, err = msgs.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMessageRepository_AppendToUnknownConversation(t *testing.T) {
	_, msgs := newRepos(t)
	_, err := msgs.Append(context.Background(), chat.NewMessage{
		ConversationID: "conv_missing",
		Role:           chat.RoleVisitor,
		Body:           "hello",
		CreatedAt:      time.Now(),
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}
