package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

func TestParseEvent(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	sent := now.Add(-time.Minute).Add(1500 * time.Microsecond)

	tests := []struct {
		name      string
		req       chat.SubmitRequest
		wantField string
		check     func(t *testing.T, ev chat.Event)
	}{
		{
			name: "anonymous visitor",
			req:  chat.SubmitRequest{AnonymousClientID: " c1 ", Body: " hello ", SentAt: &sent},
			check: func(t *testing.T, ev chat.Event) {
				e, ok := ev.(chat.AnonymousEvent)
				require.True(t, ok)
				assert.Equal(t, "c1", e.AnonymousClientID)
				assert.Equal(t, "hello", e.Content.Body)
				assert.Equal(t, chat.RoleVisitor, e.Content.Role)
				assert.Equal(t, sent.Truncate(time.Millisecond), e.Content.SentAt)
			},
		},
		{
			name: "authenticated caller",
			req:  chat.SubmitRequest{AccountID: "u1", AnonymousClientID: "c1", Authenticated: true, Body: "hi"},
			check: func(t *testing.T, ev chat.Event) {
				e, ok := ev.(chat.AuthenticatedEvent)
				require.True(t, ok)
				assert.Equal(t, "u1", e.AccountID)
				assert.Equal(t, "c1", e.AnonymousClientID)
				assert.Equal(t, now, e.Content.SentAt)
			},
		},
		{
			name: "unauthenticated account claim becomes late account",
			req:  chat.SubmitRequest{AccountID: "u1", AnonymousClientID: "c1", Body: "hi"},
			check: func(t *testing.T, ev chat.Event) {
				e, ok := ev.(chat.AnonymousEvent)
				require.True(t, ok)
				assert.Equal(t, "u1", e.LateAccountID)
			},
		},
		{
			name: "operator reply drops account and contact",
			req: chat.SubmitRequest{
				AnonymousClientID: "c1", AccountID: "staff-1", Authenticated: true, Role: chat.RoleOperator, Body: "on it",
				Contact: chat.Contact{Name: strPtr("Agent")},
			},
			check: func(t *testing.T, ev chat.Event) {
				e, ok := ev.(chat.AnonymousEvent)
				require.True(t, ok)
				assert.Empty(t, e.LateAccountID)
				assert.True(t, e.Content.Contact.IsZero())
				assert.Equal(t, chat.RoleOperator, e.Content.Role)
			},
		},
		{
			name: "phone is normalised",
			req:  chat.SubmitRequest{AnonymousClientID: "c1", Body: "hi", Contact: chat.Contact{Phone: strPtr("+1 (555) 010-0199")}},
			check: func(t *testing.T, ev chat.Event) {
				assert.Equal(t, "+15550100199", *chat.ContentOf(ev).Contact.Phone)
			},
		},
		{
			name: "blank contact fields are dropped",
			req:  chat.SubmitRequest{AnonymousClientID: "c1", Body: "hi", Contact: chat.Contact{Name: strPtr("  ")}},
			check: func(t *testing.T, ev chat.Event) {
				assert.True(t, chat.ContentOf(ev).Contact.IsZero())
			},
		},
		{name: "empty body", req: chat.SubmitRequest{AnonymousClientID: "c1", Body: "   "}, wantField: "body"},
		{name: "body too long", req: chat.SubmitRequest{AnonymousClientID: "c1", Body: strings.Repeat("a", chat.MaxBodyLength+1)}, wantField: "body"},
		{name: "unknown role", req: chat.SubmitRequest{AnonymousClientID: "c1", Body: "hi", Role: "BOT"}, wantField: "role"},
		{name: "no identity", req: chat.SubmitRequest{Body: "hi"}, wantField: "anonymous_client_id"},
		{name: "account claim without anonymous id", req: chat.SubmitRequest{AccountID: "u1", Body: "hi"}, wantField: "anonymous_client_id"},
		{name: "authenticated without account", req: chat.SubmitRequest{AnonymousClientID: "c1", Authenticated: true, Body: "hi"}, wantField: "account_id"},
		{name: "operator without thread", req: chat.SubmitRequest{Role: chat.RoleOperator, Body: "hi"}, wantField: "anonymous_client_id"},
		{name: "bad email", req: chat.SubmitRequest{AnonymousClientID: "c1", Body: "hi", Contact: chat.Contact{Email: strPtr("not-an-email")}}, wantField: "contact.email"},
		{name: "bad phone", req: chat.SubmitRequest{AnonymousClientID: "c1", Body: "hi", Contact: chat.Contact{Phone: strPtr("call me")}}, wantField: "contact.phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := chat.ParseEvent(context.Background(), tt.req, now)
			if tt.wantField != "" {
				require.Error(t, err)
				assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
				var verr *chat.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, tt.wantField, verr.Field)
				return
			}
			require.NoError(t, err)
			tt.check(t, ev)
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	inSkew := now.Add(30 * time.Second)
	future := now.Add(2 * time.Minute)
	local := time.Date(2030, 1, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))

	assert.Equal(t, now, chat.NormalizeTimestamp(nil, now))
	assert.Equal(t, inSkew, chat.NormalizeTimestamp(&inSkew, now))
	assert.Equal(t, now, chat.NormalizeTimestamp(&future, now))
	assert.Equal(t, time.UTC, chat.NormalizeTimestamp(&local, now).Location())
	assert.True(t, chat.NormalizeTimestamp(&local, now).Equal(now))
}
