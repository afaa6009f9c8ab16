package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"jan-server/services/support-chat-api/internal/domain/chat"
)

func sampleConversations() []chat.ConversationSummary {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return []chat.ConversationSummary{
		{ID: "conv_1", AnonymousClientID: "anon_a", DisplayName: "Ada", LastMessage: "hello", UpdatedAt: at},
		{ID: "conv_2", AnonymousClientID: "anon_b", DisplayName: "anon_b", UpdatedAt: at.Add(-time.Hour)},
	}
}

func TestWriteConversations(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, out []byte)
	}{
		{
			format: "table",
			check: func(t *testing.T, out []byte) {
				assert.Contains(t, string(out), "ANONYMOUS CLIENT")
				assert.Contains(t, string(out), "anon_a")
				assert.Contains(t, string(out), "2026-03-04T05:06:07Z")
			},
		},
		{
			format: "json",
			check: func(t *testing.T, out []byte) {
				var rows []conversationRow
				require.NoError(t, json.Unmarshal(out, &rows))
				require.Len(t, rows, 2)
				assert.Equal(t, "Ada", rows[0].DisplayName)
				assert.Empty(t, rows[1].LastMessage)
			},
		},
		{
			format: "yaml",
			check: func(t *testing.T, out []byte) {
				var rows []conversationRow
				require.NoError(t, yaml.Unmarshal(out, &rows))
				require.Len(t, rows, 2)
				assert.Equal(t, "conv_2", rows[1].ID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeConversations(&buf, tt.format, sampleConversations()))
			tt.check(t, buf.Bytes())
		})
	}
}

func TestWriteHistory_TableFlattensNewlines(t *testing.T) {
	var buf bytes.Buffer
	err := writeHistory(&buf, "table", []chat.Message{
		{ID: "msg_1", Role: chat.RoleVisitor, Body: "line one\nline two", CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "line one line two")
	assert.Contains(t, buf.String(), "VISITOR")
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, checkFormat("yaml"))
	assert.Error(t, checkFormat("xml"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestHistoryIdentity(t *testing.T) {
	newCmd := func(account string) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().String("account", "", "")
		require.NoError(t, cmd.Flags().Set("account", account))
		return cmd
	}

	_, _, err := historyIdentity(newCmd(""), nil)
	assert.ErrorIs(t, err, errNoIdentity)

	anon, account, err := historyIdentity(newCmd(" user-1 "), []string{"anon_a"})
	require.NoError(t, err)
	assert.Equal(t, "anon_a", anon)
	require.NotNil(t, account)
	assert.Equal(t, "user-1", *account)
}
