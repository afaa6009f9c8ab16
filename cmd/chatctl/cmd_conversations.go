package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"jan-server/services/support-chat-api/internal/domain/chat"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Inspect conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recent first",
	RunE:  runConversationsList,
}

func init() {
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsListCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	if err := checkFormat(format); err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.service.ListConversations(cmd.Context())
	if err != nil {
		return err
	}
	return writeConversations(cmd.OutOrStdout(), format, list)
}

func checkFormat(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

type conversationRow struct {
	ID                string `json:"id" yaml:"id"`
	AnonymousClientID string `json:"anonymous_client_id" yaml:"anonymous_client_id"`
	DisplayName       string `json:"display_name" yaml:"display_name"`
	LastMessage       string `json:"last_message,omitempty" yaml:"last_message,omitempty"`
	UpdatedAt         string `json:"updated_at" yaml:"updated_at"`
}

func writeConversations(w io.Writer, format string, list []chat.ConversationSummary) error {
	rows := make([]conversationRow, 0, len(list))
	for _, c := range list {
		rows = append(rows, conversationRow{
			ID:                c.ID,
			AnonymousClientID: c.AnonymousClientID,
			DisplayName:       c.DisplayName,
			LastMessage:       c.LastMessage,
			UpdatedAt:         c.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tANONYMOUS CLIENT\tNAME\tUPDATED\tLAST MESSAGE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.AnonymousClientID, r.DisplayName, r.UpdatedAt, truncate(r.LastMessage, 48))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
