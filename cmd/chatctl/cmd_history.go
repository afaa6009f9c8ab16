package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"jan-server/services/support-chat-api/internal/domain/chat"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or delete a visitor's conversation",
}

var historyShowCmd = &cobra.Command{
	Use:   "show [anonymous-client-id]",
	Short: "Print a conversation in order",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [anonymous-client-id]",
	Short: "Delete every message of a conversation",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyCmd.PersistentFlags().String("account", "", "Resolve the conversation by account id")
	historyShowCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")
	historyDeleteCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}

func historyIdentity(cmd *cobra.Command, args []string) (string, *string, error) {
	var anonymousClientID string
	if len(args) == 1 {
		anonymousClientID = strings.TrimSpace(args[0])
	}
	var accountID *string
	if account, _ := cmd.Flags().GetString("account"); strings.TrimSpace(account) != "" {
		account = strings.TrimSpace(account)
		accountID = &account
	}
	if anonymousClientID == "" && accountID == nil {
		return "", nil, errNoIdentity
	}
	return anonymousClientID, accountID, nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	if err := checkFormat(format); err != nil {
		return err
	}
	anonymousClientID, accountID, err := historyIdentity(cmd, args)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	history, err := s.service.GetHistory(cmd.Context(), anonymousClientID, accountID)
	if err != nil {
		return err
	}
	return writeHistory(cmd.OutOrStdout(), format, history)
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	anonymousClientID, accountID, err := historyIdentity(cmd, args)
	if err != nil {
		return err
	}
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Fprint(cmd.OutOrStdout(), "Delete all messages of this conversation? [y/N] ")
		var answer string
		_, _ = fmt.Fscanln(cmd.InOrStdin(), &answer)
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}
	}

	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.service.DeleteHistory(cmd.Context(), anonymousClientID, accountID); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "history deleted")
	return nil
}

type messageRow struct {
	ID        string `json:"id" yaml:"id"`
	Role      string `json:"role" yaml:"role"`
	Body      string `json:"body" yaml:"body"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
}

func writeHistory(w io.Writer, format string, history []chat.Message) error {
	rows := make([]messageRow, 0, len(history))
	for _, m := range history {
		rows = append(rows, messageRow{
			ID:        m.ID,
			Role:      string(m.Role),
			Body:      m.Body,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
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
	fmt.Fprintln(tw, "TIME\tROLE\tMESSAGE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.CreatedAt, r.Role, truncate(strings.ReplaceAll(r.Body, "\n", " "), 96))
	}
	return tw.Flush()
}
