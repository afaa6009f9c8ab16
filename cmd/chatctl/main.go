package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Operator tooling for the support chat service",
	Long: `chatctl inspects and maintains the support chat store directly.

It reads the same environment as the server (SUPPORT_CHAT_DATABASE_URL,
REDIS_URL, ...) and loads .env files from the working directory.

Examples:
  chatctl migrate
  chatctl conversations list -o yaml
  chatctl history show anon_4f2k9x
  chatctl history delete anon_4f2k9x --account user-123`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(historyCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}
