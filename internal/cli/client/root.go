package client

import (
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/cli"
)

// NewRootCmd assembles the docqa command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "docqa CLI - ask questions about your documents",
		Long: `docqa uploads documents to a docqa server and answers questions from their contents.

Environment variables:
  DOCQA_API_KEY   API key sent as a bearer token (optional)
  DOCQA_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(UploadCmd())
	rootCmd.AddCommand(QueryCmd())
	rootCmd.AddCommand(FilesCmd())
	rootCmd.AddCommand(DownloadCmd())
	rootCmd.AddCommand(DocumentsCmd())

	return rootCmd
}
