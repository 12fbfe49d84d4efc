package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// QueryCmd creates the query command.
func QueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <text>...",
		Short: "Ask a question about the uploaded documents",
		Long:  "Retrieves matching passages and prints the generated answer. Multiple arguments are joined with spaces.",
		Example: `  docqa query "What is the refund policy?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			result, err := api.Query(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			if outputJSON(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			return nil
		},
	}
}
