package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents",
		Long:  "Uploads up to 5 PDF, DOCX, JPG or PNG files in one request and indexes their text.",
		Example: `  docqa upload report.pdf
  docqa upload notes.docx scan.png --output`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Upload(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeJSON(out, resp)
			}

			fmt.Fprintln(out, resp.Message)
			for _, f := range resp.UploadedFiles {
				fmt.Fprintf(out, "  %s (%d chunks)\n", f.FilePath, len(f.Chunks))
			}
			return nil
		},
	}
}
