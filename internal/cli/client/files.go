package client

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// FilesCmd creates the files command.
func FilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List stored files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			names, err := api.Files(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list files: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeJSON(out, names)
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "No files stored.")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}

// DownloadCmd creates the download command.
func DownloadCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <filename>",
		Short: "Download a stored file",
		Example: `  docqa download report.pdf
  docqa download report.pdf -o /tmp/copy.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			dest := outputPath
			if dest == "" {
				dest = filepath.Base(args[0])
			}

			n, err := api.Download(cmd.Context(), args[0], dest)
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeJSON(out, map[string]interface{}{
					"file_name": args[0],
					"path":      dest,
					"bytes":     n,
				})
			}
			fmt.Fprintf(out, "Saved %s (%d bytes)\n", dest, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Destination path (default: the file name in the current directory)")

	return cmd
}

// DocumentsCmd creates the documents command.
func DocumentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List ingestion status of stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			docs, err := api.Documents(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeJSON(out, docs)
			}
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tTYPE\tSTATUS\tCHUNKS\tUPDATED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", d.FileName, d.FileType, d.Status, d.ChunkCount, d.UpdatedAt)
				if d.Error != "" {
					fmt.Fprintf(tw, "\t\terror: %s\t\t\n", d.Error)
				}
			}
			return tw.Flush()
		},
	}
}
