package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/service"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Ingest local files without the HTTP server",
		Long: `Run the upload pipeline on local files: store, extract, chunk, embed and index.
The same file count, size and type limits as POST /upload apply.`,
		Example: "  docqad ingest report.pdf notes.docx scan.png",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runIngest,
	}

	cmd.Flags().Bool("output", false, "Output as JSON")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	uploads, err := localUploads(args)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.ingest.Ingest(ctx, uploads)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("output"); asJSON {
		return writeIngestJSON(out, results)
	}
	for _, r := range results {
		fmt.Fprintf(out, "%s: %d chunks\n", r.FilePath, len(r.Chunks))
	}
	return nil
}

// localUploads describes files on disk the way the upload handler describes
// multipart parts.
func localUploads(paths []string) ([]service.FileUpload, error) {
	uploads := make([]service.FileUpload, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		uploads = append(uploads, service.FileUpload{
			Filename: filepath.Base(p),
			Size:     info.Size(),
			Open: func() (io.ReadCloser, error) {
				return os.Open(p)
			},
		})
	}
	return uploads, nil
}

type ingestResult struct {
	FilePath string   `json:"file_path"`
	Chunks   []string `json:"chunks"`
}

func writeIngestJSON(w io.Writer, results []service.FileResult) error {
	out := make([]ingestResult, 0, len(results))
	for _, r := range results {
		chunks := r.Chunks
		if chunks == nil {
			chunks = []string{}
		}
		out = append(out, ingestResult{FilePath: r.FilePath, Chunks: chunks})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
