package admin

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/service"
)

func TestLocalUploads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	uploads, err := localUploads([]string{path})
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "report.pdf", uploads[0].Filename)
	assert.Equal(t, int64(8), uploads[0].Size)

	rc, err := uploads[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestLocalUploads_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := localUploads([]string{filepath.Join(dir, "missing.pdf")})
	assert.ErrorContains(t, err, "cannot read")

	_, err = localUploads([]string{dir})
	assert.ErrorContains(t, err, "is a directory")
}

func TestWriteIngestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeIngestJSON(&buf, []service.FileResult{
		{FilePath: "uploaded_files/a.pdf", Chunks: []string{"x"}},
		{FilePath: "uploaded_files/b.docx"},
	}))

	assert.JSONEq(t, `[
		{"file_path":"uploaded_files/a.pdf","chunks":["x"]},
		{"file_path":"uploaded_files/b.docx","chunks":[]}
	]`, buf.String())
}

func TestIngestCmd_RequiresArgs(t *testing.T) {
	cmd := IngestCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	assert.Error(t, cmd.Execute())
}
