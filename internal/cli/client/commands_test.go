package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolateConfig(t)

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Files uploaded successfully","uploaded_files":[{"file_path":"uploads/a.pdf","chunks":["x","y","z"]}]}`))
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["query"] == "unknown topic" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"answers":["Sorry, I couldn't find an answer."]}`))
			return
		}
		w.Write([]byte(`{"answer":"Forty two."}`))
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["a.pdf"]`))
	})
	mux.HandleFunc("/documents", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"file_name":"a.pdf","file_type":"pdf","status":"failed","chunk_count":0,"error":"boom","updated_at":"2026-01-02T03:04:05Z"}]}`))
	})
	mux.HandleFunc("/download/a.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pdf-bytes"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestUploadCmd_Text(t *testing.T) {
	srv := newFakeServer(t)
	file := writeTempFile(t, "a.pdf", "%PDF")

	out, err := runRoot(t, "upload", file, "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Files uploaded successfully")
	assert.Contains(t, out, "uploads/a.pdf (3 chunks)")
}

func TestUploadCmd_RequiresArgs(t *testing.T) {
	_, err := runRoot(t, "upload")
	require.Error(t, err)
}

func TestQueryCmd_JoinsArgs(t *testing.T) {
	srv := newFakeServer(t)

	out, err := runRoot(t, "query", "unknown", "topic", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I couldn't find an answer.\n", out)
}

func TestQueryCmd_JSON(t *testing.T) {
	srv := newFakeServer(t)

	out, err := runRoot(t, "query", "meaning of life", "--api-url", srv.URL, "--output")
	require.NoError(t, err)

	var result QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Found)
	assert.Equal(t, "Forty two.", result.Answer)
}

func TestQueryCmd_UsesEnvURL(t *testing.T) {
	srv := newFakeServer(t)
	isolateConfig(t)
	t.Setenv(envAPIURL, srv.URL)

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"query", "hello"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "Forty two.\n", out.String())
}

func TestFilesCmd(t *testing.T) {
	srv := newFakeServer(t)

	out, err := runRoot(t, "files", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf\n", out)

	out, err = runRoot(t, "files", "--api-url", srv.URL, "--output")
	require.NoError(t, err)
	assert.JSONEq(t, `["a.pdf"]`, out)
}

func TestDocumentsCmd(t *testing.T) {
	srv := newFakeServer(t)

	out, err := runRoot(t, "documents", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "FILE")
	assert.Contains(t, out, "a.pdf")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "error: boom")
}

func TestDownloadCmd_OutputFlag(t *testing.T) {
	srv := newFakeServer(t)
	dest := filepath.Join(t.TempDir(), "copy.pdf")

	out, err := runRoot(t, "download", "a.pdf", "-o", dest, "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved "+dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
}

func TestDownloadCmd_NotFound(t *testing.T) {
	srv := newFakeServer(t)
	dest := filepath.Join(t.TempDir(), "missing.pdf")

	_, err := runRoot(t, "download", "missing.pdf", "-o", dest, "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd("test")

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"upload", "query", "files", "download", "documents"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("help-json"))
}
