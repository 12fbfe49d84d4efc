//go:build e2e

package e2e

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/cli/client"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/jobs"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/cloo-solutions/docqa/internal/testutil"
)

const (
	testAPIKey     = "e2e-secret"
	testDimensions = 8
)

// topicKeywords map onto one embedding axis each; text matching none of
// them lands on the last axis.
var topicKeywords = []string{"refund", "shipping", "warranty", "invoice"}

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	Pool      *pgxpool.Pool
	OpenAI    *FakeOpenAI
	Server    *httptest.Server
	Client    *client.APIClient
	Ingest    *service.IngestService
	Reingest  *jobs.ReingestWorker
	BinaryDir string
}

// SetupE2EEnv starts pgvector and a fake OpenAI, then serves the full router.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	fake := NewFakeOpenAI()

	blobs, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	index := repository.NewVectorIndexRepository(pool)
	spec := domain.IndexSpec{Name: "e2e_chunks", Dimension: testDimensions, Metric: domain.MetricCosine}
	if err := index.EnsureIndex(ctx, spec); err != nil {
		t.Fatalf("failed to ensure index: %v", err)
	}

	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:              "sk-e2e",
		BaseURL:             fake.URL() + "/v1",
		EmbeddingModel:      goopenai.SmallEmbedding3,
		EmbeddingDimensions: testDimensions,
		MaxRetries:          1,
	})

	documents := repository.NewDocumentRepository(pool)
	ingest := service.NewIngestService(
		blobs,
		extract.NewDispatcher(extract.Config{}),
		service.NewBatchEmbedder(llm, 2),
		index,
		documents,
		repository.NewTxRunner(pool),
		service.IngestConfig{ChunkSize: 200},
	)
	query := service.NewQueryService(llm, index, llm, repository.NewQueryLogRepository(pool), service.QueryConfig{})
	files := service.NewFileService(blobs, documents)

	router := server.NewRouter(server.RouterConfig{
		UploadHandler:  handlers.NewUploadHandler(ingest),
		QueryHandler:   handlers.NewQueryHandler(query),
		FileHandler:    handlers.NewFileHandler(files),
		HealthHandler:  handlers.NewHealthHandler(pool),
		APIKey:         testAPIKey,
		MaxUploadBytes: int64(service.DefaultMaxFiles+1) * service.DefaultMaxFileSize,
	})
	srv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		Pool:      pool,
		OpenAI:    fake,
		Server:    srv,
		Client:    client.NewAPIClientWithConfig(testAPIKey, srv.URL),
		Ingest:    ingest,
		Reingest:  jobs.NewReingestWorker(repository.NewIngestJobRepository(pool), ingest),
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.OpenAI != nil {
		e.OpenAI.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildClient builds the docqa binary into a temp dir.
func (e *E2ETestEnv) BuildClient() {
	tmpDir, err := os.MkdirTemp("", "docqa-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "docqa"), "./cmd/docqa")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build docqa: %v\n%s", err, out)
	}
}

// RunDocqa runs the docqa binary against the test server.
func (e *E2ETestEnv) RunDocqa(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "docqa"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"DOCQA_API_KEY="+testAPIKey,
		"DOCQA_API_URL="+e.Server.URL,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// WriteDOCX writes a minimal DOCX with one paragraph per entry.
func WriteDOCX(t *testing.T, dir, name string, paragraphs ...string) string {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, p)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("failed to create docx part: %v", err)
	}
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("failed to write docx part: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close docx: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write docx: %v", err)
	}
	return path
}

// FakeOpenAI serves the embeddings and chat completion endpoints with
// keyword-derived vectors and canned answers.
type FakeOpenAI struct {
	srv *httptest.Server

	mu               sync.Mutex
	failEmbeddings   bool
	embeddingCalls   int
	completionPrompt []string
}

func NewFakeOpenAI() *FakeOpenAI {
	f := &FakeOpenAI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", f.handleEmbeddings)
	mux.HandleFunc("/v1/chat/completions", f.handleChat)
	f.srv = httptest.NewServer(mux)
	return f
}

func (f *FakeOpenAI) URL() string { return f.srv.URL }

func (f *FakeOpenAI) Close() { f.srv.Close() }

// SetFailEmbeddings makes embedding calls fail with a non-retryable 400.
func (f *FakeOpenAI) SetFailEmbeddings(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failEmbeddings = fail
}

func (f *FakeOpenAI) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.completionPrompt...)
}

func (f *FakeOpenAI) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid body")
		return
	}

	f.mu.Lock()
	f.embeddingCalls++
	fail := f.failEmbeddings
	f.mu.Unlock()

	if fail {
		writeOpenAIError(w, http.StatusBadRequest, "embeddings disabled")
		return
	}

	data := make([]goopenai.Embedding, len(req.Input))
	for i, text := range req.Input {
		data[i] = goopenai.Embedding{Object: "embedding", Embedding: topicVector(text), Index: i}
	}
	writeJSON(w, goopenai.EmbeddingResponse{Object: "list", Data: data, Model: goopenai.SmallEmbedding3})
}

func (f *FakeOpenAI) handleChat(w http.ResponseWriter, r *http.Request) {
	var req goopenai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		writeOpenAIError(w, http.StatusBadRequest, "invalid body")
		return
	}

	f.mu.Lock()
	f.completionPrompt = append(f.completionPrompt, req.Messages[len(req.Messages)-1].Content)
	f.mu.Unlock()

	writeJSON(w, goopenai.ChatCompletionResponse{
		ID:     "chatcmpl-e2e",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []goopenai.ChatCompletionChoice{{
			Index:        0,
			Message:      goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: "  Refunds are accepted within 30 days.  "},
			FinishReason: goopenai.FinishReasonStop,
		}},
	})
}

func topicVector(text string) []float32 {
	v := make([]float32, testDimensions)
	lower := strings.ToLower(text)
	matched := false
	for i, kw := range topicKeywords {
		if strings.Contains(lower, kw) {
			v[i] = 1
			matched = true
		}
	}
	if !matched {
		v[testDimensions-1] = 1
	}
	return v
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeOpenAIError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"message": msg, "type": "invalid_request_error"},
	})
}
