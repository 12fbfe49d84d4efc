package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

const (
	// DefaultTopK is the number of neighbours requested per query.
	DefaultTopK = 10
	// DefaultSimilarityThreshold drops matches scoring below it.
	DefaultSimilarityThreshold float32 = 0.5

	promptTemplate = "Answer the following question based on the provided context:\nContext: %s\nQuestion: %s"
)

// Query outcomes recorded in the query log.
const (
	QueryOutcomeAnswered  = "answered"
	QueryOutcomeNoMatches = "no_matches"
	QueryOutcomeError     = "error"
)

// AnswerGenerator completes a prompt with a language model.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, prompt string) (string, error)
}

// QueryLogEntry captures a query and how it was answered.
type QueryLogEntry struct {
	Query      string
	MatchCount int
	TopScore   float32
	DurationMs int
	Outcome    string
}

// QueryLogRepository persists query logs.
type QueryLogRepository interface {
	Create(ctx context.Context, entry QueryLogEntry) error
}

// QueryConfig controls retrieval for answering.
type QueryConfig struct {
	Namespace string
	TopK      int
	Threshold float32
}

// QueryService answers questions from the indexed documents.
type QueryService struct {
	embedder  EmbeddingClient
	index     IndexStore
	generator AnswerGenerator
	logs      QueryLogRepository
	cfg       QueryConfig
}

// NewQueryService creates a QueryService. logs may be nil.
func NewQueryService(embedder EmbeddingClient, index IndexStore, generator AnswerGenerator, logs QueryLogRepository, cfg QueryConfig) *QueryService {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &QueryService{
		embedder:  embedder,
		index:     index,
		generator: generator,
		logs:      logs,
		cfg:       cfg,
	}
}

// BuildPrompt renders the generation prompt for a context and question.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}

// Answer embeds the question, retrieves matching chunks and generates an
// answer grounded in them. It returns domain.ErrNoMatches when no chunk
// reaches the similarity threshold.
func (s *QueryService) Answer(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", domain.ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "QueryService.Answer", telemetry.SpanAttributes{
		Namespace: s.cfg.Namespace,
		Operation: "query",
	})
	defer span.End()

	start := time.Now()
	entry := QueryLogEntry{Query: query, Outcome: QueryOutcomeError}
	defer func() {
		entry.DurationMs = int(time.Since(start).Milliseconds())
		s.writeLog(ctx, entry)
	}()

	vector, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return "", domain.NewExternalServiceError("query embedding", err)
	}

	matches, err := s.index.Query(ctx, s.cfg.Namespace, vector, s.cfg.TopK, true)
	if err != nil {
		span.SetError(err)
		return "", domain.NewExternalServiceError("index query", err)
	}

	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Score < s.cfg.Threshold || m.Metadata == nil {
			continue
		}
		if len(texts) == 0 {
			entry.TopScore = m.Score
		}
		texts = append(texts, m.Metadata.Text)
	}
	entry.MatchCount = len(texts)

	if len(texts) == 0 {
		entry.Outcome = QueryOutcomeNoMatches
		return "", domain.ErrNoMatches
	}

	answer, err := s.generator.GenerateAnswer(ctx, BuildPrompt(strings.Join(texts, " "), query))
	if err != nil {
		span.SetError(err)
		return "", domain.NewExternalServiceError("answer generation", err)
	}

	entry.Outcome = QueryOutcomeAnswered
	return strings.TrimSpace(answer), nil
}

func (s *QueryService) writeLog(ctx context.Context, entry QueryLogEntry) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("query: failed to write query log: %v", err)
	}
}
