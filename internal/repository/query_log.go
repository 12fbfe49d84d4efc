package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docqa/internal/service"
)

// QueryLogRepository records answered and unanswered queries.
type QueryLogRepository struct {
	db dbtx
}

func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{db: pool}
}

func (r *QueryLogRepository) Create(ctx context.Context, entry service.QueryLogEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO query_logs (query, match_count, top_score, duration_ms, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Query, entry.MatchCount, entry.TopScore, entry.DurationMs, entry.Outcome, time.Now().UTC(),
	)
	return err
}
