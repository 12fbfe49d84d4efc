package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// hnswMaxDimensions is the largest vector pgvector can index with HNSW.
// Wider tables fall back to exact scans.
const hnswMaxDimensions = 2000

// VectorIndexRepository stores index records in a pgvector table named
// after the index. Writes are visible once their transaction commits.
type VectorIndexRepository struct {
	pool *pgxpool.Pool

	mu   sync.RWMutex
	spec *domain.IndexSpec
}

func NewVectorIndexRepository(pool *pgxpool.Pool) *VectorIndexRepository {
	return &VectorIndexRepository{pool: pool}
}

// EnsureIndex creates the index table when missing and checks the
// dimension of an existing one.
func (r *VectorIndexRepository) EnsureIndex(ctx context.Context, spec domain.IndexSpec) error {
	if err := domain.ValidateIndexSpec(spec); err != nil {
		return err
	}
	opClass, _, err := metricOperators(spec.Metric)
	if err != nil {
		return err
	}

	dim, exists, err := r.tableDimension(ctx, spec.Name)
	if err != nil {
		return fmt.Errorf("failed to inspect index %s: %w", spec.Name, err)
	}
	if exists && dim != spec.Dimension {
		return fmt.Errorf("%w: index %s has dimension %d, want %d", domain.ErrDimensionMismatch, spec.Name, dim, spec.Dimension)
	}

	table := pgx.Identifier{spec.Name}.Sanitize()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			namespace TEXT NOT NULL,
			id UUID NOT NULL,
			file_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			chunk_index INT NOT NULL,
			text TEXT NOT NULL,
			upload_time TIMESTAMPTZ NOT NULL,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (namespace, id)
		)`, table, spec.Dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (namespace, file_name)`,
			pgx.Identifier{spec.Name + "_file_idx"}.Sanitize(), table),
	}
	if spec.Dimension <= hnswMaxDimensions {
		stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)`,
			pgx.Identifier{spec.Name + "_embedding_idx"}.Sanitize(), table, opClass))
	}

	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index %s: %w", spec.Name, err)
		}
	}

	r.mu.Lock()
	r.spec = &spec
	r.mu.Unlock()
	return nil
}

func (r *VectorIndexRepository) tableDimension(ctx context.Context, name string) (int, bool, error) {
	var typmod int
	err := r.pool.QueryRow(ctx,
		`SELECT a.atttypmod
		 FROM pg_attribute a
		 JOIN pg_class c ON c.oid = a.attrelid
		 WHERE c.relname = $1 AND c.relkind = 'r' AND pg_table_is_visible(c.oid)
		   AND a.attname = 'embedding' AND NOT a.attisdropped`,
		name,
	).Scan(&typmod)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return typmod, true, nil
}

func (r *VectorIndexRepository) current() (domain.IndexSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.spec == nil {
		return domain.IndexSpec{}, domain.ErrIndexNotReady
	}
	return *r.spec, nil
}

// Upsert writes records in a single transaction.
func (r *VectorIndexRepository) Upsert(ctx context.Context, namespace string, records []domain.IndexRecord) error {
	spec, err := r.current()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if len(rec.Vector) != spec.Dimension {
			return fmt.Errorf("%w: record %s has %d values, index has %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), spec.Dimension)
		}
	}

	table := pgx.Identifier{spec.Name}.Sanitize()
	query := fmt.Sprintf(
		`INSERT INTO %s (namespace, id, file_name, file_path, chunk_index, text, upload_time, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (namespace, id) DO UPDATE SET
		     file_name = EXCLUDED.file_name,
		     file_path = EXCLUDED.file_path,
		     chunk_index = EXCLUDED.chunk_index,
		     text = EXCLUDED.text,
		     upload_time = EXCLUDED.upload_time,
		     embedding = EXCLUDED.embedding`, table)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, rec := range records {
		m := rec.Metadata
		batch.Queue(query, namespace, rec.ID, m.FileName, m.FilePath, m.ChunkIndex, m.Text,
			m.UploadTime, pgvector.NewVector(rec.Vector))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert %d records: %w", len(records), err)
	}

	return tx.Commit(ctx)
}

func (r *VectorIndexRepository) DeleteByFile(ctx context.Context, namespace, fileName string) error {
	spec, err := r.current()
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND file_name = $2`, pgx.Identifier{spec.Name}.Sanitize()),
		namespace, fileName,
	)
	return err
}

// Query returns the topK nearest records, most similar first.
func (r *VectorIndexRepository) Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]domain.QueryMatch, error) {
	spec, err := r.current()
	if err != nil {
		return nil, err
	}
	if len(vector) != spec.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", domain.ErrDimensionMismatch, len(vector), spec.Dimension)
	}
	if topK <= 0 {
		return []domain.QueryMatch{}, nil
	}
	_, op, err := metricOperators(spec.Metric)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(
			`SELECT id, %s AS score, file_name, file_path, chunk_index, text, upload_time
			 FROM %s
			 WHERE namespace = $1
			 ORDER BY embedding %s $2
			 LIMIT $3`,
			scoreExpression(spec.Metric), pgx.Identifier{spec.Name}.Sanitize(), op),
		namespace, pgvector.NewVector(vector), topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := []domain.QueryMatch{}
	for rows.Next() {
		var (
			id         string
			score      float64
			meta       domain.ChunkMetadata
			uploadTime time.Time
		)
		if err := rows.Scan(&id, &score, &meta.FileName, &meta.FilePath, &meta.ChunkIndex, &meta.Text, &uploadTime); err != nil {
			return nil, err
		}
		match := domain.QueryMatch{ID: id, Score: float32(score)}
		if includeMetadata {
			meta.UploadTime = uploadTime.UTC()
			match.Metadata = &meta
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func metricOperators(m domain.Metric) (opClass, op string, err error) {
	switch m {
	case domain.MetricCosine:
		return "vector_cosine_ops", "<=>", nil
	case domain.MetricDotProduct:
		return "vector_ip_ops", "<#>", nil
	case domain.MetricEuclidean:
		return "vector_l2_ops", "<->", nil
	}
	return "", "", fmt.Errorf("unsupported metric %q", m)
}

// scoreExpression converts the metric's distance into a similarity where
// larger is closer.
func scoreExpression(m domain.Metric) string {
	switch m {
	case domain.MetricDotProduct:
		return "((embedding <#> $2) * -1)"
	case domain.MetricEuclidean:
		return "(1 / (1 + (embedding <-> $2)))"
	default:
		return "(1 - (embedding <=> $2))"
	}
}
