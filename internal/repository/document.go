package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
)

// DocumentRepository persists the document catalog.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentColumns = `id, file_name, storage_path, file_type, size_bytes, sha256, status, chunk_count, error, created_at, updated_at`

// Upsert inserts d or, when its filename is already catalogued, replaces
// the stored attributes and resets indexing state. d.ID and d.CreatedAt
// are set to the persisted row's values.
func (r *DocumentRepository) Upsert(ctx context.Context, d *domain.Document) error {
	if err := domain.ValidateDocument(d); err != nil {
		return err
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO documents (id, file_name, storage_path, file_type, size_bytes, sha256, status, chunk_count, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (file_name) DO UPDATE SET
		     storage_path = EXCLUDED.storage_path,
		     file_type = EXCLUDED.file_type,
		     size_bytes = EXCLUDED.size_bytes,
		     sha256 = EXCLUDED.sha256,
		     status = EXCLUDED.status,
		     chunk_count = EXCLUDED.chunk_count,
		     error = EXCLUDED.error,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		d.ID, d.FileName, d.StoragePath, d.FileType, d.SizeBytes, d.SHA256,
		d.Status, d.ChunkCount, nullableString(d.Error), d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

func (r *DocumentRepository) GetByFileName(ctx context.Context, fileName string) (*domain.Document, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE file_name = $1`, fileName)
}

func (r *DocumentRepository) getOne(ctx context.Context, query string, arg any) (*domain.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

// SetStatus records the outcome of an ingestion attempt.
func (r *DocumentRepository) SetStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, chunk_count = $2, error = $3, updated_at = $4 WHERE id = $5`,
		status, chunkCount, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// List returns up to limit documents after the given position, most
// recently updated first. A nil cursor starts from the top.
func (r *DocumentRepository) List(ctx context.Context, after *pagination.Cursor, limit int) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []interface{}{}
	if after != nil {
		query += ` WHERE (updated_at, id) < ($1, $2)`
		args = append(args, after.UpdatedAt, after.ID)
	}
	query += ` ORDER BY updated_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var errMsg pgtype.Text
	err := row.Scan(&d.ID, &d.FileName, &d.StoragePath, &d.FileType, &d.SizeBytes, &d.SHA256,
		&d.Status, &d.ChunkCount, &errMsg, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		d.Error = errMsg.String
	}
	return &d, nil
}
