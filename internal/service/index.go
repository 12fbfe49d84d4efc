package service

import (
	"context"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// IndexStore is the vector index behind ingestion and retrieval.
// Upsert and DeleteByFile return only once the change is visible to Query.
type IndexStore interface {
	EnsureIndex(ctx context.Context, spec domain.IndexSpec) error
	Upsert(ctx context.Context, namespace string, records []domain.IndexRecord) error
	DeleteByFile(ctx context.Context, namespace, fileName string) error
	Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]domain.QueryMatch, error)
}
