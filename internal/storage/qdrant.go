package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	payloadNamespace  = "namespace"
	payloadText       = "text"
	payloadFileName   = "file_name"
	payloadFilePath   = "file_path"
	payloadUploadTime = "upload_time"
	payloadChunkIndex = "chunk_index"

	upsertBatchSize = 100
)

// ErrQdrantUnreachable is returned when the start-up health check never succeeds.
var ErrQdrantUnreachable = errors.New("qdrant server unreachable")

// QdrantConfig holds connection settings for Qdrant.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantIndex stores index records as points of one collection. The
// namespace is kept in the payload and filtered on.
type QdrantIndex struct {
	client *qdrant.Client

	mu   sync.RWMutex
	spec *domain.IndexSpec
}

// NewQdrantIndex connects to Qdrant and waits for it to report healthy.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{client: client}
	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	return idx, nil
}

func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

func (q *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error { return q.Health(ctx) }, newBackOff(ctx))
}

// Health performs a single health check against Qdrant.
func (q *QdrantIndex) Health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the Qdrant client connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

func distance(m domain.Metric) qdrant.Distance {
	switch m {
	case domain.MetricDotProduct:
		return qdrant.Distance_Dot
	case domain.MetricEuclidean:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

// EnsureIndex creates the collection and its payload indexes when missing,
// and verifies the dimension of an existing one.
func (q *QdrantIndex) EnsureIndex(ctx context.Context, spec domain.IndexSpec) error {
	if err := domain.ValidateIndexSpec(spec); err != nil {
		return err
	}

	exists, err := q.client.CollectionExists(ctx, spec.Name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		info, err := q.client.GetCollectionInfo(ctx, spec.Name)
		if err != nil {
			return fmt.Errorf("failed to get collection info: %w", err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != uint64(spec.Dimension) {
			return fmt.Errorf("%w: collection %s has dimension %d, requested %d",
				domain.ErrDimensionMismatch, spec.Name, size, spec.Dimension)
		}
	} else {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: spec.Name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(spec.Dimension),
				Distance: distance(spec.Metric),
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		for _, field := range []string{payloadNamespace, payloadFileName} {
			_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: spec.Name,
				FieldName:      field,
				FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			})
			if err != nil {
				return fmt.Errorf("failed to create index for field %s: %w", field, err)
			}
		}
	}

	q.mu.Lock()
	q.spec = &spec
	q.mu.Unlock()
	return nil
}

func (q *QdrantIndex) currentSpec() (domain.IndexSpec, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.spec == nil {
		return domain.IndexSpec{}, domain.ErrIndexNotReady
	}
	return *q.spec, nil
}

// Upsert writes records in batches with wait=true, so each call returns
// after the points are searchable.
func (q *QdrantIndex) Upsert(ctx context.Context, namespace string, records []domain.IndexRecord) error {
	spec, err := q.currentSpec()
	if err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Vector) != spec.Dimension {
			return domain.ErrDimensionMismatch
		}
	}

	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, r := range records[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(r.ID),
				Vectors: qdrant.NewVectors(r.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadNamespace:  namespace,
					payloadText:       r.Metadata.Text,
					payloadFileName:   r.Metadata.FileName,
					payloadFilePath:   r.Metadata.FilePath,
					payloadUploadTime: r.Metadata.UploadTime.UTC().Format(time.RFC3339Nano),
					payloadChunkIndex: r.Metadata.ChunkIndex,
				}),
			})
		}

		op := func() error {
			_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: spec.Name,
				Wait:           qdrant.PtrOf(true),
				Points:         points,
			})
			return err
		}
		if err := backoff.Retry(op, newBackOff(ctx)); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (q *QdrantIndex) DeleteByFile(ctx context.Context, namespace, fileName string) error {
	spec, err := q.currentSpec()
	if err != nil {
		return err
	}

	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: spec.Name,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(payloadNamespace, namespace),
				qdrant.NewMatch(payloadFileName, fileName),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", fileName, err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]domain.QueryMatch, error) {
	spec, err := q.currentSpec()
	if err != nil {
		return nil, err
	}
	if len(vector) != spec.Dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if topK <= 0 {
		return []domain.QueryMatch{}, nil
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: spec.Name,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadNamespace, namespace)},
		},
		Limit:       qdrant.PtrOf(uint64(topK)),
		WithPayload: qdrant.NewWithPayload(includeMetadata),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	matches := make([]domain.QueryMatch, 0, len(results))
	for _, p := range results {
		m := domain.QueryMatch{
			ID:    p.GetId().GetUuid(),
			Score: p.GetScore(),
		}
		// qdrant reports euclidean distance, lower first
		if spec.Metric == domain.MetricEuclidean {
			m.Score = 1 / (1 + m.Score)
		}
		if includeMetadata {
			m.Metadata = metadataFromPayload(p.GetPayload())
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func metadataFromPayload(payload map[string]*qdrant.Value) *domain.ChunkMetadata {
	meta := &domain.ChunkMetadata{
		Text:       payload[payloadText].GetStringValue(),
		FileName:   payload[payloadFileName].GetStringValue(),
		FilePath:   payload[payloadFilePath].GetStringValue(),
		ChunkIndex: int(payload[payloadChunkIndex].GetIntegerValue()),
	}
	if ts, err := time.Parse(time.RFC3339Nano, payload[payloadUploadTime].GetStringValue()); err == nil {
		meta.UploadTime = ts
	}
	return meta
}
