package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// MemoryIndex is an in-process vector index using exact search.
// Writes are visible to Query as soon as they return.
type MemoryIndex struct {
	mu      sync.RWMutex
	spec    *domain.IndexSpec
	records map[string]map[string]domain.IndexRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]map[string]domain.IndexRecord)}
}

func (m *MemoryIndex) EnsureIndex(ctx context.Context, spec domain.IndexSpec) error {
	if err := domain.ValidateIndexSpec(spec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spec != nil && m.spec.Dimension != spec.Dimension {
		return fmt.Errorf("%w: index %s has dimension %d, requested %d",
			domain.ErrDimensionMismatch, spec.Name, m.spec.Dimension, spec.Dimension)
	}
	m.spec = &spec
	return nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, namespace string, records []domain.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spec == nil {
		return domain.ErrIndexNotReady
	}
	for _, r := range records {
		if len(r.Vector) != m.spec.Dimension {
			return domain.ErrDimensionMismatch
		}
	}

	ns, ok := m.records[namespace]
	if !ok {
		ns = make(map[string]domain.IndexRecord)
		m.records[namespace] = ns
	}
	for _, r := range records {
		vector := make([]float32, len(r.Vector))
		copy(vector, r.Vector)
		r.Vector = vector
		ns[r.ID] = r
	}
	return nil
}

func (m *MemoryIndex) DeleteByFile(ctx context.Context, namespace, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.spec == nil {
		return domain.ErrIndexNotReady
	}
	for id, r := range m.records[namespace] {
		if r.Metadata.FileName == fileName {
			delete(m.records[namespace], id)
		}
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]domain.QueryMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.spec == nil {
		return nil, domain.ErrIndexNotReady
	}
	if len(vector) != m.spec.Dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if topK <= 0 {
		return []domain.QueryMatch{}, nil
	}

	matches := make([]domain.QueryMatch, 0, len(m.records[namespace]))
	for id, r := range m.records[namespace] {
		match := domain.QueryMatch{ID: id, Score: score(m.spec.Metric, vector, r.Vector)}
		if includeMetadata {
			meta := r.Metadata
			match.Metadata = &meta
		}
		matches = append(matches, match)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len reports the number of records stored in namespace.
func (m *MemoryIndex) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[namespace])
}

// score maps every metric to "higher is more similar".
func score(metric domain.Metric, a, b []float32) float32 {
	switch metric {
	case domain.MetricDotProduct:
		return float32(dot(a, b))
	case domain.MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return float32(1 / (1 + math.Sqrt(sum)))
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return float32(dot(a, b) / (na * nb))
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
