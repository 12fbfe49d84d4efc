//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/testutil"
)

func indexRecord(file string, index int, text string, vector ...float32) domain.IndexRecord {
	return domain.NewIndexRecord(domain.TextChunk{
		Index:      index,
		Text:       text,
		FileName:   file,
		FilePath:   "uploaded_files/" + file,
		UploadTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, vector)
}

func TestVectorIndexRepository_RoundTrip(t *testing.T) {
	for _, metric := range []domain.Metric{domain.MetricCosine, domain.MetricDotProduct, domain.MetricEuclidean} {
		t.Run(string(metric), func(t *testing.T) {
			ctx := context.Background()
			pool := setupPool(ctx, t)
			idx := NewVectorIndexRepository(pool)

			spec := domain.IndexSpec{Name: "test-index", Dimension: 3, Metric: metric}
			require.NoError(t, idx.EnsureIndex(ctx, spec))
			require.NoError(t, idx.EnsureIndex(ctx, spec))

			records := []domain.IndexRecord{
				indexRecord("a.pdf", 0, "alpha", 1, 0, 0),
				indexRecord("a.pdf", 1, "beta", 0, 1, 0),
				indexRecord("b.pdf", 0, "gamma", 0, 0, 1),
			}
			require.NoError(t, idx.Upsert(ctx, "default", records))

			matches, err := idx.Query(ctx, "default", []float32{0, 1, 0}, 2, true)
			require.NoError(t, err)
			require.Len(t, matches, 2)
			assert.Equal(t, records[1].ID, matches[0].ID)
			assert.Greater(t, matches[0].Score, float32(0.5))
			assert.Greater(t, matches[0].Score, matches[1].Score)
			require.NotNil(t, matches[0].Metadata)
			assert.Equal(t, "beta", matches[0].Metadata.Text)
			assert.Equal(t, "a.pdf", matches[0].Metadata.FileName)
			assert.Equal(t, 1, matches[0].Metadata.ChunkIndex)
			assert.True(t, records[1].Metadata.UploadTime.Equal(matches[0].Metadata.UploadTime))

			other, err := idx.Query(ctx, "other", []float32{0, 1, 0}, 2, true)
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestVectorIndexRepository_UpsertOverwritesAndDeleteByFile(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	idx := NewVectorIndexRepository(pool)
	require.NoError(t, idx.EnsureIndex(ctx, domain.IndexSpec{Name: "test-index", Dimension: 2, Metric: domain.MetricCosine}))

	require.NoError(t, idx.Upsert(ctx, "default", []domain.IndexRecord{indexRecord("a.pdf", 0, "old", 1, 0)}))
	require.NoError(t, idx.Upsert(ctx, "default", []domain.IndexRecord{indexRecord("a.pdf", 0, "new", 1, 0)}))

	matches, err := idx.Query(ctx, "default", []float32{1, 0}, 10, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Metadata.Text)

	require.NoError(t, idx.DeleteByFile(ctx, "default", "a.pdf"))
	matches, err = idx.Query(ctx, "default", []float32{1, 0}, 10, false)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestVectorIndexRepository_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	idx := NewVectorIndexRepository(pool)

	err := idx.Upsert(ctx, "default", []domain.IndexRecord{indexRecord("a.pdf", 0, "x", 1, 0)})
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)

	require.NoError(t, idx.EnsureIndex(ctx, domain.IndexSpec{Name: "test-index", Dimension: 2, Metric: domain.MetricCosine}))

	err = idx.Upsert(ctx, "default", []domain.IndexRecord{indexRecord("a.pdf", 0, "x", 1, 0, 0)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = idx.Query(ctx, "default", []float32{1}, 1, false)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	err = NewVectorIndexRepository(pool).EnsureIndex(ctx, domain.IndexSpec{Name: "test-index", Dimension: 4, Metric: domain.MetricCosine})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	require.NoError(t, testutil.DropTable(ctx, pool, "test-index"))
}
