//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/testutil"
)

func TestIntegration_QdrantIndex(t *testing.T) {
	ctx := context.Background()
	qc := testutil.NewQdrantContainer(ctx, t)
	defer qc.Terminate(ctx)

	idx, err := NewQdrantIndex(ctx, QdrantConfig{Host: qc.Host, Port: qc.GRPCPort})
	require.NoError(t, err)
	defer idx.Close()

	spec := domain.IndexSpec{Name: "docqa-test", Dimension: 3, Metric: domain.MetricCosine}
	require.NoError(t, idx.EnsureIndex(ctx, spec))
	require.NoError(t, idx.EnsureIndex(ctx, spec), "EnsureIndex must be idempotent")

	t.Run("upsert is visible to query on return", func(t *testing.T) {
		require.NoError(t, idx.Upsert(ctx, "default", []domain.IndexRecord{
			record("a.pdf", 0, "alpha", 1, 0, 0),
			record("a.pdf", 1, "beta", 0, 1, 0),
			record("b.pdf", 0, "gamma", 0, 0, 1),
		}))

		matches, err := idx.Query(ctx, "default", []float32{0, 1, 0}, 10, true)
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, domain.ChunkID("a.pdf", 1), matches[0].ID)
		assert.Greater(t, matches[0].Score, float32(0.99))
		assert.Equal(t, "beta", matches[0].Metadata.Text)
		assert.Equal(t, 1, matches[0].Metadata.ChunkIndex)
		assert.Equal(t, "uploaded_files/a.pdf", matches[0].Metadata.FilePath)
		assert.False(t, matches[0].Metadata.UploadTime.IsZero())
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		matches, err := idx.Query(ctx, "other", []float32{1, 0, 0}, 10, true)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("delete by file removes only that file", func(t *testing.T) {
		require.NoError(t, idx.DeleteByFile(ctx, "default", "a.pdf"))

		matches, err := idx.Query(ctx, "default", []float32{1, 0, 0}, 10, true)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "b.pdf", matches[0].Metadata.FileName)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		err := idx.EnsureIndex(ctx, domain.IndexSpec{Name: "docqa-test", Dimension: 4, Metric: domain.MetricCosine})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}
