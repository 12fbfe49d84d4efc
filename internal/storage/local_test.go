package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
)

func TestLocalStore_SaveOpenList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploaded_files")
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	path, err := store.Save(ctx, "b.pdf", strings.NewReader("second"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.pdf"), path)

	_, err = store.Save(ctx, "a.png", strings.NewReader("first"))
	require.NoError(t, err)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.pdf"}, names)

	blob, err := store.Open(ctx, "b.pdf")
	require.NoError(t, err)
	defer blob.Body.Close()
	data, err := io.ReadAll(blob.Body)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, int64(6), blob.Size)
}

func TestLocalStore_SaveOverwrites(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Save(ctx, "doc.pdf", strings.NewReader("old content that is longer"))
	require.NoError(t, err)
	_, err = store.Save(ctx, "doc.pdf", strings.NewReader("new"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, "doc.pdf")
	require.NoError(t, err)
	defer blob.Body.Close()
	data, _ := io.ReadAll(blob.Body)
	assert.Equal(t, "new", string(data))
}

func TestLocalStore_ConcurrentSavesNeverTear(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	contents := []string{strings.Repeat("a", 1<<16), strings.Repeat("b", 1<<16)}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			_, err := store.Save(ctx, "same.pdf", strings.NewReader(c))
			assert.NoError(t, err)
		}(contents[i%2])
	}
	wg.Wait()

	blob, err := store.Open(ctx, "same.pdf")
	require.NoError(t, err)
	defer blob.Body.Close()
	data, _ := io.ReadAll(blob.Body)
	assert.Contains(t, contents, string(data))
}

func TestLocalStore_OpenMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "nope.pdf")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestLocalStore_ListSkipsTempFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("partial"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kept.docx"), []byte("x"), 0o644))

	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kept.docx"}, names)
}

func TestLocalStore_ListEmpty(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	names, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}
