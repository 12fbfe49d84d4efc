package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
)

func TestFileService_List(t *testing.T) {
	blobs := new(MockBlobStore)
	svc := NewFileService(blobs, new(MockDocumentRepository))

	blobs.On("List", mock.Anything).Return([]string{"a.pdf", "b.png"}, nil)

	names, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.png"}, names)
}

func TestFileService_List_EmptyIsNotNil(t *testing.T) {
	blobs := new(MockBlobStore)
	svc := NewFileService(blobs, new(MockDocumentRepository))

	blobs.On("List", mock.Anything).Return(nil, nil)

	names, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestFileService_Open(t *testing.T) {
	blobs := new(MockBlobStore)
	svc := NewFileService(blobs, new(MockDocumentRepository))
	blob := &Blob{Name: "a.pdf", Size: 3, Body: io.NopCloser(strings.NewReader("pdf"))}

	blobs.On("Open", mock.Anything, "a.pdf").Return(blob, nil)

	got, err := svc.Open(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestFileService_Open_NotFound(t *testing.T) {
	blobs := new(MockBlobStore)
	svc := NewFileService(blobs, new(MockDocumentRepository))

	blobs.On("Open", mock.Anything, "missing.pdf").Return(nil, domain.ErrFileNotFound)

	_, err := svc.Open(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestFileService_Open_RejectsTraversal(t *testing.T) {
	blobs := new(MockBlobStore)
	svc := NewFileService(blobs, new(MockDocumentRepository))

	for _, name := range []string{"../secret.pdf", "..", "", "dir/a.pdf"} {
		_, err := svc.Open(context.Background(), name)
		assert.ErrorIs(t, err, domain.ErrFileNotFound, name)
	}
	blobs.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestFileService_Open_StorageError(t *testing.T) {
	blobs := new(MockBlobStore)
	svc := NewFileService(blobs, new(MockDocumentRepository))
	storageErr := errors.New("access denied")

	blobs.On("Open", mock.Anything, "a.pdf").Return(nil, storageErr)

	_, err := svc.Open(context.Background(), "a.pdf")
	assert.ErrorIs(t, err, storageErr)
}

func TestFileService_Documents_FirstPage(t *testing.T) {
	docs := new(MockDocumentRepository)
	svc := NewFileService(new(MockBlobStore), docs)
	now := time.Now().UTC()
	list := []*domain.Document{
		{ID: "5b1f7a40-1c8e-4d2a-9f0e-000000000001", FileName: "a.pdf", UpdatedAt: now},
		{ID: "5b1f7a40-1c8e-4d2a-9f0e-000000000002", FileName: "b.pdf", UpdatedAt: now.Add(-time.Minute)},
		{ID: "5b1f7a40-1c8e-4d2a-9f0e-000000000003", FileName: "c.pdf", UpdatedAt: now.Add(-2 * time.Minute)},
	}

	docs.On("List", mock.Anything, (*pagination.Cursor)(nil), 3).Return(list, nil)

	page, err := svc.Documents(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Equal(t, list[:2], page.Items)
	assert.True(t, page.HasMore)

	cursor, err := pagination.Decode(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "5b1f7a40-1c8e-4d2a-9f0e-000000000002", cursor.ID)
	assert.True(t, cursor.UpdatedAt.Equal(list[1].UpdatedAt))
}

func TestFileService_Documents_FollowsCursor(t *testing.T) {
	docs := new(MockDocumentRepository)
	svc := NewFileService(new(MockBlobStore), docs)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	docs.On("List", mock.Anything, &pagination.Cursor{ID: "5b1f7a40-1c8e-4d2a-9f0e-000000000002", UpdatedAt: ts}, pagination.DefaultLimit+1).
		Return(nil, nil)

	page, err := svc.Documents(context.Background(), pagination.Encode("5b1f7a40-1c8e-4d2a-9f0e-000000000002", ts), 0)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
	docs.AssertExpectations(t)
}

func TestFileService_Documents_InvalidCursor(t *testing.T) {
	docs := new(MockDocumentRepository)
	svc := NewFileService(new(MockBlobStore), docs)

	for _, cursor := range []string{"%%%", pagination.Encode("doc-2", time.Now())} {
		_, err := svc.Documents(context.Background(), cursor, 10)
		assert.ErrorIs(t, err, domain.ErrInvalidCursor, cursor)
	}
	docs.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}
