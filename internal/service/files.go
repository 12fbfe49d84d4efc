package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
)

// Blob is an open stored file.
type Blob struct {
	Name string
	Size int64
	Body io.ReadCloser
}

// BlobStore persists raw uploads by filename.
type BlobStore interface {
	// Save replaces the content stored under name and returns its storage path.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Open returns domain.ErrFileNotFound when name was never stored.
	Open(ctx context.Context, name string) (*Blob, error)
	// List returns stored filenames in lexical order.
	List(ctx context.Context) ([]string, error)
}

// DocumentRepositoryInterface defines the repository interface for the document catalog
type DocumentRepositoryInterface interface {
	Upsert(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByFileName(ctx context.Context, fileName string) (*domain.Document, error)
	SetStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string) error
	List(ctx context.Context, after *pagination.Cursor, limit int) ([]*domain.Document, error)
}

// FileService serves stored uploads and the document catalog.
type FileService struct {
	blobs     BlobStore
	documents DocumentRepositoryInterface
}

func NewFileService(blobs BlobStore, documents DocumentRepositoryInterface) *FileService {
	return &FileService{blobs: blobs, documents: documents}
}

// List returns the names of all stored files.
func (s *FileService) List(ctx context.Context) ([]string, error) {
	names, err := s.blobs.List(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Open returns the stored file called name. Names that could not have been
// stored are reported as not found.
func (s *FileService) Open(ctx context.Context, name string) (*Blob, error) {
	clean, err := domain.SanitizeFilename(name)
	if err != nil || clean != name {
		return nil, domain.ErrFileNotFound
	}
	blob, err := s.blobs.Open(ctx, clean)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return nil, domain.ErrFileNotFound
		}
		return nil, err
	}
	return blob, nil
}

// Documents returns one page of the catalog, most recently updated first.
// cursor is the NextCursor of the previous page, or "" for the first.
func (s *FileService) Documents(ctx context.Context, cursor string, limit int) (*pagination.Page[*domain.Document], error) {
	after, err := pagination.Decode(cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}
	limit = pagination.ClampLimit(limit)

	docs, err := s.documents.List(ctx, after, limit+1)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*domain.Document{}
	}

	page := pagination.NewPage(docs, limit, func(d *domain.Document) (string, time.Time) {
		return d.ID, d.UpdatedAt
	})
	return &page, nil
}
