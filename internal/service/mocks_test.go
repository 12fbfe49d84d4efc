package service

import (
	"bytes"
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
)

// MockBlobStore is a mock implementation of BlobStore
type MockBlobStore struct {
	mock.Mock
	saved map[string][]byte
}

func (m *MockBlobStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[name] = data
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Open(ctx context.Context, name string) (*Blob, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Blob), args.Error(1)
}

func (m *MockBlobStore) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockTextExtractor is a mock implementation of TextExtractor
type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) Extract(ctx context.Context, path string, fileType domain.FileType) (string, error) {
	args := m.Called(ctx, path, fileType)
	return args.String(0), args.Error(1)
}

// MockIndexStore is a mock implementation of IndexStore
type MockIndexStore struct {
	mock.Mock
}

func (m *MockIndexStore) EnsureIndex(ctx context.Context, spec domain.IndexSpec) error {
	args := m.Called(ctx, spec)
	return args.Error(0)
}

func (m *MockIndexStore) Upsert(ctx context.Context, namespace string, records []domain.IndexRecord) error {
	args := m.Called(ctx, namespace, records)
	return args.Error(0)
}

func (m *MockIndexStore) DeleteByFile(ctx context.Context, namespace, fileName string) error {
	args := m.Called(ctx, namespace, fileName)
	return args.Error(0)
}

func (m *MockIndexStore) Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]domain.QueryMatch, error) {
	args := m.Called(ctx, namespace, vector, topK, includeMetadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueryMatch), args.Error(1)
}

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Upsert(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) GetByFileName(ctx context.Context, fileName string) (*domain.Document, error) {
	args := m.Called(ctx, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) SetStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string) error {
	args := m.Called(ctx, id, status, chunkCount, errMsg)
	return args.Error(0)
}

func (m *MockDocumentRepository) List(ctx context.Context, after *pagination.Cursor, limit int) ([]*domain.Document, error) {
	args := m.Called(ctx, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

// MockIngestJobRepository is a mock implementation of IngestJobRepositoryInterface
type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	mock.Mock
}

func (m *MockUUIDGenerator) NewString() string {
	args := m.Called()
	return args.String(0)
}

func upload(name string, content string) FileUpload {
	return FileUpload{
		Filename: name,
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(content))), nil
		},
	}
}
