package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

const (
	// DefaultMaxFiles is the largest accepted upload batch.
	DefaultMaxFiles = 5
	// DefaultMaxFileSize is the per-file upload limit in bytes.
	DefaultMaxFileSize int64 = 10 << 20
	// DefaultNamespace is used when no index namespace is configured.
	DefaultNamespace = "default"
)

// TextExtractor turns a stored file into raw text.
type TextExtractor interface {
	Extract(ctx context.Context, path string, fileType domain.FileType) (string, error)
}

// IngestJobRepositoryInterface defines the repository interface for ingest job persistence
type IngestJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// FileUpload is one file of an upload batch. Size comes from the transport
// and is checked before Open is called.
type FileUpload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	FilePath string
	Chunks   []string
}

// IngestConfig holds the limits and index placement of ingestion.
type IngestConfig struct {
	Namespace   string
	ChunkSize   int
	MaxFiles    int
	MaxFileSize int64
}

// IngestService runs the extract, chunk, embed and upsert pipeline.
type IngestService struct {
	blobs     BlobStore
	extractor TextExtractor
	embedder  *BatchEmbedder
	index     IndexStore
	documents DocumentRepositoryInterface
	tx        TxRunner
	uuidGen   UUIDGenerator
	cfg       IngestConfig
}

// NewIngestService creates a new IngestService instance
func NewIngestService(
	blobs BlobStore,
	extractor TextExtractor,
	embedder *BatchEmbedder,
	index IndexStore,
	documents DocumentRepositoryInterface,
	tx TxRunner,
	cfg IngestConfig,
) *IngestService {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &IngestService{
		blobs:     blobs,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		documents: documents,
		tx:        tx,
		uuidGen:   &DefaultUUIDGenerator{},
		cfg:       cfg,
	}
}

// UploadLimits reports the batch size and per-file byte limits enforced by
// ValidateBatch.
func (s *IngestService) UploadLimits() (int, int64) {
	return s.cfg.MaxFiles, s.cfg.MaxFileSize
}

// ValidateBatch checks the whole batch before anything is written.
func (s *IngestService) ValidateBatch(files []FileUpload) error {
	if len(files) == 0 {
		return domain.ErrNoFiles
	}
	if len(files) > s.cfg.MaxFiles {
		return domain.NewTooManyFilesError(s.cfg.MaxFiles)
	}

	for _, f := range files {
		if f.Size > s.cfg.MaxFileSize {
			return domain.NewFileTooLargeError(f.Filename, s.cfg.MaxFileSize)
		}
	}

	for _, f := range files {
		name, err := domain.SanitizeFilename(f.Filename)
		if err != nil {
			return err
		}
		if _, ok := domain.FileTypeFromName(name); !ok {
			return domain.ErrInvalidFileType
		}
	}

	return nil
}

// Ingest validates the batch and processes its files in order. On failure
// the files already processed stay indexed.
func (s *IngestService) Ingest(ctx context.Context, files []FileUpload) ([]FileResult, error) {
	if err := s.ValidateBatch(files); err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(files))
	for _, f := range files {
		result, err := s.ingestUpload(ctx, f)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

func (s *IngestService) ingestUpload(ctx context.Context, f FileUpload) (*FileResult, error) {
	name, err := domain.SanitizeFilename(f.Filename)
	if err != nil {
		return nil, err
	}
	fileType, ok := domain.FileTypeFromName(name)
	if !ok {
		return nil, domain.ErrInvalidFileType
	}

	ctx, span := telemetry.StartSpan(ctx, "IngestService.ingestFile", telemetry.SpanAttributes{
		FileName:  name,
		Namespace: s.cfg.Namespace,
		Operation: "ingest",
	})
	defer span.End()

	src, err := f.Open()
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to open upload %s: %w", name, err)
	}
	defer src.Close()

	local, err := spool(src, name)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	defer local.cleanup()

	storagePath, err := s.saveBlob(ctx, name, local.path)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	doc := domain.NewDocument(s.uuidGen.NewString(), name, storagePath, fileType, local.size, local.sha256, time.Now().UTC())
	if err := s.documents.Upsert(ctx, doc); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	chunks, err := s.indexDocument(ctx, doc, local.path, true)
	if err != nil {
		return nil, err
	}

	log.Printf("ingest: indexed %s (%d bytes, %d chunks)", name, local.size, len(chunks))
	return &FileResult{FilePath: storagePath, Chunks: chunks}, nil
}

// IngestStored re-runs the pipeline for a catalogued document from its stored blob.
func (s *IngestService) IngestStored(ctx context.Context, documentID string) error {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestStored", telemetry.SpanAttributes{
		FileName:   doc.FileName,
		Namespace:  s.cfg.Namespace,
		DocumentID: doc.ID,
		Operation:  "reingest",
	})
	defer span.End()

	blob, err := s.blobs.Open(ctx, doc.FileName)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to open stored file %s: %w", doc.FileName, err)
	}
	defer blob.Body.Close()

	local, err := spool(blob.Body, doc.FileName)
	if err != nil {
		span.SetError(err)
		return err
	}
	defer local.cleanup()

	if err := s.documents.SetStatus(ctx, doc.ID, domain.DocumentStatusProcessing, 0, ""); err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	chunks, err := s.indexDocument(ctx, doc, local.path, false)
	if err != nil {
		return err
	}

	log.Printf("ingest: re-indexed %s (%d chunks)", doc.FileName, len(chunks))
	return nil
}

// indexDocument extracts, chunks, embeds and upserts one local file. When
// enqueue is set, external failures schedule a background retry.
func (s *IngestService) indexDocument(ctx context.Context, doc *domain.Document, path string, enqueue bool) ([]string, error) {
	text, err := s.extract(ctx, doc, path)
	if err != nil {
		s.recordFailure(ctx, doc, err, false)
		return nil, err
	}

	chunks := ChunkText(text, s.cfg.ChunkSize)
	if chunks == nil {
		chunks = []string{}
	}

	if err := s.embedAndUpsert(ctx, doc, chunks); err != nil {
		if ctx.Err() != nil {
			s.recordFailure(ctx, doc, ctx.Err(), false)
			return nil, ctx.Err()
		}
		s.recordFailure(ctx, doc, err, enqueue && !errors.Is(err, domain.ErrDimensionMismatch))
		return nil, err
	}

	if err := s.documents.SetStatus(ctx, doc.ID, domain.DocumentStatusIndexed, len(chunks), ""); err != nil {
		return nil, fmt.Errorf("failed to update document status: %w", err)
	}
	return chunks, nil
}

func (s *IngestService) extract(ctx context.Context, doc *domain.Document, path string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.extract", telemetry.SpanAttributes{
		FileName:  doc.FileName,
		Operation: string(doc.FileType),
	})
	defer span.End()

	text, err := s.extractor.Extract(ctx, path, doc.FileType)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	return text, nil
}

func (s *IngestService) embedAndUpsert(ctx context.Context, doc *domain.Document, chunks []string) error {
	embedCtx, span := telemetry.StartSpan(ctx, "IngestService.embed", telemetry.SpanAttributes{
		FileName:  doc.FileName,
		Operation: "embed",
	})
	vectors, err := s.embedder.EmbedAll(embedCtx, chunks)
	span.End()
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return domain.NewExternalServiceError("embedding", err)
	}

	records := make([]domain.IndexRecord, len(chunks))
	for i, text := range chunks {
		records[i] = domain.NewIndexRecord(domain.TextChunk{
			Index:      i,
			Text:       text,
			FileName:   doc.FileName,
			FilePath:   doc.StoragePath,
			UploadTime: doc.UpdatedAt,
		}, vectors[i])
	}

	upsertCtx, span := telemetry.StartSpan(ctx, "IngestService.upsert", telemetry.SpanAttributes{
		FileName:  doc.FileName,
		Namespace: s.cfg.Namespace,
		Operation: "upsert",
	})
	defer span.End()

	if err := s.index.DeleteByFile(upsertCtx, s.cfg.Namespace, doc.FileName); err != nil {
		span.SetError(err)
		return domain.NewExternalServiceError("index delete", err)
	}
	if len(records) == 0 {
		return nil
	}
	if err := s.index.Upsert(upsertCtx, s.cfg.Namespace, records); err != nil {
		span.SetError(err)
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return err
		}
		return domain.NewExternalServiceError("index upsert", err)
	}
	return nil
}

// recordFailure marks the document failed and optionally queues a retry,
// atomically. It runs detached from ctx so a cancelled request still
// leaves the catalog consistent.
func (s *IngestService) recordFailure(ctx context.Context, doc *domain.Document, cause error, enqueue bool) {
	ctx = context.WithoutCancel(ctx)
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().SetStatus(ctx, doc.ID, domain.DocumentStatusFailed, 0, failureMessage(cause)); err != nil {
			return err
		}
		if !enqueue {
			return nil
		}
		job := domain.NewIngestJob(s.uuidGen.NewString(), doc.ID, doc.FileName, time.Now().UTC())
		return repos.IngestJobs().Create(ctx, job)
	})
	if err != nil {
		log.Printf("ingest: failed to record failure for %s: %v", doc.FileName, err)
		return
	}
	log.Printf("ingest: %s failed (retry queued: %t): %v", doc.FileName, enqueue, cause)
}

func failureMessage(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "ingestion cancelled"
	}
	return "ingestion failed"
}

func (s *IngestService) saveBlob(ctx context.Context, name, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to reopen spooled upload: %w", err)
	}
	defer f.Close()

	storagePath, err := s.blobs.Save(ctx, name, f)
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", name, err)
	}
	return storagePath, nil
}

type spooledFile struct {
	dir    string
	path   string
	size   int64
	sha256 string
}

func (f *spooledFile) cleanup() {
	if err := os.RemoveAll(f.dir); err != nil {
		log.Printf("ingest: failed to remove %s: %v", f.dir, err)
	}
}

// spool copies r to a private temp directory under name, hashing as it goes.
// Extractors see the original filename as the base of the path.
func spool(r io.Reader, name string) (*spooledFile, error) {
	dir, err := os.MkdirTemp("", "docqa-ingest-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	path := filepath.Join(dir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}

	h := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(out, h), r)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to spool %s: %w", name, errors.Join(copyErr, closeErr))
	}

	return &spooledFile{
		dir:    dir,
		path:   path,
		size:   size,
		sha256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
