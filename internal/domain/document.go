package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileType is the extraction family of an uploaded file
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeDOCX  FileType = "docx"
	FileTypeImage FileType = "image"
)

var allowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"docx": FileTypeDOCX,
	"jpg":  FileTypeImage,
	"jpeg": FileTypeImage,
	"png":  FileTypeImage,
}

// FileTypeFromName maps a filename to its FileType using the extension after the last dot.
// Names without a dot or with an unsupported extension return false.
func FileTypeFromName(name string) (FileType, bool) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "", false
	}
	ft, ok := allowedExtensions[strings.ToLower(name[idx+1:])]
	return ft, ok
}

// SanitizeFilename reduces a client supplied name to a safe base name.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return "", ErrEmptyFilename
	}
	base := filepath.Base(name)
	if base == "." || base == ".." || base == "/" || strings.HasPrefix(base, ".tmp-") {
		return "", ErrInvalidFilename
	}
	return base, nil
}

// DocumentStatus tracks a document through the ingestion pipeline
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusIndexed    DocumentStatus = "indexed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is the catalog entry for one stored upload, keyed by filename
type Document struct {
	ID          string
	FileName    string
	StoragePath string
	FileType    FileType
	SizeBytes   int64
	SHA256      string
	Status      DocumentStatus
	ChunkCount  int
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDocument creates a Document in the processing state
func NewDocument(id, fileName, storagePath string, fileType FileType, size int64, sha256 string, now time.Time) *Document {
	return &Document{
		ID:          id,
		FileName:    fileName,
		StoragePath: storagePath,
		FileType:    fileType,
		SizeBytes:   size,
		SHA256:      sha256,
		Status:      DocumentStatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.FileName == "" {
		return fmt.Errorf("document FileName is required")
	}

	if d.StoragePath == "" {
		return fmt.Errorf("document StoragePath is required")
	}

	switch d.FileType {
	case FileTypePDF, FileTypeDOCX, FileTypeImage:
	default:
		return fmt.Errorf("document FileType is invalid: %s", d.FileType)
	}

	if d.SizeBytes < 0 {
		return fmt.Errorf("document SizeBytes cannot be negative")
	}

	switch d.Status {
	case DocumentStatusProcessing, DocumentStatusIndexed, DocumentStatusFailed:
	default:
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}
