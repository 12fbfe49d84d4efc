// Package extract turns stored uploads into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Extractor produces raw text for a single file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Config controls the OCR engine used for images.
type Config struct {
	TesseractPath string
	PSM           int
	OEM           int
	Timeout       time.Duration
}

// DefaultConfig mirrors `tesseract --oem 3 --psm 6`.
func DefaultConfig() Config {
	return Config{
		TesseractPath: "tesseract",
		PSM:           6,
		OEM:           3,
		Timeout:       30 * time.Second,
	}
}

// Dispatcher routes a file to the extractor for its declared type.
type Dispatcher struct {
	pdf   Extractor
	docx  Extractor
	image Extractor
}

// NewDispatcher wires the PDF, DOCX and tesseract-backed image extractors.
func NewDispatcher(cfg Config) *Dispatcher {
	return NewDispatcherWithExtractors(
		&PDFExtractor{},
		&DOCXExtractor{},
		NewImageExtractor(NewTesseractEngine(cfg)),
	)
}

func NewDispatcherWithExtractors(pdf, docx, image Extractor) *Dispatcher {
	return &Dispatcher{pdf: pdf, docx: docx, image: image}
}

// Extract returns the text of path as valid UTF-8 with NUL bytes removed.
// Failures other than cancellation are reported as extraction errors naming
// the file.
func (d *Dispatcher) Extract(ctx context.Context, path string, fileType domain.FileType) (string, error) {
	var ex Extractor
	switch fileType {
	case domain.FileTypePDF:
		ex = d.pdf
	case domain.FileTypeDOCX:
		ex = d.docx
	case domain.FileTypeImage:
		ex = d.image
	default:
		return "", domain.ErrInvalidFileType
	}

	text, err := ex.Extract(ctx, path)
	if err == nil {
		return normalize(text), nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == domain.ErrCodeExtraction {
		return "", err
	}
	return "", domain.NewExtractionError(filepath.Base(path), err)
}

// normalize replaces invalid UTF-8 with U+FFFD and drops NUL bytes, which
// Postgres text columns reject.
func normalize(text string) string {
	text = strings.ToValidUTF8(text, "\uFFFD")
	return strings.ReplaceAll(text, "\x00", "")
}

func recoverParse(kind string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed %s: %v", kind, r)
	}
}
