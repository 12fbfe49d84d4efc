package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeExtraction      = "EXTRACTION_ERROR"
	ErrCodeExternalService = "EXTERNAL_SERVICE_ERROR"
)

// Upload validation errors
var (
	ErrNoFiles         = NewDomainError(ErrCodeValidation, "No files provided")
	ErrEmptyFilename   = NewDomainError(ErrCodeValidation, "No selected file")
	ErrInvalidFileType = NewDomainError(ErrCodeValidation, "Invalid file type")
	ErrInvalidFilename = NewDomainError(ErrCodeValidation, "Invalid filename")
)

// Query validation errors
var (
	ErrEmptyQuery         = NewDomainError(ErrCodeValidation, "No query text provided.")
	ErrInvalidRequestBody = NewDomainError(ErrCodeValidation, "invalid request body")
)

// Listing errors
var (
	ErrInvalidCursor = NewDomainError(ErrCodeValidation, "invalid cursor")
	ErrInvalidLimit  = NewDomainError(ErrCodeValidation, "limit must be a positive integer")
)

// Not found errors
var (
	ErrFileNotFound     = NewDomainError(ErrCodeNotFound, "File not found")
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrNoMatches        = NewDomainError(ErrCodeNotFound, "Sorry, I couldn't find an answer.")
)

// Extraction errors
var (
	ErrNoTextInImage = NewDomainError(ErrCodeExtraction, "no text could be extracted from the image")
)

// Index and job errors
var (
	ErrDimensionMismatch     = NewDomainError(ErrCodeInternalError, "embedding dimension does not match index dimension")
	ErrIndexNotReady         = NewDomainError(ErrCodeInternalError, "index has not been ensured")
	ErrInvalidIngestJobState = NewDomainError(ErrCodeValidation, "invalid ingest job status")
)

// NewTooManyFilesError reports a batch larger than the configured limit.
func NewTooManyFilesError(max int) *DomainError {
	return NewDomainError(ErrCodeValidation, fmt.Sprintf("Only up to %d files are allowed.", max))
}

// NewFileTooLargeError reports a single file above the configured byte limit.
func NewFileTooLargeError(filename string, limit int64) *DomainError {
	return NewDomainError(ErrCodeValidation, fmt.Sprintf("%s exceeds the file size limit of %s.", filename, formatMegabytes(limit)))
}

// NewExtractionError wraps a text extraction failure for one file.
func NewExtractionError(filename string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExtraction, fmt.Sprintf("failed to extract text from %s", filename), err)
}

// NewExternalServiceError wraps a failed call to the embedding, index or generation service.
func NewExternalServiceError(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExternalService, operation+" failed", err)
}

func formatMegabytes(limit int64) string {
	const mib = 1 << 20
	if limit%mib == 0 {
		return fmt.Sprintf("%dMB", limit/mib)
	}
	return fmt.Sprintf("%.1fMB", float64(limit)/mib)
}
