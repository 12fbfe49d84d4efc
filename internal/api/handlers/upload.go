package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

const uploadField = "files"

var errPartTooLarge = errors.New("part exceeds file size limit")

type IngestService interface {
	Ingest(ctx context.Context, files []service.FileUpload) ([]service.FileResult, error)
	UploadLimits() (maxFiles int, maxFileSize int64)
}

type UploadHandler struct {
	svc IngestService
}

func NewUploadHandler(svc IngestService) *UploadHandler {
	return &UploadHandler{svc: svc}
}

type UploadedFile struct {
	FilePath string   `json:"file_path"`
	Chunks   []string `json:"chunks"`
}

type UploadResponse struct {
	Message       string         `json:"message"`
	UploadedFiles []UploadedFile `json:"uploaded_files"`
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		api.HandleError(w, r, domain.ErrNoFiles)
		return
	}

	dir, err := os.MkdirTemp("", "docqa-upload-*")
	if err != nil {
		api.HandleError(w, r, fmt.Errorf("failed to create upload directory: %w", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("upload: failed to remove %s: %v", dir, err)
		}
	}()

	uploads, err := h.readBatch(mr, dir)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	results, err := h.svc.Ingest(r.Context(), uploads)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	resp := UploadResponse{
		Message:       "Files uploaded successfully",
		UploadedFiles: make([]UploadedFile, 0, len(results)),
	}
	for _, res := range results {
		chunks := res.Chunks
		if chunks == nil {
			chunks = []string{}
		}
		resp.UploadedFiles = append(resp.UploadedFiles, UploadedFile{FilePath: res.FilePath, Chunks: chunks})
	}
	api.JSON(w, http.StatusOK, resp)
}

// readBatch spools the file parts of mr into dir. A part past the batch limit
// fails immediately; an empty filename or an oversized part is reported once
// the body ends, so the batch count is always checked first.
func (h *UploadHandler) readBatch(mr *multipart.Reader, dir string) ([]service.FileUpload, error) {
	maxFiles, maxFileSize := h.svc.UploadLimits()

	var (
		uploads []service.FileUpload
		pending error
		count   int
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if pending != nil {
				return nil, pending
			}
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, domain.ErrNoFiles
		}
		if part.FormName() != uploadField {
			continue
		}

		count++
		if count > maxFiles {
			return nil, domain.NewTooManyFilesError(maxFiles)
		}
		if pending != nil {
			continue
		}
		if part.FileName() == "" {
			pending = domain.ErrEmptyFilename
			continue
		}

		upload, err := spoolPart(part, filepath.Join(dir, strconv.Itoa(count)), maxFileSize)
		switch {
		case errors.Is(err, errPartTooLarge):
			pending = domain.NewFileTooLargeError(part.FileName(), maxFileSize)
		case err != nil:
			return nil, err
		default:
			uploads = append(uploads, upload)
		}
	}

	if pending != nil {
		return nil, pending
	}
	if count == 0 {
		return nil, domain.ErrNoFiles
	}
	return uploads, nil
}

// spoolPart copies at most limit bytes of part to path.
func spoolPart(part *multipart.Part, path string, limit int64) (service.FileUpload, error) {
	f, err := os.Create(path)
	if err != nil {
		return service.FileUpload{}, fmt.Errorf("failed to spool upload: %w", err)
	}
	n, copyErr := io.Copy(f, io.LimitReader(part, limit+1))
	if err := errors.Join(copyErr, f.Close()); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return service.FileUpload{}, maxErr
		}
		return service.FileUpload{}, fmt.Errorf("failed to spool upload: %w", err)
	}
	if n > limit {
		return service.FileUpload{}, errPartTooLarge
	}

	return service.FileUpload{
		Filename: part.FileName(),
		Size:     n,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
