package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/cloo-solutions/docqa/internal/service"
)

type FileService interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (*service.Blob, error)
	Documents(ctx context.Context, cursor string, limit int) (*pagination.Page[*domain.Document], error)
}

type FileHandler struct {
	svc FileService
}

func NewFileHandler(svc FileService) *FileHandler {
	return &FileHandler{svc: svc}
}

type DocumentResponse struct {
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	SizeBytes  int64  `json:"size_bytes"`
	SHA256     string `json:"sha256"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

// DocumentListResponse is one page of the catalog.
type DocumentListResponse struct {
	Data       []DocumentResponse `json:"data"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

func documentToResponse(d *domain.Document) DocumentResponse {
	return DocumentResponse{
		FileName:   d.FileName,
		FileType:   string(d.FileType),
		SizeBytes:  d.SizeBytes,
		SHA256:     d.SHA256,
		Status:     string(d.Status),
		ChunkCount: d.ChunkCount,
		Error:      d.Error,
		UpdatedAt:  d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// List writes the stored filenames as a bare JSON array.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, names)
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	blob, err := h.svc.Open(r.Context(), name)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	defer blob.Body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(blob.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": blob.Name}))
	if blob.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, blob.Body); err != nil {
		log.Printf("download %s: %v", blob.Name, fmt.Errorf("copy interrupted: %w", err))
	}
}

// Documents pages through the catalog with the optional limit and cursor
// query parameters.
func (h *FileHandler) Documents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.HandleError(w, r, domain.ErrInvalidLimit)
			return
		}
		limit = n
	}

	page, err := h.svc.Documents(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	resp := DocumentListResponse{
		Data:       make([]DocumentResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for _, d := range page.Items {
		resp.Data = append(resp.Data, documentToResponse(d))
	}
	api.JSON(w, http.StatusOK, resp)
}
