package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
)

type QueryService interface {
	Answer(ctx context.Context, query string) (string, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query string `json:"query"`
}

type QueryResponse struct {
	Answer string `json:"answer"`
}

// NoAnswerResponse is returned with 404 when nothing relevant was indexed.
type NoAnswerResponse struct {
	Answers []string `json:"answers"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.HandleError(w, r, err)
			return
		}
		api.HandleError(w, r, domain.ErrInvalidRequestBody)
		return
	}

	answer, err := h.svc.Answer(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, domain.ErrNoMatches) {
			api.JSON(w, http.StatusNotFound, NoAnswerResponse{Answers: []string{domain.ErrNoMatches.Message}})
			return
		}
		api.HandleError(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, QueryResponse{Answer: answer})
}
