package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/josinaldojr/docretrieve/internal/qa"
)

// QueryService is the pipeline behind the run endpoint.
type QueryService interface {
	Run(ctx context.Context, req qa.QueryRequest) qa.QueryResponse
}

type Handler struct {
	service QueryService
}

func NewHandler(service QueryService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "DocRetrieve API is running",
		"version": "1.0.0",
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "DocRetrieve API is running",
	})
}

// Run answers a list of questions about a document URL. Pipeline failures
// never become HTTP errors: the response always carries one answer per
// question, with failures encoded in the answer text.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req qa.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Documents) == "" {
		http.Error(w, "documents url is required", http.StatusBadRequest)
		return
	}
	if len(req.Questions) == 0 {
		http.Error(w, "at least one question is required", http.StatusBadRequest)
		return
	}

	resp := h.service.Run(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
