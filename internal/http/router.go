package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(h *Handler, apiKey string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/health", h.Health).Methods(http.MethodGet)

	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(AuthMiddleware(apiKey))
	protected.HandleFunc("/hackrx/run", h.Run).Methods(http.MethodPost)

	return r
}
