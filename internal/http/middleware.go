package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// AuthMiddleware checks the Authorization header against the configured
// secret: a malformed scheme is 401, a wrong token is 403.
func AuthMiddleware(apiKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid authentication scheme"})
				return
			}
			if strings.TrimPrefix(auth, "Bearer ") != apiKey {
				writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Invalid API key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware is deliberately permissive; the service sits behind its own
// bearer auth.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
