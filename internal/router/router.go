// Package router wires the collection handlers into an http.Handler.
package router

import (
	"net/http"
	"time"

	"PagedAPI/internal/auth"
	"PagedAPI/internal/config"
	"PagedAPI/internal/handler"
	"PagedAPI/internal/logger"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// InitRoutes returns the API mux. Method checks live in the handlers so that
// CORS preflight requests reach withCORS. A nil validator leaves the API open.
func InitRoutes(cfg *config.Config, c *handler.Collection, validator *auth.JWTValidator) *http.ServeMux {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		if validator != nil {
			h = withAuth(validator, h)
		}
		return withCORS(cfg.CORS, withLogging(h))
	}
	mux.HandleFunc("/api/{resource}", wrap(c.Index))
	mux.HandleFunc("/api/{resource}/count", wrap(c.Count))
	return mux
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)

		fields := map[string]any{
			"request_id":  id,
			"method":      r.Method,
			"path":        r.URL.Path,
			"query":       r.URL.RawQuery,
			"status":      sw.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		switch {
		case sw.status >= 500:
			logger.Error("response", fields)
		case sw.status >= 400:
			logger.Warn("response", fields)
		default:
			logger.Info("response", fields)
		}
	}
}

func withAuth(v *auth.JWTValidator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			logger.Warn("auth_missing_token", map[string]any{"path": r.URL.Path})
			http.Error(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := v.ValidateToken(token)
		if err != nil {
			logger.Warn("auth_invalid_token", map[string]any{"path": r.URL.Path, "error": err.Error()})
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	}
}
