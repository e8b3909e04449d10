package router

import (
	"net/http"
	"slices"
	"strings"

	"PagedAPI/internal/config"
)

// withCORS answers preflight requests itself; the API is read-only, so only
// GET is advertised.
func withCORS(cors config.CORSConfig, h http.HandlerFunc) http.HandlerFunc {
	origins := splitOrigins(cors.AllowOrigin)
	return func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		origin, vary := allowedOrigin(origins, cors.AllowCredentials, r.Header.Get("Origin"))
		if origin != "" {
			header.Set("Access-Control-Allow-Origin", origin)
		}
		if vary {
			header.Set("Vary", "Origin")
		}
		if cors.AllowCredentials {
			header.Set("Access-Control-Allow-Credentials", "true")
		}
		header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
		header.Set("Access-Control-Expose-Headers", requestIDHeader)
		header.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

// allowedOrigin echoes the request origin when it is listed, or when any origin
// is allowed together with credentials ("*" is not valid there).
func allowedOrigin(origins []string, credentials bool, requestOrigin string) (string, bool) {
	if len(origins) == 0 {
		return "*", false
	}
	if slices.Contains(origins, "*") {
		if credentials && requestOrigin != "" {
			return requestOrigin, true
		}
		return "*", false
	}
	if requestOrigin != "" && slices.Contains(origins, requestOrigin) {
		return requestOrigin, true
	}
	return "", true
}

func splitOrigins(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
