// Package handler exposes resource collections over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"PagedAPI/internal/auth"
	"PagedAPI/internal/listing"
	"PagedAPI/internal/logger"
	"PagedAPI/internal/options"
	"PagedAPI/internal/resource"
)

type Collection struct {
	Registry resource.Registry
	Paging   options.Config
	Lister   *listing.Lister
}

// Index serves GET /api/{resource}.
func (c *Collection) Index(w http.ResponseWriter, r *http.Request) {
	name, o, ok := c.prepare(w, r, "/api/{resource}")
	if !ok {
		return
	}

	page, err := c.Lister.List(r.Context(), name, o)
	if err != nil {
		c.fail(w, "/api/{resource}", name, err)
		return
	}

	writeJSON(w, "/api/{resource}", map[string]any{
		name:       page.Records,
		"meta":     map[string]any{name: page.Meta},
		"includes": page.Includes,
	})
}

// Count serves GET /api/{resource}/count.
func (c *Collection) Count(w http.ResponseWriter, r *http.Request) {
	name, o, ok := c.prepare(w, r, "/api/{resource}/count")
	if !ok {
		return
	}

	n, err := listing.Count(r.Context(), o)
	if err != nil {
		c.fail(w, "/api/{resource}/count", name, err)
		return
	}
	writeJSON(w, "/api/{resource}/count", map[string]int{"count": n})
}

func (c *Collection) prepare(w http.ResponseWriter, r *http.Request, endpoint string) (string, *options.RequestOptions, bool) {
	if r.Method != http.MethodGet {
		logger.Warn("method_not_allowed", map[string]any{
			"endpoint": endpoint,
			"method":   r.Method,
		})
		http.Error(w, "Only GET allowed", http.StatusMethodNotAllowed)
		return "", nil, false
	}

	name := r.PathValue("resource")
	res, ok := c.Registry.Get(name)
	if !ok {
		logger.Warn("resource_not_found", map[string]any{
			"endpoint": endpoint,
			"resource": name,
		})
		http.Error(w, "Resource "+name+" not found", http.StatusNotFound)
		return "", nil, false
	}

	claims, _ := auth.ClaimsFromContext(r.Context())
	base, err := res.ScopeFor(claims)
	if err != nil {
		c.fail(w, endpoint, name, err)
		return "", nil, false
	}
	opts := []options.Option{options.WithScope(base)}
	if claims != nil {
		opts = append(opts, options.WithContext(claims))
	}
	params := options.ParamsFromValues(r.URL.Query())
	o, err := options.New(res, params, c.Paging, opts...)
	if err != nil {
		c.fail(w, endpoint, name, err)
		return "", nil, false
	}
	logger.Debug("request", map[string]any{
		"endpoint":  endpoint,
		"resource":  name,
		"page":      o.Page,
		"page_size": o.PageSize,
		"filters":   o.FiltersAsURLParams(),
		"sorting":   o.SortingAsURLParams(),
	})
	return name, o, true
}

func (c *Collection) fail(w http.ResponseWriter, endpoint, name string, err error) {
	if errors.Is(err, resource.ErrClaimMissing) {
		logger.Warn("claim_missing", map[string]any{
			"endpoint": endpoint,
			"resource": name,
			"error":    err.Error(),
		})
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, options.ErrInvalidArgument) {
		logger.Warn("invalid_argument", map[string]any{
			"endpoint": endpoint,
			"resource": name,
			"error":    err.Error(),
		})
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.Error("listing_failed", map[string]any{
		"endpoint": endpoint,
		"resource": name,
		"error":    err.Error(),
	})
	http.Error(w, "Failed to load "+name, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, endpoint string, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("write_response_failed", map[string]any{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
	}
}
