// Package listing runs a collection request: filter, count, sort, page, materialize.
package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"PagedAPI/internal/cache"
	"PagedAPI/internal/logger"
	"PagedAPI/internal/options"
	"PagedAPI/internal/paging"
)

type Page struct {
	Resource string           `json:"resource"`
	Records  []options.Record `json:"records"`
	Meta     paging.Meta      `json:"meta"`
	Includes []string         `json:"includes"`
}

type Lister struct {
	// HrefPrefix is prepended to "/<resource>" in paging links.
	HrefPrefix string
	// Cache is optional. Cache errors are logged, never returned.
	Cache cache.PageCache
}

func (l *Lister) Base(resource string) string {
	return strings.TrimRight(l.HrefPrefix, "/") + "/" + resource
}

func (l *Lister) List(ctx context.Context, resource string, o *options.RequestOptions) (*Page, error) {
	var key string
	if l.Cache != nil {
		key = l.cacheKey(resource, o)
		if page, ok := l.cached(ctx, key); ok {
			return page, nil
		}
	}

	records, count, err := fetch(ctx, o)
	if err != nil {
		return nil, err
	}
	page := &Page{
		Resource: resource,
		Records:  records,
		Meta:     paging.Build(l.Base(resource), o, count),
		Includes: o.Includes,
	}

	if l.Cache != nil {
		l.store(ctx, key, page)
	}
	return page, nil
}

// Count returns the number of records matching the filters.
func Count(ctx context.Context, o *options.RequestOptions) (int, error) {
	s, err := o.ScopeWithFilters()
	if err != nil {
		return 0, err
	}
	return s.Count(ctx)
}

func fetch(ctx context.Context, o *options.RequestOptions) ([]options.Record, int, error) {
	if o.CustomOrderRequested {
		all, err := o.CustomReorder(ctx)
		if err != nil {
			return nil, 0, err
		}
		return pageOf(all, o.Page, o.PageSize), len(all), nil
	}

	s, err := o.ScopeWithFilters()
	if err != nil {
		return nil, 0, err
	}
	count, err := s.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}
	if len(o.Sorting) > 0 {
		s = s.OrderBy(o.Sorting)
	}
	records, err := s.Page(o.Page, o.PageSize).Records(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("records: %w", err)
	}
	if records == nil {
		records = []options.Record{}
	}
	return records, count, nil
}

// pageOf slices page out of all without forming (page-1)*pageSize unless it
// is known to be inside all, so huge page numbers cannot overflow.
func pageOf(all []options.Record, page, pageSize int) []options.Record {
	if len(all) == 0 || page < 1 || pageSize < 1 || page-1 > (len(all)-1)/pageSize {
		return []options.Record{}
	}
	start := (page - 1) * pageSize
	end := len(all)
	if pageSize < end-start {
		end = start + pageSize
	}
	return all[start:end]
}

func (l *Lister) cacheKey(resource string, o *options.RequestOptions) string {
	fragments := []string{
		fmt.Sprintf("page=%d", o.Page),
		fmt.Sprintf("page_size=%d", o.PageSize),
		"include=" + strings.Join(o.Includes, ","),
		o.SortingAsURLParams(),
		fmt.Sprintf("custom_order=%t", o.CustomOrderRequested),
		o.FiltersAsURLParams(),
	}
	// ranges are not part of the URL form
	for _, attr := range o.Filters.Keys() {
		if v := o.Filters[attr]; v.Kind() == options.KindRange {
			r := v.Range()
			fragments = append(fragments, fmt.Sprintf("%s=%s|%s|%t", attr, r.From, r.To, r.Exclusive))
		}
	}
	fragments = append(fragments, fmt.Sprintf("context=%v", o.Context))
	return cache.Key(resource, fragments...)
}

func (l *Lister) cached(ctx context.Context, key string) (*Page, bool) {
	raw, ok, err := l.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("page_cache_get_failed", map[string]any{"key": key, "error": err.Error()})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var page Page
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&page); err != nil {
		logger.Warn("page_cache_decode_failed", map[string]any{"key": key, "error": err.Error()})
		return nil, false
	}
	logger.Debug("page_cache_hit", map[string]any{"key": key})
	return &page, true
}

func (l *Lister) store(ctx context.Context, key string, page *Page) {
	raw, err := json.Marshal(page)
	if err != nil {
		logger.Warn("page_cache_encode_failed", map[string]any{"key": key, "error": err.Error()})
		return
	}
	if err := l.Cache.Set(ctx, key, raw); err != nil {
		logger.Warn("page_cache_set_failed", map[string]any{"key": key, "error": err.Error()})
	}
}
