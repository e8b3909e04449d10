package resource

import (
	"context"
	"strings"

	"PagedAPI/internal/options"
	"PagedAPI/internal/scope"
)

// FiltersFromParams turns single-valued "a..b" (inclusive) and "a...b" (exclusive)
// filters on range attributes into ranges. Resources without range attributes use
// the default parsing.
func (r *Resource) FiltersFromParams(params options.Params) (options.Filters, error) {
	if len(r.RangeFilters) == 0 {
		return nil, nil
	}
	filters := options.DefaultFilters(params, r.Filterable)
	for _, attr := range r.RangeFilters {
		v, ok := filters[attr]
		if !ok || v.Kind() != options.KindList || len(v.Items()) != 1 {
			continue
		}
		if rng, ok := parseRange(v.Items()[0]); ok {
			filters[attr] = options.RangeOf(rng)
		}
	}
	return filters, nil
}

func parseRange(s string) (options.Range, bool) {
	sep, exclusive := "..", false
	if strings.Contains(s, "...") {
		sep, exclusive = "...", true
	}
	i := strings.Index(s, sep)
	if i < 0 {
		return options.Range{}, false
	}
	rng := options.Range{From: s[:i], To: s[i+len(sep):], Exclusive: exclusive}
	if rng.From == "" && rng.To == "" {
		return options.Range{}, false
	}
	return rng, true
}

// CustomReorder orders the filtered records by the resource's custom_order column.
// It defers to the default when no column is configured or the scope is not SQL.
func (r *Resource) CustomReorder(ctx context.Context, o *options.RequestOptions) ([]options.Record, error) {
	if r.CustomOrder == "" {
		return nil, nil
	}
	s, err := o.ScopeWithFilters()
	if err != nil {
		return nil, err
	}
	sqlScope, ok := s.(*scope.SQL)
	if !ok {
		return nil, nil
	}
	return sqlScope.OrderByColumn(r.CustomOrder).Records(ctx)
}
