package options

import (
	"net/url"
	"sort"
	"strings"

	"PagedAPI/internal/logger"
)

// Filters maps a filterable attribute to its requested values.
type Filters map[string]Value

// Keys returns the attribute names in sorted order.
func (f Filters) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultFilters looks up every filterable attribute under its own name and under
// its plural ("status" and "statuss"). The plural key is read last, so it wins when
// both are given. Attributes absent from params get no entry.
func DefaultFilters(params Params, filterable []string) Filters {
	filters := Filters{}
	for _, attr := range filterable {
		for _, key := range []string{attr, attr + "s"} {
			if v, ok := params[key]; ok {
				filters[attr] = filterValue(v)
			}
		}
	}
	return filters
}

func filterValue(v Value) Value {
	switch v.Kind() {
	case KindString, KindList:
		return List(v.Strings()...)
	}
	return v
}

func parseFilters(d Descriptor, params Params) (Filters, error) {
	filterable := d.FilterableAttributes()
	if hook, ok := d.(FiltersFromParamsHook); ok {
		filters, err := hook.FiltersFromParams(params)
		if err != nil {
			return nil, err
		}
		if filters != nil {
			return onlyFilterable(filters, filterable), nil
		}
	}
	return DefaultFilters(params, filterable), nil
}

func onlyFilterable(filters Filters, filterable []string) Filters {
	allowed := make(map[string]bool, len(filterable))
	for _, attr := range filterable {
		allowed[attr] = true
	}
	out := make(Filters, len(filters))
	for attr, v := range filters {
		if !allowed[attr] {
			logger.Debug("filter_not_filterable", map[string]any{"attribute": attr})
			continue
		}
		out[attr] = v
	}
	return out
}

// queryToArray splits strings on "," and descends into nested maps. Lists and ranges
// pass through. It builds new values and never touches its input.
func queryToArray(v Value) Value {
	switch v.Kind() {
	case KindString:
		return List(splitList(v.Str())...)
	case KindMap:
		entries := make(map[string]Value, len(v.Entries()))
		for k, e := range v.Entries() {
			entries[k] = queryToArray(e)
		}
		return Map(entries)
	}
	return v
}

// FiltersAsURLParams renders the filters as "a=1,2&b=3", keys sorted. Range filters
// are left out; nested maps render as "a[b]=1".
func (o *RequestOptions) FiltersAsURLParams() string {
	return FiltersAsURLParams(o.Filters)
}

func FiltersAsURLParams(filters Filters) string {
	var fragments []string
	for _, key := range filters.Keys() {
		fragments = append(fragments, filterFragments(url.QueryEscape(key), filters[key])...)
	}
	return strings.Join(fragments, "&")
}

func filterFragments(key string, v Value) []string {
	switch v.Kind() {
	case KindRange:
		return nil
	case KindMap:
		nested := Filters(v.Entries())
		var out []string
		for _, k := range nested.Keys() {
			out = append(out, filterFragments(key+"["+url.QueryEscape(k)+"]", nested[k])...)
		}
		return out
	}
	items := v.Strings()
	escaped := make([]string, len(items))
	for i, item := range items {
		escaped[i] = url.QueryEscape(item)
	}
	return []string{key + "=" + strings.Join(escaped, ",")}
}
