package options

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArgument is returned by New when page or page_size is not a positive integer.
var ErrInvalidArgument = errors.New("invalid argument")

// FallbackPageSize applies when Config carries no usable default.
const FallbackPageSize = 10

// Config is the process-wide paging configuration, fixed at startup.
type Config struct {
	DefaultPageSize int
}

func (c Config) withDefaults() Config {
	if c.DefaultPageSize < 1 {
		c.DefaultPageSize = FallbackPageSize
	}
	return c
}

var customOrderTokens = map[string]bool{"true": true, "1": true, "TRUE": true, "t": true}

// RequestOptions is the parsed form of a collection request: which page, which
// filters and sort keys, and the scope they apply to. It is built once per request
// and read-only afterwards.
type RequestOptions struct {
	Page                 int
	PageSize             int
	Includes             []string
	Filters              Filters
	Sorting              Sorting
	CustomOrderRequested bool
	Scope                Scope
	// Context is handed untouched to descriptor hooks.
	Context      any
	IncludeLinks bool

	descriptor Descriptor
	config     Config
}

type Option func(*RequestOptions)

// WithScope narrows from s instead of the descriptor's AllRecords.
func WithScope(s Scope) Option {
	return func(o *RequestOptions) { o.Scope = s }
}

func WithContext(v any) Option {
	return func(o *RequestOptions) { o.Context = v }
}

// New parses params against the descriptor's whitelists. It either returns a fully
// built value or an error; hook errors are returned as is.
func New(d Descriptor, params Params, cfg Config, opts ...Option) (*RequestOptions, error) {
	if params == nil {
		params = Params{}
	}
	cfg = cfg.withDefaults()

	page, err := intParam(params, "page", 1)
	if err != nil {
		return nil, err
	}
	pageSize, err := intParam(params, "page_size", cfg.DefaultPageSize)
	if err != nil {
		return nil, err
	}

	filters, err := parseFilters(d, params)
	if err != nil {
		return nil, err
	}

	o := &RequestOptions{
		Page:                 page,
		PageSize:             pageSize,
		Includes:             params["include"].Strings(),
		Filters:              filters,
		Sorting:              ParseSorting(params, d.SortableAttributes()),
		CustomOrderRequested: customOrderRequested(params),
		Context:              map[string]any{},
		IncludeLinks:         true,
		descriptor:           d,
		config:               cfg,
	}
	if o.Includes == nil {
		o.Includes = []string{}
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Scope == nil {
		o.Scope = d.AllRecords()
	}
	return o, nil
}

func (o *RequestOptions) Descriptor() Descriptor { return o.descriptor }

func (o *RequestOptions) DefaultPageSize() int { return o.config.DefaultPageSize }

// IsDefaultPageSize reports whether page_size can be left out of generated links.
func (o *RequestOptions) IsDefaultPageSize() bool {
	return o.PageSize == o.config.DefaultPageSize
}

// Conditions is the predicate map ScopeWithFilters applies: every filter value
// normalized to a list of strings, recursively through nested maps.
func (o *RequestOptions) Conditions() Conditions {
	conds := make(Conditions, len(o.Filters))
	for attr, v := range o.Filters {
		conds[attr] = queryToArray(v)
	}
	return conds
}

// ScopeWithFilters returns the base scope narrowed by the filters, unless the
// descriptor supplies its own filtered scope.
func (o *RequestOptions) ScopeWithFilters() (Scope, error) {
	if hook, ok := o.descriptor.(ScopeWithFiltersHook); ok {
		s, err := hook.ScopeWithFilters(o)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
	}
	return o.Scope.Where(o.Conditions()), nil
}

// CustomReorder returns the descriptor's custom ordering of the records, or the base
// scope materialized in its natural order.
func (o *RequestOptions) CustomReorder(ctx context.Context) ([]Record, error) {
	if hook, ok := o.descriptor.(CustomReorderHook); ok {
		records, err := hook.CustomReorder(ctx, o)
		if err != nil {
			return nil, err
		}
		if records != nil {
			return records, nil
		}
	}
	return o.Scope.Records(ctx)
}

func intParam(params Params, key string, fallback int) (int, error) {
	v, ok := params[key]
	if !ok {
		return fallback, nil
	}
	if v.Kind() != KindString {
		return 0, fmt.Errorf("%w: %s must be a single value", ErrInvalidArgument, key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.Str()))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidArgument, key, v.Str())
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %s=%d must be at least 1", ErrInvalidArgument, key, n)
	}
	return n, nil
}

// customOrderRequested matches the exact tokens only; "True" or "yes" do not count.
func customOrderRequested(params Params) bool {
	v, ok := params["custom_order"]
	if !ok || v.Kind() != KindString {
		return false
	}
	return customOrderTokens[v.Str()]
}
