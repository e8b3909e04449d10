package options

import "context"

// Record is one materialized row keyed by column name.
type Record map[string]any

// Conditions maps an attribute to its acceptable values: a List, a Range, or a Map
// of nested attributes.
type Conditions map[string]Value

// Scope is a composable query bound to one record type. Narrowing returns a new scope;
// only Count and Records touch the store.
type Scope interface {
	Where(conds Conditions) Scope
	OrderBy(sorting Sorting) Scope
	Page(page, pageSize int) Scope
	Count(ctx context.Context) (int, error)
	Records(ctx context.Context) ([]Record, error)
}

// Descriptor declares what a resource may be filtered and sorted by, and where its
// records come from.
type Descriptor interface {
	FilterableAttributes() []string
	SortableAttributes() []string
	AllRecords() Scope
}

// FiltersFromParamsHook replaces default filter parsing. A nil result falls back to it.
type FiltersFromParamsHook interface {
	FiltersFromParams(params Params) (Filters, error)
}

// ScopeWithFiltersHook replaces default filtering entirely when it returns a non-nil scope.
type ScopeWithFiltersHook interface {
	ScopeWithFilters(o *RequestOptions) (Scope, error)
}

// CustomReorderHook supplies records in an order the scope cannot express.
// A nil result falls back to the scope's own order.
type CustomReorderHook interface {
	CustomReorder(ctx context.Context, o *RequestOptions) ([]Record, error)
}
