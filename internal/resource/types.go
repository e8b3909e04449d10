package resource

import (
	"errors"
	"fmt"
	"sort"

	"PagedAPI/internal/options"
	"PagedAPI/internal/scope"
)

// ErrClaimMissing is returned when a claim-scoped resource is listed without
// the claims it is scoped by.
var ErrClaimMissing = errors.New("required claim missing")

// Resource describes one listable table, as declared in <name>.yml.
type Resource struct {
	Name         string   `yaml:"-"`
	Table        string   `yaml:"table"`
	Columns      []string `yaml:"columns"`       // selected columns, all when empty
	Filterable   []string `yaml:"filterable"`    // attributes accepted as filters
	Sortable     []string `yaml:"sortable"`      // attributes accepted in sort=
	RangeFilters []string `yaml:"range_filters"` // filterable attributes that accept "a..b" / "a...b"
	CustomOrder  string   `yaml:"custom_order"`  // column used when custom_order=true

	// ClaimScope maps a column to the token claim its value must equal.
	ClaimScope map[string]string `yaml:"claim_scope"`

	db scope.DB
}

var (
	_ options.Descriptor            = (*Resource)(nil)
	_ options.FiltersFromParamsHook = (*Resource)(nil)
	_ options.CustomReorderHook     = (*Resource)(nil)
)

func (r *Resource) FilterableAttributes() []string { return r.Filterable }

func (r *Resource) SortableAttributes() []string { return r.Sortable }

func (r *Resource) AllRecords() options.Scope {
	return scope.New(r.db, r.Table, r.Columns...)
}

// ScopeFor narrows AllRecords to the rows the claims may see. Without a
// claim_scope it is AllRecords.
func (r *Resource) ScopeFor(claims map[string]any) (options.Scope, error) {
	base := r.AllRecords()
	if len(r.ClaimScope) == 0 {
		return base, nil
	}
	columns := make([]string, 0, len(r.ClaimScope))
	for col := range r.ClaimScope {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	conds := make(options.Conditions, len(columns))
	for _, col := range columns {
		claim := r.ClaimScope[col]
		v, ok := claims[claim]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s", ErrClaimMissing, claim)
		}
		conds[col] = options.List(fmt.Sprint(v))
	}
	return base.Where(conds), nil
}

// Bind attaches the database the resource's scopes run against.
func (r *Resource) Bind(db scope.DB) { r.db = db }

// Registry holds resources by name.
type Registry map[string]*Resource

func (reg Registry) Get(name string) (*Resource, bool) {
	r, ok := reg[name]
	return r, ok
}

func (reg Registry) Bind(db scope.DB) {
	for _, r := range reg {
		r.Bind(db)
	}
}
