package options

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var valueCmp = cmp.AllowUnexported(Value{})

type fakeScope struct {
	conds    []Conditions
	sorting  Sorting
	page     int
	pageSize int
	records  []Record
}

func (s *fakeScope) Where(conds Conditions) Scope {
	next := *s
	next.conds = append(append([]Conditions(nil), s.conds...), conds)
	return &next
}

func (s *fakeScope) OrderBy(sorting Sorting) Scope {
	next := *s
	next.sorting = sorting
	return &next
}

func (s *fakeScope) Page(page, pageSize int) Scope {
	next := *s
	next.page, next.pageSize = page, pageSize
	return &next
}

func (s *fakeScope) Count(context.Context) (int, error) { return len(s.records), nil }

func (s *fakeScope) Records(context.Context) ([]Record, error) { return s.records, nil }

type fakeDescriptor struct {
	filterable []string
	sortable   []string
	all        *fakeScope
}

func (d *fakeDescriptor) FilterableAttributes() []string { return d.filterable }
func (d *fakeDescriptor) SortableAttributes() []string   { return d.sortable }
func (d *fakeDescriptor) AllRecords() Scope {
	if d.all == nil {
		d.all = &fakeScope{}
	}
	return d.all
}

func people() *fakeDescriptor {
	return &fakeDescriptor{
		filterable: []string{"status", "role"},
		sortable:   []string{"name", "age"},
		all:        &fakeScope{records: []Record{{"id": 1}, {"id": 2}}},
	}
}

func mustNew(t *testing.T, d Descriptor, params Params, opts ...Option) *RequestOptions {
	t.Helper()
	o, err := New(d, params, Config{DefaultPageSize: 25}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestNew_PaginationDefaults(t *testing.T) {
	o := mustNew(t, people(), nil)
	if o.Page != 1 {
		t.Fatalf("page = %d, want 1", o.Page)
	}
	if o.PageSize != 25 {
		t.Fatalf("page size = %d, want 25", o.PageSize)
	}
	if !o.IsDefaultPageSize() {
		t.Fatalf("expected default page size")
	}
	if !o.IncludeLinks {
		t.Fatalf("include links should be on")
	}
}

func TestNew_PaginationFromParams(t *testing.T) {
	o := mustNew(t, people(), Params{"page": String("3"), "page_size": String("50")})
	if o.Page != 3 || o.PageSize != 50 {
		t.Fatalf("got page=%d size=%d, want 3/50", o.Page, o.PageSize)
	}
	if o.IsDefaultPageSize() {
		t.Fatalf("50 is not the default page size")
	}
}

func TestNew_ZeroConfigUsesFallbackPageSize(t *testing.T) {
	o, err := New(people(), nil, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if o.PageSize != FallbackPageSize || !o.IsDefaultPageSize() {
		t.Fatalf("page size = %d, want %d", o.PageSize, FallbackPageSize)
	}
}

func TestNew_InvalidPagination(t *testing.T) {
	cases := []Params{
		{"page": String("abc")},
		{"page": String("0")},
		{"page_size": String("-5")},
		{"page_size": String("1.5")},
		{"page": List("1", "2")},
	}
	for _, params := range cases {
		o, err := New(people(), params, Config{DefaultPageSize: 10})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("params %v: err = %v, want ErrInvalidArgument", params, err)
		}
		if o != nil {
			t.Fatalf("params %v: expected no options on error", params)
		}
	}
}

func TestNew_Includes(t *testing.T) {
	o := mustNew(t, people(), Params{"include": String("a,b,c")})
	if diff := cmp.Diff([]string{"a", "b", "c"}, o.Includes); diff != "" {
		t.Fatalf("includes mismatch (-want +got):\n%s", diff)
	}

	o = mustNew(t, people(), nil)
	if o.Includes == nil || len(o.Includes) != 0 {
		t.Fatalf("expected empty includes, got %#v", o.Includes)
	}
}

func TestNew_Filters(t *testing.T) {
	cases := []struct {
		name   string
		params Params
		want   Filters
	}{
		{"singular", Params{"status": String("a,b")}, Filters{"status": List("a", "b")}},
		{"plural", Params{"statuss": String("x")}, Filters{"status": List("x")}},
		{"plural wins", Params{"status": String("a"), "statuss": String("b")}, Filters{"status": List("b")}},
		{"unknown dropped", Params{"secret": String("1"), "role": String("admin")}, Filters{"role": List("admin")}},
		{"empty value kept", Params{"status": String("")}, Filters{"status": List()}},
		{"repeated values", Params{"status": List("a,b", "c")}, Filters{"status": List("a", "b", "c")}},
		{"nested map", Params{"role": Map(map[string]Value{"code": String("x,y")})},
			Filters{"role": Map(map[string]Value{"code": String("x,y")})}},
		{"absent", Params{}, Filters{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := mustNew(t, people(), tc.params)
			if diff := cmp.Diff(tc.want, o.Filters, valueCmp); diff != "" {
				t.Fatalf("filters mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNew_Sorting(t *testing.T) {
	cases := []struct {
		name string
		sort string
		want Sorting
	}{
		{"mixed", "-name,age,bogus", Sorting{{"name", Descending}, {"age", Ascending}}},
		{"duplicate keeps first position", "name,age,-name", Sorting{{"name", Descending}, {"age", Ascending}}},
		{"lower-cased", "-NAME", Sorting{{"name", Descending}}},
		{"empty", "", Sorting{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := mustNew(t, people(), Params{"sort": String(tc.sort)})
			if diff := cmp.Diff(tc.want, o.Sorting); diff != "" {
				t.Fatalf("sorting mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNew_SortingWithoutSortableAttributes(t *testing.T) {
	d := people()
	d.sortable = nil
	o := mustNew(t, d, Params{"sort": String("name")})
	if len(o.Sorting) != 0 {
		t.Fatalf("expected no sorting, got %v", o.Sorting)
	}
}

// Tokens are lower-cased before the whitelist check, so a mixed-case sortable
// attribute can never be selected.
func TestNew_SortingMixedCaseWhitelistNeverMatches(t *testing.T) {
	d := people()
	d.sortable = []string{"createdAt"}
	for _, token := range []string{"createdAt", "createdat", "-createdAt"} {
		o := mustNew(t, d, Params{"sort": String(token)})
		if len(o.Sorting) != 0 {
			t.Fatalf("sort=%s: expected no sorting, got %v", token, o.Sorting)
		}
	}
}

func TestNew_CustomOrderTokens(t *testing.T) {
	truthy := []string{"true", "1", "TRUE", "t"}
	falsy := []string{"TRUE1", "false", "True", "T", "yes", "0", ""}

	for _, v := range truthy {
		if o := mustNew(t, people(), Params{"custom_order": String(v)}); !o.CustomOrderRequested {
			t.Fatalf("custom_order=%q should be requested", v)
		}
	}
	for _, v := range falsy {
		if o := mustNew(t, people(), Params{"custom_order": String(v)}); o.CustomOrderRequested {
			t.Fatalf("custom_order=%q should not be requested", v)
		}
	}
	if o := mustNew(t, people(), nil); o.CustomOrderRequested {
		t.Fatalf("absent custom_order should not be requested")
	}
}

func TestNew_ScopeAndContext(t *testing.T) {
	d := people()
	o := mustNew(t, d, nil)
	if o.Scope != Scope(d.all) {
		t.Fatalf("expected descriptor scope by default")
	}

	own := &fakeScope{}
	o = mustNew(t, d, nil, WithScope(own), WithContext("tenant-7"))
	if o.Scope != Scope(own) {
		t.Fatalf("expected caller scope")
	}
	if o.Context != "tenant-7" {
		t.Fatalf("context = %v", o.Context)
	}
}

func TestFiltersAsURLParams(t *testing.T) {
	cases := []struct {
		name    string
		filters Filters
		want    string
	}{
		{"sorted keys", Filters{"b": List("2"), "a": List("1")}, "a=1&b=2"},
		{"joined values", Filters{"status": List("a", "b")}, "status=a,b"},
		{"range skipped", Filters{"age": RangeOf(Range{From: "1", To: "9"}), "a": List("1")}, "a=1"},
		{"nested", Filters{"role": Map(map[string]Value{"code": List("x"), "area": List("y")})}, "role[area]=y&role[code]=x"},
		{"escaped", Filters{"name": List("a&b c")}, "name=a%26b+c"},
		{"empty", Filters{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FiltersAsURLParams(tc.filters); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSortingAsURLParams(t *testing.T) {
	o := mustNew(t, people(), Params{"sort": String("-name,age")})
	if got := o.SortingAsURLParams(); got != "sort=-name,age" {
		t.Fatalf("got %q", got)
	}
}

func TestFiltersRoundTrip(t *testing.T) {
	o := mustNew(t, people(), Params{"status": String("a,b"), "roles": String("admin")})

	values, err := url.ParseQuery(o.FiltersAsURLParams())
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	again := mustNew(t, people(), ParamsFromValues(values))
	if diff := cmp.Diff(o.Filters, again.Filters, valueCmp); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestScopeWithFilters_AppliesConditions(t *testing.T) {
	o := mustNew(t, people(), Params{"status": String("a,b")})

	first, err := o.ScopeWithFilters()
	if err != nil {
		t.Fatalf("ScopeWithFilters: %v", err)
	}
	second, err := o.ScopeWithFilters()
	if err != nil {
		t.Fatalf("ScopeWithFilters: %v", err)
	}

	want := []Conditions{{"status": List("a", "b")}}
	if diff := cmp.Diff(want, first.(*fakeScope).conds, valueCmp); diff != "" {
		t.Fatalf("conditions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first.(*fakeScope).conds, second.(*fakeScope).conds, valueCmp); diff != "" {
		t.Fatalf("second call differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(Filters{"status": List("a", "b")}, o.Filters, valueCmp); diff != "" {
		t.Fatalf("filters mutated (-want +got):\n%s", diff)
	}
}

func TestConditions_NormalizesNestedStrings(t *testing.T) {
	filters := Filters{"role": Map(map[string]Value{"code": String("x,y")})}
	d := &filtersHookDescriptor{fakeDescriptor: people(), filters: filters}
	o := mustNew(t, d, nil)

	want := Conditions{"role": Map(map[string]Value{"code": List("x", "y")})}
	if diff := cmp.Diff(want, o.Conditions(), valueCmp); diff != "" {
		t.Fatalf("conditions mismatch (-want +got):\n%s", diff)
	}
	if o.Filters["role"].Entries()["code"].Kind() != KindString {
		t.Fatalf("normalizing conditions must not rewrite filters")
	}
}

type filtersHookDescriptor struct {
	*fakeDescriptor
	filters Filters
	err     error
}

func (d *filtersHookDescriptor) FiltersFromParams(Params) (Filters, error) {
	return d.filters, d.err
}

func TestFiltersFromParamsHook(t *testing.T) {
	d := &filtersHookDescriptor{
		fakeDescriptor: people(),
		filters:        Filters{"status": RangeOf(Range{From: "a"}), "secret": List("x")},
	}
	o := mustNew(t, d, Params{"status": String("ignored")})
	want := Filters{"status": RangeOf(Range{From: "a"})}
	if diff := cmp.Diff(want, o.Filters, valueCmp); diff != "" {
		t.Fatalf("filters mismatch (-want +got):\n%s", diff)
	}

	d.filters = nil
	o = mustNew(t, d, Params{"status": String("a")})
	if diff := cmp.Diff(Filters{"status": List("a")}, o.Filters, valueCmp); diff != "" {
		t.Fatalf("nil hook result should fall back (-want +got):\n%s", diff)
	}

	d.filters = Filters{}
	o = mustNew(t, d, Params{"status": String("a")})
	if len(o.Filters) != 0 {
		t.Fatalf("empty hook result should be used, got %v", o.Filters)
	}

	boom := errors.New("boom")
	d.err = boom
	if _, err := New(d, nil, Config{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want hook error", err)
	}
}

type scopeHookDescriptor struct {
	*fakeDescriptor
	scope Scope
	err   error
}

func (d *scopeHookDescriptor) ScopeWithFilters(*RequestOptions) (Scope, error) {
	return d.scope, d.err
}

func TestScopeWithFiltersHook(t *testing.T) {
	override := &fakeScope{records: []Record{{"id": 9}}}
	d := &scopeHookDescriptor{fakeDescriptor: people(), scope: override}
	o := mustNew(t, d, Params{"status": String("a")})

	got, err := o.ScopeWithFilters()
	if err != nil {
		t.Fatalf("ScopeWithFilters: %v", err)
	}
	if got != Scope(override) {
		t.Fatalf("expected hook scope verbatim")
	}

	d.scope = nil
	got, err = o.ScopeWithFilters()
	if err != nil {
		t.Fatalf("ScopeWithFilters: %v", err)
	}
	if len(got.(*fakeScope).conds) != 1 {
		t.Fatalf("nil hook result should fall back to default filtering")
	}

	d.err = errors.New("hook failed")
	if _, err := o.ScopeWithFilters(); err == nil || err.Error() != "hook failed" {
		t.Fatalf("err = %v, want hook error", err)
	}
}

type reorderHookDescriptor struct {
	*fakeDescriptor
	records []Record
}

func (d *reorderHookDescriptor) CustomReorder(context.Context, *RequestOptions) ([]Record, error) {
	return d.records, nil
}

func TestCustomReorder(t *testing.T) {
	d := &reorderHookDescriptor{fakeDescriptor: people(), records: []Record{{"id": 2}, {"id": 1}}}
	o := mustNew(t, d, nil)

	got, err := o.CustomReorder(context.Background())
	if err != nil {
		t.Fatalf("CustomReorder: %v", err)
	}
	if diff := cmp.Diff(d.records, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	d.records = nil
	got, err = o.CustomReorder(context.Background())
	if err != nil {
		t.Fatalf("CustomReorder: %v", err)
	}
	if diff := cmp.Diff([]Record{{"id": 1}, {"id": 2}}, got); diff != "" {
		t.Fatalf("fallback records mismatch (-want +got):\n%s", diff)
	}
}

func TestParamsFromValues(t *testing.T) {
	values := url.Values{
		"page":       {"2"},
		"status":     {"a", "b"},
		"role[code]": {"x"},
		"role[area]": {"y"},
		" include ":  {"author"},
		"broken[":    {"z"},
	}
	want := Params{
		"page":    String("2"),
		"status":  List("a", "b"),
		"role":    Map(map[string]Value{"code": String("x"), "area": String("y")}),
		"include": String("author"),
		"broken[": String("z"),
	}
	if diff := cmp.Diff(want, ParamsFromValues(values), valueCmp); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}
