package options

import "strings"

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

type SortField struct {
	Attribute string
	Direction Direction
}

// Sorting is an ordered set of sort keys. Order is the order keys first appeared.
type Sorting []SortField

// Direction returns the direction recorded for attr.
func (s Sorting) Direction(attr string) (Direction, bool) {
	for _, f := range s {
		if f.Attribute == attr {
			return f.Direction, true
		}
	}
	return "", false
}

// set records dir for attr, keeping attr's original position if it is already present.
func (s Sorting) set(attr string, dir Direction) Sorting {
	for i := range s {
		if s[i].Attribute == attr {
			s[i].Direction = dir
			return s
		}
	}
	return append(s, SortField{Attribute: attr, Direction: dir})
}

// ParseSorting reads "sort=-name,age". A leading "-" means descending. Tokens are
// lower-cased before the sortable check, so only lower-case attribute names can match.
// Unknown attributes are dropped.
func ParseSorting(params Params, sortable []string) Sorting {
	sorting := Sorting{}
	raw, ok := params["sort"]
	if !ok || len(sortable) == 0 {
		return sorting
	}

	allowed := make(map[string]bool, len(sortable))
	for _, attr := range sortable {
		allowed[attr] = true
	}

	for _, token := range raw.Strings() {
		dir := Ascending
		if strings.HasPrefix(token, "-") {
			dir = Descending
			token = token[1:]
		}
		attr := strings.ToLower(token)
		if !allowed[attr] {
			continue
		}
		sorting = sorting.set(attr, dir)
	}
	return sorting
}

// SortingAsURLParams renders "sort=-name,age" in sorting order.
func (o *RequestOptions) SortingAsURLParams() string {
	return SortingAsURLParams(o.Sorting)
}

func SortingAsURLParams(sorting Sorting) string {
	values := make([]string, len(sorting))
	for i, f := range sorting {
		if f.Direction == Descending {
			values[i] = "-" + f.Attribute
		} else {
			values[i] = f.Attribute
		}
	}
	return "sort=" + strings.Join(values, ",")
}
