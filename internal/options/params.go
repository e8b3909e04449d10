package options

import (
	"net/url"
	"sort"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindList
	KindMap
	KindRange
)

// Range is a bounded interval on one attribute. Empty From/To means open on that side.
type Range struct {
	From      string
	To        string
	Exclusive bool // To is excluded
}

// Value is a raw request parameter or a filter value: a string, a list of strings,
// a nested mapping, or a range.
type Value struct {
	kind Kind
	str  string
	list []string
	m    map[string]Value
	rng  Range
}

type Params map[string]Value

func String(s string) Value { return Value{kind: KindString, str: s} }

func List(items ...string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{kind: KindList, list: items}
}

func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

func RangeOf(r Range) Value { return Value{kind: KindRange, rng: r} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Str() string { return v.str }

func (v Value) Items() []string { return v.list }

func (v Value) Entries() map[string]Value { return v.m }

func (v Value) Range() Range { return v.rng }

// Strings flattens a value into the strings it carries: a String is split on ",",
// List items are split and concatenated. Maps and ranges carry no flat list.
func (v Value) Strings() []string {
	switch v.kind {
	case KindString:
		return splitList(v.str)
	case KindList:
		out := make([]string, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, splitList(item)...)
		}
		return out
	}
	return nil
}

// ParamsFromValues turns decoded query parameters into Params. Repeated keys become
// lists and bracketed keys ("status[code]=x") become nested maps.
func ParamsFromValues(values url.Values) Params {
	params := make(Params, len(values))

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		vals := values[rawKey]
		if len(vals) == 0 {
			continue
		}
		v := String(vals[0])
		if len(vals) > 1 {
			v = List(append([]string(nil), vals...)...)
		}

		key, path := splitBracketKey(strings.TrimSpace(rawKey))
		if key == "" {
			continue
		}
		if len(path) == 0 {
			params[key] = v
			continue
		}
		params[key] = nest(params[key], path, v)
	}
	return params
}

// splitBracketKey parses "a[b][c]" into ("a", ["b","c"]).
func splitBracketKey(raw string) (string, []string) {
	open := strings.IndexByte(raw, '[')
	if open <= 0 || !strings.HasSuffix(raw, "]") {
		return raw, nil
	}
	base := raw[:open]
	inner := strings.TrimSuffix(raw[open+1:], "]")
	path := strings.Split(inner, "][")
	for _, p := range path {
		if p == "" {
			return raw, nil
		}
	}
	return base, path
}

func nest(existing Value, path []string, leaf Value) Value {
	entries := map[string]Value{}
	if existing.kind == KindMap {
		entries = existing.m
	}
	if len(path) == 1 {
		entries[path[0]] = leaf
	} else {
		entries[path[0]] = nest(entries[path[0]], path[1:], leaf)
	}
	return Map(entries)
}

// splitList splits on "," and drops trailing empty fields, so "" yields no items
// while inner blanks ("a,,b") are kept.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	end := len(parts)
	for end > 0 && parts[end-1] == "" {
		end--
	}
	return parts[:end]
}
