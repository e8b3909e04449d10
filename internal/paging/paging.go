// Package paging builds page metadata and navigation links for a listed collection.
package paging

import (
	"net/url"
	"strconv"
	"strings"

	"PagedAPI/internal/options"
)

type Meta struct {
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
	Count        int    `json:"count"`
	IncludeLinks bool   `json:"include_links"`
	PageCount    int    `json:"page_count"`
	PreviousPage *int   `json:"previous_page"`
	NextPage     *int   `json:"next_page"`
	FirstHref    string `json:"first_href,omitempty"`
	PreviousHref string `json:"previous_href,omitempty"`
	NextHref     string `json:"next_href,omitempty"`
	LastHref     string `json:"last_href,omitempty"`
}

// Build computes the metadata for page o.Page of a collection of count records.
// base is the collection path links point at, e.g. "/api/people".
func Build(base string, o *options.RequestOptions, count int) Meta {
	m := Meta{
		Page:         o.Page,
		PageSize:     o.PageSize,
		Count:        count,
		IncludeLinks: o.IncludeLinks,
		PageCount:    PageCount(count, o.PageSize),
	}
	if o.Page > 1 {
		prev := o.Page - 1
		m.PreviousPage = &prev
	}
	if o.Page < m.PageCount {
		next := o.Page + 1
		m.NextPage = &next
	}
	if !m.IncludeLinks {
		return m
	}

	m.FirstHref = Href(base, 1, o)
	m.LastHref = Href(base, m.PageCount, o)
	if m.PreviousPage != nil {
		m.PreviousHref = Href(base, *m.PreviousPage, o)
	}
	if m.NextPage != nil {
		m.NextHref = Href(base, *m.NextPage, o)
	}
	return m
}

// PageCount is at least 1, so an empty collection still has a first page.
func PageCount(count, pageSize int) int {
	if pageSize < 1 || count <= 0 {
		return 1
	}
	n := count / pageSize
	if count%pageSize != 0 {
		n++
	}
	return n
}

// Href links to page of the collection, carrying every non-default parameter of o.
func Href(base string, page int, o *options.RequestOptions) string {
	var params []string
	if page != 1 {
		params = append(params, "page="+strconv.Itoa(page))
	}
	if !o.IsDefaultPageSize() {
		params = append(params, "page_size="+strconv.Itoa(o.PageSize))
	}
	if len(o.Includes) > 0 {
		escaped := make([]string, len(o.Includes))
		for i, inc := range o.Includes {
			escaped[i] = url.QueryEscape(inc)
		}
		params = append(params, "include="+strings.Join(escaped, ","))
	}
	if len(o.Sorting) > 0 {
		params = append(params, o.SortingAsURLParams())
	}
	if o.CustomOrderRequested {
		params = append(params, "custom_order=true")
	}
	if filters := o.FiltersAsURLParams(); filters != "" {
		params = append(params, filters)
	}
	if len(params) == 0 {
		return base
	}
	return base + "?" + strings.Join(params, "&")
}
