// Package paging models the list state behind every dashboard data table:
// the page, page size, sort column and per-column filters a client sends
// as query parameters, and the paged result a list endpoint returns.
package paging

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// DefaultSize is the page size used when a request omits or garbles it.
const DefaultSize = 10

// PageSizes lists the page sizes a client may choose from.
var PageSizes = []int{10, 20, 30, 40, 50}

// MaxPage caps the requested page so Offset stays in range.
const MaxPage = 1 << 20

// Request is a parsed paging request. Page is 1-based.
type Request struct {
	Page          int
	Size          int
	SortBy        string
	SortDirection Direction
	Filters       map[string]string
}

// ParseRequest reads a Request from query values, validated against schema.
//
// Recognised keys are page, size, sortBy, sortDirection, sort (the "-key"
// toggle form used by table headers) and one key per filterable column.
// Repeated values of a multi-select filter are joined with commas.
func ParseRequest(values url.Values, schema Schema) Request {
	r := Request{
		Page:    1,
		Size:    DefaultSize,
		Filters: make(map[string]string),
	}

	if p, err := strconv.Atoi(values.Get("page")); err == nil && p > 0 {
		r.Page = min(p, MaxPage)
	}
	if n, err := strconv.Atoi(values.Get("size")); err == nil && validSize(n) {
		r.Size = n
	}

	key, dir := values.Get("sortBy"), parseDirection(values.Get("sortDirection"))
	if token := strings.TrimSpace(values.Get("sort")); token != "" {
		key, dir = parseSortToken(token)
	}
	if col, ok := schema.Column(key); ok && col.Sortable {
		r.SortBy, r.SortDirection = col.Key, dir
	} else {
		r.SortBy, r.SortDirection = schema.DefaultSort, schema.defaultDirection()
	}

	for _, col := range schema.Columns {
		if col.Filter == FilterNone {
			continue
		}
		var v string
		if col.Filter == FilterMultiSelect {
			v = strings.Join(splitList(values[col.Key]), ",")
		} else {
			v = strings.TrimSpace(values.Get(col.Key))
		}
		if v != "" {
			r.Filters[col.Key] = v
		}
	}
	return r
}

func validSize(n int) bool {
	for _, s := range PageSizes {
		if s == n {
			return true
		}
	}
	return false
}

func parseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

func parseSortToken(token string) (string, Direction) {
	if strings.HasPrefix(token, "-") {
		return token[1:], Desc
	}
	return token, Asc
}

func splitList(vals []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// Offset is the number of rows skipped before the current page.
func (r Request) Offset() int {
	return (min(max(r.Page, 1), MaxPage) - 1) * r.Size
}

// Limit is the number of rows on one page.
func (r Request) Limit() int {
	return r.Size
}

// Filter returns the raw value of a filter, or "".
func (r Request) Filter(key string) string {
	return r.Filters[key]
}

// FilterList splits a multi-select filter into its values.
func (r Request) FilterList(key string) []string {
	v := r.Filters[key]
	if v == "" {
		return nil
	}
	return splitList([]string{v})
}

// SortToken encodes the sort as "key" or "-key".
func (r Request) SortToken() string {
	if r.SortBy == "" {
		return ""
	}
	if r.SortDirection == Desc {
		return "-" + r.SortBy
	}
	return r.SortBy
}

// ToggleSort returns the request a click on a sortable column header
// produces: the same column flips direction, a new column sorts ascending.
// The page resets to 1.
func (r Request) ToggleSort(key string) Request {
	out := r.clone()
	out.Page = 1
	if r.SortBy == key {
		if r.SortDirection == Desc {
			out.SortDirection = Asc
		} else {
			out.SortDirection = Desc
		}
		return out
	}
	out.SortBy, out.SortDirection = key, Asc
	return out
}

// WithPage returns a copy of r on page p.
func (r Request) WithPage(p int) Request {
	out := r.clone()
	out.Page = min(max(p, 1), MaxPage)
	return out
}

// WithSize returns a copy of r with page size n, back on page 1.
func (r Request) WithSize(n int) Request {
	out := r.clone()
	if validSize(n) {
		out.Size = n
	}
	out.Page = 1
	return out
}

// Values encodes r as query parameters; ParseRequest(r.Values(), s)
// reproduces r for the schema it was parsed with.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(r.Page))
	v.Set("size", strconv.Itoa(r.Size))
	if r.SortBy != "" {
		v.Set("sortBy", r.SortBy)
		v.Set("sortDirection", string(r.SortDirection))
	}
	keys := make([]string, 0, len(r.Filters))
	for k := range r.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, r.Filters[k])
	}
	return v
}

// Encode is the canonical query string for r, usable as a cache key.
func (r Request) Encode() string {
	return r.Values().Encode()
}

func (r Request) clone() Request {
	out := r
	out.Filters = make(map[string]string, len(r.Filters))
	for k, v := range r.Filters {
		out.Filters[k] = v
	}
	return out
}

// Response is one page of results.
type Response[T any] struct {
	Items        []T
	TotalRecords int
	TotalPages   int
	CurrentPage  int
}

// NewResponse builds the page for items out of total matching records.
func NewResponse[T any](items []T, total int, r Request) Response[T] {
	size := r.Size
	if size <= 0 {
		size = DefaultSize
	}
	if items == nil {
		items = []T{}
	}
	return Response[T]{
		Items:        items,
		TotalRecords: total,
		TotalPages:   (total + size - 1) / size,
		CurrentPage:  r.Page,
	}
}

// HasPrev reports whether a previous page exists.
func (p Response[T]) HasPrev() bool { return p.CurrentPage > 1 }

// HasNext reports whether a following page exists.
func (p Response[T]) HasNext() bool { return p.CurrentPage < p.TotalPages }
