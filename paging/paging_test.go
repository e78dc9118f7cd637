package paging

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	Columns: []Column{
		{Key: "title", Label: "Title", Sortable: true, Filter: FilterText},
		{Key: "status", Label: "Status", Sortable: true, Filter: FilterSelect},
		{Key: "tags", Label: "Tags", Filter: FilterMultiSelect},
		{Key: "actions"},
	},
	DefaultSort:      "createdAt",
	DefaultDirection: Desc,
}

func TestParseRequestDefaults(t *testing.T) {
	r := ParseRequest(url.Values{}, testSchema)

	assert.Equal(t, 1, r.Page)
	assert.Equal(t, DefaultSize, r.Size)
	assert.Equal(t, "createdAt", r.SortBy)
	assert.Equal(t, Desc, r.SortDirection)
	assert.Empty(t, r.Filters)
}

func TestParseRequestRejectsBadPageAndSize(t *testing.T) {
	r := ParseRequest(url.Values{"page": {"-3"}, "size": {"15"}}, testSchema)
	assert.Equal(t, 1, r.Page)
	assert.Equal(t, DefaultSize, r.Size)

	r = ParseRequest(url.Values{"page": {"abc"}, "size": {"50"}}, testSchema)
	assert.Equal(t, 1, r.Page)
	assert.Equal(t, 50, r.Size)

	r = ParseRequest(url.Values{"page": {"9223372036854775807"}, "size": {"50"}}, testSchema)
	assert.Equal(t, MaxPage, r.Page)
	assert.Equal(t, (MaxPage-1)*50, r.Offset())
	assert.Equal(t, MaxPage, r.WithPage(math.MaxInt).Page)
	assert.Zero(t, Request{Page: -5, Size: 10}.Offset())
}

func TestParseRequestSort(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		key    string
		dir    Direction
	}{
		{"explicit", url.Values{"sortBy": {"title"}, "sortDirection": {"DESC"}}, "title", Desc},
		{"explicit default direction", url.Values{"sortBy": {"status"}}, "status", Asc},
		{"toggle token", url.Values{"sort": {"-title"}}, "title", Desc},
		{"token wins", url.Values{"sort": {"status"}, "sortBy": {"title"}}, "status", Asc},
		{"unsortable column", url.Values{"sortBy": {"tags"}}, "createdAt", Desc},
		{"unknown column", url.Values{"sortBy": {"password"}}, "createdAt", Desc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseRequest(tt.values, testSchema)
			assert.Equal(t, tt.key, r.SortBy)
			assert.Equal(t, tt.dir, r.SortDirection)
		})
	}
}

func TestParseRequestFilters(t *testing.T) {
	values := url.Values{
		"title":   {"  hello "},
		"status":  {"DRAFT"},
		"tags":    {"a,b", "c", "a"},
		"actions": {"ignored"},
		"other":   {"ignored"},
	}
	r := ParseRequest(values, testSchema)

	assert.Equal(t, map[string]string{
		"title":  "hello",
		"status": "DRAFT",
		"tags":   "a,b,c",
	}, r.Filters)
	assert.Equal(t, []string{"a", "b", "c"}, r.FilterList("tags"))
	assert.Nil(t, r.FilterList("status2"))
}

func TestToggleSort(t *testing.T) {
	r := ParseRequest(url.Values{"page": {"3"}}, testSchema)

	r = r.ToggleSort("title")
	assert.Equal(t, "title", r.SortToken())
	assert.Equal(t, 1, r.Page)

	r = r.ToggleSort("title")
	assert.Equal(t, "-title", r.SortToken())

	r = r.ToggleSort("title")
	assert.Equal(t, "title", r.SortToken())

	r = r.ToggleSort("status")
	assert.Equal(t, "status", r.SortToken())
}

func TestToggleSortDoesNotShareFilters(t *testing.T) {
	r := ParseRequest(url.Values{"title": {"x"}}, testSchema)
	toggled := r.ToggleSort("title")
	toggled.Filters["title"] = "y"

	assert.Equal(t, "x", r.Filter("title"))
}

func TestValuesRoundTrip(t *testing.T) {
	in := url.Values{
		"page":          {"2"},
		"size":          {"20"},
		"sortBy":        {"title"},
		"sortDirection": {"desc"},
		"title":         {"go"},
		"tags":          {"x", "y"},
	}
	r := ParseRequest(in, testSchema)
	again := ParseRequest(r.Values(), testSchema)

	assert.Equal(t, r, again)
	assert.Equal(t, r.Encode(), again.Encode())
}

func TestWithSizeResetsPage(t *testing.T) {
	r := ParseRequest(url.Values{"page": {"4"}}, testSchema)

	resized := r.WithSize(30)
	assert.Equal(t, 30, resized.Size)
	assert.Equal(t, 1, resized.Page)

	assert.Equal(t, DefaultSize, r.WithSize(7).Size)
	assert.Equal(t, 1, r.WithPage(0).Page)
}

func TestNewResponse(t *testing.T) {
	r := Request{Page: 2, Size: 10}

	p := NewResponse([]int{11, 12}, 12, r)
	require.Len(t, p.Items, 2)
	assert.Equal(t, 12, p.TotalRecords)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 2, p.CurrentPage)
	assert.True(t, p.HasPrev())
	assert.False(t, p.HasNext())

	empty := NewResponse[int](nil, 0, Request{Page: 1, Size: 10})
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext())
}

func TestColumnPlaceholder(t *testing.T) {
	assert.Equal(t, "Search title", Column{Key: "title", Label: "Title"}.FilterPlaceholder())
	assert.Equal(t, "Search slug", Column{Key: "slug"}.FilterPlaceholder())
	assert.Equal(t, "Pick one", Column{Key: "x", Placeholder: "Pick one"}.FilterPlaceholder())
}

func TestWithOptionsCopiesColumns(t *testing.T) {
	opts := []Option{{Label: "Go", Value: "1"}}
	s := testSchema.WithOptions("tags", opts)

	col, ok := s.Column("tags")
	require.True(t, ok)
	assert.Equal(t, opts, col.Options)

	orig, _ := testSchema.Column("tags")
	assert.Nil(t, orig.Options)
}
