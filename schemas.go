package blogadmin

import "github.com/eringen/blogadmin/paging"

// PostSchema is the column configuration of the post table. The category
// and tags options are filled in per request from the stored terms.
var PostSchema = paging.Schema{
	Columns: []paging.Column{
		{Key: "title", Label: "Title", Sortable: true, Filter: paging.FilterText},
		{Key: "status", Label: "Status", Sortable: true, Filter: paging.FilterMultiSelect, Options: statusOptions()},
		{Key: "category", Label: "Category", Sortable: true, Filter: paging.FilterMultiSelect},
		{Key: "tags", Label: "Tags", Filter: paging.FilterMultiSelect},
		{Key: "createdAt", Label: "Created", Sortable: true},
		{Key: "updatedAt", Label: "Updated", Sortable: true},
	},
	DefaultSort:      "updatedAt",
	DefaultDirection: paging.Desc,
}

// TermSchema is the column configuration of the category and tag tables.
var TermSchema = paging.Schema{
	Columns: []paging.Column{
		{Key: "name", Label: "Name", Sortable: true, Filter: paging.FilterText},
		{Key: "slug", Label: "Slug", Sortable: true, Filter: paging.FilterText},
		{Key: "createdAt", Label: "Created", Sortable: true},
	},
	DefaultSort:      "createdAt",
	DefaultDirection: paging.Desc,
}

func statusOptions() []paging.Option {
	opts := make([]paging.Option, len(PostStatuses))
	for i, s := range PostStatuses {
		opts[i] = paging.Option{Label: s.Label(), Value: string(s)}
	}
	return opts
}

// TermOptions turns terms into filter options keyed by id.
func TermOptions(terms []Term) []paging.Option {
	opts := make([]paging.Option, len(terms))
	for i, t := range terms {
		opts[i] = paging.Option{Label: t.Name, Value: t.ID}
	}
	return opts
}
