package views

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/eringen/blogadmin/paging"
)

type navGroup struct {
	Title   string
	Section string
	Items   []Crumb
}

var sidebar = []navGroup{
	{Title: "Post", Section: "post", Items: []Crumb{
		{Label: "Post List", Href: "/dashboard/post/"},
		{Label: "Create Post", Href: "/dashboard/post/create/"},
	}},
	{Title: "Category", Section: "category", Items: []Crumb{
		{Label: "Category List", Href: "/dashboard/category/"},
		{Label: "Create Category", Href: "/dashboard/category/create/"},
	}},
	{Title: "Tag", Section: "tag", Items: []Crumb{
		{Label: "Tag List", Href: "/dashboard/tag/"},
		{Label: "Create Tag", Href: "/dashboard/tag/create/"},
	}},
	{Title: "Media", Section: "images", Items: []Crumb{
		{Label: "Images", Href: "/dashboard/images/"},
	}},
}

func documentTitle(title, siteName string) string {
	if title == "" {
		return siteName
	}
	return title + " · " + siteName
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

func toastKind(kind string) string {
	if kind == "" {
		return "success"
	}
	return kind
}

func statusTitle(status int) string {
	if t := http.StatusText(status); t != "" {
		return t
	}
	return "Error"
}

func (t Table) link(r paging.Request) string {
	return t.BasePath + "?" + r.Values().Encode()
}

func (t Table) filterForm() string { return t.ID + "-filters" }
func (t Table) bulkForm() string   { return t.ID + "-bulk" }

// currentPage and lastPage clamp to 1 so an empty table still reads
// "Page 1 of 1".
func (t Table) currentPage() int { return max(t.CurrentPage, 1) }
func (t Table) lastPage() int    { return max(t.TotalPages, 1) }

func sortIndicator(r paging.Request, key string) string {
	if r.SortBy != key {
		return "↕"
	}
	if r.SortDirection == paging.Desc {
		return "▼"
	}
	return "▲"
}

func filterInputType(f paging.FilterType) string {
	switch f {
	case paging.FilterNumber:
		return "number"
	case paging.FilterDate:
		return "date"
	}
	return "search"
}

func multiSelectSize(col paging.Column) int {
	return min(4, max(2, len(col.Options)))
}

func optionOf(label, value string) paging.Option {
	return paging.Option{Label: label, Value: value}
}

func formHeading(isNew bool, noun string) string {
	if isNew {
		return "Create " + noun
	}
	return "Edit " + noun
}

func submitLabel(isNew bool) string {
	if isNew {
		return "Create"
	}
	return "Save"
}

func termBase(label string) string {
	return "/dashboard/" + strings.ToLower(label) + "/"
}

func slugLine(slug string, readingTime int) string {
	if readingTime > 0 {
		return fmt.Sprintf("/%s · %d min read", slug, readingTime)
	}
	return "/" + slug
}

func imageMeta(img ImageItem) string {
	return fmt.Sprintf("%d×%d · %s · %s", img.Width, img.Height, HumanSize(img.Size), img.UploadedAt.Format("Jan 2, 2006"))
}

// HumanSize formats a byte count ("1.2 MB").
func HumanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
