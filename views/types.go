package views

import (
	"time"

	"github.com/eringen/blogadmin/paging"
)

// Page carries the chrome shared by every dashboard page.
type Page struct {
	SiteName  string
	Title     string
	Section   string // active sidebar item: "home", "post", "category", "tag", "images"
	UserName  string
	UserEmail string
	CSRF      string
	Flash     string
	FlashKind string // "success" or "error"
	Crumbs    []Crumb
}

// Crumb is one breadcrumb link. The last crumb has no Href.
type Crumb struct {
	Label string
	Href  string
}

// LoginData feeds the login page.
type LoginData struct {
	SiteName string
	CSRF     string
	Email    string
	Next     string
	Error    string
	Errors   map[string]string
}

// Stat is one counter on the dashboard home.
type Stat struct {
	Label string
	Value int
	Href  string
}

// ActivityItem is one row of the recent-activity list.
type ActivityItem struct {
	At     time.Time
	Actor  string
	Action string
	Entity string
	Label  string
}

// HomeData feeds the dashboard home.
type HomeData struct {
	Stats    []Stat
	Activity []ActivityItem
}

// Cell is one data table cell; a non-empty Href renders a link.
type Cell struct {
	Text  string
	Href  string
	Badge string // CSS modifier for status pills
}

// Row is one data table row.
type Row struct {
	ID        string
	Cells     []Cell
	EditURL   string
	DeleteURL string
}

// Table describes a data table: its column schema, the paging request
// that produced it, and one page of rows.
type Table struct {
	ID            string // element id, also the key of the filter form
	BasePath      string // list URL the table links and filters against
	BulkDeleteURL string
	Noun          string // plural entity name for messages
	CSRF          string
	Schema        paging.Schema
	Request       paging.Request
	Rows          []Row
	TotalRecords  int
	TotalPages    int
	CurrentPage   int
}

// PostForm feeds the post create and edit pages.
type PostForm struct {
	IsNew       bool
	Action      string
	DeleteURL   string
	PreviewURL  string
	Slug        string
	Title       string
	Description string
	Content     string
	Format      string
	Status      string
	CategoryID  string
	TagIDs      []string
	ReadingTime int
	Statuses    []paging.Option
	Categories  []paging.Option
	Tags        []paging.Option
	Errors      map[string]string
}

// TermForm feeds the category and tag create and edit pages.
type TermForm struct {
	IsNew     bool
	Label     string // "Category" or "Tag"
	Action    string
	DeleteURL string
	Name      string
	Slug      string
	Errors    map[string]string
}

// ImageItem is one uploaded image in the gallery.
type ImageItem struct {
	Filename     string
	OriginalName string
	URL          string
	Width        int
	Height       int
	Size         int
	UploadedAt   time.Time
	DeleteURL    string
}

// ImagesData feeds the image gallery.
type ImagesData struct {
	Images    []ImageItem
	UploadURL string
	MaxSizeMB int64
	Error     string
}
