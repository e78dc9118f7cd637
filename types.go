package blogadmin

import "time"

// PostStatus is the publication state of a post.
type PostStatus string

const (
	StatusPublished PostStatus = "PUBLISHED"
	StatusDraft     PostStatus = "DRAFT"
	StatusArchived  PostStatus = "ARCHIVED"
)

// PostStatuses lists every status in display order.
var PostStatuses = []PostStatus{StatusPublished, StatusDraft, StatusArchived}

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	for _, v := range PostStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Label is the human form of s ("Published").
func (s PostStatus) Label() string {
	switch s {
	case StatusPublished:
		return "Published"
	case StatusDraft:
		return "Draft"
	case StatusArchived:
		return "Archived"
	}
	return string(s)
}

// User is a dashboard account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserInfo is the public part of a User.
type UserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Info strips the credentials from u.
func (u User) Info() UserInfo {
	return UserInfo{Email: u.Email, Name: u.Name}
}

// Term is a category or a tag; both carry a name and a unique slug.
type Term struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// TermInput is the create/update payload of a category or tag.
type TermInput struct {
	Name string `json:"name"`
}

// Post is a blog post with its category and tags resolved.
type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Status      PostStatus `json:"status"`
	ReadingTime int        `json:"readingTime"`
	Slug        string     `json:"slug"`
	Category    Term       `json:"category"`
	Tags        []Term     `json:"tags"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TagIDs returns the ids of p's tags.
func (p Post) TagIDs() []string {
	ids := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		ids[i] = t.ID
	}
	return ids
}

// PostListItem is one row of the post table.
type PostListItem struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Status       PostStatus `json:"status"`
	Slug         string     `json:"slug"`
	CategoryName string     `json:"category_name"`
	TagsName     string     `json:"tags_name"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// PostInput is the create/update payload of a post. Format is "html"
// (default) or "markdown".
type PostInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Status      PostStatus `json:"status"`
	CategoryID  string     `json:"category_id"`
	TagIDs      []string   `json:"tag_ids"`
	Format      string     `json:"format,omitempty"`
}

// Image is an uploaded, re-encoded image.
type Image struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Size         int       `json:"size"`
	URL          string    `json:"url"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
