package blogadmin

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	minContentLength = 10
	maxContentLength = 10000
	minPasswordLen   = 6
)

// reDataURI matches an inline base64 image; these are uploaded and replaced
// by a URL before storage, so they do not count toward content length.
var reDataURI = regexp.MustCompile(`data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=\s]+`)

func contentLength(content string) int {
	return utf8.RuneCountInString(reDataURI.ReplaceAllString(content, ""))
}

func validatePostInput(in PostInput) *ValidationError {
	v := &ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		v.Add("title", "Title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		v.Add("description", "Description is required")
	}
	switch n := contentLength(in.Content); {
	case n < minContentLength:
		v.Add("content", "Post content must be at least 10 characters")
	case n > maxContentLength:
		v.Add("content", "Post content cannot exceed 10000 characters")
	}
	if !in.Status.Valid() {
		v.Add("status", "Status must be one of PUBLISHED, DRAFT, ARCHIVED")
	}
	if in.CategoryID == "" {
		v.Add("category_id", "Category is required")
	} else if _, err := uuid.Parse(in.CategoryID); err != nil {
		v.Add("category_id", "Category ID must be a valid UUID")
	}
	if len(in.TagIDs) == 0 {
		v.Add("tag_ids", "At least one tag is required")
	}
	for _, id := range in.TagIDs {
		if _, err := uuid.Parse(id); err != nil {
			v.Add("tag_ids", "Tag ID must be a valid UUID")
			break
		}
	}
	switch in.Format {
	case "", FormatHTML, FormatMarkdown:
	default:
		v.Add("format", "Format must be html or markdown")
	}
	return v
}

func validateTermInput(in TermInput) *ValidationError {
	v := &ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		v.Add("name", "Name is required")
	}
	return v
}

func validateLogin(email, password string) *ValidationError {
	v := &ValidationError{}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		v.Add("email", "Invalid email format")
	}
	if len(password) < minPasswordLen {
		v.Add("password", "Password must be at least 6 characters")
	}
	return v
}

// dedupe keeps the first occurrence of each value.
func dedupe(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
