package blogadmin

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
)

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// reservedSlugs collide with fixed dashboard routes.
var reservedSlugs = map[string]bool{
	"create":  true,
	"delete":  true,
	"preview": true,
	"list":    true,
}

// uniqueSlug derives a slug from name and appends -2, -3, ... until taken
// reports false.
func uniqueSlug(ctx context.Context, name string, taken func(ctx context.Context, slug string) (bool, error)) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "untitled"
	}
	candidate := base
	for i := 2; ; i++ {
		if !reservedSlugs[candidate] {
			exists, err := taken(ctx, candidate)
			if err != nil {
				return "", err
			}
			if !exists {
				return candidate, nil
			}
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var reTag = regexp.MustCompile(`<[^>]*>`)

// PlainText strips markup from HTML content.
func PlainText(content string) string {
	return html.UnescapeString(reTag.ReplaceAllString(content, " "))
}

// wordsPerMinute is the reading speed behind ReadingTime.
const wordsPerMinute = 200

// ReadingTime estimates minutes to read HTML content, at least 1.
func ReadingTime(content string) int {
	words := len(strings.FieldsFunc(PlainText(content), unicode.IsSpace))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
