package blogadmin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello World":          "hello-world",
		"  Go 1.24: What's New": "go-1-24-what-s-new",
		"---":                  "",
		"Çafé":                 "caf",
		"multiple   spaces!!":  "multiple-spaces",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestUniqueSlug(t *testing.T) {
	taken := map[string]bool{"go": true, "go-2": true}
	check := func(_ context.Context, slug string) (bool, error) { return taken[slug], nil }

	got, err := uniqueSlug(context.Background(), "Go", check)
	require.NoError(t, err)
	assert.Equal(t, "go-3", got)

	got, err = uniqueSlug(context.Background(), "!!!", check)
	require.NoError(t, err)
	assert.Equal(t, "untitled", got)

	got, err = uniqueSlug(context.Background(), "Create", check)
	require.NoError(t, err)
	assert.Equal(t, "create-2", got)

	boom := errors.New("db down")
	_, err = uniqueSlug(context.Background(), "x", func(context.Context, string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://example.com/blog/post/", BuildURL("https://example.com", "blog", "post"))
	assert.Equal(t, "https://example.com/sub/blog/", BuildURL("https://example.com/sub/", "blog"))
	assert.Equal(t, "https://example.com", BuildURL("https://example.com"))
}

func TestFilterEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, FilterEmpty([]string{"", " a ", "  ", "b"}))
	assert.Nil(t, FilterEmpty(nil))
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 1, ReadingTime(""))
	assert.Equal(t, 1, ReadingTime("<p>short</p>"))
	long := "<p>" + strings.Repeat("word ", 401) + "</p>"
	assert.Equal(t, 3, ReadingTime(long))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Tom &amp; Jerry", strings.TrimSpace(PlainText("<b>Tom &amp;amp; Jerry</b>")))
	assert.Equal(t, "a   b", strings.TrimSpace(PlainText("<p>a</p> <p>b</p>")))
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a"}))
	assert.Empty(t, dedupe(nil))
}
