package blogadmin

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/blogadmin/activity"
)

type serviceFixture struct {
	store *Store
	posts *PostService
	cats  *TermService
	tags  *TermService
	rec   *activity.Store
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	store := newTestStore(t)
	rec, err := activity.NewStore(t.TempDir()+"/activity.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	audit := NewAuditor(rec, nil)
	posts := NewPostService(store, NewContentPipeline(nil), audit, time.Minute)
	return serviceFixture{
		store: store,
		posts: posts,
		cats:  NewTermService(CategoryKind, store, audit, time.Minute, posts.Invalidate),
		tags:  NewTermService(TagKind, store, audit, time.Minute, posts.Invalidate),
		rec:   rec,
	}
}

func (f serviceFixture) input(t *testing.T, title string) PostInput {
	t.Helper()
	ctx := context.Background()
	cat, err := f.cats.Create(ctx, TermInput{Name: "Go " + title})
	require.NoError(t, err)
	tag, err := f.tags.Create(ctx, TermInput{Name: "tag " + title})
	require.NoError(t, err)
	return PostInput{
		Title:       title,
		Description: "Notes on " + title,
		Content:     "<p>Some content about " + title + "</p>",
		Status:      StatusPublished,
		CategoryID:  cat.ID,
		TagIDs:      []string{tag.ID},
	}
}

func TestPostServiceCreate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	in := f.input(t, "Hello World")
	in.Title = "  Hello World  "
	in.Status = "published"
	in.TagIDs = append(in.TagIDs, in.TagIDs[0], " ")
	in.Content += `<script>alert(1)</script>`

	p, err := f.posts.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", p.Title)
	assert.Equal(t, "hello-world", p.Slug)
	assert.Equal(t, StatusPublished, p.Status)
	assert.Equal(t, in.CategoryID, p.Category.ID)
	assert.Equal(t, in.TagIDs[:1], p.TagIDs())
	assert.NotContains(t, p.Content, "script")
	assert.Equal(t, 1, p.ReadingTime)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	entries, err := f.rec.Recent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, activity.ActionCreate, entries[0].Action)
	assert.Equal(t, "post", entries[0].Entity)
	assert.Equal(t, "Hello World", entries[0].Label)
}

func TestPostServiceCreateDefaultsToDraft(t *testing.T) {
	f := newServiceFixture(t)
	in := f.input(t, "Untouched")
	in.Status = ""
	p, err := f.posts.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, p.Status)
}

func TestPostServiceCreateMarkdown(t *testing.T) {
	f := newServiceFixture(t)
	in := f.input(t, "Markdown")
	in.Format = FormatMarkdown
	in.Content = "# Heading\n\nSome **bold** text here."
	p, err := f.posts.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, p.Content, "<h1>Heading</h1>")
	assert.Contains(t, p.Content, "<strong>bold</strong>")
}

func TestPostServiceValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	existing, err := f.posts.Create(ctx, f.input(t, "Taken"))
	require.NoError(t, err)

	valid := f.input(t, "Fresh")
	tests := []struct {
		name  string
		edit  func(*PostInput)
		field string
		msg   string
	}{
		{"missing title", func(in *PostInput) { in.Title = " " }, "title", "Title is required"},
		{"duplicate title", func(in *PostInput) { in.Title = "taken" }, "title", "Already exists with this title"},
		{"missing description", func(in *PostInput) { in.Description = "" }, "description", "Description is required"},
		{"short content", func(in *PostInput) { in.Content = "<p>hi</p>" }, "content", "Post content must be at least 10 characters"},
		{"bad status", func(in *PostInput) { in.Status = "LIVE" }, "status", "Status must be one of PUBLISHED, DRAFT, ARCHIVED"},
		{"missing category", func(in *PostInput) { in.CategoryID = "" }, "category_id", "Category is required"},
		{"malformed category", func(in *PostInput) { in.CategoryID = "nope" }, "category_id", "Category ID must be a valid UUID"},
		{"unknown category", func(in *PostInput) { in.CategoryID = existing.ID }, "category_id", "Category does not exist"},
		{"no tags", func(in *PostInput) { in.TagIDs = nil }, "tag_ids", "At least one tag is required"},
		{"unknown tag", func(in *PostInput) { in.TagIDs = append(in.TagIDs, existing.ID) }, "tag_ids", "Tag does not exist"},
		{"bad format", func(in *PostInput) { in.Format = "rtf" }, "format", "Format must be html or markdown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			in.TagIDs = append([]string(nil), valid.TagIDs...)
			tt.edit(&in)
			_, err := f.posts.Create(ctx, in)
			require.ErrorIs(t, err, ErrInvalid)
			assert.Equal(t, tt.msg, FieldErrors(err)[tt.field])
		})
	}
}

func TestPostServiceUpdate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.posts.now = func() time.Time { return base }

	in := f.input(t, "First Title")
	p, err := f.posts.Create(ctx, in)
	require.NoError(t, err)

	f.posts.now = func() time.Time { return base.Add(time.Hour) }
	in.Description = "Changed description"
	same, err := f.posts.Update(ctx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "first-title", same.Slug)
	assert.Equal(t, "Changed description", same.Description)
	assert.True(t, same.CreatedAt.Equal(base))
	assert.True(t, same.UpdatedAt.Equal(base.Add(time.Hour)))

	// Keeping its own title is not a conflict.
	in.Title = "First Title"
	_, err = f.posts.Update(ctx, p.ID, in)
	require.NoError(t, err)

	in.Title = "Second Title"
	renamed, err := f.posts.Update(ctx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "second-title", renamed.Slug)

	_, err = f.posts.Update(ctx, "8c3f2a1e-0000-4000-8000-000000000000", in)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostServiceSlugCollision(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	a, err := f.posts.Create(ctx, f.input(t, "Go!"))
	require.NoError(t, err)
	b, err := f.posts.Create(ctx, f.input(t, "Go?"))
	require.NoError(t, err)
	assert.Equal(t, "go", a.Slug)
	assert.Equal(t, "go-2", b.Slug)

	c, err := f.posts.Create(ctx, f.input(t, "List"))
	require.NoError(t, err)
	assert.Equal(t, "list-2", c.Slug)
}

func TestPostServiceListCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	req := request(t, PostSchema, "")

	res, err := f.posts.List(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, res.TotalRecords)
	assert.Equal(t, 1, f.posts.cache.Len())

	// A write behind the service's back is hidden by the cache.
	cat := seedTerm(t, f.store, categoriesTable, "Hidden", testEpoch)
	seedPost(t, f.store, "Sneaky", StatusDraft, cat, nil, testEpoch)
	res, err = f.posts.List(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, res.TotalRecords)

	_, err = f.posts.Create(ctx, f.input(t, "Visible"))
	require.NoError(t, err)
	res, err = f.posts.List(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalRecords)
}

func TestTermWriteInvalidatesPostCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	in := f.input(t, "Cached")
	_, err := f.posts.Create(ctx, in)
	require.NoError(t, err)

	req := request(t, PostSchema, "")
	res, err := f.posts.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	before := res.Items[0].CategoryName

	_, err = f.cats.Update(ctx, in.CategoryID, TermInput{Name: "Renamed"})
	require.NoError(t, err)
	res, err = f.posts.List(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, before, res.Items[0].CategoryName)
	assert.Equal(t, "Renamed", res.Items[0].CategoryName)
}

func TestPostServiceDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	a, err := f.posts.Create(ctx, f.input(t, "Alpha"))
	require.NoError(t, err)
	b, err := f.posts.Create(ctx, f.input(t, "Beta"))
	require.NoError(t, err)
	c, err := f.posts.Create(ctx, f.input(t, "Gamma"))
	require.NoError(t, err)

	require.NoError(t, f.posts.Delete(ctx, a.ID))
	_, err = f.posts.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.posts.Delete(ctx, a.ID), ErrNotFound)

	assert.ErrorIs(t, f.posts.DeleteMany(ctx, []string{"", " "}), ErrInvalid)
	require.NoError(t, f.posts.DeleteMany(ctx, []string{b.ID, c.ID, b.ID}))

	stats, err := f.posts.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats[StatusPublished])
}

func TestPostServiceCheckUnique(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	p, err := f.posts.Create(ctx, f.input(t, "Unique Title"))
	require.NoError(t, err)

	ok, err := f.posts.CheckUnique(ctx, "title", " unique title ", "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.posts.CheckUnique(ctx, "title", "Unique Title", p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.posts.CheckUnique(ctx, "slug", "unique-title", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostServicePreviewKeepsEmbeddedImages(t *testing.T) {
	f := newServiceFixture(t)
	html, err := f.posts.Preview(context.Background(), "*hi* <img src=\"data:image/png;base64,AAAA\">", FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, html, "<em>hi</em>")
	assert.Contains(t, html, "data:image/png;base64,AAAA")
}

func TestTermService(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	golang, err := f.cats.Create(ctx, TermInput{Name: " Go Lang "})
	require.NoError(t, err)
	assert.Equal(t, "Go Lang", golang.Name)
	assert.Equal(t, "go-lang", golang.Slug)

	_, err = f.cats.Create(ctx, TermInput{Name: "go lang"})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "Already exists with this name", FieldErrors(err)["name"])

	_, err = f.cats.Create(ctx, TermInput{Name: ""})
	assert.Equal(t, "Name is required", FieldErrors(err)["name"])

	// Categories and tags are separate namespaces.
	tag, err := f.tags.Create(ctx, TermInput{Name: "Go Lang"})
	require.NoError(t, err)
	assert.Equal(t, "go-lang", tag.Slug)

	renamed, err := f.cats.Update(ctx, golang.ID, TermInput{Name: "Golang"})
	require.NoError(t, err)
	assert.Equal(t, "golang", renamed.Slug)
	got, err := f.cats.GetBySlug(ctx, "golang")
	require.NoError(t, err)
	assert.Equal(t, golang.ID, got.ID)

	all, err := f.cats.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	n, err := f.cats.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := f.tags.List(ctx, request(t, TermSchema, "name=go"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalRecords)
}

func TestTermServiceDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	in := f.input(t, "Pinned")
	p, err := f.posts.Create(ctx, in)
	require.NoError(t, err)

	err = f.cats.Delete(ctx, in.CategoryID)
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, f.tags.Delete(ctx, in.TagIDs[0]))
	got, err := f.posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	spare, err := f.cats.Create(ctx, TermInput{Name: "Spare"})
	require.NoError(t, err)
	assert.ErrorIs(t, f.cats.DeleteMany(ctx, nil), ErrInvalid)
	require.NoError(t, f.cats.DeleteMany(ctx, []string{spare.ID}))
	assert.ErrorIs(t, f.cats.Delete(ctx, spare.ID), ErrNotFound)
}

func TestPostServiceFailedWriteRemovesEmbeddedImages(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	storage := NewLocalImageStorage(filepath.Join(t.TempDir(), "uploads"), "")
	images := NewImageService(f.store, storage, Auditor{}, 0, 0)
	posts := NewPostService(f.store, NewContentPipeline(images), Auditor{}, 0)

	existing, err := posts.Create(ctx, f.input(t, "Existing"))
	require.NoError(t, err)

	_, err = f.store.db.ExecContext(ctx, `
CREATE TRIGGER reject_post_insert BEFORE INSERT ON posts BEGIN SELECT RAISE(ABORT, 'posts are read only'); END;
CREATE TRIGGER reject_post_update BEFORE UPDATE ON posts BEGIN SELECT RAISE(ABORT, 'posts are read only'); END;`)
	require.NoError(t, err)

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 8, 8))
	in := f.input(t, "Pictures")
	in.Content = `<p>look</p><img src="` + uri + `">`

	_, err = posts.Create(ctx, in)
	require.Error(t, err)

	upd := f.input(t, "Existing again")
	upd.Content = in.Content
	_, err = posts.Update(ctx, existing.ID, upd)
	require.Error(t, err)

	list, err := images.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	entries, err := os.ReadDir(storage.Dir)
	if !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	assert.Empty(t, entries)
}
