package blogadmin

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/blogadmin/paging"
)

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTerm(t *testing.T, s *Store, table termTable, name string, at time.Time) Term {
	t.Helper()
	term := Term{ID: uuid.NewString(), Name: name, Slug: Slugify(name), CreatedAt: at}
	require.NoError(t, s.CreateTerm(context.Background(), table, term))
	return term
}

func seedPost(t *testing.T, s *Store, title string, status PostStatus, cat Term, tags []Term, at time.Time) Post {
	t.Helper()
	p := Post{
		ID:          uuid.NewString(),
		Title:       title,
		Description: "About " + title,
		Content:     "<p>Body of " + title + "</p>",
		Status:      status,
		ReadingTime: 1,
		Slug:        Slugify(title),
		Category:    cat,
		Tags:        tags,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	require.NoError(t, s.CreatePost(context.Background(), p))
	return p
}

func request(t *testing.T, schema paging.Schema, query string) paging.Request {
	t.Helper()
	v, err := url.ParseQuery(query)
	require.NoError(t, err)
	return paging.ParseRequest(v, schema)
}

func TestNewStoreCreatesDataDir(t *testing.T) {
	s := newTestStore(t)
	require.NotNil(t, s.db)
	n, err := s.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := User{ID: uuid.NewString(), Email: "ada@example.com", Name: "Ada", PasswordHash: "hash", CreatedAt: testEpoch}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	dup := u
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrConflict)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAndGetPost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := seedTerm(t, s, categoriesTable, "Engineering", testEpoch)
	goTag := seedTerm(t, s, tagsTable, "go", testEpoch)
	sqlTag := seedTerm(t, s, tagsTable, "SQL", testEpoch)
	want := seedPost(t, s, "Hello World", StatusPublished, cat, []Term{sqlTag, goTag}, testEpoch)

	got, err := s.GetPost(ctx, "slug", "hello-world")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Content, got.Content)
	assert.Equal(t, StatusPublished, got.Status)
	assert.Equal(t, cat, got.Category)
	assert.Equal(t, []string{goTag.ID, sqlTag.ID}, got.TagIDs(), "tags are ordered by name")
	assert.True(t, got.CreatedAt.Equal(testEpoch))

	byID, err := s.GetPost(ctx, "id", want.ID)
	require.NoError(t, err)
	assert.Equal(t, got, byID)

	_, err = s.GetPost(ctx, "slug", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetPost(ctx, "title", "Hello World")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCreatePostDuplicateSlug(t *testing.T) {
	s := newTestStore(t)
	cat := seedTerm(t, s, categoriesTable, "News", testEpoch)
	p := seedPost(t, s, "Same", StatusDraft, cat, nil, testEpoch)

	p.ID = uuid.NewString()
	assert.ErrorIs(t, s.CreatePost(context.Background(), p), ErrConflict)
}

func TestUpdatePostReplacesTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := seedTerm(t, s, categoriesTable, "News", testEpoch)
	a := seedTerm(t, s, tagsTable, "a", testEpoch)
	b := seedTerm(t, s, tagsTable, "b", testEpoch)
	p := seedPost(t, s, "Post", StatusDraft, cat, []Term{a}, testEpoch)

	p.Title = "Post Renamed"
	p.Status = StatusArchived
	p.Tags = []Term{b}
	p.UpdatedAt = testEpoch.Add(time.Hour)
	require.NoError(t, s.UpdatePost(ctx, p))

	got, err := s.GetPost(ctx, "id", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Post Renamed", got.Title)
	assert.Equal(t, StatusArchived, got.Status)
	assert.Equal(t, []string{b.ID}, got.TagIDs())
	assert.True(t, got.UpdatedAt.Equal(testEpoch.Add(time.Hour)))

	p.ID = uuid.NewString()
	assert.ErrorIs(t, s.UpdatePost(ctx, p), ErrNotFound)
}

func TestListPosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	news := seedTerm(t, s, categoriesTable, "News", testEpoch)
	tech := seedTerm(t, s, categoriesTable, "Tech", testEpoch)
	goTag := seedTerm(t, s, tagsTable, "go", testEpoch)
	webTag := seedTerm(t, s, tagsTable, "web", testEpoch)

	seedPost(t, s, "Alpha release", StatusPublished, news, []Term{goTag}, testEpoch)
	seedPost(t, s, "Beta notes", StatusDraft, tech, []Term{webTag}, testEpoch.Add(time.Hour))
	seedPost(t, s, "Gamma 100% done", StatusArchived, tech, []Term{goTag, webTag}, testEpoch.Add(2*time.Hour))

	tests := []struct {
		name   string
		query  string
		titles []string
		total  int
	}{
		{"default newest first", "", []string{"Gamma 100% done", "Beta notes", "Alpha release"}, 3},
		{"title substring", "title=ALPHA", []string{"Alpha release"}, 1},
		{"like metacharacters are literal", "title=100%25", []string{"Gamma 100% done"}, 1},
		{"status multi", "status=DRAFT&status=archived", []string{"Gamma 100% done", "Beta notes"}, 2},
		{"category ids", "category=" + news.ID, []string{"Alpha release"}, 1},
		{"any tag matches", "tags=" + webTag.ID + "&sortBy=title", []string{"Beta notes", "Gamma 100% done"}, 2},
		{"sort by title desc", "sortBy=title&sortDirection=desc", []string{"Gamma 100% done", "Beta notes", "Alpha release"}, 3},
		{"oldest first", "sort=createdAt", []string{"Alpha release", "Beta notes", "Gamma 100% done"}, 3},
		{"second page", "size=10&page=2", nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.ListPosts(ctx, request(t, PostSchema, tt.query))
			require.NoError(t, err)
			var titles []string
			for _, it := range res.Items {
				titles = append(titles, it.Title)
			}
			assert.Equal(t, tt.titles, titles)
			assert.Equal(t, tt.total, res.TotalRecords)
		})
	}

	res, err := s.ListPosts(ctx, request(t, PostSchema, "title=gamma"))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Tech", res.Items[0].CategoryName)
	assert.Contains(t, res.Items[0].TagsName, "go")
	assert.Contains(t, res.Items[0].TagsName, "web")
	assert.True(t, res.Items[0].CreatedAt.Equal(testEpoch.Add(2*time.Hour)))
}

func TestListPostsPaging(t *testing.T) {
	s := newTestStore(t)
	cat := seedTerm(t, s, categoriesTable, "News", testEpoch)
	for i := range 25 {
		seedPost(t, s, fmt.Sprintf("Post %02d", i), StatusDraft, cat, nil, testEpoch.Add(time.Duration(i)*time.Minute))
	}

	res, err := s.ListPosts(context.Background(), request(t, PostSchema, "page=3&size=10&sortBy=title"))
	require.NoError(t, err)
	assert.Equal(t, 25, res.TotalRecords)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 3, res.CurrentPage)
	require.Len(t, res.Items, 5)
	assert.Equal(t, "Post 20", res.Items[0].Title)

	res, err = s.ListPosts(context.Background(), request(t, PostSchema, "page=9223372036854775807&size=10"))
	require.NoError(t, err)
	assert.Equal(t, paging.MaxPage, res.CurrentPage)
	assert.Empty(t, res.Items, "an out-of-range page has no rows")
}

func TestPostExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := seedTerm(t, s, categoriesTable, "News", testEpoch)
	p := seedPost(t, s, "Hello", StatusDraft, cat, nil, testEpoch)

	exists, err := s.PostExists(ctx, "title", "HELLO", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.PostExists(ctx, "title", "hello", p.ID)
	require.NoError(t, err)
	assert.False(t, exists, "the post itself is excluded")

	exists, err = s.PostExists(ctx, "slug", "hello", "")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = s.PostExists(ctx, "content", "x", "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDeletePosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := seedTerm(t, s, categoriesTable, "News", testEpoch)
	tag := seedTerm(t, s, tagsTable, "go", testEpoch)
	a := seedPost(t, s, "A", StatusDraft, cat, []Term{tag}, testEpoch)
	b := seedPost(t, s, "B", StatusDraft, cat, nil, testEpoch)
	c := seedPost(t, s, "C", StatusDraft, cat, nil, testEpoch)

	require.NoError(t, s.DeletePosts(ctx, []string{a.ID, b.ID}))
	_, err := s.GetPost(ctx, "id", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetPost(ctx, "id", c.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, s.DeletePosts(ctx, []string{a.ID}), ErrNotFound)
}

func TestListPublishedAndCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := seedTerm(t, s, categoriesTable, "News", testEpoch)
	seedPost(t, s, "Old", StatusPublished, cat, nil, testEpoch)
	seedPost(t, s, "New", StatusPublished, cat, nil, testEpoch.Add(time.Hour))
	seedPost(t, s, "Draft", StatusDraft, cat, nil, testEpoch)

	posts, err := s.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "New", posts[0].Title)

	counts, err := s.CountPostsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusPublished])
	assert.Equal(t, 1, counts[StatusDraft])
	assert.Zero(t, counts[StatusArchived])
}

func TestTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := seedTerm(t, s, tagsTable, "beta", testEpoch)
	a := seedTerm(t, s, tagsTable, "Alpha", testEpoch.Add(time.Hour))

	all, err := s.AllTerms(ctx, tagsTable)
	require.NoError(t, err)
	assert.Equal(t, []Term{a, b}, all)

	res, err := s.ListTerms(ctx, tagsTable, request(t, TermSchema, ""))
	require.NoError(t, err)
	assert.Equal(t, []Term{a, b}, res.Items, "newest first by default")

	res, err = s.ListTerms(ctx, tagsTable, request(t, TermSchema, "name=alp"))
	require.NoError(t, err)
	assert.Equal(t, []Term{a}, res.Items)

	got, err := s.GetTerm(ctx, tagsTable, "slug", "beta")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	byIDs, err := s.TermsByIDs(ctx, tagsTable, []string{b.ID, a.ID, uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)

	exists, err := s.TermExists(ctx, tagsTable, "name", "ALPHA", "")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.TermExists(ctx, tagsTable, "name", "alpha", a.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	a.Name, a.Slug = "Alpha Two", "alpha-two"
	require.NoError(t, s.UpdateTerm(ctx, tagsTable, a))
	got, err = s.GetTerm(ctx, tagsTable, "id", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha-two", got.Slug)

	n, err := s.CountTerms(ctx, tagsTable)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Categories live in their own table.
	n, err = s.CountTerms(ctx, categoriesTable)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	used := seedTerm(t, s, categoriesTable, "Used", testEpoch)
	unused := seedTerm(t, s, categoriesTable, "Unused", testEpoch)
	tag := seedTerm(t, s, tagsTable, "go", testEpoch)
	p := seedPost(t, s, "Post", StatusDraft, used, []Term{tag}, testEpoch)

	assert.ErrorIs(t, s.DeleteTerms(ctx, categoriesTable, []string{used.ID, unused.ID}), ErrConflict)
	_, err := s.GetTerm(ctx, categoriesTable, "id", unused.ID)
	require.NoError(t, err, "a failed bulk delete removes nothing")

	require.NoError(t, s.DeleteTerms(ctx, categoriesTable, []string{unused.ID}))
	require.NoError(t, s.DeleteTerms(ctx, tagsTable, []string{tag.ID}))

	got, err := s.GetPost(ctx, "id", p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags, "deleting a tag detaches it")

	assert.ErrorIs(t, s.DeleteTerms(ctx, tagsTable, []string{tag.ID}), ErrNotFound)
}

func TestImages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	older := Image{Filename: "a.jpg", OriginalName: "A.png", Width: 10, Height: 5, Size: 100, URL: "/u/a.jpg", UploadedAt: testEpoch}
	newer := Image{Filename: "b.jpg", OriginalName: "B.png", Width: 20, Height: 10, Size: 200, URL: "/u/b.jpg", UploadedAt: testEpoch.Add(time.Minute)}
	require.NoError(t, s.SaveImage(ctx, older))
	require.NoError(t, s.SaveImage(ctx, newer))

	images, err := s.ListImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Image{newer, older}, images)

	exists, err := s.ImageExists(ctx, "a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteImage(ctx, "a.jpg"))
	assert.ErrorIs(t, s.DeleteImage(ctx, "a.jpg"), ErrNotFound)
}

func TestPlaceholdersAndLikePattern(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?, ?, ?", placeholders(3))
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}
