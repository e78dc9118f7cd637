package blogadmin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "correct horse"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	app := New(Config{
		SiteURL:              "https://blog.example.com",
		StaticDir:            filepath.Join(dir, "public"),
		DatabasePath:         filepath.Join(dir, "data", "blog.db"),
		ActivityDatabasePath: filepath.Join(dir, "data", "activity.db"),
		SessionSecret:        "session-secret",
		JWTSecret:            "jwt-secret",
		AdminEmail:           testAdminEmail,
		AdminName:            "Admin",
		AdminPassword:        testAdminPassword,
		CORSOrigins:          []string{"https://admin.example.com"},
	})
	require.NoError(t, app.Setup(context.Background()))
	t.Cleanup(func() { app.Close() })
	return app
}

// testClient carries cookies between requests like a browser.
type testClient struct {
	t       *testing.T
	app     *App
	token   string
	cookies map[string]*http.Cookie
}

func newTestClient(t *testing.T, app *App) *testClient {
	return &testClient{t: t, app: app, cookies: make(map[string]*http.Cookie)}
}

func (c *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *testClient) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *testClient) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	if ck, ok := c.cookies["_csrf"]; ok {
		form.Set("_csrf", ck.Value)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return c.do(req)
}

func (c *testClient) json(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return c.do(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func apiClient(t *testing.T, app *App) *testClient {
	t.Helper()
	c := newTestClient(t, app)
	rec := c.json(http.MethodPost, "/api/auth/login", loginRequest{Email: testAdminEmail, Password: testAdminPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c.token = decode[LoginResponse](t, rec).Token
	return c
}

func sessionClient(t *testing.T, app *App) *testClient {
	t.Helper()
	c := newTestClient(t, app)
	require.Equal(t, http.StatusOK, c.get("/login/").Code)
	rec := c.postForm("/login/", url.Values{"email": {testAdminEmail}, "password": {testAdminPassword}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, "/dashboard/", rec.Header().Get(echo.HeaderLocation))
	return c
}

func TestAPILogin(t *testing.T) {
	app := newTestApp(t)
	c := newTestClient(t, app)

	rec := c.json(http.MethodPost, "/api/auth/login", loginRequest{Email: testAdminEmail, Password: "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, decode[ErrorResponse](t, rec).Status)

	rec = c.json(http.MethodPost, "/api/auth/login", loginRequest{Email: "nope", Password: "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Invalid email format", body.Errors["email"])

	rec = c.json(http.MethodPost, "/api/auth/login", loginRequest{Email: testAdminEmail, Password: testAdminPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[LoginResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, int64(7*24*3600), login.ExpiresIn)
	assert.Equal(t, "Admin", login.User.Name)

	c.token = login.Token
	rec = c.get("/api/auth/validate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, UserInfo{Email: testAdminEmail, Name: "Admin"}, decode[UserInfo](t, rec))

	c.token = "garbage"
	assert.Equal(t, http.StatusUnauthorized, c.get("/api/auth/validate").Code)
}

func TestAPILoginRateLimit(t *testing.T) {
	app := newTestApp(t)
	c := newTestClient(t, app)
	for i := 0; i < 5; i++ {
		rec := c.json(http.MethodPost, "/api/auth/login", loginRequest{Email: "ghost@example.com", Password: "whatever"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := c.json(http.MethodPost, "/api/auth/login", loginRequest{Email: testAdminEmail, Password: testAdminPassword})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "too many login attempts")
}

func TestAPIRequiresToken(t *testing.T) {
	app := newTestApp(t)
	c := newTestClient(t, app)
	for _, path := range []string{"/api/posts", "/api/categories", "/api/tags/some-tag"} {
		rec := c.get(path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	}
}

func TestAPIIgnoresTokenCookie(t *testing.T) {
	app := newTestApp(t)
	token := apiClient(t, app).token
	require.NotEmpty(t, token)

	c := newTestClient(t, app)
	c.cookies["token"] = &http.Cookie{Name: "token", Value: token}
	rec := c.get("/api/posts")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c.token = token
	rec = c.get("/api/posts")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIPostLifecycle(t *testing.T) {
	app := newTestApp(t)
	c := apiClient(t, app)

	rec := c.json(http.MethodPost, "/api/categories", TermInput{Name: "Engineering"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decode[Term](t, rec)
	assert.Equal(t, "engineering", cat.Slug)

	rec = c.json(http.MethodPost, "/api/tags", TermInput{Name: "Go"})
	require.Equal(t, http.StatusCreated, rec.Code)
	tag := decode[Term](t, rec)

	rec = c.json(http.MethodPost, "/api/posts", PostInput{
		Title:       "Shipping Go",
		Description: "How we ship",
		Content:     "Build it, test it, **ship it**.",
		Format:      FormatMarkdown,
		Status:      StatusPublished,
		CategoryID:  cat.ID,
		TagIDs:      []string{tag.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[Post](t, rec)
	assert.Equal(t, "shipping-go", post.Slug)
	assert.Contains(t, post.Content, "<strong>ship it</strong>")
	assert.Equal(t, "Engineering", post.Category.Name)

	rec = c.get("/api/posts/shipping-go")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, post.ID, decode[Post](t, rec).ID)

	rec = c.get("/api/posts?title=ship&status=PUBLISHED&sort=-title")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Posts        []PostListItem `json:"posts"`
		TotalRecords int            `json:"totalRecords"`
		TotalPages   int            `json:"totalPages"`
		CurrentPage  int            `json:"currentPage"`
	}](t, rec)
	assert.Equal(t, 1, list.TotalRecords)
	assert.Equal(t, 1, list.CurrentPage)
	require.Len(t, list.Posts, 1)
	assert.Equal(t, "Go", list.Posts[0].TagsName)

	rec = c.get("/api/posts/check-unique?field=title&value=shipping+go")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[bool](t, rec))
	rec = c.get("/api/posts/check-unique?field=title&value=shipping+go&excludeId=" + post.ID)
	assert.True(t, decode[bool](t, rec))
	assert.Equal(t, http.StatusBadRequest, c.get("/api/posts/check-unique?field=content&value=x").Code)

	rec = c.json(http.MethodPut, "/api/posts/"+post.ID, PostInput{
		Title:       "Shipping Go Faster",
		Description: "How we ship",
		Content:     "<p>Now with more speed.</p>",
		Status:      StatusArchived,
		CategoryID:  cat.ID,
		TagIDs:      []string{tag.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "shipping-go-faster", decode[Post](t, rec).Slug)

	rec = c.json(http.MethodDelete, "/api/categories/"+cat.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.json(http.MethodDelete, "/api/posts/"+post.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, c.get("/api/posts/shipping-go-faster").Code)

	rec = c.json(http.MethodDelete, "/api/categories", idsRequest{IDs: []string{cat.ID}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIPostValidation(t *testing.T) {
	app := newTestApp(t)
	c := apiClient(t, app)

	rec := c.json(http.MethodPost, "/api/posts", PostInput{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Validation failed", body.Message)
	assert.Equal(t, "Title is required", body.Errors["title"])
	assert.Equal(t, "Category is required", body.Errors["category_id"])

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = c.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.json(http.MethodDelete, "/api/posts", idsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIUploadImage(t *testing.T) {
	app := newTestApp(t)
	c := apiClient(t, app)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "Sunset Photo.png")
	require.NoError(t, err)
	_, err = fw.Write(testPNG(t, 40, 30))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/image", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := c.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	up := decode[uploadResponse](t, rec)
	assert.Equal(t, "sunset-photo.jpg", up.Filename)
	assert.Equal(t, "/public/uploads/sunset-photo.jpg", up.URL)
	assert.Equal(t, 40, up.Width)

	// The stored file is served back without a token.
	token := c.token
	c.token = ""
	assert.Equal(t, http.StatusOK, c.get(up.URL).Code)

	c.token = token
	req = httptest.NewRequest(http.MethodPost, "/api/uploads/image", nil)
	assert.Equal(t, http.StatusBadRequest, c.do(req).Code)
}

func TestAPICORS(t *testing.T) {
	app := newTestApp(t)
	c := newTestClient(t, app)

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := c.do(req)
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = c.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDashboardRequiresSession(t *testing.T) {
	app := newTestApp(t)
	c := newTestClient(t, app)

	rec := c.get("/dashboard/post/?page=2")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login/?next="+url.QueryEscape("/dashboard/post/?page=2"), rec.Header().Get(echo.HeaderLocation))

	rec = c.get("/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard/", rec.Header().Get(echo.HeaderLocation))

	rec = c.get("/dashboard")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
}

func TestLoginPage(t *testing.T) {
	app := newTestApp(t)
	c := newTestClient(t, app)

	rec := c.get("/login/?next=//evil.example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="next" value="/dashboard/"`)
	require.Contains(t, c.cookies, "_csrf")

	rec = c.postForm("/login/", url.Values{"email": {testAdminEmail}, "password": {"bad password"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password.")

	// Without the CSRF token the form is rejected.
	req := httptest.NewRequest(http.MethodPost, "/login/", strings.NewReader("email=a%40b.c&password=secret1"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec = httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboardPages(t *testing.T) {
	app := newTestApp(t)
	c := sessionClient(t, app)

	rec := c.get("/dashboard/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "logged in as")

	rec = c.postForm("/dashboard/category/create/", url.Values{"name": {"Travel"}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	rec = c.postForm("/dashboard/tag/create/", url.Values{"name": {"Europe"}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	cat, err := app.Categories.GetBySlug(context.Background(), "travel")
	require.NoError(t, err)
	tag, err := app.Tags.GetBySlug(context.Background(), "europe")
	require.NoError(t, err)

	rec = c.postForm("/dashboard/post/create/", url.Values{
		"title":       {"Trip"},
		"description": {"A trip"},
		"content":     {"x"},
		"status":      {"DRAFT"},
		"category_id": {cat.ID},
		"tag_ids":     {tag.ID},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post content must be at least 10 characters")
	assert.Contains(t, rec.Body.String(), `value="Trip"`, "input is kept")

	rec = c.postForm("/dashboard/post/create/", url.Values{
		"title":       {"Trip"},
		"description": {"A trip"},
		"content":     {"<p>Ten days by train.</p>"},
		"status":      {"DRAFT"},
		"category_id": {cat.ID},
		"tag_ids":     {tag.ID},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/dashboard/post/?msg=Post+created", rec.Header().Get(echo.HeaderLocation))

	rec = c.get("/dashboard/post/?msg=Post+created")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post created")
	assert.Contains(t, rec.Body.String(), "Trip")

	rec = c.get("/dashboard/post/?partial=table&title=nothing-matches")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), `<div class="data-table"`))
	assert.Contains(t, rec.Body.String(), "No results.")

	rec = c.get("/dashboard/post/list/?status=DRAFT")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/dashboard/post/?status=DRAFT", rec.Header().Get(echo.HeaderLocation))

	rec = c.get("/dashboard/post/trip/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ten days by train.")

	rec = c.postForm("/dashboard/post/preview/", url.Values{"content": {"# Hi"}, "format": {"markdown"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Hi</h1>")

	rec = c.postForm("/dashboard/category/travel/delete/", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderLocation), "err=")

	rec = c.postForm("/dashboard/post/delete/", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	post, err := app.Posts.GetBySlug(context.Background(), "trip")
	require.NoError(t, err)
	rec = c.postForm("/dashboard/post/delete/", url.Values{"ids": {post.ID}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, err = app.Posts.GetBySlug(context.Background(), "trip")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, http.StatusNotFound, c.get("/dashboard/post/missing/").Code)

	rec = c.postForm("/logout/", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, http.StatusSeeOther, c.get("/dashboard/").Code)
}

func TestFeeds(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	cat, err := app.Categories.Create(ctx, TermInput{Name: "News"})
	require.NoError(t, err)
	tag, err := app.Tags.Create(ctx, TermInput{Name: "Launch"})
	require.NoError(t, err)
	in := PostInput{
		Title: "Launch Day", Description: "We launched", Content: "<p>It finally happened.</p>",
		Status: StatusPublished, CategoryID: cat.ID, TagIDs: []string{tag.ID},
	}
	_, err = app.Posts.Create(ctx, in)
	require.NoError(t, err)
	in.Title, in.Status = "Secret Plans", StatusDraft
	_, err = app.Posts.Create(ctx, in)
	require.NoError(t, err)

	c := newTestClient(t, app)
	rec := c.get("/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Launch Day</title>")
	assert.Contains(t, rec.Body.String(), "https://blog.example.com/blog/launch-day/")
	assert.NotContains(t, rec.Body.String(), "Secret Plans")
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = c.get("/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<loc>https://blog.example.com/blog/launch-day/</loc>")
}

func TestErrorPages(t *testing.T) {
	app := newTestApp(t)
	c := newTestClient(t, app)

	rec := c.get("/nowhere/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "does not exist")

	rec = c.get("/api/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decode[ErrorResponse](t, rec).Status)
}

func TestAppCloseTwice(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.Close())
	assert.NotPanics(t, func() { _ = app.Close() })
}
