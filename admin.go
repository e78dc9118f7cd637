package blogadmin

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin/activity"
	"github.com/eringen/blogadmin/paging"
	"github.com/eringen/blogadmin/views"
)

const recentActivityLimit = 10

// page builds the dashboard chrome for the current request. Flash
// messages arrive through the msg and err query parameters.
func (a *App) page(c echo.Context, title, section string, crumbs ...views.Crumb) views.Page {
	u, _ := CurrentUser(c)
	p := views.Page{
		SiteName:  a.Config.Name,
		Title:     title,
		Section:   section,
		UserName:  u.Name,
		UserEmail: u.Email,
		CSRF:      CsrfToken(c),
		Crumbs:    append([]views.Crumb{{Label: "Dashboard", Href: "/dashboard/"}}, crumbs...),
	}
	if msg := c.QueryParam("msg"); msg != "" {
		p.Flash, p.FlashKind = msg, "success"
	}
	if msg := c.QueryParam("err"); msg != "" {
		p.Flash, p.FlashKind = msg, "error"
	}
	return p
}

// formErrors turns a write error into messages for a form. It returns nil
// for errors that are not the user's to fix.
func formErrors(err error) map[string]string {
	if fields := FieldErrors(err); fields != nil {
		return fields
	}
	if errors.Is(err, ErrInvalid) || errors.Is(err, ErrConflict) {
		return map[string]string{"form": err.Error()}
	}
	return nil
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/dashboard/"
	}
	return next
}

// --- Auth ---

func (a *App) handleLoginPage(c echo.Context) error {
	if sessionUserID(c) != "" {
		return c.Redirect(http.StatusSeeOther, "/dashboard/")
	}
	return Render(c, views.Login(views.LoginData{
		SiteName: a.Config.Name,
		CSRF:     CsrfToken(c),
		Next:     safeNext(c.QueryParam("next")),
	}))
}

func (a *App) handleLogin(c echo.Context) error {
	data := views.LoginData{
		SiteName: a.Config.Name,
		CSRF:     CsrfToken(c),
		Email:    strings.TrimSpace(c.FormValue("email")),
		Next:     safeNext(c.FormValue("next")),
	}

	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		data.Error = "Too many login attempts. Try again later."
		return RenderStatus(c, http.StatusTooManyRequests, views.Login(data))
	}

	u, err := a.Auth.Authenticate(c.Request().Context(), data.Email, c.FormValue("password"))
	if err != nil {
		a.loginLimiter.Record(ip)
		switch {
		case errors.Is(err, ErrUnauthorized):
			a.Log.Info("failed login", zap.String("email", data.Email), zap.String("ip", ip))
			data.Error = "Invalid email or password."
			return RenderStatus(c, http.StatusUnauthorized, views.Login(data))
		case FieldErrors(err) != nil:
			data.Errors = FieldErrors(err)
			return RenderStatus(c, http.StatusBadRequest, views.Login(data))
		}
		return err
	}

	a.loginLimiter.Reset(ip)
	if err := setUserSession(c, u); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, data.Next)
}

func (a *App) handleLogout(c echo.Context) error {
	if err := clearUserSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/login/")
}

// --- Home ---

func (a *App) handleDashboardHome(c echo.Context) error {
	ctx := c.Request().Context()

	byStatus, err := a.Posts.Stats(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}
	categories, err := a.Categories.Count(ctx)
	if err != nil {
		return err
	}
	tags, err := a.Tags.Count(ctx)
	if err != nil {
		return err
	}
	images, err := a.Images.List(ctx)
	if err != nil {
		return err
	}

	data := views.HomeData{Stats: []views.Stat{
		{Label: "Posts", Value: total, Href: "/dashboard/post/"},
		{Label: "Published", Value: byStatus[StatusPublished], Href: "/dashboard/post/?status=PUBLISHED"},
		{Label: "Drafts", Value: byStatus[StatusDraft], Href: "/dashboard/post/?status=DRAFT"},
		{Label: "Categories", Value: categories, Href: "/dashboard/category/"},
		{Label: "Tags", Value: tags, Href: "/dashboard/tag/"},
		{Label: "Images", Value: len(images), Href: "/dashboard/images/"},
	}}

	entries, err := a.Activity.Recent(ctx, recentActivityLimit)
	if err != nil {
		a.Log.Warn("load recent activity", zap.Error(err))
	}
	for _, e := range entries {
		data.Activity = append(data.Activity, views.ActivityItem{
			At:     e.At,
			Actor:  e.Actor,
			Action: pastTense(e.Action),
			Entity: e.Entity,
			Label:  e.Label,
		})
	}

	p := a.page(c, "Dashboard", "home")
	p.Crumbs = []views.Crumb{{Label: "Dashboard"}}
	return Render(c, views.Layout(p, views.Home(data)))
}

func pastTense(action string) string {
	switch action {
	case activity.ActionLogin:
		return "logged in as"
	case activity.ActionUpload:
		return "uploaded"
	}
	return strings.TrimSuffix(action, "e") + "ed"
}

// listAlias redirects the legacy ".../list/" URLs to base, keeping the
// query string.
func listAlias(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		target := base
		if q := c.QueryString(); q != "" {
			target += "?" + q
		}
		return c.Redirect(http.StatusMovedPermanently, target)
	}
}

// --- Posts ---

const postsPath = "/dashboard/post/"

func postEditURL(slug string) string {
	return postsPath + url.PathEscape(slug) + "/"
}

func (a *App) postTable(c echo.Context) (views.Table, error) {
	ctx := c.Request().Context()
	cats, err := a.Categories.All(ctx)
	if err != nil {
		return views.Table{}, err
	}
	tags, err := a.Tags.All(ctx)
	if err != nil {
		return views.Table{}, err
	}
	schema := PostSchema.
		WithOptions("category", TermOptions(cats)).
		WithOptions("tags", TermOptions(tags))
	req := paging.ParseRequest(c.QueryParams(), schema)

	res, err := a.Posts.List(ctx, req)
	if err != nil {
		return views.Table{}, err
	}
	rows := make([]views.Row, len(res.Items))
	for i, p := range res.Items {
		rows[i] = views.Row{
			ID: p.ID,
			Cells: []views.Cell{
				{Text: p.Title, Href: postEditURL(p.Slug)},
				{Text: p.Status.Label(), Badge: strings.ToLower(string(p.Status))},
				{Text: p.CategoryName},
				{Text: p.TagsName},
				{Text: p.CreatedAt.Format("Jan 2, 2006")},
				{Text: p.UpdatedAt.Format("Jan 2, 2006 15:04")},
			},
			EditURL:   postEditURL(p.Slug),
			DeleteURL: postEditURL(p.Slug) + "delete/",
		}
	}
	return views.Table{
		ID:            "posts",
		BasePath:      postsPath,
		BulkDeleteURL: postsPath + "delete/",
		Noun:          "posts",
		CSRF:          CsrfToken(c),
		Schema:        schema,
		Request:       req,
		Rows:          rows,
		TotalRecords:  res.TotalRecords,
		TotalPages:    res.TotalPages,
		CurrentPage:   res.CurrentPage,
	}, nil
}

func (a *App) handlePostList(c echo.Context) error {
	t, err := a.postTable(c)
	if err != nil {
		return err
	}
	if isPartial(c, "table") {
		return Render(c, views.DataTable(t))
	}
	p := a.page(c, "Posts", "post", views.Crumb{Label: "Posts"})
	return Render(c, views.Layout(p, views.ListPage("Posts", postsPath+"create/", "Create Post", t)))
}

// postForm fills the selects of f from the stored terms.
func (a *App) postForm(c echo.Context, f views.PostForm) (views.PostForm, error) {
	ctx := c.Request().Context()
	cats, err := a.Categories.All(ctx)
	if err != nil {
		return f, err
	}
	tags, err := a.Tags.All(ctx)
	if err != nil {
		return f, err
	}
	f.Statuses = statusOptions()
	f.Categories = TermOptions(cats)
	f.Tags = TermOptions(tags)
	f.PreviewURL = postsPath + "preview/"
	if f.Status == "" {
		f.Status = string(StatusDraft)
	}
	return f, nil
}

func (a *App) renderPostForm(c echo.Context, status int, f views.PostForm) error {
	f, err := a.postForm(c, f)
	if err != nil {
		return err
	}
	title, crumb := "Edit Post", f.Title
	if f.IsNew {
		title, crumb = "Create Post", "Create"
	}
	p := a.page(c, title, "post", views.Crumb{Label: "Posts", Href: postsPath}, views.Crumb{Label: crumb})
	return RenderStatus(c, status, views.Layout(p, views.PostFormPage(f, p.CSRF)))
}

func postInputFromForm(c echo.Context) (PostInput, error) {
	form, err := c.FormParams()
	if err != nil {
		return PostInput{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return PostInput{
		Title:       form.Get("title"),
		Description: form.Get("description"),
		Content:     form.Get("content"),
		Status:      PostStatus(form.Get("status")),
		CategoryID:  form.Get("category_id"),
		TagIDs:      FilterEmpty(form["tag_ids"]),
		Format:      form.Get("format"),
	}, nil
}

func formFromInput(in PostInput) views.PostForm {
	return views.PostForm{
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		Format:      in.Format,
		Status:      string(in.Status),
		CategoryID:  in.CategoryID,
		TagIDs:      in.TagIDs,
	}
}

func (a *App) handlePostNew(c echo.Context) error {
	return a.renderPostForm(c, http.StatusOK, views.PostForm{
		IsNew:  true,
		Action: postsPath + "create/",
		Format: FormatHTML,
	})
}

func (a *App) handlePostCreate(c echo.Context) error {
	in, err := postInputFromForm(c)
	if err != nil {
		return err
	}
	if _, err := a.Posts.Create(c.Request().Context(), in); err != nil {
		errs := formErrors(err)
		if errs == nil {
			return err
		}
		f := formFromInput(in)
		f.IsNew, f.Action, f.Errors = true, postsPath+"create/", errs
		return a.renderPostForm(c, http.StatusUnprocessableEntity, f)
	}
	return redirectWithFlash(c, postsPath, "Post created")
}

func (a *App) handlePostPreview(c echo.Context) error {
	html, err := a.Posts.Preview(c.Request().Context(), c.FormValue("content"), c.FormValue("format"))
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			return c.String(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return Render(c, views.Preview(html))
}

func (a *App) handlePostEdit(c echo.Context) error {
	post, err := a.Posts.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return a.renderPostForm(c, http.StatusOK, views.PostForm{
		Action:      postEditURL(post.Slug),
		DeleteURL:   postEditURL(post.Slug) + "delete/",
		Slug:        post.Slug,
		Title:       post.Title,
		Description: post.Description,
		Content:     post.Content,
		Format:      FormatHTML,
		Status:      string(post.Status),
		CategoryID:  post.Category.ID,
		TagIDs:      post.TagIDs(),
		ReadingTime: post.ReadingTime,
	})
}

func (a *App) handlePostUpdate(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := a.Posts.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	in, err := postInputFromForm(c)
	if err != nil {
		return err
	}
	if _, err := a.Posts.Update(ctx, post.ID, in); err != nil {
		errs := formErrors(err)
		if errs == nil {
			return err
		}
		f := formFromInput(in)
		f.Action, f.DeleteURL, f.Slug = postEditURL(post.Slug), postEditURL(post.Slug)+"delete/", post.Slug
		f.Errors = errs
		return a.renderPostForm(c, http.StatusUnprocessableEntity, f)
	}
	return redirectWithFlash(c, postsPath, "Post updated")
}

func (a *App) handlePostDelete(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := a.Posts.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	if err := a.Posts.Delete(ctx, post.ID); err != nil {
		return err
	}
	return redirectWithFlash(c, postsPath, "Post deleted")
}

func (a *App) handlePostBulkDelete(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return err
	}
	ids := FilterEmpty(form["ids"])
	if len(ids) == 0 {
		return redirectWithError(c, postsPath, "Select at least one post")
	}
	if err := a.Posts.DeleteMany(c.Request().Context(), ids); err != nil {
		if errs := formErrors(err); errs != nil {
			return redirectWithError(c, postsPath, err.Error())
		}
		return err
	}
	return redirectWithFlash(c, postsPath, fmt.Sprintf("Deleted %d post(s)", len(ids)))
}

// --- Categories and tags ---

// termPages serves the dashboard pages of one taxonomy.
type termPages struct {
	app *App
	svc *TermService
}

func (h termPages) base() string { return "/dashboard/" + h.svc.Kind.Singular + "/" }

func (h termPages) editURL(slug string) string {
	return h.base() + url.PathEscape(slug) + "/"
}

func (h termPages) heading() string {
	return strings.ToUpper(h.svc.Kind.Plural[:1]) + h.svc.Kind.Plural[1:]
}

func (h termPages) table(c echo.Context) (views.Table, error) {
	req := paging.ParseRequest(c.QueryParams(), TermSchema)
	res, err := h.svc.List(c.Request().Context(), req)
	if err != nil {
		return views.Table{}, err
	}
	rows := make([]views.Row, len(res.Items))
	for i, t := range res.Items {
		rows[i] = views.Row{
			ID: t.ID,
			Cells: []views.Cell{
				{Text: t.Name, Href: h.editURL(t.Slug)},
				{Text: t.Slug},
				{Text: t.CreatedAt.Format("Jan 2, 2006")},
			},
			EditURL:   h.editURL(t.Slug),
			DeleteURL: h.editURL(t.Slug) + "delete/",
		}
	}
	return views.Table{
		ID:            h.svc.Kind.Plural,
		BasePath:      h.base(),
		BulkDeleteURL: h.base() + "delete/",
		Noun:          h.svc.Kind.Plural,
		CSRF:          CsrfToken(c),
		Schema:        TermSchema,
		Request:       req,
		Rows:          rows,
		TotalRecords:  res.TotalRecords,
		TotalPages:    res.TotalPages,
		CurrentPage:   res.CurrentPage,
	}, nil
}

func (h termPages) list(c echo.Context) error {
	t, err := h.table(c)
	if err != nil {
		return err
	}
	if isPartial(c, "table") {
		return Render(c, views.DataTable(t))
	}
	p := h.app.page(c, h.heading(), h.svc.Kind.Singular, views.Crumb{Label: h.heading()})
	body := views.ListPage(h.heading(), h.base()+"create/", "Create "+h.svc.Kind.Label, t)
	return Render(c, views.Layout(p, body))
}

func (h termPages) render(c echo.Context, status int, f views.TermForm) error {
	f.Label = h.svc.Kind.Label
	title, crumb := "Edit "+f.Label, f.Name
	if f.IsNew {
		title, crumb = "Create "+f.Label, "Create"
	}
	p := h.app.page(c, title, h.svc.Kind.Singular,
		views.Crumb{Label: h.heading(), Href: h.base()}, views.Crumb{Label: crumb})
	return RenderStatus(c, status, views.Layout(p, views.TermFormPage(f, p.CSRF)))
}

func (h termPages) new(c echo.Context) error {
	return h.render(c, http.StatusOK, views.TermForm{IsNew: true, Action: h.base() + "create/"})
}

func (h termPages) create(c echo.Context) error {
	in := TermInput{Name: c.FormValue("name")}
	if _, err := h.svc.Create(c.Request().Context(), in); err != nil {
		errs := formErrors(err)
		if errs == nil {
			return err
		}
		return h.render(c, http.StatusUnprocessableEntity, views.TermForm{
			IsNew: true, Action: h.base() + "create/", Name: in.Name, Errors: errs,
		})
	}
	return redirectWithFlash(c, h.base(), h.svc.Kind.Label+" created")
}

func (h termPages) edit(c echo.Context) error {
	t, err := h.svc.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return h.render(c, http.StatusOK, views.TermForm{
		Action:    h.editURL(t.Slug),
		DeleteURL: h.editURL(t.Slug) + "delete/",
		Name:      t.Name,
		Slug:      t.Slug,
	})
}

func (h termPages) update(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.svc.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	in := TermInput{Name: c.FormValue("name")}
	if _, err := h.svc.Update(ctx, t.ID, in); err != nil {
		errs := formErrors(err)
		if errs == nil {
			return err
		}
		return h.render(c, http.StatusUnprocessableEntity, views.TermForm{
			Action:    h.editURL(t.Slug),
			DeleteURL: h.editURL(t.Slug) + "delete/",
			Name:      in.Name,
			Slug:      t.Slug,
			Errors:    errs,
		})
	}
	return redirectWithFlash(c, h.base(), h.svc.Kind.Label+" updated")
}

func (h termPages) delete(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := h.svc.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	if err := h.svc.Delete(ctx, t.ID); err != nil {
		if errors.Is(err, ErrConflict) {
			return redirectWithError(c, h.base(), err.Error())
		}
		return err
	}
	return redirectWithFlash(c, h.base(), h.svc.Kind.Label+" deleted")
}

func (h termPages) bulkDelete(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return err
	}
	ids := FilterEmpty(form["ids"])
	if len(ids) == 0 {
		return redirectWithError(c, h.base(), "Select at least one "+h.svc.Kind.Singular)
	}
	if err := h.svc.DeleteMany(c.Request().Context(), ids); err != nil {
		if formErrors(err) != nil {
			return redirectWithError(c, h.base(), err.Error())
		}
		return err
	}
	return redirectWithFlash(c, h.base(), fmt.Sprintf("Deleted %d %s", len(ids), h.svc.Kind.Plural))
}

// --- Images ---

const imagesPath = "/dashboard/images/"

func (a *App) handleImageList(c echo.Context) error {
	images, err := a.Images.List(c.Request().Context())
	if err != nil {
		return err
	}
	data := views.ImagesData{
		UploadURL: imagesPath + "upload/",
		MaxSizeMB: a.Images.MaxSize() >> 20,
	}
	for _, img := range images {
		data.Images = append(data.Images, views.ImageItem{
			Filename:     img.Filename,
			OriginalName: img.OriginalName,
			URL:          img.URL,
			Width:        img.Width,
			Height:       img.Height,
			Size:         img.Size,
			UploadedAt:   img.UploadedAt,
			DeleteURL:    imagesPath + url.PathEscape(img.Filename) + "/delete/",
		})
	}
	p := a.page(c, "Images", "images", views.Crumb{Label: "Images"})
	return Render(c, views.Layout(p, views.Images(data, p.CSRF)))
}

func (a *App) handleImageUpload(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return redirectWithError(c, imagesPath, "No image file provided")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := a.Images.Upload(c.Request().Context(), f, fh.Filename)
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			return redirectWithError(c, imagesPath, err.Error())
		}
		return err
	}
	return redirectWithFlash(c, imagesPath, "Uploaded "+img.Filename)
}

func (a *App) handleImageDelete(c echo.Context) error {
	if err := a.Images.Delete(c.Request().Context(), c.Param("filename")); err != nil {
		return err
	}
	return redirectWithFlash(c, imagesPath, "Image deleted")
}
