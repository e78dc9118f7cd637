package blogadmin

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin/paging"
)

// REST API handlers. Errors are returned to httpErrorHandler, which writes
// them as an ErrorResponse.

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type uploadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
}

func bindJSON(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", ErrInvalid)
	}
	return nil
}

// listBody shapes a page of results the way API clients expect it, with
// the items under a resource-specific key.
func listBody[T any](key string, res paging.Response[T]) map[string]any {
	return map[string]any{
		key:            res.Items,
		"totalRecords": res.TotalRecords,
		"totalPages":   res.TotalPages,
		"currentPage":  res.CurrentPage,
	}
}

func (a *App) apiLogin(c echo.Context) error {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	resp, err := a.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		a.loginLimiter.Record(ip)
		a.Log.Info("failed api login", zap.String("email", req.Email), zap.String("ip", ip))
		return err
	}
	a.loginLimiter.Reset(ip)
	return c.JSON(http.StatusOK, resp)
}

func (a *App) apiValidate(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	u, err := a.Auth.UserFromToken(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.Info())
}

// --- Posts ---

func (a *App) apiListPosts(c echo.Context) error {
	req := paging.ParseRequest(c.QueryParams(), PostSchema)
	res, err := a.Posts.List(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listBody("posts", res))
}

func (a *App) apiCheckUniquePost(c echo.Context) error {
	field := c.QueryParam("field")
	if field != "title" && field != "slug" {
		return fmt.Errorf("%w: field must be title or slug", ErrInvalid)
	}
	unique, err := a.Posts.CheckUnique(c.Request().Context(), field, c.QueryParam("value"), c.QueryParam("excludeId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, unique)
}

func (a *App) apiGetPost(c echo.Context) error {
	post, err := a.Posts.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) apiCreatePost(c echo.Context) error {
	var in PostInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	post, err := a.Posts.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

func (a *App) apiUpdatePost(c echo.Context) error {
	var in PostInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	post, err := a.Posts.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) apiDeletePost(c echo.Context) error {
	if err := a.Posts.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) apiDeletePosts(c echo.Context) error {
	var req idsRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := a.Posts.DeleteMany(c.Request().Context(), req.IDs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Categories and tags ---

// termAPI serves the REST endpoints of one taxonomy.
type termAPI struct {
	svc *TermService
}

func (h termAPI) list(c echo.Context) error {
	req := paging.ParseRequest(c.QueryParams(), TermSchema)
	res, err := h.svc.List(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listBody(h.svc.Kind.Plural, res))
}

func (h termAPI) checkUnique(c echo.Context) error {
	field := c.QueryParam("field")
	if field != "name" && field != "slug" {
		return fmt.Errorf("%w: field must be name or slug", ErrInvalid)
	}
	unique, err := h.svc.CheckUnique(c.Request().Context(), field, c.QueryParam("value"), c.QueryParam("excludeId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, unique)
}

func (h termAPI) get(c echo.Context) error {
	t, err := h.svc.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h termAPI) create(c echo.Context) error {
	var in TermInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	t, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h termAPI) update(c echo.Context) error {
	var in TermInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	t, err := h.svc.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h termAPI) delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h termAPI) deleteMany(c echo.Context) error {
	var req idsRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := h.svc.DeleteMany(c.Request().Context(), req.IDs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Uploads ---

func (a *App) apiUploadImage(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return fmt.Errorf("%w: no image file provided", ErrInvalid)
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := a.Images.Upload(c.Request().Context(), f, fh.Filename)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, uploadResponse{
		URL:      img.URL,
		Filename: img.Filename,
		Width:    img.Width,
		Height:   img.Height,
		Size:     img.Size,
	})
}
