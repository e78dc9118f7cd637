package blogadmin

import (
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// isPartial reports whether the client asked for a page fragment, as the
// dashboard script does when it refreshes a table in place.
func isPartial(c echo.Context, name string) bool {
	return c.QueryParam("partial") == name
}

// redirectWithFlash redirects to target carrying a one-shot toast message.
func redirectWithFlash(c echo.Context, target, msg string) error {
	return c.Redirect(http.StatusSeeOther, withQuery(target, "msg", msg))
}

// redirectWithError is redirectWithFlash for failures.
func redirectWithError(c echo.Context, target, msg string) error {
	return c.Redirect(http.StatusSeeOther, withQuery(target, "err", msg))
}

func withQuery(target, key, value string) string {
	if value == "" {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
