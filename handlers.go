package blogadmin

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin/views"
)

func handleRootRedirect(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/dashboard/")
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Posts.Published(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Posts.Published(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

// httpErrorHandler answers API requests with an ErrorResponse body and
// dashboard requests with an error page.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := NewErrorResponse(err)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		resp = ErrorResponse{Status: he.Code, Message: fmt.Sprint(he.Message)}
		if he.Internal != nil && he.Code >= http.StatusInternalServerError {
			err = he.Internal
		}
	}

	if resp.Status >= http.StatusInternalServerError {
		a.Log.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
	}

	var werr error
	switch {
	case c.Request().Method == http.MethodHead:
		werr = c.NoContent(resp.Status)
	case isAPIPath(c.Request().URL.Path):
		werr = c.JSON(resp.Status, resp)
	case resp.Status == http.StatusNotFound:
		werr = RenderStatus(c, resp.Status, views.NotFound())
	case resp.Status >= http.StatusInternalServerError:
		werr = RenderStatus(c, resp.Status, views.ServerError())
	default:
		werr = RenderStatus(c, resp.Status, views.ErrorPage(resp.Status, resp.Message))
	}
	if werr != nil {
		a.Log.Warn("write error response", zap.Error(werr))
	}
}
