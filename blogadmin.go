// Package blogadmin is a blog content administration server built with Go,
// Echo and templ. It serves a session-authenticated admin dashboard and a
// token-authenticated REST API over one SQLite content store of posts,
// categories, tags and uploaded images.
package blogadmin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin/activity"
)

// App is the central blogadmin application. It wires together the stores,
// services, handlers and middleware.
type App struct {
	Config Config
	Echo   *echo.Echo
	Log    *zap.Logger

	Store      *Store
	Activity   *activity.Store
	Posts      *PostService
	Categories *TermService
	Tags       *TermService
	Images     *ImageService
	Auth       *AuthService

	loginLimiter *LoginLimiter
	imageStorage ImageStorage
	customRoutes []func(*App)
	stopCleanup  func()
}

// New creates an App with the given configuration. Call Setup before
// serving.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Log:    zap.NewNop(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup opens the databases, builds the services, bootstraps the admin
// account and registers middleware and routes.
func (a *App) Setup(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return err
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("blogadmin: init store: %w", err)
	}
	a.Store = store

	act, err := activity.NewStore(a.Config.ActivityDatabasePath, a.Log.Named("activity"))
	if err != nil {
		return fmt.Errorf("blogadmin: init activity log: %w", err)
	}
	a.Activity = act

	if a.imageStorage == nil {
		if a.imageStorage, err = a.newImageStorage(ctx); err != nil {
			return fmt.Errorf("blogadmin: init image storage: %w", err)
		}
	}

	audit := NewAuditor(a.Activity, a.Log)
	ttl := a.Config.ListCacheTTL
	a.Images = NewImageService(a.Store, a.imageStorage, audit, a.Config.Upload.MaxWidth, a.Config.Upload.MaxSize)
	a.Posts = NewPostService(a.Store, NewContentPipeline(a.Images), audit, ttl)
	a.Categories = NewTermService(CategoryKind, a.Store, audit, ttl, a.Posts.Invalidate)
	a.Tags = NewTermService(TagKind, a.Store, audit, ttl, a.Posts.Invalidate)
	a.Auth = NewAuthService(a.Store, a.Config.JWTSecret, a.Config.TokenTTL, audit)

	created, err := a.Auth.EnsureAdmin(ctx, a.Config.AdminEmail, a.Config.AdminName, a.Config.AdminPassword)
	if err != nil {
		return fmt.Errorf("blogadmin: %w", err)
	}
	if created {
		a.Log.Info("created admin account", zap.String("email", a.Config.AdminEmail))
	}

	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.stopCleanup = a.Activity.StartCleanupScheduler(a.Config.ActivityRetentionDays, 24*time.Hour)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) newImageStorage(ctx context.Context) (ImageStorage, error) {
	if a.Config.ObjectStore.Enabled() {
		a.Log.Info("storing images in object storage",
			zap.String("endpoint", a.Config.ObjectStore.Endpoint),
			zap.String("bucket", a.Config.ObjectStore.Bucket))
		return NewMinioImageStorage(ctx, a.Config.ObjectStore)
	}
	return NewLocalImageStorage(a.Config.Upload.Dir, a.Config.Upload.BaseURL), nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		a.Log.Info("server listening", zap.String("addr", a.Config.Addr))
		errc <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Log.Info("shutting down")
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Dashboard assets ship with the binary; everything else under /public
	// comes from the static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS)))
	e.GET("/public/dashboard.js", echo.WrapHandler(embeddedHandler))
	e.GET("/public/dashboard.css", echo.WrapHandler(embeddedHandler))

	if local, ok := a.imageStorage.(*LocalImageStorage); ok && strings.HasPrefix(local.BaseURL, "/") {
		e.Static(local.BaseURL, local.Dir)
	}
	e.Static("/public", a.Config.StaticDir)

	// Public feeds
	e.GET("/", handleRootRedirect)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	// Dashboard
	e.GET("/login/", a.handleLoginPage)
	e.POST("/login/", a.handleLogin)
	e.POST("/logout/", a.handleLogout)

	sess := a.requireSession
	e.GET("/dashboard/", a.handleDashboardHome, sess)

	e.GET("/dashboard/post/", a.handlePostList, sess)
	e.GET("/dashboard/post/list/", listAlias("/dashboard/post/"), sess)
	e.GET("/dashboard/post/create/", a.handlePostNew, sess)
	e.POST("/dashboard/post/create/", a.handlePostCreate, sess)
	e.POST("/dashboard/post/preview/", a.handlePostPreview, sess)
	e.POST("/dashboard/post/delete/", a.handlePostBulkDelete, sess)
	e.GET("/dashboard/post/:slug/", a.handlePostEdit, sess)
	e.POST("/dashboard/post/:slug/", a.handlePostUpdate, sess)
	e.POST("/dashboard/post/:slug/delete/", a.handlePostDelete, sess)

	for _, svc := range []*TermService{a.Categories, a.Tags} {
		h := termPages{app: a, svc: svc}
		base := "/dashboard/" + svc.Kind.Singular
		e.GET(base+"/", h.list, sess)
		e.GET(base+"/list/", listAlias(base+"/"), sess)
		e.GET(base+"/create/", h.new, sess)
		e.POST(base+"/create/", h.create, sess)
		e.POST(base+"/delete/", h.bulkDelete, sess)
		e.GET(base+"/:slug/", h.edit, sess)
		e.POST(base+"/:slug/", h.update, sess)
		e.POST(base+"/:slug/delete/", h.delete, sess)
	}

	e.GET("/dashboard/images/", a.handleImageList, sess)
	e.POST("/dashboard/images/upload/", a.handleImageUpload, sess)
	e.POST("/dashboard/images/:filename/delete/", a.handleImageDelete, sess)

	// REST API
	api := e.Group("/api")
	api.POST("/auth/login", a.apiLogin)
	api.GET("/auth/validate", a.apiValidate)

	tok := a.requireToken
	api.GET("/posts", a.apiListPosts, tok)
	api.GET("/posts/check-unique", a.apiCheckUniquePost, tok)
	api.GET("/posts/:slug", a.apiGetPost, tok)
	api.POST("/posts", a.apiCreatePost, tok)
	api.PUT("/posts/:id", a.apiUpdatePost, tok)
	api.DELETE("/posts/:id", a.apiDeletePost, tok)
	api.DELETE("/posts", a.apiDeletePosts, tok)

	for _, svc := range []*TermService{a.Categories, a.Tags} {
		h := termAPI{svc: svc}
		base := "/" + svc.Kind.Plural
		api.GET(base, h.list, tok)
		api.GET(base+"/check-unique", h.checkUnique, tok)
		api.GET(base+"/:slug", h.get, tok)
		api.POST(base, h.create, tok)
		api.PUT(base+"/:id", h.update, tok)
		api.DELETE(base+"/:id", h.delete, tok)
		api.DELETE(base, h.deleteMany, tok)
	}

	api.POST("/uploads/image", a.apiUploadImage, tok)
}

// Close stops background work and closes the databases.
func (a *App) Close() error {
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Activity != nil {
		errs = append(errs, a.Activity.Close())
	}
	return errors.Join(errs...)
}
