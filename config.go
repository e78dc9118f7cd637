package blogadmin

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a blogadmin server.
type Config struct {
	Name        string `yaml:"name"`        // Site name (default "Blog")
	SiteURL     string `yaml:"site_url"`    // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for the RSS feed

	Addr                  string `yaml:"addr"`                    // Listen address (default ":3000")
	StaticDir             string `yaml:"static_dir"`              // User static assets (default "public")
	DatabasePath          string `yaml:"database_path"`           // SQLite path (default "data/blog.db")
	ActivityDatabasePath  string `yaml:"activity_database_path"`  // default "data/activity.db"
	ActivityRetentionDays int    `yaml:"activity_retention_days"` // default 90

	SessionSecret string        `yaml:"session_secret"` // Required: session encryption secret
	JWTSecret     string        `yaml:"jwt_secret"`     // Required: API token signing key
	TokenTTL      time.Duration `yaml:"token_ttl"`      // API token lifetime (default 7 days)
	CookieSecure  bool          `yaml:"cookie_secure"`  // Set true for HTTPS
	CORSOrigins   []string      `yaml:"cors_origins"`   // Origins allowed to call /api

	AdminEmail    string `yaml:"admin_email"` // Bootstrap account, created when no user exists
	AdminName     string `yaml:"admin_name"`
	AdminPassword string `yaml:"admin_password"`

	ListCacheTTL time.Duration `yaml:"list_cache_ttl"` // List cache TTL (default 1m)

	Upload      UploadConfig      `yaml:"upload"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
}

// UploadConfig controls image uploads.
type UploadConfig struct {
	Dir      string `yaml:"dir"`       // Local storage dir (default "<static>/uploads")
	BaseURL  string `yaml:"base_url"`  // URL prefix of local images (default "/public/uploads")
	MaxSize  int64  `yaml:"max_size"`  // Bytes (default 10MB)
	MaxWidth int    `yaml:"max_width"` // Pixels (default 1200)
}

// ObjectStoreConfig selects S3-compatible image storage. Empty Endpoint
// keeps images on the local filesystem.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	PublicURL string `yaml:"public_url"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether object storage is configured.
func (c ObjectStoreConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

func (c ObjectStoreConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// objectBaseURL is the URL prefix under which stored objects are served.
func (c ObjectStoreConfig) objectBaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.Endpoint + "/" + c.Bucket
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.SiteURL == "" {
		c.SiteURL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/blog.db"
	}
	if c.ActivityDatabasePath == "" {
		c.ActivityDatabasePath = "data/activity.db"
	}
	if c.ActivityRetentionDays == 0 {
		c.ActivityRetentionDays = 90
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = defaultTokenTTL
	}
	if c.ListCacheTTL == 0 {
		c.ListCacheTTL = time.Minute
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = c.StaticDir + "/" + uploadsSubdir
	}
	if c.Upload.MaxSize == 0 {
		c.Upload.MaxSize = defaultMaxUploadSize
	}
	if c.Upload.MaxWidth == 0 {
		c.Upload.MaxWidth = defaultMaxImageWidth
	}
	if c.ObjectStore.Region == "" {
		c.ObjectStore.Region = "us-east-1"
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("blogadmin: SessionSecret is required")
	}
	if c.JWTSecret == "" {
		return errors.New("blogadmin: JWTSecret is required")
	}
	if c.AdminEmail != "" && len(c.AdminPassword) < minPasswordLen {
		return fmt.Errorf("blogadmin: AdminPassword must be at least %d characters", minPasswordLen)
	}
	if c.ObjectStore.Enabled() {
		if err := c.ObjectStore.Validate(); err != nil {
			return fmt.Errorf("blogadmin: object store: %w", err)
		}
	}
	return nil
}

// LoadConfig reads .env (if present), then the YAML file at path (if
// path is not empty), then environment overrides, and fills defaults.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("SITE_NAME", &c.Name)
	envString("SITE_URL", &c.SiteURL)
	envString("SITE_DESCRIPTION", &c.Description)
	envString("ADDR", &c.Addr)
	envString("STATIC_DIR", &c.StaticDir)
	envString("DATABASE_PATH", &c.DatabasePath)
	envString("ACTIVITY_DATABASE_PATH", &c.ActivityDatabasePath)
	envString("ADMIN_SESSION_SECRET", &c.SessionSecret)
	envString("JWT_SECRET", &c.JWTSecret)
	envString("ADMIN_EMAIL", &c.AdminEmail)
	envString("ADMIN_NAME", &c.AdminName)
	envString("ADMIN_PASSWORD", &c.AdminPassword)
	envString("UPLOAD_DIR", &c.Upload.Dir)
	envString("UPLOAD_BASE_URL", &c.Upload.BaseURL)
	envString("S3_ENDPOINT", &c.ObjectStore.Endpoint)
	envString("S3_ACCESS_KEY", &c.ObjectStore.AccessKey)
	envString("S3_SECRET_KEY", &c.ObjectStore.SecretKey)
	envString("S3_BUCKET", &c.ObjectStore.Bucket)
	envString("S3_REGION", &c.ObjectStore.Region)
	envString("S3_PUBLIC_URL", &c.ObjectStore.PublicURL)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = FilterEmpty(strings.Split(v, ","))
	}

	var errs []error
	errs = append(errs,
		envBool("COOKIE_SECURE", &c.CookieSecure),
		envBool("S3_USE_SSL", &c.ObjectStore.UseSSL),
		envInt("ACTIVITY_RETENTION_DAYS", &c.ActivityRetentionDays),
		envInt("UPLOAD_MAX_WIDTH", &c.Upload.MaxWidth),
		envInt64("UPLOAD_MAX_SIZE", &c.Upload.MaxSize),
		envDuration("JWT_TTL", &c.TokenTTL),
		envDuration("LIST_CACHE_TTL", &c.ListCacheTTL),
	)
	return errors.Join(errs...)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger replaces the default no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *App) {
		a.Log = log
	}
}

// WithImageStorage overrides the storage backend chosen from Config.
func WithImageStorage(s ImageStorage) Option {
	return func(a *App) {
		a.imageStorage = s
	}
}
