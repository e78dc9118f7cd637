package blogadmin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "Blog", cfg.Name)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "data/blog.db", cfg.DatabasePath)
	assert.Equal(t, "public/uploads", cfg.Upload.Dir)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, time.Minute, cfg.ListCacheTTL)
	assert.Equal(t, 90, cfg.ActivityRetentionDays)
	assert.False(t, cfg.ObjectStore.Enabled())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
name: Notes
site_url: https://notes.example.com
session_secret: s3cret
jwt_secret: jwt
token_ttl: 2h
upload:
  max_width: 800
object_store:
  endpoint: localhost:9000
  access_key: key
  secret_key: secret
  bucket: images
`)
	t.Setenv("SITE_NAME", "From Env")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("LIST_CACHE_TTL", "30s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "From Env", cfg.Name)
	assert.Equal(t, "https://notes.example.com", cfg.SiteURL)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.ListCacheTTL)
	assert.Equal(t, 800, cfg.Upload.MaxWidth)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.ObjectStore.Enabled())
	assert.Equal(t, "http://localhost:9000/images", cfg.ObjectStore.objectBaseURL())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = LoadConfig(writeConfig(t, "name: [unterminated"))
	assert.ErrorContains(t, err, "parse config")

	t.Setenv("UPLOAD_MAX_SIZE", "lots")
	_, err = LoadConfig("")
	assert.ErrorContains(t, err, "invalid UPLOAD_MAX_SIZE")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no session secret", Config{JWTSecret: "j"}, "SessionSecret is required"},
		{"no jwt secret", Config{SessionSecret: "s"}, "JWTSecret is required"},
		{"weak admin password", Config{SessionSecret: "s", JWTSecret: "j", AdminEmail: "a@b.c", AdminPassword: "123"}, "AdminPassword must be at least 6"},
		{"object store scheme", Config{SessionSecret: "s", JWTSecret: "j", ObjectStore: ObjectStoreConfig{
			Endpoint: "https://s3.example.com", AccessKey: "k", SecretKey: "s", Bucket: "b",
		}}, "must not include scheme"},
		{"object store bucket", Config{SessionSecret: "s", JWTSecret: "j", ObjectStore: ObjectStoreConfig{
			Endpoint: "s3.example.com", AccessKey: "k", SecretKey: "s",
		}}, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.cfg.Validate(), tt.want)
		})
	}
	assert.NoError(t, Config{SessionSecret: "s", JWTSecret: "j"}.Validate())
}
