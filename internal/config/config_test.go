package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"FLICKR_URL", "FLICKR_MAX_ALBUM_SIZE", "FLICKR_MAX_RESULT_WINDOW",
		"FLICKR_SEARCH_RADIUS_KM", "FLICKR_TIMEOUT", "DATABASE_URL", "SYNC_RESUME_CONCURRENCY",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Flickr.URL != "https://api.flickr.com/services/rest" {
		t.Errorf("expected default flickr URL, got '%s'", cfg.Flickr.URL)
	}
	if cfg.Flickr.MaxAlbumSize != 50 {
		t.Errorf("expected max album size 50, got %d", cfg.Flickr.MaxAlbumSize)
	}
	if cfg.Flickr.MaxResultWindow != 4000 {
		t.Errorf("expected max result window 4000, got %d", cfg.Flickr.MaxResultWindow)
	}
	if cfg.Flickr.SearchRadiusKm != 10 {
		t.Errorf("expected search radius 10, got %f", cfg.Flickr.SearchRadiusKm)
	}
	if cfg.Flickr.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Flickr.Timeout)
	}
	if cfg.Sync.ResumeConcurrency != 4 {
		t.Errorf("expected resume concurrency 4, got %d", cfg.Sync.ResumeConcurrency)
	}
	if cfg.Database.UsePostgres() {
		t.Error("expected SQLite when DATABASE_URL is unset")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLICKR_API_KEY", "secret")
	t.Setenv("FLICKR_MAX_ALBUM_SIZE", "21")
	t.Setenv("FLICKR_TIMEOUT", "5s")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("WEB_PORT", "9090")

	cfg := Load()

	if cfg.Flickr.APIKey != "secret" {
		t.Errorf("expected API key 'secret', got '%s'", cfg.Flickr.APIKey)
	}
	if cfg.Flickr.MaxAlbumSize != 21 {
		t.Errorf("expected max album size 21, got %d", cfg.Flickr.MaxAlbumSize)
	}
	if cfg.Flickr.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Flickr.Timeout)
	}
	if !cfg.Database.UsePostgres() {
		t.Error("expected PostgreSQL when DATABASE_URL is set")
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("FLICKR_MAX_ALBUM_SIZE", "invalid")
	t.Setenv("FLICKR_TIMEOUT", "-3s")
	t.Setenv("FLICKR_REQUESTS_PER_SECOND", "0")

	cfg := Load()

	if cfg.Flickr.MaxAlbumSize != 50 {
		t.Errorf("expected default album size 50 for invalid input, got %d", cfg.Flickr.MaxAlbumSize)
	}
	if cfg.Flickr.Timeout != 30*time.Second {
		t.Errorf("expected default timeout for negative duration, got %s", cfg.Flickr.Timeout)
	}
	if cfg.Flickr.RequestsPerSecond != 2 {
		t.Errorf("expected default rate for zero, got %f", cfg.Flickr.RequestsPerSecond)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got := expandHome("~/.pinalbum/db")
	if got != filepath.Join(home, ".pinalbum/db") {
		t.Errorf("expected path under home, got '%s'", got)
	}

	if got := expandHome("/tmp/db"); got != "/tmp/db" {
		t.Errorf("expected absolute path unchanged, got '%s'", got)
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://maps.example.com, ,https://pins.example.com")

	cfg := Load()

	if len(cfg.Web.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.Web.AllowedOrigins)
	}
	if cfg.Web.AllowedOrigins[1] != "https://pins.example.com" {
		t.Errorf("expected trimmed second origin, got '%s'", cfg.Web.AllowedOrigins[1])
	}
}
