package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Flickr   FlickrConfig   `yaml:"flickr"`
	Download DownloadConfig `yaml:"download"`
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Web      WebConfig      `yaml:"web"`
}

type FlickrConfig struct {
	URL               string        `yaml:"url"`
	APIKey            string        `yaml:"-"`
	SearchRadiusKm    float64       `yaml:"search_radius_km"`
	MaxAlbumSize      int           `yaml:"max_album_size"`    // photos kept per album
	MaxResultWindow   int           `yaml:"max_result_window"` // deepest result reachable through paging
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type DownloadConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxPayloadBytes int64         `yaml:"max_payload_bytes"`
}

type DatabaseConfig struct {
	URL          string `yaml:"-"` // PostgreSQL connection URL; SQLite is used when empty
	SQLitePath   string `yaml:"sqlite_path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type SyncConfig struct {
	ResumeConcurrency int `yaml:"resume_concurrency"` // albums resumed in parallel on startup
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // extra CORS origins; localhost is always allowed
}

// UsePostgres reports whether a PostgreSQL URL is configured.
func (c *DatabaseConfig) UsePostgres() bool {
	return c.URL != ""
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a positive Go duration such as "15s", falling back to defaultVal.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envString returns the env var or defaultVal when unset.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func Load() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	cfg.Flickr.URL = envString("FLICKR_URL", cfg.Flickr.URL)
	cfg.Flickr.APIKey = os.Getenv("FLICKR_API_KEY")
	cfg.Flickr.SearchRadiusKm = envFloat("FLICKR_SEARCH_RADIUS_KM", cfg.Flickr.SearchRadiusKm)
	cfg.Flickr.MaxAlbumSize = envInt("FLICKR_MAX_ALBUM_SIZE", cfg.Flickr.MaxAlbumSize)
	cfg.Flickr.MaxResultWindow = envInt("FLICKR_MAX_RESULT_WINDOW", cfg.Flickr.MaxResultWindow)
	cfg.Flickr.Timeout = envDuration("FLICKR_TIMEOUT", cfg.Flickr.Timeout)
	cfg.Flickr.RequestsPerSecond = envFloat("FLICKR_REQUESTS_PER_SECOND", cfg.Flickr.RequestsPerSecond)

	cfg.Download.Timeout = envDuration("DOWNLOAD_TIMEOUT", cfg.Download.Timeout)
	cfg.Download.MaxPayloadBytes = int64(envInt("DOWNLOAD_MAX_PAYLOAD_BYTES", int(cfg.Download.MaxPayloadBytes)))

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Database.SQLitePath = expandHome(envString("SQLITE_PATH", cfg.Database.SQLitePath))
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Sync.ResumeConcurrency = envInt("SYNC_RESUME_CONCURRENCY", cfg.Sync.ResumeConcurrency)

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	if v := os.Getenv("WEB_ALLOWED_ORIGINS"); v != "" {
		cfg.Web.AllowedOrigins = splitList(v)
	}

	return &cfg
}
