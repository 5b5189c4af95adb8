// Package types defines common types used across the SDK.
package types

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultBaseURL is the production content CDN.
const DefaultBaseURL = "https://edge.ldscdn.org/mobile/gospelstudy/production/"

// DefaultSchemaVersion is the remote document and database layout version.
const DefaultSchemaVersion = "v4"

// DefaultLanguageCode is the ISO 639-3 code used when none is given.
const DefaultLanguageCode = "eng"

// DefaultTimeout is applied to every HTTP request made by a Session.
const DefaultTimeout = 60 * time.Second

// DefaultMaxRetries is the number of retries for transient HTTP failures.
const DefaultMaxRetries = 3

// DefaultUserAgent identifies the SDK to the CDN.
const DefaultUserAgent = "gospellibrary-sdk-go"

// Config contains configuration for a catalog Client.
//
// Zero values are replaced by defaults in WithDefaults; environment variables
// are read by client.LoadConfig.
type Config struct {
	// BaseURL is the CDN root every document path is resolved against.
	BaseURL string `env:"GOSPELLIBRARY_BASE_URL"`

	// SchemaVersion namespaces the remote layout (e.g. "v4").
	SchemaVersion string `env:"GOSPELLIBRARY_SCHEMA_VERSION"`

	// LanguageCode is the ISO 639-3 catalog language (e.g. "eng").
	LanguageCode string `env:"GOSPELLIBRARY_LANGUAGE"`

	// CachePath is the root directory for decompressed catalogs.
	CachePath string `env:"GOSPELLIBRARY_CACHE_PATH"`

	Timeout           time.Duration `env:"GOSPELLIBRARY_TIMEOUT"`
	MaxRetries        int           `env:"GOSPELLIBRARY_MAX_RETRIES"`
	RequestsPerSecond float64       `env:"GOSPELLIBRARY_REQUESTS_PER_SECOND"`
	UserAgent         string        `env:"GOSPELLIBRARY_USER_AGENT"`

	// Logger receives SDK diagnostics. Nil discards them.
	Logger *slog.Logger `env:"-"`
}

// WithDefaults returns a copy of the config with empty fields filled in.
func (c Config) WithDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.SchemaVersion == "" {
		c.SchemaVersion = DefaultSchemaVersion
	}
	if c.LanguageCode == "" {
		c.LanguageCode = DefaultLanguageCode
	}
	if c.CachePath == "" {
		c.CachePath = DefaultCachePath()
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// DefaultCachePath returns the per-user cache directory for catalogs, falling
// back to the system temp directory when no user cache dir is known.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "gospellibrary")
}
