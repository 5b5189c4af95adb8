package client

import (
	"fmt"
	"os"
	"testing"

	"github.com/caarlos0/env/v11"

	"github.com/gospellibrary/sdk-go/types"
)

// LoadConfig loads configuration from GOSPELLIBRARY_* environment variables
// and fills the rest with defaults:
//   - GOSPELLIBRARY_BASE_URL: CDN root (default: types.DefaultBaseURL)
//   - GOSPELLIBRARY_SCHEMA_VERSION: remote layout version (default: v4)
//   - GOSPELLIBRARY_LANGUAGE: ISO 639-3 catalog language (default: eng)
//   - GOSPELLIBRARY_CACHE_PATH: catalog cache root (default: user cache dir)
//   - GOSPELLIBRARY_TIMEOUT, GOSPELLIBRARY_MAX_RETRIES,
//     GOSPELLIBRARY_REQUESTS_PER_SECOND, GOSPELLIBRARY_USER_AGENT
func LoadConfig() (types.Config, error) {
	var cfg types.Config
	if err := env.Parse(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg.WithDefaults(), nil
}

// RequireLive skips the test unless live CDN tests are enabled with
// GOSPELLIBRARY_LIVE=1 and the test is not running in short mode.
func RequireLive(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping live test in short mode")
	}

	if getEnvOrDefault("GOSPELLIBRARY_LIVE", "") != "1" {
		t.Skip("GOSPELLIBRARY_LIVE not set")
	}
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultValue
}
