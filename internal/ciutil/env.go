package ciutil

import (
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/scry-studio/internal/redact"
)

// Environment variables consulted by the helpers below.
const (
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"

	// EnvTestDatabaseURL points integration tests at an existing database
	// instead of a throwaway container.
	EnvTestDatabaseURL = "SCRY_TEST_DB_URL"
	EnvDatabaseURL     = "DATABASE_URL"
)

// IsCI reports whether the process runs under a CI provider.
func IsCI() bool {
	return os.Getenv(EnvCI) != "" ||
		os.Getenv(EnvGitHubActions) != "" ||
		os.Getenv(EnvGitLabCI) != ""
}

// GetEnvWithFallbacks returns the first non-empty variable of envVars, or
// defaultValue.
func GetEnvWithFallbacks(envVars []string, defaultValue string, logger *slog.Logger) string {
	for _, name := range envVars {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			if logger != nil {
				logger.Debug("using environment variable", "name", name)
			}
			return value
		}
	}
	return defaultValue
}

// TestDatabaseURL returns the database integration tests should use, or ""
// when they should start their own.
func TestDatabaseURL(logger *slog.Logger) string {
	url := GetEnvWithFallbacks([]string{EnvTestDatabaseURL, EnvDatabaseURL}, "", logger)
	if url != "" && logger != nil {
		logger.Info("using external test database", "url", redact.URL(url), "ci", IsCI())
	}
	return url
}
