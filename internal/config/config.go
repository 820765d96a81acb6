// Package config provides configuration loading and validation from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel          string // debug, info, warn, error
	ListenAddr        string // Server listen address (e.g., ":8080")
	MetricsListenAddr string // Metrics listener address (e.g., "localhost:9090")
	DatabasePath      string // SQLite database path

	// UpstreamURL is the base URL of the DNS provider API requests are
	// forwarded to. Empty means the built-in default.
	UpstreamURL string
	// UpstreamAPIKey is the master credential for the upstream DNS API.
	// Required: without it no forwarded request can succeed.
	UpstreamAPIKey string
	// AdminAPIKey protects the administrative mutation endpoints.
	AdminAPIKey string

	// TrustProxyHeaders takes client addresses from X-Forwarded-For /
	// X-Real-Ip for IP allow-list checks. Enable only behind a trusted
	// reverse proxy; a direct client can forge those headers.
	TrustProxyHeaders bool
	// VerboseDenials includes the verdict reason in denial response bodies.
	VerboseDenials bool
}

// Load parses configuration from a .env file (if present) and environment
// variables. All optional settings have deployment-friendly defaults.
func Load() *Config {
	loadDotEnv()

	return &Config{
		LogLevel:          env.GetString("LOG_LEVEL", "info"),
		ListenAddr:        env.GetString("LISTEN_ADDR", ":8080"),
		MetricsListenAddr: env.GetString("METRICS_LISTEN_ADDR", "localhost:9090"),
		DatabasePath:      env.GetString("DATABASE_PATH", "/data/zonegate.db"),
		UpstreamURL:       env.GetString("UPSTREAM_URL", ""),
		UpstreamAPIKey:    env.GetString("UPSTREAM_API_KEY", ""),
		AdminAPIKey:       env.GetString("ADMIN_API_KEY", ""),
		TrustProxyHeaders: env.GetBool("TRUST_PROXY_HEADERS", false),
		VerboseDenials:    env.GetBool("VERBOSE_DENIALS", false),
	}
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if c.UpstreamAPIKey == "" {
		return fmt.Errorf("UPSTREAM_API_KEY environment variable is required")
	}
	if c.AdminAPIKey == "" {
		return fmt.Errorf("ADMIN_API_KEY environment variable is required")
	}
	return nil
}

// loadDotEnv searches for a .env file from the current directory up to the
// filesystem root and loads the first one found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
