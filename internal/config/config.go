package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment    string
	HTTPPort       string
	DatabaseDriver string // "sqlite" or "postgres"
	DatabasePath   string // sqlite file path
	DatabaseURL    string // postgres DSN
	JWTSecret      string
	GoogleClientID string
	FrontendDir    string
	LogDir         string
}

// Load reads env vars and falls back to defaults so the server can boot with
// zero configuration. The JWT secret has no default outside development.
func Load() (Config, error) {
	cfg := Config{
		Environment:    getEnv("USERHUB_ENV", "development"),
		HTTPPort:       getEnv("USERHUB_HTTP_PORT", "8080"),
		DatabaseDriver: getEnv("USERHUB_DB_DRIVER", "sqlite"),
		DatabasePath:   getEnv("USERHUB_DB_PATH", filepath.Join("data", "userhub.db")),
		DatabaseURL:    os.Getenv("USERHUB_DB_URL"),
		JWTSecret:      os.Getenv("USERHUB_JWT_SECRET"),
		GoogleClientID: os.Getenv("USERHUB_GOOGLE_CLIENT_ID"),
		FrontendDir:    getEnv("USERHUB_FRONTEND_DIR", filepath.Clean(filepath.Join("..", "frontend", "dist"))),
		LogDir:         getEnv("USERHUB_LOG_DIR", filepath.Join("data", "logs")),
	}

	if cfg.JWTSecret == "" {
		if cfg.Environment != "development" {
			return Config{}, fmt.Errorf("USERHUB_JWT_SECRET is required outside development")
		}
		cfg.JWTSecret = "dev-only-secret"
	}

	if cfg.DatabaseDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return Config{}, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}
