package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays configuration from environment variables, loading a .env
// file first if one is present. Missing variables leave the current values
// untouched.
func parseEnv(config *Config) {
	// .env is optional; real environment variables win over file entries.
	_ = godotenv.Load()

	if v := os.Getenv("HOMEBOARD_ADDR"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("HOMEBOARD_DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("HOMEBOARD_SECRET_KEY"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("HOMEBOARD_TOKEN_VALIDITY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.AccessTokenValidityDuration = d
		}
	}
	if v := os.Getenv("HOMEBOARD_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.RetentionSweepInterval = d
		}
	}
}
