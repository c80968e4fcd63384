package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/farebook/internal/flagx"
	"github.com/joho/godotenv"
)

// Environment variables read by parseEnv.
const (
	EnvAddr          = "FAREBOOK_ADDR"
	EnvDatabaseDSN   = "FAREBOOK_DATABASE_DSN"
	EnvSecretKey     = "FAREBOOK_SECRET_KEY"
	EnvTokenValidity = "FAREBOOK_TOKEN_VALIDITY"
	EnvAdminUser     = "FAREBOOK_ADMIN_USER"
	EnvAdminPassword = "FAREBOOK_ADMIN_PASSWORD"
)

// parseEnv overlays cfg with FAREBOOK_* variables. When -e or -env names a
// dotenv file it is loaded first; variables already set in the process win.
func parseEnv(cfg *Config) error {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	setString(&cfg.EndpointAddr, os.Getenv(EnvAddr))
	setString(&cfg.DatabaseDSN, os.Getenv(EnvDatabaseDSN))
	setString(&cfg.SecretKey, os.Getenv(EnvSecretKey))
	setString(&cfg.AdminUser, os.Getenv(EnvAdminUser))
	setString(&cfg.AdminPassword, os.Getenv(EnvAdminPassword))

	if v := os.Getenv(EnvTokenValidity); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("%s: invalid duration %q", EnvTokenValidity, v)
		}
		cfg.TokenValidityDuration = d
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
