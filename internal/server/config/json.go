package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/farebook/internal/flagx"
	"github.com/dmitrijs2005/farebook/internal/timex"
)

// JsonConfig is a DTO used only for reading JSON configuration files.
// Durations use timex.Duration so both "24h" and integer nanoseconds parse.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	AdminUser             string         `json:"admin_user"`
	AdminPassword         string         `json:"admin_password"`
	ShutdownTimeout       timex.Duration `json:"shutdown_timeout"`
}

// parseJson overlays cfg with the JSON file named by -c or -config.
// Keys that are absent or empty leave cfg untouched.
func parseJson(cfg *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	setString(&cfg.EndpointAddr, jc.EndpointAddr)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.SecretKey, jc.SecretKey)
	setString(&cfg.AdminUser, jc.AdminUser)
	setString(&cfg.AdminPassword, jc.AdminPassword)
	if jc.TokenValidityDuration.Duration > 0 {
		cfg.TokenValidityDuration = jc.TokenValidityDuration.Duration
	}
	if jc.ShutdownTimeout.Duration > 0 {
		cfg.ShutdownTimeout = jc.ShutdownTimeout.Duration
	}
	return nil
}
