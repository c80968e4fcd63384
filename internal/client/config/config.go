package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the farebook client.
//
// Intervals are time.Duration values; flags accept whole seconds.
type Config struct {
	ServerURL           string
	OnlineCheckInterval time.Duration
	AutoSyncInterval    time.Duration
	PendingSyncDelay    time.Duration
	RemoteTimeout       time.Duration

	DatabasePath string
	LogFile      string

	// Event forwarding is disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// Backups are disabled when S3Bucket is empty.
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string
	S3Bucket       string

	// BackupPassphrase, when set, encrypts uploaded snapshots.
	BackupPassphrase string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080/exec"
	c.OnlineCheckInterval = 3 * time.Second
	c.AutoSyncInterval = 5 * time.Minute
	c.PendingSyncDelay = 500 * time.Millisecond
	c.RemoteTimeout = 30 * time.Second

	dir := dataDir()
	c.DatabasePath = filepath.Join(dir, "farebook.db")
	c.LogFile = filepath.Join(dir, "farebook.log")

	c.KafkaTopic = "farebook.events"
	c.S3Region = "us-east-1"
}

func dataDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "farebook")
	}
	return "."
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
