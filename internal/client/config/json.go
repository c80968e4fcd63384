package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/farebook/internal/flagx"
	"github.com/dmitrijs2005/farebook/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals use
// timex.Duration so they can be strings like "3s" or integer nanoseconds.
type JsonConfig struct {
	ServerURL           string         `json:"server_url"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	AutoSyncInterval    timex.Duration `json:"auto_sync_interval"`
	PendingSyncDelay    timex.Duration `json:"pending_sync_delay"`
	RemoteTimeout       timex.Duration `json:"remote_timeout"`
	DatabasePath        string         `json:"database_path"`
	LogFile             string         `json:"log_file"`
	KafkaBrokers        []string       `json:"kafka_brokers"`
	KafkaTopic          string         `json:"kafka_topic"`
	S3Region            string         `json:"s3_region"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	S3Bucket            string         `json:"s3_bucket"`
	BackupPassphrase    string         `json:"backup_passphrase"`
}

// parseJson overlays cfg with the JSON file named by -c or -config. Keys that
// are absent or empty in the file leave cfg untouched.
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

	setString(&cfg.ServerURL, jc.ServerURL)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.AutoSyncInterval, jc.AutoSyncInterval)
	setDuration(&cfg.PendingSyncDelay, jc.PendingSyncDelay)
	setDuration(&cfg.RemoteTimeout, jc.RemoteTimeout)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.LogFile, jc.LogFile)
	if len(jc.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = jc.KafkaBrokers
	}
	setString(&cfg.KafkaTopic, jc.KafkaTopic)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.BackupPassphrase, jc.BackupPassphrase)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
