// Package config loads runtime configuration for the farebook client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   URL of the remote sheet store
//	-i int      online status check interval (seconds)
//	-s int      auto sync interval (seconds)
//	-d string   local database path
//	-l string   log file path
//
// # JSON schema
//
//	{
//	  "server_url": "https://script.example.com/exec",
//	  "online_check_interval": "3s",
//	  "auto_sync_interval": "5m",
//	  "pending_sync_delay": "500ms",
//	  "database_path": "/var/lib/farebook/farebook.db",
//	  "kafka_brokers": ["localhost:9092"],
//	  "s3_bucket": "farebook-backups",
//	  "backup_passphrase": "change-me"
//	}
package config
