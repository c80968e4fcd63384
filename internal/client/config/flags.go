package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/farebook/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   URL of the remote sheet store
//	-i int      online check interval in seconds
//	-s int      auto sync interval in seconds
//	-d string   path of the local SQLite database
//	-l string   path of the log file
//
// Only the flags above are taken from os.Args (via flagx.FilterArgs) so the
// config file flags do not trip the parser.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-s", "-d", "-l"})

	fs := flag.NewFlagSet("farebook", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "URL of the remote sheet store")
	onlineCheck := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	autoSync := fs.Int("s", int(cfg.AutoSyncInterval.Seconds()), "auto sync interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file path")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if *onlineCheck <= 0 || *autoSync <= 0 {
		return fmt.Errorf("parse flags: intervals must be positive")
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheck) * time.Second
	cfg.AutoSyncInterval = time.Duration(*autoSync) * time.Second
	return nil
}
