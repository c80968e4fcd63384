package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/farebook/internal/buildinfo"
	"github.com/dmitrijs2005/farebook/internal/client/cli"
	"github.com/dmitrijs2005/farebook/internal/client/client"
	"github.com/dmitrijs2005/farebook/internal/client/config"
	"github.com/dmitrijs2005/farebook/internal/client/events"
	"github.com/dmitrijs2005/farebook/internal/client/events/kafka"
	"github.com/dmitrijs2005/farebook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/farebook/internal/client/services"
	"github.com/dmitrijs2005/farebook/internal/client/storage"
	"github.com/dmitrijs2005/farebook/internal/filex"
	"github.com/dmitrijs2005/farebook/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := filex.EnsureParentDirs(cfg.DatabasePath, cfg.LogFile); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	logger, logCloser := logging.NewFileLogger(logging.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 30,
		Level:      slog.LevelInfo,
	})
	defer logCloser.Close()

	db, err := client.OpenDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer db.Close()

	store := storage.NewLocalStore(metadata.NewSQLiteRepository(db), logger)

	apiClient, err := client.NewHTTPClient(cfg.ServerURL, cfg.RemoteTimeout)
	if err != nil {
		log.Fatalf("client: %v", err)
	}
	defer apiClient.Close()

	bus := events.NewBus()
	if len(cfg.KafkaBrokers) > 0 {
		fwd := kafka.NewForwarder(kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic), "farebook-cli", logger)
		detach := fwd.Attach(bus)
		defer func() {
			detach()
			fwd.Close()
		}()
	}

	fares := services.NewFareService(apiClient, store, bus, logger, services.Options{
		PendingSyncDelay:    cfg.PendingSyncDelay,
		AutoSyncInterval:    cfg.AutoSyncInterval,
		OnlineCheckInterval: cfg.OnlineCheckInterval,
		RemoteTimeout:       cfg.RemoteTimeout,
	})
	auth := services.NewAuthService(apiClient, store, logger)
	backup := services.NewBackupService(services.S3Settings{
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		BaseEndpoint: cfg.S3BaseEndpoint,
		Bucket:       cfg.S3Bucket,
		Passphrase:   cfg.BackupPassphrase,
	}, fares)

	logger.Info(ctx, "client starting", "server", cfg.ServerURL, "version", buildinfo.Version)
	cli.NewApp(fares, auth, backup, logger).Run(ctx)
}
