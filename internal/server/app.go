// Package server wires the sheet server together: storage (PostgreSQL or
// memory), services, the HTTP endpoint and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/farebook/internal/dbx"
	"github.com/dmitrijs2005/farebook/internal/logging"
	"github.com/dmitrijs2005/farebook/internal/server/config"
	"github.com/dmitrijs2005/farebook/internal/server/httpapi"
	"github.com/dmitrijs2005/farebook/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/farebook/internal/server/services"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	userService  *services.UserService
	sheetService *services.SheetService
}

// openPostgres is a seam for tests.
var openPostgres = repomanager.OpenPostgres

// NewApp opens storage and builds the services. An empty DatabaseDSN keeps
// all rows in process memory.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewJSONLogger(os.Stdout, slog.LevelInfo)
	}

	var (
		db *sql.DB
		rm repomanager.RepositoryManager
	)
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "no database DSN, rows are kept in memory")
		rm = repomanager.NewMemoryRepositoryManager()
	} else {
		var err error
		db, err = openPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		rm = repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("db migration error: %w", err)
		}
	}

	us := services.NewUserService(db, rm, c, logger)
	if c.AdminUser != "" {
		if err := us.EnsureUser(ctx, c.AdminUser, c.AdminPassword); err != nil {
			if db != nil {
				db.Close()
			}
			return nil, err
		}
	}
	ss := services.NewSheetService(db, rm, logger)

	return &App{config: c, logger: logger, db: db, userService: us, sheetService: ss}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) pinger() dbx.Pinger {
	if app.db == nil {
		return nil
	}
	return app.db
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddr, app.logger, app.sheetService, app.userService, app.pinger())
	if err := s.Run(ctx, app.config.ShutdownTimeout); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "close db", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
