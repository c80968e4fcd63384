// Package httpapi exposes the sheet services over the single-endpoint HTTP
// protocol the farebook client speaks: GET /exec?action=... for reads and
// POST /exec with a JSON body for writes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/farebook/internal/dbx"
	"github.com/dmitrijs2005/farebook/internal/logging"
	"github.com/dmitrijs2005/farebook/internal/server/models"
	"github.com/gin-gonic/gin"
)

// SheetStore is the subset of services.SheetService used by the handlers.
type SheetStore interface {
	List(ctx context.Context, sheet string) ([]json.RawMessage, error)
	Add(ctx context.Context, sheet string, fields map[string]json.RawMessage) (*models.Row, error)
	Update(ctx context.Context, sheet string, entryID int64, updated map[string]json.RawMessage) (*models.Row, error)
	Delete(ctx context.Context, sheet string, entryID int64) error
}

// Authenticator is the subset of services.UserService used by the handlers.
type Authenticator interface {
	Login(ctx context.Context, userName, password string) (string, error)
	VerifyToken(token string) (string, error)
}

type Server struct {
	address string
	sheets  SheetStore
	users   Authenticator
	// db is nil when the server keeps data in memory.
	db     dbx.Pinger
	logger logging.Logger
	router *gin.Engine
}

func NewServer(address string, l logging.Logger, ss SheetStore, us Authenticator, db dbx.Pinger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		address: address,
		sheets:  ss,
		users:   us,
		db:      db,
		logger:  l.With("module", "http_server"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())
	r.GET("/healthz", s.health)

	exec := r.Group("/exec", s.resolveAction(), s.requireToken())
	exec.GET("", s.exec)
	exec.POST("", s.exec)

	s.router = r
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then waits up to shutdownTimeout for
// in-flight requests.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
