package server

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/farebook/internal/logging"
	"github.com/dmitrijs2005/farebook/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddr = freeAddr(t)
	c.ShutdownTimeout = time.Second
	return c
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestNewApp_MemoryStorageSeedsAdmin(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, testConfig(t), logging.Nop())
	require.NoError(t, err)
	assert.Nil(t, app.db)
	assert.Nil(t, app.pinger())

	token, err := app.userService.Login(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestNewApp_DatabaseErrors(t *testing.T) {
	orig := openPostgres
	t.Cleanup(func() { openPostgres = orig })

	openPostgres = func(ctx context.Context, dsn string) (*sql.DB, error) {
		return nil, errors.New("refused")
	}
	c := testConfig(t)
	c.DatabaseDSN = "postgres://nowhere"

	_, err := NewApp(context.Background(), c, logging.Nop())
	require.ErrorContains(t, err, "db init error")
}

func TestNewApp_MigrationError(t *testing.T) {
	orig := openPostgres
	t.Cleanup(func() { openPostgres = orig })

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	openPostgres = func(ctx context.Context, dsn string) (*sql.DB, error) { return db, nil }

	c := testConfig(t)
	c.DatabaseDSN = "postgres://db"

	// goose issues its own queries; none are expected so migration fails.
	_, err = NewApp(context.Background(), c, logging.Nop())
	require.ErrorContains(t, err, "db migration error")
}

func TestApp_RunServesUntilCancelled(t *testing.T) {
	c := testConfig(t)
	app, err := NewApp(context.Background(), c, logging.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + c.EndpointAddr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}
