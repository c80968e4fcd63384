package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/events"
	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/client/services"
	"github.com/dmitrijs2005/farebook/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// fareEngine is the part of services.FareService the CLI drives.
type fareEngine interface {
	Bus() *events.Bus
	Run(ctx context.Context)
	Wait()
	InitializeData(ctx context.Context) []models.Entry
	Entries(ctx context.Context) []models.Entry
	CashBook(ctx context.Context) []models.CashBookEntry
	AddFareEntry(ctx context.Context, data models.Entry) (*services.WriteResult, error)
	UpdateFareEntry(ctx context.Context, entryID int64, patch models.Patch) (*services.WriteResult, error)
	DeleteFareEntry(ctx context.Context, entryID int64) ([]models.Entry, error)
	ForceSync(ctx context.Context) error
	GetSyncStatus(ctx context.Context) models.SyncStatus
}

type authenticator interface {
	Login(ctx context.Context, username, password string) (*models.UserSession, error)
	Logout(ctx context.Context)
	RestoreSession(ctx context.Context) *models.UserSession
}

type uploader interface {
	Enabled() bool
	Upload(ctx context.Context, username string) (string, error)
}

type App struct {
	fares  fareEngine
	auth   authenticator
	backup uploader
	log    logging.Logger
	now    func() time.Time

	reader *bufio.Reader
	out    io.Writer

	mu       sync.Mutex
	userName string
	Mode     Mode
	pending  int
}

func NewApp(fares *services.FareService, auth *services.AuthService, backup *services.BackupService, log logging.Logger) *App {
	return newApp(fares, auth, backup, log, os.Stdin, os.Stdout)
}

func newApp(fares fareEngine, auth authenticator, backup uploader, log logging.Logger, in io.Reader, out io.Writer) *App {
	if log == nil {
		log = logging.Nop()
	}
	return &App{
		fares:  fares,
		auth:   auth,
		backup: backup,
		log:    log.With("component", "cli"),
		now:    time.Now,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// setMode records the connectivity mode and reports a change once.
func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		a.printf("Switched to %s mode\n", mode)
	}
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

func (a *App) user() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userName
}

func (a *App) isLoggedIn() bool {
	return a.user() != ""
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if a.Mode != "" {
		s += string(a.Mode)
	}
	if a.pending > 0 {
		s += fmt.Sprintf(" %d pending", a.pending)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// onEvent follows engine status changes. It runs on publisher goroutines.
func (a *App) onEvent(ev events.Event) {
	if ev.Kind != events.SyncStatusChanged || ev.Status == nil {
		return
	}
	st := ev.Status

	if st.IsOnline {
		a.setMode(ModeOnline)
	} else {
		a.setMode(ModeOffline)
	}

	a.mu.Lock()
	was := a.pending
	a.pending = st.PendingSync + st.PendingDelete
	now := a.pending
	a.mu.Unlock()

	if was > 0 && now == 0 && !st.SyncInProgress {
		a.printf("All local changes are synced\n")
	}
}

// Run restores the session, loads local data, starts the engine and blocks
// in the REPL until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	a.printf("Welcome to farebook CLI (type 'help' for commands)\n")

	unsubscribe := a.fares.Bus().Subscribe(a.onEvent)
	defer unsubscribe()

	if u := a.auth.RestoreSession(ctx); u != nil {
		a.setUser(u.Username)
		a.log.Info(ctx, "session restored", "username", u.Username)
	} else if err := a.Login(ctx); err != nil {
		a.printf("Login failed: %v\n", err)
	}

	entries := a.fares.InitializeData(ctx)
	st := a.fares.GetSyncStatus(ctx)
	a.onEvent(events.Event{Kind: events.SyncStatusChanged, Status: &st})
	a.printf("%d entries loaded\n", len(entries))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.fares.Run(runCtx)
	}()

	runREPL(ctx, a, a.getStatus, a.reader)

	cancel()
	<-done
	a.fares.Wait()
}
