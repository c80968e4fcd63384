package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/client"
	"github.com/dmitrijs2005/farebook/internal/client/events"
	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/farebook/internal/client/storage"
	"github.com/dmitrijs2005/farebook/internal/logging"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory sheet store with call counters and failure knobs.
type fakeRemote struct {
	client.Client

	mu    sync.Mutex
	rows  map[models.EntryType][]models.Entry
	token string

	pingErr   error
	addErr    error
	updateErr error
	deleteErr error
	listErr   error

	// listGate, when set, blocks List until closed; listStarted is signalled once.
	listGate    chan struct{}
	listStarted chan struct{}
	startOnce   sync.Once

	adds, updates, deletes, lists atomic.Int32
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: map[models.EntryType][]models.Entry{}}
}

func (f *fakeRemote) seed(t models.EntryType, rows ...models.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[t] = append(f.rows[t], rows...)
}

func (f *fakeRemote) find(t models.EntryType, id int64) (models.Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows[t] {
		if e.EntryID == id {
			return e, true
		}
	}
	return models.Entry{}, false
}

func (f *fakeRemote) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeRemote) setPingErr(err error) {
	f.mu.Lock()
	f.pingErr = err
	f.mu.Unlock()
}

func (f *fakeRemote) Add(_ context.Context, t models.EntryType, e models.Entry) error {
	f.adds.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	for i, r := range f.rows[t] {
		if r.EntryID == e.EntryID {
			f.rows[t][i] = e
			return nil
		}
	}
	f.rows[t] = append(f.rows[t], e)
	return nil
}

func (f *fakeRemote) Update(_ context.Context, t models.EntryType, id int64, e models.Entry) error {
	f.updates.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for i, r := range f.rows[t] {
		if r.EntryID == id {
			f.rows[t][i] = e
			return nil
		}
	}
	return client.ErrNotFound
}

func (f *fakeRemote) Delete(_ context.Context, t models.EntryType, id int64) error {
	f.deletes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, r := range f.rows[t] {
		if r.EntryID == id {
			f.rows[t] = append(f.rows[t][:i], f.rows[t][i+1:]...)
			return nil
		}
	}
	return client.ErrNotFound
}

func (f *fakeRemote) List(ctx context.Context, t models.EntryType) ([]models.Entry, error) {
	f.lists.Add(1)
	if f.listStarted != nil {
		f.startOnce.Do(func() { close(f.listStarted) })
	}
	if f.listGate != nil {
		select {
		case <-f.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Entry, len(f.rows[t]))
	copy(out, f.rows[t])
	for i := range out {
		// the remote store knows nothing about local sync flags
		out[i].Synced, out[i].PendingSync, out[i].LastModified = false, false, nil
		out[i].Type = ""
	}
	return out, nil
}

func (f *fakeRemote) Login(_ context.Context, username, password string) (string, error) {
	if password != "secret" {
		return "", client.ErrUnauthorized
	}
	return "token-" + username, nil
}

func (f *fakeRemote) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeRemote) currentToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeRemote) Close() error { return nil }

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	db, err := client.OpenDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewLocalStore(metadata.NewSQLiteRepository(db), logging.Nop())
}

type recorder struct {
	mu    sync.Mutex
	kinds []events.Kind
}

func (r *recorder) handle(ev events.Event) {
	r.mu.Lock()
	r.kinds = append(r.kinds, ev.Kind)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Kind(nil), r.kinds...)
}

type harness struct {
	svc    *FareService
	remote *fakeRemote
	store  *storage.LocalStore
	events *recorder
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()
	remote := newFakeRemote()
	store := newTestStore(t)
	bus := events.NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.handle)

	svc := NewFareService(remote, store, bus, logging.Nop(), Options{
		PendingSyncDelay:    time.Millisecond,
		AutoSyncInterval:    time.Hour,
		OnlineCheckInterval: time.Hour,
		RemoteTimeout:       time.Second,
	})
	svc.online.Store(online)
	t.Cleanup(svc.Wait)
	return &harness{svc: svc, remote: remote, store: store, events: rec}
}
