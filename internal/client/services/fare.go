package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/cashbook"
	"github.com/dmitrijs2005/farebook/internal/client/client"
	"github.com/dmitrijs2005/farebook/internal/client/events"
	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/common"
	"github.com/dmitrijs2005/farebook/internal/logging"
)

// Store is the local persistence the engine needs. *storage.LocalStore
// implements it.
type Store interface {
	Save(ctx context.Context, entries []models.Entry) bool
	Load(ctx context.Context) []models.Entry

	MarkPendingSync(ctx context.Context, id int64)
	RemovePendingSync(ctx context.Context, id int64)
	GetPendingSync(ctx context.Context) []int64

	MarkPendingDelete(ctx context.Context, e models.Entry)
	RemovePendingDelete(ctx context.Context, id int64)
	GetPendingDelete(ctx context.Context) []models.Tombstone

	UpdateLastSync(ctx context.Context)
	GetLastSync(ctx context.Context) *time.Time

	SaveCashBook(ctx context.Context, book []models.CashBookEntry) bool
	LoadCashBook(ctx context.Context) []models.CashBookEntry
}

type Options struct {
	// PendingSyncDelay separates consecutive pushes while draining the pending set.
	PendingSyncDelay time.Duration
	// AutoSyncInterval is the period of the full refresh while online.
	AutoSyncInterval time.Duration
	// OnlineCheckInterval is the period of the connectivity probe.
	OnlineCheckInterval time.Duration
	// RemoteTimeout bounds every single remote call.
	RemoteTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		PendingSyncDelay:    500 * time.Millisecond,
		AutoSyncInterval:    5 * time.Minute,
		OnlineCheckInterval: 3 * time.Second,
		RemoteTimeout:       30 * time.Second,
	}
}

// WriteResult is returned by local writes. Instant is always true: at return
// time the change is persisted locally only.
type WriteResult struct {
	Entries []models.Entry
	Entry   models.Entry
	Instant bool
}

// FareService is the hybrid local-first sync engine.
type FareService struct {
	client client.Client
	store  Store
	bus    *events.Bus
	log    logging.Logger
	opts   Options
	now    func() time.Time

	// mu serialises read-modify-write of the collection, the cash book and
	// the pending sets. It is never held across a remote call.
	mu     sync.Mutex
	lastID int64

	// pushMu orders background pushes so a later push never races an
	// earlier one for the same row.
	pushMu sync.Mutex

	online         atomic.Bool
	syncInProgress atomic.Bool
	draining       atomic.Bool

	wg sync.WaitGroup
}

func NewFareService(c client.Client, store Store, bus *events.Bus, log logging.Logger, opts Options) *FareService {
	def := DefaultOptions()
	if opts.AutoSyncInterval <= 0 {
		opts.AutoSyncInterval = def.AutoSyncInterval
	}
	if opts.OnlineCheckInterval <= 0 {
		opts.OnlineCheckInterval = def.OnlineCheckInterval
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = def.RemoteTimeout
	}
	if opts.PendingSyncDelay < 0 {
		opts.PendingSyncDelay = 0
	}
	if log == nil {
		log = logging.Nop()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &FareService{
		client: c,
		store:  store,
		bus:    bus,
		log:    log.With("component", "sync"),
		opts:   opts,
		now:    time.Now,
	}
}

// Bus returns the notification bus the engine publishes to.
func (s *FareService) Bus() *events.Bus { return s.bus }

// Wait blocks until every background push or refresh started so far is done.
func (s *FareService) Wait() { s.wg.Wait() }

func (s *FareService) goBackground(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
}

// nextID returns an id strictly greater than every id handed out or present
// in entries, preferring the wall clock in milliseconds. Caller holds mu.
func (s *FareService) nextID(entries []models.Entry) int64 {
	last := s.lastID
	for _, e := range entries {
		last = max(last, e.EntryID)
	}
	id := max(s.now().UnixMilli(), last+1)
	s.lastID = id
	return id
}

// Entries returns the local collection.
func (s *FareService) Entries(ctx context.Context) []models.Entry {
	return s.store.Load(ctx)
}

// CashBook returns the derived cash book.
func (s *FareService) CashBook(ctx context.Context) []models.CashBookEntry {
	return s.store.LoadCashBook(ctx)
}

// InitializeData returns the local collection and, when the remote store is
// reachable, starts a full refresh without waiting for it.
func (s *FareService) InitializeData(ctx context.Context) []models.Entry {
	entries := s.store.Load(ctx)

	if s.ping(ctx) {
		s.online.Store(true)
		s.goBackground(ctx, func(ctx context.Context) {
			if err := s.BackgroundSync(ctx); err != nil {
				s.log.Warn(ctx, "initial sync failed", "err", err)
			}
		})
	} else {
		s.online.Store(false)
	}
	return entries
}

// AddFareEntry assigns an id, persists data locally as pending and pushes it
// in the background when online.
func (s *FareService) AddFareEntry(ctx context.Context, data models.Entry) (*WriteResult, error) {
	if !data.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown entry type %q", common.ErrValidation, data.Type)
	}

	s.mu.Lock()
	entries := s.store.Load(ctx)

	e := data
	e.EntryID = s.nextID(entries)
	e.Timestamp = s.now()
	e.LastModified = nil
	e.NormalizeDates()
	e.MarkPending()

	entries = append([]models.Entry{e}, entries...)
	s.store.Save(ctx, entries)
	book := cashbook.Replace(s.store.LoadCashBook(ctx), e)
	s.store.SaveCashBook(ctx, book)
	s.store.MarkPendingSync(ctx, e.EntryID)
	s.mu.Unlock()

	s.publishStatus(ctx)
	s.publishCashBook(book)
	s.publishData(entries)

	s.schedulePush(ctx, e.EntryID)

	return &WriteResult{Entries: entries, Entry: e, Instant: true}, nil
}

// UpdateFareEntry merges patch into the entry, marks it pending and pushes
// the update in the background when online.
func (s *FareService) UpdateFareEntry(ctx context.Context, entryID int64, patch models.Patch) (*WriteResult, error) {
	s.mu.Lock()
	entries := s.store.Load(ctx)
	i := models.FindEntry(entries, entryID)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("entry %d: %w", entryID, common.ErrNotFound)
	}

	e := entries[i]
	e.Apply(patch)
	e.NormalizeDates()
	modified := s.now()
	e.LastModified = &modified
	e.MarkPending()
	entries[i] = e

	s.store.Save(ctx, entries)
	book := cashbook.Replace(s.store.LoadCashBook(ctx), e)
	s.store.SaveCashBook(ctx, book)
	s.store.MarkPendingSync(ctx, e.EntryID)
	s.mu.Unlock()

	s.publishStatus(ctx)
	s.publishCashBook(book)
	s.publishData(entries)

	s.schedulePush(ctx, e.EntryID)

	return &WriteResult{Entries: entries, Entry: e, Instant: true}, nil
}

// DeleteFareEntry removes the entry and its cash-book line. Entries the
// remote store may hold are tombstoned until the remote delete succeeds.
func (s *FareService) DeleteFareEntry(ctx context.Context, entryID int64) ([]models.Entry, error) {
	s.mu.Lock()
	entries := s.store.Load(ctx)
	i := models.FindEntry(entries, entryID)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("entry %d: %w", entryID, common.ErrNotFound)
	}

	e := entries[i]
	entries = slices.Delete(entries, i, i+1)
	s.store.Save(ctx, entries)
	book := cashbook.Remove(s.store.LoadCashBook(ctx), entryID)
	s.store.SaveCashBook(ctx, book)
	s.store.RemovePendingSync(ctx, entryID)

	owed := e.Synced || e.LastModified != nil
	if owed {
		s.store.MarkPendingDelete(ctx, e)
	}
	s.mu.Unlock()

	s.publishStatus(ctx)
	s.publishCashBook(book)
	s.publishData(entries)

	if owed && s.IsOnline() {
		t := models.Tombstone{EntryID: e.EntryID, Type: e.Type}
		s.goBackground(ctx, func(ctx context.Context) {
			s.deleteRemote(ctx, t)
		})
	}
	return entries, nil
}

func (s *FareService) schedulePush(ctx context.Context, id int64) {
	if !s.IsOnline() {
		return
	}
	s.goBackground(ctx, func(ctx context.Context) {
		if _, err := s.pushEntry(ctx, id); err != nil {
			s.log.Warn(ctx, "background push failed, entry stays pending", "entry_id", id, "err", err)
		}
	})
}

// GetSyncStatus is a pure read of the current engine state.
func (s *FareService) GetSyncStatus(ctx context.Context) models.SyncStatus {
	return models.SyncStatus{
		IsOnline:       s.IsOnline(),
		PendingSync:    len(s.store.GetPendingSync(ctx)),
		PendingDelete:  len(s.store.GetPendingDelete(ctx)),
		LastSync:       s.store.GetLastSync(ctx),
		SyncInProgress: s.syncInProgress.Load(),
	}
}

func (s *FareService) publishData(entries []models.Entry) {
	s.bus.Publish(events.Event{Kind: events.DataUpdated, Entries: entries})
}

func (s *FareService) publishCashBook(book []models.CashBookEntry) {
	s.bus.Publish(events.Event{Kind: events.CashBookUpdated, CashBook: book})
}

func (s *FareService) publishStatus(ctx context.Context) {
	st := s.GetSyncStatus(ctx)
	s.bus.Publish(events.Event{Kind: events.SyncStatusChanged, Status: &st})
}
