// Package storage is the typed key/value adapter the sync engine persists
// through. Each record is a JSON document under a fixed key in the local
// metadata table.
//
// Storage failures never propagate: reads degrade to empty or absent values,
// writes report false, and the cause is logged.
package storage

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/farebook/internal/logging"
)

// Record keys.
const (
	KeyFareData      = "fareData"
	KeyPendingSync   = "pendingSync"
	KeyPendingDelete = "pendingDelete"
	KeyLastSync      = "lastSync"
	KeyUser          = "user"
	KeyCashBook      = "cashBookEntries"
)

type LocalStore struct {
	repo metadata.Repository
	log  logging.Logger
	now  func() time.Time

	// guards read-modify-write of the pending sets
	mu sync.Mutex
}

func NewLocalStore(repo metadata.Repository, log logging.Logger) *LocalStore {
	if log == nil {
		log = logging.Nop()
	}
	return &LocalStore{repo: repo, log: log.With("component", "storage"), now: time.Now}
}

func (s *LocalStore) put(ctx context.Context, key string, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error(ctx, "encode failed", "key", key, "err", err)
		return false
	}
	if err := s.repo.Set(ctx, key, b); err != nil {
		s.log.Error(ctx, "write failed", "key", key, "err", err)
		return false
	}
	return true
}

// get decodes key into dst and reports whether a well-formed value was found.
func (s *LocalStore) get(ctx context.Context, key string, dst any) bool {
	b, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.Error(ctx, "read failed", "key", key, "err", err)
		return false
	}
	if len(b) == 0 {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		s.log.Warn(ctx, "malformed record ignored", "key", key, "err", err)
		return false
	}
	return true
}

func (s *LocalStore) remove(ctx context.Context, key string) {
	if err := s.repo.Delete(ctx, key); err != nil {
		s.log.Error(ctx, "delete failed", "key", key, "err", err)
	}
}

// Save overwrites the whole entry collection.
func (s *LocalStore) Save(ctx context.Context, entries []models.Entry) bool {
	if entries == nil {
		entries = []models.Entry{}
	}
	return s.put(ctx, KeyFareData, entries)
}

// Load returns the stored collection, or an empty one.
func (s *LocalStore) Load(ctx context.Context) []models.Entry {
	var entries []models.Entry
	if !s.get(ctx, KeyFareData, &entries) || entries == nil {
		return []models.Entry{}
	}
	return entries
}

// MarkPendingSync adds id to the pending set. Duplicates are ignored.
func (s *LocalStore) MarkPendingSync(ctx context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.pendingSync(ctx)
	if slices.Contains(ids, id) {
		return
	}
	s.put(ctx, KeyPendingSync, append(ids, id))
}

// RemovePendingSync drops id from the pending set. Absent ids are a no-op.
func (s *LocalStore) RemovePendingSync(ctx context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.pendingSync(ctx)
	i := slices.Index(ids, id)
	if i < 0 {
		return
	}
	s.put(ctx, KeyPendingSync, slices.Delete(ids, i, i+1))
}

// GetPendingSync returns the pending ids in insertion order.
func (s *LocalStore) GetPendingSync(ctx context.Context) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingSync(ctx)
}

func (s *LocalStore) pendingSync(ctx context.Context) []int64 {
	var ids []int64
	if !s.get(ctx, KeyPendingSync, &ids) || ids == nil {
		return []int64{}
	}
	return ids
}

// MarkPendingDelete records a tombstone for a synced entry removed locally.
func (s *LocalStore) MarkPendingDelete(ctx context.Context, e models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.pendingDelete(ctx)
	for _, t := range ts {
		if t.EntryID == e.EntryID {
			return
		}
	}
	s.put(ctx, KeyPendingDelete, append(ts, models.Tombstone{EntryID: e.EntryID, Type: e.Type}))
}

// RemovePendingDelete drops the tombstone for id.
func (s *LocalStore) RemovePendingDelete(ctx context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.pendingDelete(ctx)
	out := slices.DeleteFunc(slices.Clone(ts), func(t models.Tombstone) bool { return t.EntryID == id })
	if len(out) == len(ts) {
		return
	}
	s.put(ctx, KeyPendingDelete, out)
}

// GetPendingDelete returns all tombstones.
func (s *LocalStore) GetPendingDelete(ctx context.Context) []models.Tombstone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingDelete(ctx)
}

func (s *LocalStore) pendingDelete(ctx context.Context) []models.Tombstone {
	var ts []models.Tombstone
	if !s.get(ctx, KeyPendingDelete, &ts) || ts == nil {
		return []models.Tombstone{}
	}
	return ts
}

// UpdateLastSync stamps the current time as the last successful full refresh.
func (s *LocalStore) UpdateLastSync(ctx context.Context) {
	s.put(ctx, KeyLastSync, s.now().UTC())
}

// GetLastSync returns nil if no refresh has completed yet.
func (s *LocalStore) GetLastSync(ctx context.Context) *time.Time {
	var t time.Time
	if !s.get(ctx, KeyLastSync, &t) {
		return nil
	}
	return &t
}

func (s *LocalStore) SaveCashBook(ctx context.Context, book []models.CashBookEntry) bool {
	if book == nil {
		book = []models.CashBookEntry{}
	}
	return s.put(ctx, KeyCashBook, book)
}

func (s *LocalStore) LoadCashBook(ctx context.Context) []models.CashBookEntry {
	var book []models.CashBookEntry
	if !s.get(ctx, KeyCashBook, &book) || book == nil {
		return []models.CashBookEntry{}
	}
	return book
}

func (s *LocalStore) SaveUserData(ctx context.Context, u models.UserSession) bool {
	return s.put(ctx, KeyUser, u)
}

// LoadUserData returns nil when no session is stored.
func (s *LocalStore) LoadUserData(ctx context.Context) *models.UserSession {
	var u models.UserSession
	if !s.get(ctx, KeyUser, &u) {
		return nil
	}
	return &u
}

func (s *LocalStore) ClearUserData(ctx context.Context) {
	s.remove(ctx, KeyUser)
}

// IsUserLoggedIn is true iff a session blob exists and is authenticated.
func (s *LocalStore) IsUserLoggedIn(ctx context.Context) bool {
	u := s.LoadUserData(ctx)
	return u != nil && u.Authenticated
}
