package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/cashbook"
	"github.com/dmitrijs2005/farebook/internal/client/client"
	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/common"
	"golang.org/x/sync/errgroup"
)

func (s *FareService) IsOnline() bool { return s.online.Load() }

// SetOnline records connectivity. Going from offline to online starts an
// AutoSync in the background.
func (s *FareService) SetOnline(ctx context.Context, online bool) {
	was := s.online.Swap(online)
	if was == online {
		return
	}
	s.log.Info(ctx, "connectivity changed", "online", online)
	s.publishStatus(ctx)
	if online {
		s.goBackground(ctx, s.AutoSync)
	}
}

// CheckConnectivity pings the remote store and updates the online flag.
func (s *FareService) CheckConnectivity(ctx context.Context) bool {
	ok := s.ping(ctx)
	s.SetOnline(ctx, ok)
	return ok
}

func (s *FareService) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
	defer cancel()
	if err := s.client.Ping(ctx); err != nil {
		s.log.Debug(ctx, "ping failed", "err", err)
		return false
	}
	return true
}

// Run probes connectivity every OnlineCheckInterval and runs AutoSync every
// AutoSyncInterval until ctx is cancelled.
func (s *FareService) Run(ctx context.Context) {
	check := time.NewTicker(s.opts.OnlineCheckInterval)
	defer check.Stop()
	auto := time.NewTicker(s.opts.AutoSyncInterval)
	defer auto.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-check.C:
			s.CheckConnectivity(ctx)
		case <-auto.C:
			if s.IsOnline() {
				s.goBackground(ctx, s.AutoSync)
			}
		}
	}
}

// ForceSync runs a full refresh now. It fails with common.ErrNoConnectivity
// when offline.
func (s *FareService) ForceSync(ctx context.Context) error {
	if !s.IsOnline() {
		return common.ErrNoConnectivity
	}
	return s.BackgroundSync(ctx)
}

// AutoSync drains pending writes and then refreshes. It is a no-op when
// offline or while a refresh is in flight.
func (s *FareService) AutoSync(ctx context.Context) {
	if !s.IsOnline() || s.syncInProgress.Load() {
		return
	}
	if _, err := s.SyncPendingEntries(ctx); err != nil {
		s.log.Warn(ctx, "auto sync: drain pending", "err", err)
	}
	if err := s.BackgroundSync(ctx); err != nil {
		s.log.Warn(ctx, "auto sync: refresh", "err", err)
	}
}

// BackgroundSync replaces the local collection with the remote one. Entries
// with unconfirmed local changes are kept, and tombstoned ids are dropped.
// A call made while another refresh is running returns nil immediately.
func (s *FareService) BackgroundSync(ctx context.Context) error {
	if !s.syncInProgress.CompareAndSwap(false, true) {
		s.log.Debug(ctx, "refresh already in progress")
		return nil
	}
	s.publishStatus(ctx)
	defer func() {
		s.syncInProgress.Store(false)
		s.publishStatus(ctx)
	}()

	s.flushTombstones(ctx)
	if err := s.refresh(ctx); err != nil {
		s.log.Warn(ctx, "refresh failed, keeping local data", "err", err)
		return err
	}

	if _, err := s.SyncPendingEntries(ctx); err != nil {
		s.log.Warn(ctx, "drain after refresh", "err", err)
	}

	s.mu.Lock()
	entries, book := s.store.Load(ctx), s.store.LoadCashBook(ctx)
	s.mu.Unlock()

	s.publishData(entries)
	s.publishCashBook(book)
	s.log.Info(ctx, "refresh complete", "entries", len(entries), "cash_book", len(book))
	return nil
}

// refresh fetches and merges with pushes held off, so a push confirmed
// between the fetch and the merge cannot be overwritten by older remote data.
func (s *FareService) refresh(ctx context.Context) error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	remote, err := s.fetchAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merged := mergeRemote(remote, s.store.Load(ctx), s.store.GetPendingDelete(ctx))
	s.store.Save(ctx, merged)
	s.store.UpdateLastSync(ctx)
	s.store.SaveCashBook(ctx, cashbook.GenerateAll(merged))
	return nil
}

// fetchAll pulls every sheet concurrently. Any failure aborts the refresh.
func (s *FareService) fetchAll(ctx context.Context) ([]models.Entry, error) {
	types := models.EntryTypes()
	results := make([][]models.Entry, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.opts.RemoteTimeout)
			defer cancel()
			rows, err := s.client.List(cctx, t)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", t, err)
			}
			for j := range rows {
				rows[j].Type = t
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(results...), nil
}

// mergeRemote builds the collection after a refresh: remote rows tagged as
// synced with date-only fields normalised, minus tombstones, overlaid with
// local entries that are still pending, newest id first.
func mergeRemote(remote, local []models.Entry, tombstones []models.Tombstone) []models.Entry {
	deleted := make(map[int64]struct{}, len(tombstones))
	for _, t := range tombstones {
		deleted[t.EntryID] = struct{}{}
	}

	byID := make(map[int64]models.Entry, len(remote)+len(local))
	for _, e := range remote {
		if _, gone := deleted[e.EntryID]; gone {
			continue
		}
		e.NormalizeDates()
		e.MarkSynced()
		e.LastModified = nil
		byID[e.EntryID] = e
	}
	for _, e := range local {
		if e.PendingSync {
			byID[e.EntryID] = e
		}
	}

	merged := make([]models.Entry, 0, len(byID))
	for _, e := range byID {
		merged = append(merged, e)
	}
	slices.SortFunc(merged, func(a, b models.Entry) int {
		return cmp.Compare(b.EntryID, a.EntryID)
	})
	return merged
}

// SyncPendingEntries pushes every pending entry one at a time, waiting
// PendingSyncDelay between pushes, then retries owed remote deletes. It
// returns the number of entries confirmed. A drain already in progress makes
// this a no-op.
func (s *FareService) SyncPendingEntries(ctx context.Context) (int, error) {
	if !s.draining.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.draining.Store(false)

	ids := s.store.GetPendingSync(ctx)
	pushed := 0
	for i, id := range ids {
		if i > 0 && s.opts.PendingSyncDelay > 0 {
			select {
			case <-ctx.Done():
				return pushed, ctx.Err()
			case <-time.After(s.opts.PendingSyncDelay):
			}
		}

		ok, err := s.pushEntry(ctx, id)
		if err != nil {
			s.log.Warn(ctx, "push failed, entry stays pending", "entry_id", id, "err", err)
			if errors.Is(err, client.ErrUnavailable) || ctx.Err() != nil {
				break
			}
			continue
		}
		if ok {
			pushed++
		}
	}

	s.flushTombstones(ctx)

	if pushed > 0 {
		s.publishStatus(ctx)
	}
	return pushed, ctx.Err()
}

// pushEntry sends the current local state of id to the remote store: a
// create for entries never modified, an update otherwise, falling back to a
// create when the remote store has never seen the row. It reports whether
// the entry was confirmed.
func (s *FareService) pushEntry(ctx context.Context, id int64) (bool, error) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	entries := s.store.Load(ctx)
	i := models.FindEntry(entries, id)
	if i < 0 {
		s.store.RemovePendingSync(ctx, id)
		s.mu.Unlock()
		return false, nil
	}
	e := entries[i]
	if e.Synced {
		s.store.RemovePendingSync(ctx, id)
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
	defer cancel()

	var err error
	if e.LastModified == nil {
		err = s.client.Add(rctx, e.Type, e)
	} else {
		err = s.client.Update(rctx, e.Type, e.EntryID, e)
		if errors.Is(err, client.ErrNotFound) {
			s.log.Debug(ctx, "update of unknown row, creating", "entry_id", id)
			err = s.client.Add(rctx, e.Type, e)
		}
	}
	if err != nil {
		return false, err
	}

	return s.confirm(ctx, e), nil
}

// confirm flips the pushed entry to synced unless it changed or vanished
// while the push was in flight.
func (s *FareService) confirm(ctx context.Context, pushed models.Entry) bool {
	s.mu.Lock()
	entries := s.store.Load(ctx)
	i := models.FindEntry(entries, pushed.EntryID)
	if i < 0 {
		// deleted locally during the push; the remote row is now owed a delete
		s.store.MarkPendingDelete(ctx, pushed)
		s.mu.Unlock()
		s.goBackground(ctx, func(ctx context.Context) { s.flushTombstones(ctx) })
		return false
	}
	if !sameInstant(entries[i].LastModified, pushed.LastModified) {
		s.mu.Unlock()
		return false
	}

	entries[i].MarkSynced()
	s.store.Save(ctx, entries)
	s.store.RemovePendingSync(ctx, pushed.EntryID)
	s.mu.Unlock()

	s.log.Debug(ctx, "entry synced", "entry_id", pushed.EntryID, "type", pushed.Type)
	s.publishData(entries)
	s.publishStatus(ctx)
	return true
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// flushTombstones retries every owed remote delete.
func (s *FareService) flushTombstones(ctx context.Context) {
	for _, t := range s.store.GetPendingDelete(ctx) {
		if ctx.Err() != nil {
			return
		}
		s.deleteRemote(ctx, t)
	}
}

// deleteRemote removes the row remotely and clears its tombstone. A row the
// remote store does not know counts as deleted. It holds pushMu so the
// tombstone outlives any fetch already in flight.
func (s *FareService) deleteRemote(ctx context.Context, t models.Tombstone) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
	defer cancel()

	err := s.client.Delete(rctx, t.Type, t.EntryID)
	if err != nil && !errors.Is(err, client.ErrNotFound) {
		s.log.Warn(ctx, "remote delete failed, tombstone kept", "entry_id", t.EntryID, "type", t.Type, "err", err)
		return
	}
	s.store.RemovePendingDelete(ctx, t.EntryID)
	s.publishStatus(ctx)
}
