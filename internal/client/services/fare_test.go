package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/client"
	"github.com/dmitrijs2005/farebook/internal/client/events"
	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailyInput() models.Entry {
	return models.Entry{
		Type:        models.EntryTypeDaily,
		Route:       "A-B",
		Date:        "2024-01-01",
		CashAmount:  decimal.NewFromInt(100),
		BankAmount:  decimal.NewFromInt(50),
		TotalAmount: decimal.NewFromInt(999),
	}
}

func assertFlagsExclusive(t *testing.T, entries []models.Entry) {
	t.Helper()
	for _, e := range entries {
		assert.False(t, e.Synced && e.PendingSync, "entry %d is both synced and pending", e.EntryID)
	}
}

func TestAddFareEntry_OfflineIsVisibleAndPending(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	h.svc.Wait()

	assert.True(t, res.Instant)
	assert.True(t, res.Entry.PendingSync)
	assert.False(t, res.Entry.Synced)
	assert.True(t, decimal.NewFromInt(999).Equal(res.Entry.TotalAmount), "total is stored as given")

	entries := h.store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, res.Entry.EntryID, entries[0].EntryID)
	assert.True(t, entries[0].PendingSync)
	assert.False(t, entries[0].Synced)

	book := h.store.LoadCashBook(ctx)
	require.Len(t, book, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(book[0].CashAmount))
	assert.True(t, decimal.NewFromInt(50).Equal(book[0].BankAmount))

	assert.Equal(t, []int64{res.Entry.EntryID}, h.store.GetPendingSync(ctx))
	assert.Zero(t, h.remote.adds.Load(), "offline add must not reach the remote store")
}

func TestAddFareEntry_NotifiesBeforePush(t *testing.T) {
	h := newHarness(t, false)

	_, err := h.svc.AddFareEntry(context.Background(), dailyInput())
	require.NoError(t, err)

	assert.Equal(t,
		[]events.Kind{events.SyncStatusChanged, events.CashBookUpdated, events.DataUpdated},
		h.events.snapshot())
}

func TestAddFareEntry_OnlinePushFlipsFlags(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	h.svc.Wait()

	entries := h.store.Load(ctx)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Synced)
	assert.False(t, entries[0].PendingSync)
	assert.Empty(t, h.store.GetPendingSync(ctx))

	row, ok := h.remote.find(models.EntryTypeDaily, res.Entry.EntryID)
	require.True(t, ok)
	assert.Equal(t, "A-B", row.Route)
	assert.EqualValues(t, 1, h.remote.adds.Load())
}

func TestAddFareEntry_PushFailureLeavesPending(t *testing.T) {
	h := newHarness(t, true)
	h.remote.addErr = client.ErrUnavailable
	ctx := context.Background()

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	h.svc.Wait()

	entries := h.store.Load(ctx)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].PendingSync)
	assert.False(t, entries[0].Synced)
	assert.Equal(t, []int64{res.Entry.EntryID}, h.store.GetPendingSync(ctx))
}

func TestAddFareEntry_RejectsUnknownType(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.svc.AddFareEntry(context.Background(), models.Entry{Type: "fuel"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestAddFareEntry_IDsAreStrictlyIncreasing(t *testing.T) {
	h := newHarness(t, false)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	var ids []int64
	for range 5 {
		res, err := h.svc.AddFareEntry(ctx, dailyInput())
		require.NoError(t, err)
		ids = append(ids, res.Entry.EntryID)
	}

	assert.Equal(t, fixed.UnixMilli(), ids[0])
	for i := 1; i < len(ids); i++ {
		assert.Equal(t, ids[i-1]+1, ids[i])
	}

	entries := h.store.Load(ctx)
	require.Len(t, entries, 5)
	assert.Equal(t, ids[4], entries[0].EntryID, "new entries are prepended")
}

func TestAddFareEntry_ConcurrentWritesKeepEveryEntry(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.AddFareEntry(ctx, dailyInput())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries := h.store.Load(ctx)
	assert.Len(t, entries, 10)
	assert.Len(t, h.store.LoadCashBook(ctx), 10)
	assert.Len(t, h.store.GetPendingSync(ctx), 10)

	seen := map[int64]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.EntryID])
		seen[e.EntryID] = true
	}
}

func TestUpdateFareEntry_NotFound(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.svc.UpdateFareEntry(context.Background(), 42, models.Patch{})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateFareEntry_MergesAndReplacesCashBookLine(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)

	route := "A-C"
	cash := decimal.NewFromInt(120)
	upd, err := h.svc.UpdateFareEntry(ctx, res.Entry.EntryID, models.Patch{Route: &route, CashAmount: &cash})
	require.NoError(t, err)

	assert.Equal(t, "A-C", upd.Entry.Route)
	assert.Equal(t, "2024-01-01", upd.Entry.Date)
	require.NotNil(t, upd.Entry.LastModified)
	assert.True(t, upd.Entry.PendingSync)

	book := h.store.LoadCashBook(ctx)
	require.Len(t, book, 1)
	assert.Equal(t, "Daily Collection - A-C", book[0].Particulars)
	assert.True(t, cash.Equal(book[0].CashAmount))
	assert.Equal(t, []int64{res.Entry.EntryID}, h.store.GetPendingSync(ctx))
}

func TestUpdateFareEntry_SyncedEntryGoesBackToPendingThenSynced(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	h.svc.Wait()

	route := "Z-Y"
	_, err = h.svc.UpdateFareEntry(ctx, res.Entry.EntryID, models.Patch{Route: &route})
	require.NoError(t, err)
	h.svc.Wait()

	entries := h.store.Load(ctx)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Synced)
	assert.False(t, entries[0].PendingSync)
	assert.EqualValues(t, 1, h.remote.updates.Load())

	row, ok := h.remote.find(models.EntryTypeDaily, res.Entry.EntryID)
	require.True(t, ok)
	assert.Equal(t, "Z-Y", row.Route)
}

func TestUpdateFareEntry_UnknownRemoteRowFallsBackToCreate(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	route := "offline edit"
	_, err = h.svc.UpdateFareEntry(ctx, res.Entry.EntryID, models.Patch{Route: &route})
	require.NoError(t, err)

	h.svc.online.Store(true)
	n, err := h.svc.SyncPendingEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.EqualValues(t, 1, h.remote.updates.Load())
	assert.EqualValues(t, 1, h.remote.adds.Load())
	row, ok := h.remote.find(models.EntryTypeDaily, res.Entry.EntryID)
	require.True(t, ok)
	assert.Equal(t, "offline edit", row.Route)
	assert.Empty(t, h.store.GetPendingSync(ctx))
}

func TestDeleteFareEntry_NotFound(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.svc.DeleteFareEntry(context.Background(), 1)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteFareEntry_RemovesEntryAndCashBookLine(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	a, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	b, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)

	left, err := h.svc.DeleteFareEntry(ctx, a.Entry.EntryID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, b.Entry.EntryID, left[0].EntryID)

	for _, cb := range h.store.LoadCashBook(ctx) {
		assert.NotEqual(t, a.Entry.EntryID, cb.SourceID)
	}
	assert.Len(t, h.store.LoadCashBook(ctx), 1)
	assert.Equal(t, []int64{b.Entry.EntryID}, h.store.GetPendingSync(ctx))
	assert.Empty(t, h.store.GetPendingDelete(ctx), "never-pushed entries owe no remote delete")
}

func TestDeleteFareEntry_SyncedOnlineDeletesRemotely(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	h.svc.Wait()

	_, err = h.svc.DeleteFareEntry(ctx, res.Entry.EntryID)
	require.NoError(t, err)
	h.svc.Wait()

	_, ok := h.remote.find(models.EntryTypeDaily, res.Entry.EntryID)
	assert.False(t, ok)
	assert.Empty(t, h.store.GetPendingDelete(ctx))
}

func TestDeleteFareEntry_RemoteFailureKeepsTombstone(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	h.svc.Wait()

	h.remote.mu.Lock()
	h.remote.deleteErr = errors.New("quota exceeded")
	h.remote.mu.Unlock()

	_, err = h.svc.DeleteFareEntry(ctx, res.Entry.EntryID)
	require.NoError(t, err)
	h.svc.Wait()

	assert.Equal(t,
		[]models.Tombstone{{EntryID: res.Entry.EntryID, Type: models.EntryTypeDaily}},
		h.store.GetPendingDelete(ctx))
	assert.Equal(t, 1, h.svc.GetSyncStatus(ctx).PendingDelete)
}

func TestGetSyncStatus(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	st := h.svc.GetSyncStatus(ctx)
	assert.False(t, st.IsOnline)
	assert.Zero(t, st.PendingSync)
	assert.Nil(t, st.LastSync)
	assert.False(t, st.SyncInProgress)

	_, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	assert.Equal(t, 1, h.svc.GetSyncStatus(ctx).PendingSync)
}

func TestFlagsStayExclusiveAcrossLifecycle(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	var mu sync.Mutex
	var violations int
	h.svc.Bus().Subscribe(func(ev events.Event) {
		for _, e := range ev.Entries {
			if e.Synced && e.PendingSync {
				mu.Lock()
				violations++
				mu.Unlock()
			}
		}
	})

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	route := "B"
	_, err = h.svc.UpdateFareEntry(ctx, res.Entry.EntryID, models.Patch{Route: &route})
	require.NoError(t, err)
	h.svc.Wait()
	require.NoError(t, h.svc.BackgroundSync(ctx))

	assertFlagsExclusive(t, h.store.Load(ctx))
	mu.Lock()
	assert.Zero(t, violations)
	mu.Unlock()
}
