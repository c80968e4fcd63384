package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/client"
	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMixedRemote(r *fakeRemote) {
	r.seed(models.EntryTypeDaily,
		models.Entry{EntryID: 1, Date: "2024-01-01T00:00:00.000Z", Route: "A-B", CashAmount: decimal.NewFromInt(10)},
		models.Entry{EntryID: 4, Date: "2024-01-04", Route: "C-D", BankAmount: decimal.NewFromInt(20)},
	)
	r.seed(models.EntryTypeBooking,
		models.Entry{EntryID: 3, BookingDetails: "Trip", DateFrom: "2024-01-03T00:00:00.000Z", DateTo: "2024-01-05T00:00:00.000Z"},
	)
	r.seed(models.EntryTypeOff,
		models.Entry{EntryID: 2, Date: "2024-01-02T00:00:00.000Z", Reason: "rest"},
	)
}

func TestBackgroundSync_FullRefreshRoundTrip(t *testing.T) {
	h := newHarness(t, true)
	seedMixedRemote(h.remote)
	ctx := context.Background()

	require.NoError(t, h.svc.BackgroundSync(ctx))

	entries := h.store.Load(ctx)
	require.Len(t, entries, 4)
	var ids []int64
	for _, e := range entries {
		ids = append(ids, e.EntryID)
		assert.True(t, e.Synced)
		assert.False(t, e.PendingSync)
	}
	assert.Equal(t, []int64{4, 3, 2, 1}, ids)

	assert.Equal(t, models.EntryTypeBooking, entries[1].Type)
	assert.Equal(t, "2024-01-03", entries[1].DateFrom)
	assert.Equal(t, "2024-01-05", entries[1].DateTo)
	assert.Equal(t, models.EntryTypeOff, entries[2].Type)
	assert.Equal(t, "2024-01-01", entries[3].Date)

	book := h.store.LoadCashBook(ctx)
	assert.Len(t, book, 3)
	for _, cb := range book {
		assert.NotEqual(t, int64(2), cb.SourceID, "off entries are not projected")
	}

	assert.NotNil(t, h.store.GetLastSync(ctx))
}

func TestBackgroundSync_SingleInFlight(t *testing.T) {
	h := newHarness(t, true)
	h.remote.listGate = make(chan struct{})
	h.remote.listStarted = make(chan struct{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.svc.BackgroundSync(ctx) }()

	select {
	case <-h.remote.listStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first refresh never reached the remote store")
	}
	assert.True(t, h.svc.GetSyncStatus(ctx).SyncInProgress)

	require.NoError(t, h.svc.BackgroundSync(ctx), "overlapping refresh is a silent no-op")

	close(h.remote.listGate)
	require.NoError(t, <-done)

	assert.EqualValues(t, len(models.EntryTypes()), h.remote.lists.Load())
	assert.False(t, h.svc.GetSyncStatus(ctx).SyncInProgress)
}

func TestBackgroundSync_FetchFailureKeepsLocalData(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	_, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)

	h.remote.listErr = client.ErrUnavailable
	h.svc.online.Store(true)

	err = h.svc.BackgroundSync(ctx)
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Len(t, h.store.Load(ctx), 1)
	assert.Nil(t, h.store.GetLastSync(ctx))
}

func TestBackgroundSync_KeepsPendingLocalEntriesAndDrainsThem(t *testing.T) {
	h := newHarness(t, false)
	seedMixedRemote(h.remote)
	ctx := context.Background()

	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)

	h.svc.online.Store(true)
	require.NoError(t, h.svc.BackgroundSync(ctx))

	entries := h.store.Load(ctx)
	require.Len(t, entries, 5)
	assert.Equal(t, res.Entry.EntryID, entries[0].EntryID)
	assert.True(t, entries[0].Synced, "drained during the refresh")
	assert.Empty(t, h.store.GetPendingSync(ctx))
	assert.Len(t, h.store.LoadCashBook(ctx), 4)

	_, ok := h.remote.find(models.EntryTypeDaily, res.Entry.EntryID)
	assert.True(t, ok)
}

func TestBackgroundSync_RemoteIsAuthoritativeForSyncedEntries(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.remote.seed(models.EntryTypeDaily, models.Entry{EntryID: 7, Route: "remote"})
	require.True(t, h.store.Save(ctx, []models.Entry{
		{EntryID: 7, Type: models.EntryTypeDaily, Route: "stale", Synced: true},
		{EntryID: 8, Type: models.EntryTypeDaily, Route: "removed elsewhere", Synced: true},
	}))

	require.NoError(t, h.svc.BackgroundSync(ctx))

	entries := h.store.Load(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, "remote", entries[0].Route)
}

func TestBackgroundSync_TombstonePreventsResurrection(t *testing.T) {
	h := newHarness(t, true)
	seedMixedRemote(h.remote)
	ctx := context.Background()
	require.NoError(t, h.svc.BackgroundSync(ctx))

	// go offline and delete a synced entry: the remote delete is owed
	h.svc.online.Store(false)
	_, err := h.svc.DeleteFareEntry(ctx, 4)
	require.NoError(t, err)
	require.Len(t, h.store.GetPendingDelete(ctx), 1)
	_, stillRemote := h.remote.find(models.EntryTypeDaily, 4)
	require.True(t, stillRemote)

	h.svc.online.Store(true)
	require.NoError(t, h.svc.BackgroundSync(ctx))

	assert.Equal(t, -1, models.FindEntry(h.store.Load(ctx), 4))
	_, stillRemote = h.remote.find(models.EntryTypeDaily, 4)
	assert.False(t, stillRemote)
	assert.Empty(t, h.store.GetPendingDelete(ctx))
}

func TestBackgroundSync_TombstoneFiltersEvenWhenRemoteDeleteFails(t *testing.T) {
	h := newHarness(t, true)
	seedMixedRemote(h.remote)
	ctx := context.Background()
	require.NoError(t, h.svc.BackgroundSync(ctx))

	h.remote.mu.Lock()
	h.remote.deleteErr = errors.New("sheet locked")
	h.remote.mu.Unlock()

	_, err := h.svc.DeleteFareEntry(ctx, 3)
	require.NoError(t, err)
	h.svc.Wait()
	require.NoError(t, h.svc.BackgroundSync(ctx))

	assert.Equal(t, -1, models.FindEntry(h.store.Load(ctx), 3))
	assert.Len(t, h.store.GetPendingDelete(ctx), 1)
	assert.Len(t, h.store.LoadCashBook(ctx), 2)
}

func TestBackgroundSync_DeleteDuringFetchStaysDeleted(t *testing.T) {
	h := newHarness(t, true)
	seedMixedRemote(h.remote)
	ctx := context.Background()
	require.NoError(t, h.svc.BackgroundSync(ctx))
	require.Len(t, h.store.LoadCashBook(ctx), 3)

	h.remote.listGate = make(chan struct{})
	h.remote.listStarted = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.svc.BackgroundSync(ctx) }()

	select {
	case <-h.remote.listStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never reached the remote store")
	}

	_, err := h.svc.DeleteFareEntry(ctx, 4)
	require.NoError(t, err)
	assert.Never(t, func() bool { return h.remote.deletes.Load() > 0 },
		50*time.Millisecond, 5*time.Millisecond, "remote delete waits for the fetch in flight")

	close(h.remote.listGate)
	require.NoError(t, <-done)
	h.svc.Wait()

	assert.Equal(t, -1, models.FindEntry(h.store.Load(ctx), 4))
	for _, cb := range h.store.LoadCashBook(ctx) {
		assert.NotEqual(t, int64(4), cb.SourceID)
	}
	assert.Len(t, h.store.LoadCashBook(ctx), 2)
	_, stillRemote := h.remote.find(models.EntryTypeDaily, 4)
	assert.False(t, stillRemote)
	assert.Empty(t, h.store.GetPendingDelete(ctx))
}

func TestPush_SyncedEntryLeavesPendingSetUnderLock(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	require.True(t, h.store.Save(ctx, []models.Entry{
		{EntryID: 9, Type: models.EntryTypeDaily, Route: "A-B", Synced: true},
	}))
	h.store.MarkPendingSync(ctx, 9)

	ok, err := h.svc.pushEntry(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, h.store.GetPendingSync(ctx))
	assert.Zero(t, h.remote.adds.Load()+h.remote.updates.Load())

	// an edit after the skipped push is queued again and pushed
	route := "C-D"
	_, err = h.svc.UpdateFareEntry(ctx, 9, models.Patch{Route: &route})
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, h.store.GetPendingSync(ctx))

	ok, err = h.svc.pushEntry(ctx, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, h.store.GetPendingSync(ctx))
}

func TestSyncPendingEntries_DropsVanishedIDs(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.store.MarkPendingSync(ctx, 12345)

	n, err := h.svc.SyncPendingEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.store.GetPendingSync(ctx))
	assert.Zero(t, h.remote.adds.Load())
}

func TestSyncPendingEntries_SequentialWithDelay(t *testing.T) {
	h := newHarness(t, false)
	h.svc.opts.PendingSyncDelay = 20 * time.Millisecond
	ctx := context.Background()
	for range 3 {
		_, err := h.svc.AddFareEntry(ctx, dailyInput())
		require.NoError(t, err)
	}

	h.svc.online.Store(true)
	start := time.Now()
	n, err := h.svc.SyncPendingEntries(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.EqualValues(t, 3, h.remote.adds.Load())
	assert.Empty(t, h.store.GetPendingSync(ctx))
}

func TestSyncPendingEntries_StopsWhenRemoteUnavailable(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	for range 3 {
		_, err := h.svc.AddFareEntry(ctx, dailyInput())
		require.NoError(t, err)
	}
	h.remote.addErr = client.ErrUnavailable
	h.svc.online.Store(true)

	n, err := h.svc.SyncPendingEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 1, h.remote.adds.Load())
	assert.Len(t, h.store.GetPendingSync(ctx), 3)
}

func TestPush_DeletedDuringFlightIsTombstoned(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	pushed := h.store.Load(ctx)[0]

	_, err = h.svc.DeleteFareEntry(ctx, res.Entry.EntryID)
	require.NoError(t, err)
	assert.Empty(t, h.store.GetPendingDelete(ctx))

	// the create reached the remote store before the local delete was seen
	require.NoError(t, h.remote.Add(ctx, models.EntryTypeDaily, pushed))
	h.svc.online.Store(true)
	assert.False(t, h.svc.confirm(ctx, pushed))
	h.svc.Wait()

	_, ok := h.remote.find(models.EntryTypeDaily, res.Entry.EntryID)
	assert.False(t, ok)
	assert.Empty(t, h.store.GetPendingDelete(ctx))
}

func TestConfirm_IgnoresStalePush(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	res, err := h.svc.AddFareEntry(ctx, dailyInput())
	require.NoError(t, err)
	pushed := h.store.Load(ctx)[0]

	route := "newer"
	_, err = h.svc.UpdateFareEntry(ctx, res.Entry.EntryID, models.Patch{Route: &route})
	require.NoError(t, err)

	assert.False(t, h.svc.confirm(ctx, pushed))
	e := h.store.Load(ctx)[0]
	assert.True(t, e.PendingSync)
	assert.False(t, e.Synced)
}

func TestForceSync(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	require.ErrorIs(t, h.svc.ForceSync(ctx), common.ErrNoConnectivity)
	assert.Zero(t, h.remote.lists.Load())

	h.svc.online.Store(true)
	seedMixedRemote(h.remote)
	require.NoError(t, h.svc.ForceSync(ctx))
	assert.Len(t, h.store.Load(ctx), 4)
}

func TestAutoSync_SkipsWhenOfflineOrBusy(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	h.svc.AutoSync(ctx)
	assert.Zero(t, h.remote.lists.Load())

	h.svc.online.Store(true)
	h.svc.syncInProgress.Store(true)
	h.svc.AutoSync(ctx)
	assert.Zero(t, h.remote.lists.Load())

	h.svc.syncInProgress.Store(false)
	h.svc.AutoSync(ctx)
	assert.EqualValues(t, 3, h.remote.lists.Load())
}

func TestSetOnline_TransitionTriggersAutoSync(t *testing.T) {
	h := newHarness(t, false)
	seedMixedRemote(h.remote)
	ctx := context.Background()

	h.svc.SetOnline(ctx, true)
	h.svc.Wait()
	assert.Len(t, h.store.Load(ctx), 4)

	before := h.remote.lists.Load()
	h.svc.SetOnline(ctx, true)
	h.svc.Wait()
	assert.Equal(t, before, h.remote.lists.Load(), "no transition, no sync")
}

func TestCheckConnectivity(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.remote.setPingErr(client.ErrUnavailable)
	assert.False(t, h.svc.CheckConnectivity(ctx))
	assert.False(t, h.svc.IsOnline())

	h.remote.setPingErr(nil)
	assert.True(t, h.svc.CheckConnectivity(ctx))
	assert.True(t, h.svc.IsOnline())
	h.svc.Wait()
}

func TestInitializeData_ReturnsLocalAndRefreshesInBackground(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	require.True(t, h.store.Save(ctx, []models.Entry{{EntryID: 99, Type: models.EntryTypeOff, Synced: true}}))
	seedMixedRemote(h.remote)

	got := h.svc.InitializeData(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, int64(99), got[0].EntryID)

	h.svc.Wait()
	assert.True(t, h.svc.IsOnline())
	assert.Len(t, h.store.Load(ctx), 4)
}

func TestInitializeData_OfflineSkipsRefresh(t *testing.T) {
	h := newHarness(t, true)
	h.remote.setPingErr(client.ErrUnavailable)

	got := h.svc.InitializeData(context.Background())
	h.svc.Wait()

	assert.Empty(t, got)
	assert.False(t, h.svc.IsOnline())
	assert.Zero(t, h.remote.lists.Load())
}

func TestRun_DetectsReconnectAndStopsOnCancel(t *testing.T) {
	h := newHarness(t, false)
	h.svc.opts.OnlineCheckInterval = 5 * time.Millisecond
	seedMixedRemote(h.remote)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.svc.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		return len(h.store.Load(context.Background())) == 4
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestMergeRemote(t *testing.T) {
	mod := time.Now()
	remote := []models.Entry{
		{EntryID: 1, Type: models.EntryTypeDaily, Route: "remote-1"},
		{EntryID: 2, Type: models.EntryTypeDaily, Route: "remote-2"},
		{EntryID: 3, Type: models.EntryTypeDaily, Route: "tombstoned"},
	}
	local := []models.Entry{
		{EntryID: 2, Type: models.EntryTypeDaily, Route: "local-2", PendingSync: true, LastModified: &mod},
		{EntryID: 5, Type: models.EntryTypeDaily, Route: "local-only", PendingSync: true},
		{EntryID: 6, Type: models.EntryTypeDaily, Route: "synced-gone", Synced: true},
	}

	got := mergeRemote(remote, local, []models.Tombstone{{EntryID: 3}})

	require.Len(t, got, 3)
	assert.Equal(t, []int64{5, 2, 1}, []int64{got[0].EntryID, got[1].EntryID, got[2].EntryID})
	assert.Equal(t, "local-2", got[1].Route)
	assert.True(t, got[1].PendingSync)
	assert.True(t, got[2].Synced)
	assertFlagsExclusive(t, got)
}
