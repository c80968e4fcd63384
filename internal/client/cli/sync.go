package cli

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/cashbook"
	"github.com/dmitrijs2005/farebook/internal/client/services"
	"github.com/dmitrijs2005/farebook/internal/common"
)

// CashBook prints the derived ledger followed by its totals.
func (a *App) CashBook(ctx context.Context) error {
	book := a.fares.CashBook(ctx)
	if len(book) == 0 {
		a.printf("Cash book is empty\n")
		return nil
	}
	if err := writeCashBook(a.out, book); err != nil {
		return err
	}
	s := cashbook.Totals(book)
	a.printf("%d lines  cash %s  bank %s  total %s\n", s.Lines, s.Cash.StringFixed(2), s.Bank.StringFixed(2), s.Total.StringFixed(2))
	return nil
}

// Status prints the engine's current sync state.
func (a *App) Status(ctx context.Context) error {
	st := a.fares.GetSyncStatus(ctx)

	mode := ModeOffline
	if st.IsOnline {
		mode = ModeOnline
	}
	last := "never"
	if st.LastSync != nil {
		last = st.LastSync.Local().Format(time.DateTime)
	}

	a.printf("Mode:            %s\n", mode)
	a.printf("Pending writes:  %d\n", st.PendingSync)
	a.printf("Pending deletes: %d\n", st.PendingDelete)
	a.printf("Last sync:       %s\n", last)
	if st.SyncInProgress {
		a.printf("Sync in progress\n")
	}
	return nil
}

// Sync forces a refresh from the remote store. Offline it only reports that
// local changes stay queued.
func (a *App) Sync(ctx context.Context) error {
	err := a.fares.ForceSync(ctx)
	if errors.Is(err, common.ErrNoConnectivity) {
		a.printf("Offline, local changes stay queued\n")
		return nil
	}
	if err != nil {
		return err
	}
	a.printf("Synced, %d entries\n", len(a.fares.Entries(ctx)))
	return nil
}

// Backup uploads a snapshot of the local data to S3.
func (a *App) Backup(ctx context.Context) error {
	if !a.backup.Enabled() {
		return services.ErrBackupDisabled
	}
	key, err := a.backup.Upload(ctx, a.user())
	if err != nil {
		return err
	}
	a.printf("Backup uploaded to %s\n", key)
	return nil
}
