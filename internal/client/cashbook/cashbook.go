// Package cashbook projects fare entries into cash-book ledger lines.
//
// Every daily or booking entry maps to exactly one line whose SourceID is the
// entry id; off-day entries never produce a line. All functions are pure and
// return new slices.
package cashbook

import (
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/shopspring/decimal"
)

const (
	SourceDaily   = "fare_daily"
	SourceBooking = "fare_booking"
)

// ID returns the cash-book line id for an entry id.
func ID(entryID int64) string {
	return "cb_" + strconv.FormatInt(entryID, 10)
}

// Particulars is the human label shown in the ledger.
func Particulars(e models.Entry) string {
	switch e.Type {
	case models.EntryTypeDaily:
		return "Daily Collection - " + e.Route
	case models.EntryTypeBooking:
		return "Booking - " + e.BookingDetails
	}
	return ""
}

// Source tags the originating entry type.
func Source(e models.Entry) string {
	switch e.Type {
	case models.EntryTypeDaily:
		return SourceDaily
	case models.EntryTypeBooking:
		return SourceBooking
	}
	return ""
}

func description(e models.Entry) string {
	switch e.Type {
	case models.EntryTypeDaily:
		return fmt.Sprintf("Route: %s", e.Route)
	case models.EntryTypeBooking:
		return fmt.Sprintf("Booking: %s (%s to %s)", e.BookingDetails, e.DateFrom, e.DateTo)
	}
	return ""
}

func date(e models.Entry) string {
	if e.Type == models.EntryTypeBooking {
		return e.DateFrom
	}
	return e.Date
}

// FromEntry projects e. The second result is false for entries without amounts.
func FromEntry(e models.Entry) (models.CashBookEntry, bool) {
	if !e.HasAmounts() {
		return models.CashBookEntry{}, false
	}
	return models.CashBookEntry{
		ID:          ID(e.EntryID),
		Date:        date(e),
		Type:        models.CashBookDebit,
		Particulars: Particulars(e),
		CashAmount:  e.CashAmount,
		BankAmount:  e.BankAmount,
		Source:      Source(e),
		SourceID:    e.EntryID,
		Description: description(e),
		Timestamp:   e.Timestamp,
	}, true
}

// GenerateAll rebuilds the whole cash book from entries, preserving their order.
func GenerateAll(entries []models.Entry) []models.CashBookEntry {
	book := make([]models.CashBookEntry, 0, len(entries))
	for _, e := range entries {
		if cb, ok := FromEntry(e); ok {
			book = append(book, cb)
		}
	}
	return book
}

// Remove drops the line sourced from entryID.
func Remove(book []models.CashBookEntry, entryID int64) []models.CashBookEntry {
	out := make([]models.CashBookEntry, 0, len(book))
	for _, cb := range book {
		if cb.SourceID != entryID {
			out = append(out, cb)
		}
	}
	return out
}

// Replace removes any line sourced from e and prepends its fresh projection.
func Replace(book []models.CashBookEntry, e models.Entry) []models.CashBookEntry {
	out := Remove(book, e.EntryID)
	cb, ok := FromEntry(e)
	if !ok {
		return out
	}
	return append([]models.CashBookEntry{cb}, out...)
}

// Summary aggregates a cash book.
type Summary struct {
	Cash  decimal.Decimal
	Bank  decimal.Decimal
	Total decimal.Decimal
	Lines int
}

// Totals sums cash and bank amounts across book.
func Totals(book []models.CashBookEntry) Summary {
	s := Summary{Cash: decimal.Zero, Bank: decimal.Zero}
	for _, cb := range book {
		s.Cash = s.Cash.Add(cb.CashAmount)
		s.Bank = s.Bank.Add(cb.BankAmount)
	}
	s.Total = s.Cash.Add(s.Bank)
	s.Lines = len(book)
	return s
}
