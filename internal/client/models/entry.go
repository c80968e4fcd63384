// Package models defines client-side data models used by the farebook CLI:
// fare entries, derived cash-book lines, sync status and the session blob.
package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/farebook/internal/sheets"
	"github.com/shopspring/decimal"
)

// EntryType classifies an entry kind.
type EntryType string

const (
	EntryTypeDaily   EntryType = "daily"
	EntryTypeBooking EntryType = "booking"
	EntryTypeOff     EntryType = "off"
)

// EntryTypes lists every kind in the order they are fetched from the remote store.
func EntryTypes() []EntryType {
	return []EntryType{EntryTypeDaily, EntryTypeBooking, EntryTypeOff}
}

// Sheet returns the remote sheet holding entries of this type.
func (t EntryType) Sheet() string {
	switch t {
	case EntryTypeDaily:
		return sheets.SheetDaily
	case EntryTypeBooking:
		return sheets.SheetBooking
	case EntryTypeOff:
		return sheets.SheetOff
	}
	return ""
}

// Valid reports whether t is one of the known kinds.
func (t EntryType) Valid() bool {
	return t.Sheet() != ""
}

// Entry is one user-submitted record. Variant fields are populated according
// to Type; the rest stay zero.
type Entry struct {
	EntryID int64     `json:"entryId"`
	Type    EntryType `json:"type"`

	// daily and off
	Date string `json:"date,omitempty"`

	// daily
	Route string `json:"route,omitempty"`

	// booking
	BookingDetails string `json:"bookingDetails,omitempty"`
	DateFrom       string `json:"dateFrom,omitempty"`
	DateTo         string `json:"dateTo,omitempty"`

	// off
	Reason string `json:"reason,omitempty"`

	// daily and booking; TotalAmount is whatever the caller computed.
	CashAmount  decimal.Decimal `json:"cashAmount"`
	BankAmount  decimal.Decimal `json:"bankAmount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`

	SubmittedBy string    `json:"submittedBy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	Synced       bool       `json:"synced"`
	PendingSync  bool       `json:"pendingSync"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// MarkPending flags the entry as written locally but not yet confirmed remotely.
func (e *Entry) MarkPending() {
	e.Synced = false
	e.PendingSync = true
}

// MarkSynced flags the entry as confirmed by the remote store.
func (e *Entry) MarkSynced() {
	e.Synced = true
	e.PendingSync = false
}

// HasAmounts reports whether the entry carries money and therefore projects
// into the cash book.
func (e *Entry) HasAmounts() bool {
	return e.Type == EntryTypeDaily || e.Type == EntryTypeBooking
}

// NormalizeDates strips time-of-day from every date-only field.
func (e *Entry) NormalizeDates() {
	e.Date = NormalizeDate(e.Date)
	e.DateFrom = NormalizeDate(e.DateFrom)
	e.DateTo = NormalizeDate(e.DateTo)
}

// NormalizeDate turns "2024-01-01T00:00:00.000Z" or "2024-01-01 10:30" into
// "2024-01-01". Values without a time part are returned unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i > 0 {
		return s[:i]
	}
	return s
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Date           *string          `json:"date,omitempty"`
	Route          *string          `json:"route,omitempty"`
	BookingDetails *string          `json:"bookingDetails,omitempty"`
	DateFrom       *string          `json:"dateFrom,omitempty"`
	DateTo         *string          `json:"dateTo,omitempty"`
	Reason         *string          `json:"reason,omitempty"`
	CashAmount     *decimal.Decimal `json:"cashAmount,omitempty"`
	BankAmount     *decimal.Decimal `json:"bankAmount,omitempty"`
	TotalAmount    *decimal.Decimal `json:"totalAmount,omitempty"`
	SubmittedBy    *string          `json:"submittedBy,omitempty"`
}

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool { return p == Patch{} }

// Apply merges p into e.
func (e *Entry) Apply(p Patch) {
	setString(&e.Date, p.Date)
	setString(&e.Route, p.Route)
	setString(&e.BookingDetails, p.BookingDetails)
	setString(&e.DateFrom, p.DateFrom)
	setString(&e.DateTo, p.DateTo)
	setString(&e.Reason, p.Reason)
	setString(&e.SubmittedBy, p.SubmittedBy)
	if p.CashAmount != nil {
		e.CashAmount = *p.CashAmount
	}
	if p.BankAmount != nil {
		e.BankAmount = *p.BankAmount
	}
	if p.TotalAmount != nil {
		e.TotalAmount = *p.TotalAmount
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// FindEntry returns the index of the entry with the given id, or -1.
func FindEntry(entries []Entry, id int64) int {
	for i := range entries {
		if entries[i].EntryID == id {
			return i
		}
	}
	return -1
}
