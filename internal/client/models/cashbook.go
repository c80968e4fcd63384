package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashBookType is the ledger side of a cash-book line.
type CashBookType string

// CashBookDebit marks income. Every fare projection is a debit.
const CashBookDebit CashBookType = "dr"

// CashBookEntry is a ledger line derived 1:1 from a daily or booking Entry.
type CashBookEntry struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Type        CashBookType    `json:"type"`
	Particulars string          `json:"particulars"`
	CashAmount  decimal.Decimal `json:"cashAmount"`
	BankAmount  decimal.Decimal `json:"bankAmount"`
	Source      string          `json:"source"`
	SourceID    int64           `json:"sourceId"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}
