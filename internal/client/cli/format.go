package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dmitrijs2005/farebook/internal/client/models"
)

func entryState(e models.Entry) string {
	switch {
	case e.Synced:
		return "synced"
	case e.PendingSync:
		return "pending sync"
	default:
		return "local"
	}
}

func entryDates(e models.Entry) string {
	if e.Type == models.EntryTypeBooking {
		if e.DateTo == "" || e.DateTo == e.DateFrom {
			return e.DateFrom
		}
		return e.DateFrom + ".." + e.DateTo
	}
	return e.Date
}

func entryDetails(e models.Entry) string {
	switch e.Type {
	case models.EntryTypeDaily:
		return e.Route
	case models.EntryTypeBooking:
		return e.BookingDetails
	case models.EntryTypeOff:
		return e.Reason
	}
	return ""
}

func writeEntries(w io.Writer, entries []models.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tDATE\tDETAILS\tCASH\tBANK\tTOTAL\tSTATE")
	for _, e := range entries {
		cash, bank, total := "-", "-", "-"
		if e.HasAmounts() {
			cash, bank, total = e.CashAmount.StringFixed(2), e.BankAmount.StringFixed(2), e.TotalAmount.StringFixed(2)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.EntryID, e.Type, entryDates(e), entryDetails(e), cash, bank, total, entryState(e))
	}
	return tw.Flush()
}

func writeCashBook(w io.Writer, book []models.CashBookEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tPARTICULARS\tCASH\tBANK\tSOURCE")
	for _, cb := range book {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s#%d\n",
			cb.Date, cb.Particulars, cb.CashAmount.StringFixed(2), cb.BankAmount.StringFixed(2), cb.Source, cb.SourceID)
	}
	return tw.Flush()
}
