package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/shopspring/decimal"
)

func (a *App) today() string {
	return a.now().Format(dateLayout)
}

// List prints the local collection. kind narrows it to one entry type.
func (a *App) List(ctx context.Context, kind string) error {
	entries := a.fares.Entries(ctx)

	if kind != "" {
		t := models.EntryType(strings.ToLower(kind))
		if !t.Valid() {
			return fmt.Errorf("unknown entry type %q", kind)
		}
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.Type == t {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if len(entries) == 0 {
		a.printf("No entries\n")
		return nil
	}
	return writeEntries(a.out, entries)
}

func (a *App) addEntry(ctx context.Context, e models.Entry) error {
	e.SubmittedBy = a.user()
	res, err := a.fares.AddFareEntry(ctx, e)
	if err != nil {
		return err
	}
	a.printf("Entry %d saved (%s)\n", res.Entry.EntryID, entryState(res.Entry))
	return nil
}

// AddDaily collects a day's route and takings and stores a daily entry.
func (a *App) AddDaily(ctx context.Context) error {
	date, err := GetDate(a.reader, "Date", a.today(), a.out)
	if err != nil {
		return err
	}
	route, err := getSimpleText(a.reader, "Route", a.out)
	if err != nil {
		return err
	}
	cash, bank, err := a.readAmounts(decimal.Zero, decimal.Zero)
	if err != nil {
		return err
	}

	return a.addEntry(ctx, models.Entry{
		Type:        models.EntryTypeDaily,
		Date:        date,
		Route:       route,
		CashAmount:  cash,
		BankAmount:  bank,
		TotalAmount: cash.Add(bank),
	})
}

// AddBooking collects a booking period and its payment.
func (a *App) AddBooking(ctx context.Context) error {
	details, err := getSimpleText(a.reader, "Booking details", a.out)
	if err != nil {
		return err
	}
	from, err := GetDate(a.reader, "From", a.today(), a.out)
	if err != nil {
		return err
	}
	to, err := GetDate(a.reader, "To", from, a.out)
	if err != nil {
		return err
	}
	if to < from {
		return fmt.Errorf("end date %s is before start date %s", to, from)
	}
	cash, bank, err := a.readAmounts(decimal.Zero, decimal.Zero)
	if err != nil {
		return err
	}

	return a.addEntry(ctx, models.Entry{
		Type:           models.EntryTypeBooking,
		BookingDetails: details,
		DateFrom:       from,
		DateTo:         to,
		CashAmount:     cash,
		BankAmount:     bank,
		TotalAmount:    cash.Add(bank),
	})
}

// AddOff records a day without service.
func (a *App) AddOff(ctx context.Context) error {
	date, err := GetDate(a.reader, "Date", a.today(), a.out)
	if err != nil {
		return err
	}
	reason, err := getSimpleText(a.reader, "Reason", a.out)
	if err != nil {
		return err
	}

	return a.addEntry(ctx, models.Entry{
		Type:   models.EntryTypeOff,
		Date:   date,
		Reason: reason,
	})
}

func (a *App) readAmounts(cash, bank decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	c, err := GetAmount(a.reader, "Cash amount", cash, a.out)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	b, err := GetAmount(a.reader, "Bank amount", bank, a.out)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return c, b, nil
}

func (a *App) readID(arg, prompt string) (int64, error) {
	if arg == "" {
		var err error
		if arg, err = getSimpleText(a.reader, prompt, a.out); err != nil {
			return 0, err
		}
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry id %q", arg)
	}
	return id, nil
}

// Update walks through the entry's fields with the current values as
// defaults and submits only what changed.
func (a *App) Update(ctx context.Context, arg string) error {
	id, err := a.readID(arg, "Enter entry id to update")
	if err != nil {
		return err
	}

	entries := a.fares.Entries(ctx)
	i := models.FindEntry(entries, id)
	if i < 0 {
		return fmt.Errorf("entry %d not found", id)
	}

	patch, err := a.readPatch(entries[i])
	if err != nil {
		return err
	}
	if patch.IsEmpty() {
		a.printf("Entry %d unchanged\n", id)
		return nil
	}

	res, err := a.fares.UpdateFareEntry(ctx, id, patch)
	if err != nil {
		return err
	}
	a.printf("Entry %d updated (%s)\n", id, entryState(res.Entry))
	return nil
}

func (a *App) readPatch(e models.Entry) (models.Patch, error) {
	var p models.Patch

	text := func(dst **string, prompt, cur string) error {
		v, err := GetDefaultText(a.reader, prompt, cur, a.out)
		if err != nil {
			return err
		}
		if v != cur {
			*dst = &v
		}
		return nil
	}
	date := func(dst **string, prompt, cur string) error {
		v, err := GetDate(a.reader, prompt, cur, a.out)
		if err != nil {
			return err
		}
		if v != cur {
			*dst = &v
		}
		return nil
	}

	var err error
	switch e.Type {
	case models.EntryTypeDaily:
		if err = date(&p.Date, "Date", e.Date); err == nil {
			err = text(&p.Route, "Route", e.Route)
		}
	case models.EntryTypeBooking:
		if err = text(&p.BookingDetails, "Booking details", e.BookingDetails); err == nil {
			if err = date(&p.DateFrom, "From", e.DateFrom); err == nil {
				err = date(&p.DateTo, "To", e.DateTo)
			}
		}
		if err == nil {
			from, to := valueOr(p.DateFrom, e.DateFrom), valueOr(p.DateTo, e.DateTo)
			if to != "" && to < from {
				err = fmt.Errorf("end date %s is before start date %s", to, from)
			}
		}
	case models.EntryTypeOff:
		if err = date(&p.Date, "Date", e.Date); err == nil {
			err = text(&p.Reason, "Reason", e.Reason)
		}
	}
	if err != nil {
		return models.Patch{}, err
	}

	if e.HasAmounts() {
		cash, bank, err := a.readAmounts(e.CashAmount, e.BankAmount)
		if err != nil {
			return models.Patch{}, err
		}
		if !cash.Equal(e.CashAmount) || !bank.Equal(e.BankAmount) {
			total := cash.Add(bank)
			p.CashAmount, p.BankAmount, p.TotalAmount = &cash, &bank, &total
		}
	}
	return p, nil
}

func valueOr(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}

// Delete removes an entry locally; the engine propagates the delete.
func (a *App) Delete(ctx context.Context, arg string) error {
	id, err := a.readID(arg, "Enter entry id to delete")
	if err != nil {
		return err
	}
	entries, err := a.fares.DeleteFareEntry(ctx, id)
	if err != nil {
		return err
	}
	a.printf("Entry %d deleted, %d left\n", id, len(entries))
	return nil
}
