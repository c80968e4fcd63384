// Package events is the in-process notification bus the sync engine uses to
// tell the UI that entries, the cash book or the sync status changed.
package events

import (
	"sync"

	"github.com/dmitrijs2005/farebook/internal/client/models"
)

type Kind string

const (
	DataUpdated       Kind = "fareDataUpdated"
	CashBookUpdated   Kind = "cashBookUpdated"
	SyncStatusChanged Kind = "syncStatusChanged"
)

// Event carries a snapshot of whatever changed. Entries is set for
// DataUpdated, CashBook for CashBookUpdated, Status for SyncStatusChanged.
type Event struct {
	Kind     Kind                   `json:"kind"`
	Entries  []models.Entry         `json:"entries,omitempty"`
	CashBook []models.CashBookEntry `json:"cashBook,omitempty"`
	Status   *models.SyncStatus     `json:"status,omitempty"`
}

type Handler func(Event)

// Bus delivers events synchronously to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
}

type subscriber struct {
	id int
	fn Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish calls every subscriber with ev. A nil Bus drops the event.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
