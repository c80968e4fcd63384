// Package kafka forwards sync engine notifications to a Kafka topic so other
// systems can follow bookkeeping changes.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/events"
	"github.com/dmitrijs2005/farebook/internal/logging"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "farebook.events"

// MessageWriter is the subset of *kafka.Writer used by Forwarder.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Forwarder struct {
	writer  MessageWriter
	log     logging.Logger
	source  string
	timeout time.Duration
}

// NewWriter returns an async writer for topic on brokers.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewForwarder wraps w. source identifies this client in message keys.
func NewForwarder(w MessageWriter, source string, log logging.Logger) *Forwarder {
	if log == nil {
		log = logging.Nop()
	}
	return &Forwarder{writer: w, log: log.With("component", "kafka"), source: source, timeout: 5 * time.Second}
}

// message is the payload published per event. Full entry lists are reduced
// to counts; consumers re-read the data they need.
type message struct {
	Kind        events.Kind `json:"kind"`
	Source      string      `json:"source"`
	Entries     int         `json:"entries,omitempty"`
	CashBook    int         `json:"cashBook,omitempty"`
	PendingSync *int        `json:"pendingSync,omitempty"`
	Online      *bool       `json:"online,omitempty"`
	At          time.Time   `json:"at"`
}

// Handle publishes ev. It matches events.Handler.
func (f *Forwarder) Handle(ev events.Event) {
	m := message{
		Kind:     ev.Kind,
		Source:   f.source,
		Entries:  len(ev.Entries),
		CashBook: len(ev.CashBook),
		At:       time.Now().UTC(),
	}
	if ev.Status != nil {
		m.PendingSync = &ev.Status.PendingSync
		m.Online = &ev.Status.IsOnline
	}

	data, err := json.Marshal(m)
	if err != nil {
		f.log.Error(context.Background(), "encode event", "kind", ev.Kind, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.writer.WriteMessages(ctx, kafka.Message{Key: []byte(f.source), Value: data}); err != nil {
		f.log.Warn(ctx, "forward event", "kind", ev.Kind, "err", err)
	}
}

// Attach subscribes the forwarder to bus.
func (f *Forwarder) Attach(bus *events.Bus) (detach func()) {
	return bus.Subscribe(f.Handle)
}

func (f *Forwarder) Close() error {
	return f.writer.Close()
}
