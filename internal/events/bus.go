// Package events fans document-change notifications out to live views and,
// optionally, to an MQTT broker.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Kind names what changed.
type Kind string

const (
	JobCreated       Kind = "job.created"
	JobUpdated       Kind = "job.updated"
	InventoryUpdated Kind = "inventory.updated"
	SupplierUpdated  Kind = "supplier.updated"
	SettingsUpdated  Kind = "settings.updated"
)

// Event is one change notification. Payload is the updated document.
type Event struct {
	ID         string      `json:"id"`
	Kind       Kind        `json:"kind"`
	DocumentID string      `json:"documentId"`
	Actor      string      `json:"actor,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(kind Kind, documentID, actor string, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		DocumentID: documentID,
		Actor:      actor,
		Timestamp:  time.Now(),
		Payload:    payload,
	}
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(e Event)
}

type subscriber struct {
	ch    chan Event
	kinds map[Kind]bool
}

func (s *subscriber) wants(k Kind) bool {
	return len(s.kinds) == 0 || s.kinds[k]
}

// Bus is an in-process publish/subscribe hub. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	buffer  int
	dropped atomic.Uint64
	logger  *log.Entry
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[uint64]*subscriber),
		buffer: buffer,
		logger: log.WithField("component", "events"),
	}
}

// Publish delivers e to every interested subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, s := range b.subs {
		if !s.wants(e.Kind) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			n := b.dropped.Add(1)
			b.logger.WithFields(log.Fields{
				"subscriber": id,
				"kind":       e.Kind,
				"dropped":    n,
			}).Warn("slow subscriber, event dropped")
		}
	}
}

// Subscribe registers for the given kinds, or all kinds when none are given.
// The returned cancel func unsubscribes and closes the channel; it is safe to
// call more than once.
func (b *Bus) Subscribe(kinds ...Kind) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, b.buffer), kinds: make(map[Kind]bool, len(kinds))}
	for _, k := range kinds {
		s.kinds[k] = true
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because of full buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
