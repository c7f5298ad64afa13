// Package events fans workspace notifications out to connected front ends.
// Delivery is fire-and-forget: publishing never blocks, slow subscribers
// lose events rather than stalling the watcher.
package events

import (
	"log/slog"
	"sync"

	"github.com/maruel/ksid"
)

// Outbound notification names. These are part of the front-end contract.
const (
	FileChanged = "workspace:file-changed"
	WatchError  = "workspace:watch-error"
)

// FileChangedPayload carries both workspace paths, not which one changed;
// the front end is expected to reload both.
type FileChangedPayload struct {
	DataPath   string `json:"data_path"`
	SchemaPath string `json:"schema_path"`
}

// WatchErrorPayload carries a human-readable watch failure message.
type WatchErrorPayload struct {
	Message string `json:"message"`
}

// Event is one outbound notification. The ID is k-sortable so the front end
// can order and deduplicate events across reconnects.
type Event struct {
	ID      ksid.ID `json:"id"`
	Name    string  `json:"event"`
	Payload any     `json:"payload"`
}

// subscriberBuffer is how many events a subscriber may lag before dropping.
const subscriberBuffer = 16

// Broker is a fan-out of events to any number of subscribers. The zero
// value is not usable; call New.
type Broker struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// New creates an empty Broker.
func New() *Broker {
	return &Broker{subs: make(map[*Subscriber]struct{})}
}

// Subscriber receives events from a Broker until closed.
type Subscriber struct {
	broker *Broker
	ch     chan Event
	once   sync.Once
}

// Events returns the subscriber's event channel. It is closed by Close.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes and closes the event channel.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		s.broker.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe registers a new subscriber.
func (b *Broker) Subscribe() *Subscriber {
	s := &Subscriber{broker: b, ch: make(chan Event, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish delivers an event to every subscriber without blocking. A
// subscriber whose buffer is full misses the event.
func (b *Broker) Publish(name string, payload any) {
	ev := Event{ID: ksid.NewID(), Name: name, Payload: payload}
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			slog.Warn("Dropping event for slow subscriber", "event", name)
		}
	}
}

// FileChanged implements the watcher notifier by publishing a
// workspace:file-changed event.
func (b *Broker) FileChanged(dataPath, schemaPath string) {
	b.Publish(FileChanged, FileChangedPayload{DataPath: dataPath, SchemaPath: schemaPath})
}

// WatchError implements the watcher notifier by publishing a
// workspace:watch-error event.
func (b *Broker) WatchError(message string) {
	slog.Warn("Workspace watch error", "message", message)
	b.Publish(WatchError, WatchErrorPayload{Message: message})
}
