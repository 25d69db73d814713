package scheduling

import (
	"sync"
	"time"
)

// EventKind names an outbound state-change notice.
type EventKind string

const (
	EventCreated   EventKind = "rendez_vous_created"
	EventUpdated   EventKind = "rendez_vous_updated"
	EventConfirmed EventKind = "rendez_vous_confirmed"
	EventCancelled EventKind = "rendez_vous_cancelled"
	// EventDeleted is raised by the application layer; the engine never
	// deletes records.
	EventDeleted EventKind = "rendez_vous_deleted"
)

// Event is delivered to observers after a successful engine operation.
// Snapshot holds the rendez-vous as it was right after the change.
type Event struct {
	Kind         EventKind
	RendezVousID string
	Date         *time.Time
	Snapshot     RendezVous
	OccurredAt   time.Time
}

// Observer receives engine events.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(e Event) { f(e) }

// EventBuffer collects events so they can be published once the record has
// been persisted.
type EventBuffer struct {
	mu     sync.Mutex
	events []Event
}

// Observe appends e.
func (b *EventBuffer) Observe(e Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

// Drain returns and clears the buffered events.
func (b *EventBuffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}
