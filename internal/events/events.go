// Package events carries notifications from the sync core to presentation.
package events

import (
	"sync"
	"time"

	"github.com/khanhbq56/money-tracking/internal/id"
	"github.com/khanhbq56/money-tracking/internal/model"
)

// Type names an event.
type Type string

const (
	BankStatusChanged Type = "bankStatusChanged"
	SyncCompleted     Type = "syncCompleted"
	SyncFailed        Type = "syncFailed"
	ImportCompleted   Type = "importCompleted"
)

// Event is one notification. Data holds a BankStatus, SyncOutcome or ImportOutcome.
type Event struct {
	ID        string
	Type      Type
	BankCode  string
	Timestamp time.Time
	Data      any
}

// BankStatus is the payload of BankStatusChanged. Pending is true while the
// change is applied optimistically and not yet confirmed by the server.
type BankStatus struct {
	Enabled    bool
	Pending    bool
	RolledBack bool
	LastSyncAt *time.Time
}

// SyncOutcome is the payload of SyncCompleted and SyncFailed.
type SyncOutcome struct {
	Mode       string
	Scope      model.ScopeKind
	Summaries  []model.SyncSummary
	Candidates int
	Err        error
}

// ImportOutcome is the payload of ImportCompleted.
type ImportOutcome struct {
	ImportedCount int
	Failed        int
}

// Emitter receives events.
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Handler is called for each matching event.
type Handler func(ev Event)

type subscriber struct {
	id      int
	handler Handler
	types   map[Type]bool // nil = all
}

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
	now    func() time.Time
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers handler for the given types (all types when none are
// given) and returns a function that removes the subscription.
func (b *Bus) Subscribe(handler Handler, types ...Type) func() {
	var filter map[Type]bool
	if len(types) > 0 {
		filter = make(map[Type]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	b.mu.Lock()
	b.nextID++
	subID := b.nextID
	b.subs = append(b.subs, subscriber{id: subID, handler: handler, types: filter})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == subID {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit stamps ev with an ID and timestamp when missing and delivers it.
func (b *Bus) Emit(ev Event) {
	if ev.ID == "" {
		ev.ID = id.NewEventID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}

	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.types != nil && !s.types[ev.Type] {
			continue
		}
		s.handler(ev)
	}
}

// Recorder is an Emitter that keeps every event; useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit stores ev.
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns the recorded events, optionally filtered by type.
func (r *Recorder) Events(types ...Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(types) == 0 {
		return append([]Event(nil), r.events...)
	}
	var out []Event
	for _, ev := range r.events {
		for _, t := range types {
			if ev.Type == t {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
