// Package events defines the typed notifications the sync layer emits for
// presentation code. Consumers subscribe to a Bus and switch on the event
// variant; payload shapes are part of the external contract.
package events

import (
	"sync"

	"github.com/satchel-app/satchel/internal/models"
)

// Event is one of the notification variants below.
type Event interface {
	isEvent()
}

// OnlineStatusChanged fires on every connectivity transition.
type OnlineStatusChanged struct {
	IsOnline bool
}

// SyncStarted fires when a sync pass begins.
type SyncStarted struct{}

// SyncCompleted fires when a pass ran to completion, carrying the replay
// outcome counts.
type SyncCompleted struct {
	Synced int
	Failed int
}

// SyncFailed fires when a pass aborted entirely (missing credentials or an
// unexpected error), as distinct from per-operation failures.
type SyncFailed struct {
	Err error
}

// FormSubmittedOffline fires when a mutation was captured into the queue
// instead of reaching the server.
type FormSubmittedOffline struct {
	Kind    models.EntityKind
	LocalID string
}

func (OnlineStatusChanged) isEvent()  {}
func (SyncStarted) isEvent()          {}
func (SyncCompleted) isEvent()        {}
func (SyncFailed) isEvent()           {}
func (FormSubmittedOffline) isEvent() {}

// Handler consumes published events.
type Handler func(Event)

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all subsequent events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers an event to every subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}
