// Package netmon tracks online/offline state for the sync layer.
//
// The monitor holds a single boolean seeded from the platform's
// connectivity signal and fed by it on every change; there is no polling.
// Subscribers are notified synchronously, and only on actual transitions,
// so connectivity flapping costs nothing while the state is stable.
package netmon

import "sync"

// Listener receives the new state on every online/offline transition.
type Listener func(online bool)

type subscription struct {
	id int
	fn Listener
}

// Monitor maintains the connectivity flag and its subscribers.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners []subscription
}

// New creates a monitor seeded with the platform's current state.
func New(initial bool) *Monitor {
	return &Monitor{online: initial}
}

// IsOnline returns the current connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a transition listener. Listeners are invoked
// synchronously from SetOnline, in registration order. The returned
// cancel function removes the listener; further transitions no longer
// reach it.
func (m *Monitor) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, subscription{id: id, fn: l})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.listeners {
			if sub.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetOnline records a connectivity change from the platform signal.
// Setting the same state twice is a no-op; listeners fire only on
// transitions.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]subscription, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, sub := range listeners {
		sub.fn(online)
	}
}
