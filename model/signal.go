package model

import (
	"slices"
	"sync"
)

// Signal names the projection that changed. Signals are coarse: listeners
// re-read the projection instead of receiving a diff.
type Signal string

// Signals raised by records, units and suites.
const (
	SignalTests       Signal = "Tests"
	SignalResults     Signal = "Results"
	SignalRunning     Signal = "Running"
	SignalVisible     Signal = "Visible"
	SignalStatus      Signal = "Status"
	SignalFailDetail  Signal = "FailDetail"
	SignalSelected    Signal = "Selected"
	SignalDescription Signal = "Description"
	SignalUnits       Signal = "Units"
)

// Listener receives signals.
type Listener func(Signal)

type listenerEntry struct {
	id uint64
	fn Listener
}

// notifier keeps listeners in registration order.
type notifier struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listenerEntry
}

// Subscribe registers l and returns a function that removes it.
// The returned function may be called more than once.
func (n *notifier) Subscribe(l Listener) (unsubscribe func()) {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, listenerEntry{id: id, fn: l})
	n.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()

			n.listeners = slices.DeleteFunc(n.listeners, func(e listenerEntry) bool {
				return e.id == id
			})
		})
	}
}

func (n *notifier) raise(sig Signal) {
	n.mu.Lock()
	snapshot := slices.Clone(n.listeners)
	n.mu.Unlock()

	for _, e := range snapshot {
		e.fn(sig)
	}
}

func (n *notifier) listenerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.listeners)
}
