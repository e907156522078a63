package events

import (
	"sync"
	"time"

	"github.com/jscyril/playsync/api"
	"github.com/samber/lo"
)

// Dispatcher keeps the listeners registered per event type and delivers
// events to them in registration order.
type Dispatcher struct {
	listeners map[api.EventType][]*api.Listener
	mu        sync.RWMutex
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		listeners: make(map[api.EventType][]*api.Listener),
	}
}

// Add registers l for events of type t. A listener already registered for
// t is not added again; Add reports whether l was added.
func (d *Dispatcher) Add(t api.EventType, l *api.Listener) bool {
	if l == nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if lo.Contains(d.listeners[t], l) {
		return false
	}
	d.listeners[t] = append(d.listeners[t], l)
	return true
}

// Remove unregisters l from events of type t and reports whether it was present
func (d *Dispatcher) Remove(t api.EventType, l *api.Listener) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs, ok := d.listeners[t]
	if !ok || !lo.Contains(subs, l) {
		return false
	}

	remaining := lo.Without(subs, l)
	if len(remaining) == 0 {
		delete(d.listeners, t)
	} else {
		d.listeners[t] = remaining
	}
	return true
}

// Dispatch delivers an event of type t to every listener registered for it.
// Listeners run on the caller's goroutine, outside the dispatcher lock, so
// they may add or remove listeners themselves.
func (d *Dispatcher) Dispatch(t api.EventType) {
	d.mu.RLock()
	subs := append([]*api.Listener(nil), d.listeners[t]...)
	d.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	ev := api.MediaEvent{Type: t, At: time.Now()}
	for _, l := range subs {
		l.Handle(ev)
	}
}

// Count returns the number of listeners registered for t
func (d *Dispatcher) Count(t api.EventType) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[t])
}

// Listeners returns a copy of the listeners registered for t, in order
func (d *Dispatcher) Listeners(t api.EventType) []*api.Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*api.Listener(nil), d.listeners[t]...)
}

// Clear removes every listener
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = make(map[api.EventType][]*api.Listener)
}
