// Package observable provides value slots that notify subscribers on change.
package observable

import "sync"

// Reader is the read-only view of a Value
type Reader[T comparable] interface {
	Get() T
	Subscribe() <-chan T
	Unsubscribe(ch <-chan T)
}

// Value holds a single value and notifies subscribers when it changes.
// Each subscriber channel buffers one value; a slow subscriber only ever
// sees the latest value, never a stale backlog.
type Value[T comparable] struct {
	value  T
	subs   []chan T
	closed bool
	mu     sync.RWMutex
}

// NewValue creates a value slot holding initial
func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{value: initial}
}

// Get returns the current value
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores x and notifies subscribers if it differs from the current
// value. It reports whether the value changed.
func (v *Value[T]) Set(x T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.value == x {
		return false
	}
	v.value = x

	for _, ch := range v.subs {
		select {
		case ch <- x:
		default:
			// Replace the unread value
			select {
			case <-ch:
			default:
			}
			ch <- x
		}
	}
	return true
}

// Subscribe returns a channel that receives every subsequent change.
// Subscribing to a closed value returns a closed channel.
func (v *Value[T]) Subscribe() <-chan T {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 1)
	if v.closed {
		close(ch)
		return ch
	}
	v.subs = append(v.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscriber channel
func (v *Value[T]) Unsubscribe(ch <-chan T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, sub := range v.subs {
		if sub == ch {
			v.subs = append(v.subs[:i], v.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close closes all subscriber channels. The value stays readable and
// settable, but no further notifications are sent.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, ch := range v.subs {
		close(ch)
	}
	v.subs = nil
	v.closed = true
}
