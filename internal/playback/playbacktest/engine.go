// Package playbacktest provides a scriptable engine for tests.
package playbacktest

import (
	"sync"
	"time"

	"github.com/jscyril/playsync/api"
	"github.com/jscyril/playsync/pkg/events"
)

// Ensure Engine implements Engine interface at compile time
var _ api.Engine = (*Engine)(nil)

// Calls counts the commands an Engine received
type Calls struct {
	Play     int
	Pause    int
	Seek     int
	Volume   int
	LastSeek time.Duration
}

// Engine records commands without emitting events. Tests call Emit to
// model an engine that reports state changes later.
type Engine struct {
	listeners *events.Dispatcher

	mu       sync.Mutex
	paused   bool
	position time.Duration
	duration time.Duration
	volume   float64
	calls    Calls
	playErr  error
}

// NewEngine creates a paused engine with unknown duration
func NewEngine() *Engine {
	return &Engine{
		listeners: events.NewDispatcher(),
		paused:    true,
		duration:  api.DurationUnknown,
		volume:    1,
	}
}

func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.Play++
	return e.playErr
}

func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.Pause++
	return nil
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *Engine) SetCurrentTime(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.Seek++
	e.calls.LastSeek = pos
	return nil
}

func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Engine) SetVolume(level float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.Volume++
	e.volume = level
	return nil
}

func (e *Engine) AddEventListener(t api.EventType, l *api.Listener) {
	e.listeners.Add(t, l)
}

func (e *Engine) RemoveEventListener(t api.EventType, l *api.Listener) {
	e.listeners.Remove(t, l)
}

// Calls returns the commands received so far
func (e *Engine) Calls() Calls {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// FailPlay makes subsequent Play calls return err
func (e *Engine) FailPlay(err error) {
	e.mu.Lock()
	e.playErr = err
	e.mu.Unlock()
}

// SetPosition sets what CurrentTime reports
func (e *Engine) SetPosition(pos time.Duration) {
	e.mu.Lock()
	e.position = pos
	e.mu.Unlock()
}

// SetDuration sets what Duration reports
func (e *Engine) SetDuration(d time.Duration) {
	e.mu.Lock()
	e.duration = d
	e.mu.Unlock()
}

// Emit delivers an event of type t to the registered listeners
func (e *Engine) Emit(t api.EventType) {
	e.mu.Lock()
	switch t {
	case api.EventPlay:
		e.paused = false
	case api.EventPause:
		e.paused = true
	}
	e.mu.Unlock()
	e.listeners.Dispatch(t)
}

// Capture snapshots the listeners currently registered for t. Calling
// deliver later hands them an event of type t even if they have since been
// removed, the way an in-flight dispatch would.
func (e *Engine) Capture(t api.EventType) (deliver func()) {
	subs := e.listeners.Listeners(t)
	return func() {
		ev := api.MediaEvent{Type: t, At: time.Now()}
		for _, l := range subs {
			l.Handle(ev)
		}
	}
}

// ListenerCount returns the number of listeners for t
func (e *Engine) ListenerCount(t api.EventType) int {
	return e.listeners.Count(t)
}

// MirrorListeners returns the listener total across the four mirrored events
func (e *Engine) MirrorListeners() int {
	n := 0
	for _, t := range []api.EventType{api.EventTimeUpdate, api.EventLoadedMetadata, api.EventPlay, api.EventPause} {
		n += e.listeners.Count(t)
	}
	return n
}
