// Package playback mirrors a media engine's playback state and exposes a
// small control surface over it.
package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jscyril/playsync/api"
	playerrors "github.com/jscyril/playsync/pkg/errors"
	"github.com/jscyril/playsync/pkg/observable"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
)

// DefaultVolume is the mirrored volume before SetVolume is called
const DefaultVolume = 1.0

// State is a point-in-time copy of the mirror
type State struct {
	Playing     bool
	CurrentTime time.Duration
	Duration    time.Duration
	Volume      float64
}

type binding struct {
	event    api.EventType
	listener *api.Listener
}

// attachment is one Attach call: the engine and the listeners installed
// on it. Listeners only act while their attachment is the current one.
type attachment struct {
	engine   api.Engine
	bindings []binding
}

// Synchronizer keeps mirror fields in step with the engine held by an
// EngineRef. Playing, position and duration only change in response to
// engine events; volume is set directly by SetVolume.
type Synchronizer struct {
	ref *EngineRef
	log *logrus.Entry

	isPlaying   *observable.Value[bool]
	currentTime *observable.Value[time.Duration]
	duration    *observable.Value[time.Duration]
	volume      *observable.Value[float64]

	attached mo.Option[*attachment]
	mu       sync.Mutex
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithLogger sets the logger used for lifecycle and command failures
func WithLogger(log *logrus.Entry) Option {
	return func(s *Synchronizer) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a synchronizer observing ref. The engine is not attached
// until Attach, Bind or Follow is called.
func New(ref *EngineRef, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		ref:         ref,
		log:         logrus.WithField("component", "playback"),
		isPlaying:   observable.NewValue(false),
		currentTime: observable.NewValue(time.Duration(0)),
		duration:    observable.NewValue(time.Duration(0)),
		volume:      observable.NewValue(DefaultVolume),
		attached:    mo.None[*attachment](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// listen wraps fn so it only runs while a is the current attachment. The
// lock is held through fn, so once Detach returns no handler is mid-write.
// Engines dispatch outside their own locks, so fn may query the engine.
func (s *Synchronizer) listen(a *attachment, fn func(api.Engine)) *api.Listener {
	return api.NewListener(func(api.MediaEvent) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if current, ok := s.attached.Get(); ok && current == a {
			fn(a.engine)
		}
	})
}

// Attach registers the mirror listeners on the referenced engine. It does
// nothing when the reference is empty or an engine is already attached.
func (s *Synchronizer) Attach() {
	e, ok := s.ref.Get().Get()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached.IsPresent() {
		return
	}
	s.attachLocked(e)
}

// Detach removes the listeners installed by Attach from the engine they
// were installed on. It is safe to call when nothing is attached.
func (s *Synchronizer) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Synchronizer) attachLocked(e api.Engine) {
	a := &attachment{engine: e}
	a.bindings = []binding{
		{api.EventTimeUpdate, s.listen(a, func(e api.Engine) { s.currentTime.Set(e.CurrentTime()) })},
		{api.EventLoadedMetadata, s.listen(a, func(e api.Engine) { s.duration.Set(e.Duration()) })},
		{api.EventPlay, s.listen(a, func(api.Engine) { s.isPlaying.Set(true) })},
		{api.EventPause, s.listen(a, func(api.Engine) { s.isPlaying.Set(false) })},
	}

	for _, b := range a.bindings {
		e.AddEventListener(b.event, b.listener)
	}
	s.attached = mo.Some(a)
	s.log.Debug("attached to engine")
}

func (s *Synchronizer) detachLocked() {
	a, ok := s.attached.Get()
	if !ok {
		return
	}
	for _, b := range a.bindings {
		a.engine.RemoveEventListener(b.event, b.listener)
	}
	s.attached = mo.None[*attachment]()
	s.log.Debug("detached from engine")
}

// Attached reports whether listeners are currently installed
func (s *Synchronizer) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached.IsPresent()
}

// Bind attaches now and detaches exactly once, when release is called or
// ctx ends, whichever comes first.
func (s *Synchronizer) Bind(ctx context.Context) (release func()) {
	s.Attach()

	var once sync.Once
	done := make(chan struct{})
	release = func() {
		once.Do(func() {
			close(done)
			s.Detach()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			release()
		case <-done:
		}
	}()
	return release
}

// Follow keeps the attachment in line with the reference until ctx ends:
// a new engine is attached, a replaced engine is swapped, and a cleared
// reference detaches. Follow blocks and detaches before returning.
func (s *Synchronizer) Follow(ctx context.Context) {
	changes := s.ref.Changes()
	defer s.ref.StopChanges(changes)
	defer s.Detach()

	s.reconcile(s.ref.Get())
	for {
		select {
		case <-ctx.Done():
			return
		case ref, ok := <-changes:
			if !ok {
				return
			}
			s.reconcile(ref)
		}
	}
}

func (s *Synchronizer) reconcile(ref mo.Option[api.Engine]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := ref.Get()
	if !ok {
		s.detachLocked()
		return
	}
	if current, attached := s.attached.Get(); attached && current.engine == next {
		return
	}
	s.detachLocked()
	s.attachLocked(next)
}

// TogglePlay asks the engine to pause when the mirror says it is playing,
// and to play otherwise. The mirror itself only changes once the engine
// reports play or pause.
func (s *Synchronizer) TogglePlay() error {
	e, ok := s.ref.Get().Get()
	if !ok {
		return nil
	}

	if s.isPlaying.Get() {
		if err := e.Pause(); err != nil {
			s.log.WithError(err).Warn("pause rejected")
			return playerrors.NewPlayerError("pause", "", err)
		}
		return nil
	}

	if err := e.Play(); err != nil {
		s.log.WithError(err).Warn("play rejected")
		return playerrors.NewPlayerError("play", "", err)
	}
	return nil
}

// SetVolume sets the engine volume and the mirrored volume to level before
// returning. Levels outside [0, 1] are rejected and change nothing.
func (s *Synchronizer) SetVolume(level float64) error {
	e, ok := s.ref.Get().Get()
	if !ok {
		return nil
	}

	if math.IsNaN(level) || level < 0 || level > 1 {
		return playerrors.ErrInvalidVolume
	}

	if err := e.SetVolume(level); err != nil {
		s.log.WithError(err).WithField("level", level).Warn("volume rejected")
		return playerrors.NewPlayerError("volume", "", err)
	}
	s.volume.Set(level)
	return nil
}

// Seek moves the engine to pos. The mirrored position follows on the
// engine's next time update.
func (s *Synchronizer) Seek(pos time.Duration) error {
	e, ok := s.ref.Get().Get()
	if !ok {
		return nil
	}

	if pos < 0 {
		return playerrors.ErrInvalidPosition
	}

	if err := e.SetCurrentTime(pos); err != nil {
		s.log.WithError(err).WithField("position", pos).Warn("seek rejected")
		return playerrors.NewPlayerError("seek", "", err)
	}
	return nil
}

// IsPlaying is true between the engine's play and pause events
func (s *Synchronizer) IsPlaying() observable.Reader[bool] { return s.isPlaying }

// CurrentTime is the last position the engine reported
func (s *Synchronizer) CurrentTime() observable.Reader[time.Duration] { return s.currentTime }

// Duration is the media length reported once metadata loads
func (s *Synchronizer) Duration() observable.Reader[time.Duration] { return s.duration }

// Volume is the last level set through SetVolume
func (s *Synchronizer) Volume() observable.Reader[float64] { return s.volume }

// Snapshot returns the current mirror
func (s *Synchronizer) Snapshot() State {
	return State{
		Playing:     s.isPlaying.Get(),
		CurrentTime: s.currentTime.Get(),
		Duration:    s.duration.Get(),
		Volume:      s.volume.Get(),
	}
}
