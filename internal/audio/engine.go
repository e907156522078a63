package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/jscyril/playsync/api"
	playerrors "github.com/jscyril/playsync/pkg/errors"
	"github.com/jscyril/playsync/pkg/events"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Ensure Engine implements Engine interface at compile time
var _ api.Engine = (*Engine)(nil)

// DefaultTickInterval is how often time updates fire while playing
const DefaultTickInterval = 250 * time.Millisecond

const resampleQuality = 4

// Engine plays one media source at a time through an Output and reports
// state changes as events. All commands return immediately.
type Engine struct {
	listeners *events.Dispatcher
	output    Output
	fs        afero.Fs
	log       *logrus.Entry
	tick      time.Duration

	mu         sync.Mutex
	source     string
	streamer   beep.StreamSeekCloser
	format     beep.Format
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	level      float64
	queued     bool // pipeline handed to the output and not yet finished
	ended      bool
	generation int
	closed     bool
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithTickInterval sets the time update interval
func WithTickInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.tick = d
		}
	}
}

// WithEngineLogger sets the engine logger
func WithEngineLogger(log *logrus.Entry) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithFilesystem sets where Open reads files from
func WithFilesystem(fs afero.Fs) EngineOption {
	return func(e *Engine) {
		if fs != nil {
			e.fs = fs
		}
	}
}

// NewEngine creates an engine with no source loaded
func NewEngine(output Output, opts ...EngineOption) *Engine {
	e := &Engine{
		listeners: events.NewDispatcher(),
		output:    output,
		fs:        afero.NewOsFs(),
		log:       logrus.WithField("component", "audio"),
		tick:      DefaultTickInterval,
		level:     1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start emits time updates while playing until ctx ends
func (e *Engine) Start(ctx context.Context) {
	go e.trackPosition(ctx)
}

func (e *Engine) trackPosition(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.Paused() {
				e.listeners.Dispatch(api.EventTimeUpdate)
			}
		}
	}
}

// Load replaces the current source with s. A playing source is paused
// first; the new source starts paused at position zero.
func (e *Engine) Load(name string, s beep.StreamSeekCloser, format beep.Format) error {
	if s == nil {
		return playerrors.ErrNoSource
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return playerrors.ErrEngineClosed
	}

	wasPlaying := e.ctrl != nil && !e.ctrl.Paused
	e.releaseLocked()

	e.source = name
	e.streamer = s
	e.format = format
	e.ctrl = &beep.Ctrl{Streamer: s, Paused: true}
	e.volume = &effects.Volume{Streamer: e.ctrl, Base: 2}
	e.applyVolumeLocked()
	e.generation++
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"source":      name,
		"sample_rate": format.SampleRate,
		"duration":    format.SampleRate.D(s.Len()),
	}).Debug("source loaded")

	if wasPlaying {
		e.listeners.Dispatch(api.EventPause)
	}
	e.listeners.Dispatch(api.EventLoadedMetadata)
	e.listeners.Dispatch(api.EventTimeUpdate)
	return nil
}

// Open decodes the file at path and loads it
func (e *Engine) Open(path string) error {
	s, format, err := OpenFile(e.fs, path)
	if err != nil {
		return err
	}
	if err := e.Load(path, s, format); err != nil {
		s.Close()
		return err
	}
	return nil
}

// Source returns the name of the loaded source
func (e *Engine) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// Play resumes playback, restarting from the beginning if the source had
// played to its end.
func (e *Engine) Play() error {
	e.mu.Lock()
	if e.streamer == nil {
		e.mu.Unlock()
		return playerrors.ErrNoSource
	}
	if !e.ctrl.Paused {
		e.mu.Unlock()
		return nil
	}

	if e.ended && !e.queued {
		if err := e.streamer.Seek(0); err != nil {
			e.mu.Unlock()
			return playerrors.NewPlayerError("play", e.source, err)
		}
	}
	e.ended = false

	if e.queued {
		e.output.Lock()
		e.ctrl.Paused = false
		e.output.Unlock()
	} else {
		e.ctrl.Paused = false
		e.output.Play(e.pipelineLocked())
		e.queued = true
	}
	e.mu.Unlock()

	e.listeners.Dispatch(api.EventPlay)
	return nil
}

// Pause pauses playback. Pausing without a source or while already
// paused does nothing.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.streamer == nil || e.ctrl.Paused {
		e.mu.Unlock()
		return nil
	}
	e.withOutputLocked(func() { e.ctrl.Paused = true })
	e.mu.Unlock()

	e.listeners.Dispatch(api.EventPause)
	return nil
}

// Paused reports whether playback is paused or no source is loaded
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctrl == nil {
		return true
	}

	paused := true
	e.withOutputLocked(func() { paused = e.ctrl.Paused })
	return paused
}

// CurrentTime returns the playback position
func (e *Engine) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streamer == nil {
		return 0
	}

	var pos int
	e.withOutputLocked(func() { pos = e.streamer.Position() })
	return e.format.SampleRate.D(pos)
}

// SetCurrentTime seeks to pos, clamped to the source length
func (e *Engine) SetCurrentTime(pos time.Duration) error {
	if pos < 0 {
		return playerrors.ErrInvalidPosition
	}

	e.mu.Lock()
	if e.streamer == nil {
		e.mu.Unlock()
		return playerrors.ErrNoSource
	}

	n := e.format.SampleRate.N(pos)
	if length := e.streamer.Len(); n > length {
		n = length
	}

	var err error
	e.withOutputLocked(func() { err = e.streamer.Seek(n) })
	if err != nil {
		e.mu.Unlock()
		return playerrors.NewPlayerError("seek", e.source, err)
	}
	if n < e.streamer.Len() {
		e.ended = false
	}
	e.mu.Unlock()

	e.listeners.Dispatch(api.EventTimeUpdate)
	return nil
}

// Duration returns the source length, or DurationUnknown with no source
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streamer == nil {
		return api.DurationUnknown
	}
	return e.format.SampleRate.D(e.streamer.Len())
}

// Volume returns the volume level (0.0 to 1.0)
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// SetVolume sets the volume level (0.0 to 1.0) as a linear gain
func (e *Engine) SetVolume(level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return playerrors.ErrInvalidVolume
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = level
	if e.volume != nil {
		e.withOutputLocked(e.applyVolumeLocked)
	}
	return nil
}

// AddEventListener registers l for events of type t
func (e *Engine) AddEventListener(t api.EventType, l *api.Listener) {
	e.listeners.Add(t, l)
}

// RemoveEventListener unregisters l from events of type t
func (e *Engine) RemoveEventListener(t api.EventType, l *api.Listener) {
	e.listeners.Remove(t, l)
}

// Close stops playback, releases the source and drops all listeners
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	err := e.releaseLocked()
	e.mu.Unlock()

	e.listeners.Clear()
	return err
}

// pipelineLocked builds the streamer handed to the output for the
// current source generation
func (e *Engine) pipelineLocked() beep.Streamer {
	gen := e.generation

	var s beep.Streamer = e.volume
	if rate := e.output.SampleRate(); rate != e.format.SampleRate {
		s = beep.Resample(resampleQuality, e.format.SampleRate, rate, s)
	}

	// The callback runs on the output goroutine while it holds its own
	// lock, so finishing is handed off.
	return beep.Seq(s, beep.Callback(func() {
		go e.finish(gen)
	}))
}

// finish handles the pipeline of generation gen running dry
func (e *Engine) finish(gen int) {
	e.mu.Lock()
	if gen != e.generation || e.streamer == nil {
		e.mu.Unlock()
		return
	}

	wasPlaying := !e.ctrl.Paused
	e.queued = false
	e.ctrl.Paused = true
	e.ended = e.streamer.Position() >= e.streamer.Len()
	source := e.source
	e.mu.Unlock()

	e.log.WithField("source", source).Debug("playback finished")

	e.listeners.Dispatch(api.EventTimeUpdate)
	if wasPlaying {
		e.listeners.Dispatch(api.EventPause)
	}
	e.listeners.Dispatch(api.EventEnded)
}

func (e *Engine) releaseLocked() error {
	if e.queued {
		e.output.Clear()
	}

	var err error
	if e.streamer != nil {
		err = e.streamer.Close()
	}

	e.streamer = nil
	e.ctrl = nil
	e.volume = nil
	e.source = ""
	e.queued = false
	e.ended = false
	e.generation++
	return err
}

// withOutputLocked runs fn under the output lock while the output may be
// streaming this source
func (e *Engine) withOutputLocked(fn func()) {
	if e.queued {
		e.output.Lock()
		defer e.output.Unlock()
	}
	fn()
}

func (e *Engine) applyVolumeLocked() {
	if e.level == 0 {
		e.volume.Silent = true
		e.volume.Volume = 0
		return
	}
	e.volume.Silent = false
	e.volume.Volume = math.Log2(e.level)
}
