package api

import "time"

// DurationUnknown is reported by engines before media metadata has loaded.
const DurationUnknown time.Duration = -1

// EventType identifies a media engine event
type EventType string

const (
	EventTimeUpdate     EventType = "timeupdate"
	EventLoadedMetadata EventType = "loadedmetadata"
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
	EventEnded          EventType = "ended"
)

// MediaEvent is delivered to listeners registered on an engine
type MediaEvent struct {
	Type EventType
	At   time.Time
}

// Listener wraps an event callback. Listeners are compared by pointer,
// so the same *Listener must be passed to remove what was added.
type Listener struct {
	fn func(MediaEvent)
}

// NewListener creates a listener around fn
func NewListener(fn func(MediaEvent)) *Listener {
	return &Listener{fn: fn}
}

// Handle invokes the listener callback
func (l *Listener) Handle(ev MediaEvent) {
	if l != nil && l.fn != nil {
		l.fn(ev)
	}
}

// Engine is an audio/video output that can be commanded and observed.
// Engines are owned by the caller; observers never create or close them.
type Engine interface {
	Play() error
	Pause() error
	Paused() bool

	// CurrentTime is the playback position; SetCurrentTime seeks.
	CurrentTime() time.Duration
	SetCurrentTime(pos time.Duration) error
	Duration() time.Duration

	Volume() float64
	SetVolume(level float64) error

	AddEventListener(t EventType, l *Listener)
	RemoveEventListener(t EventType, l *Listener)
}

// Track describes the loaded media source
type Track struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Album    string        `json:"album"`
	Genre    string        `json:"genre"`
	Year     int           `json:"year"`
	TrackNum int           `json:"track_number"`
	FilePath string        `json:"file_path"`
	Duration time.Duration `json:"duration"`
}
