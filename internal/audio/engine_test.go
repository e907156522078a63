package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/jscyril/playsync/api"
	playerrors "github.com/jscyril/playsync/pkg/errors"
	"github.com/spf13/afero"
)

// fakeOutput collects the streamers an engine queues; tests pull samples
// from them with drain instead of a sound device.
type fakeOutput struct {
	rate    beep.SampleRate
	device  sync.Mutex
	mu      sync.Mutex
	streams []beep.Streamer
	clears  int
}

func newFakeOutput(rate beep.SampleRate) *fakeOutput {
	return &fakeOutput{rate: rate}
}

func (o *fakeOutput) SampleRate() beep.SampleRate { return o.rate }

func (o *fakeOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streams = append(o.streams, s)
}

func (o *fakeOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streams = nil
	o.clears++
}

func (o *fakeOutput) Lock()   { o.device.Lock() }
func (o *fakeOutput) Unlock() { o.device.Unlock() }

func (o *fakeOutput) queued() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streams)
}

// drain streams the most recently queued streamer until it runs dry
func (o *fakeOutput) drain(t *testing.T) {
	t.Helper()
	o.mu.Lock()
	if len(o.streams) == 0 {
		o.mu.Unlock()
		t.Fatal("nothing queued")
	}
	s := o.streams[len(o.streams)-1]
	o.mu.Unlock()

	buf := make([][2]float64, 512)
	o.Lock()
	defer o.Unlock()
	for {
		if _, ok := s.Stream(buf); !ok {
			return
		}
	}
}

type nopCloser struct {
	beep.StreamSeeker
}

func (nopCloser) Close() error { return nil }

// silence builds a seekable source of length d
func silence(rate beep.SampleRate, d time.Duration) (beep.StreamSeekCloser, beep.Format) {
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	buf := beep.NewBuffer(format)
	buf.Append(beep.Silence(rate.N(d)))
	return nopCloser{buf.Streamer(0, buf.Len())}, format
}

// recorder collects event types delivered by an engine
type recorder struct {
	mu  sync.Mutex
	got []api.EventType
}

func record(e *Engine, types ...api.EventType) *recorder {
	r := &recorder{}
	l := api.NewListener(func(ev api.MediaEvent) {
		r.mu.Lock()
		r.got = append(r.got, ev.Type)
		r.mu.Unlock()
	})
	for _, t := range types {
		e.AddEventListener(t, l)
	}
	return r
}

func (r *recorder) events() []api.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.EventType(nil), r.got...)
}

func (r *recorder) count(t api.EventType) int {
	n := 0
	for _, got := range r.events() {
		if got == t {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.got = nil
	r.mu.Unlock()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func loaded(t *testing.T, d time.Duration) (*Engine, *fakeOutput) {
	t.Helper()
	out := newFakeOutput(100)
	engine := NewEngine(out)
	s, format := silence(100, d)
	if err := engine.Load("test", s, format); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return engine, out
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine(newFakeOutput(44100))

	if engine == nil {
		t.Fatal("NewEngine returned nil")
	}
	if !engine.Paused() {
		t.Error("Expected paused without a source")
	}
	if engine.Volume() != 1 {
		t.Errorf("Expected volume 1, got %f", engine.Volume())
	}
	if engine.Duration() != api.DurationUnknown {
		t.Errorf("Expected unknown duration, got %v", engine.Duration())
	}
	if engine.CurrentTime() != 0 {
		t.Errorf("Expected position 0, got %v", engine.CurrentTime())
	}
}

func TestCommands_NoSource(t *testing.T) {
	engine := NewEngine(newFakeOutput(44100))

	if err := engine.Play(); !errors.Is(err, playerrors.ErrNoSource) {
		t.Errorf("Play() error = %v, want ErrNoSource", err)
	}
	if err := engine.SetCurrentTime(time.Second); !errors.Is(err, playerrors.ErrNoSource) {
		t.Errorf("SetCurrentTime() error = %v, want ErrNoSource", err)
	}
	if err := engine.Pause(); err != nil {
		t.Errorf("Pause() error = %v", err)
	}
	if err := engine.Load("nil", nil, beep.Format{}); !errors.Is(err, playerrors.ErrNoSource) {
		t.Errorf("Load(nil) error = %v, want ErrNoSource", err)
	}
}

func TestLoad_ReportsMetadata(t *testing.T) {
	out := newFakeOutput(100)
	engine := NewEngine(out)
	rec := record(engine, api.EventLoadedMetadata, api.EventTimeUpdate, api.EventPause)

	s, format := silence(100, 212500*time.Millisecond)
	if err := engine.Load("long", s, format); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := engine.Duration(); got != 212500*time.Millisecond {
		t.Errorf("Expected duration 212.5s, got %v", got)
	}
	if rec.count(api.EventLoadedMetadata) != 1 {
		t.Errorf("Expected one loadedmetadata event, got %v", rec.events())
	}
	if rec.count(api.EventPause) != 0 {
		t.Errorf("Loading while paused should not report pause, got %v", rec.events())
	}
	if engine.Source() != "long" {
		t.Errorf("Expected source name long, got %q", engine.Source())
	}
}

func TestLoad_WhilePlaying(t *testing.T) {
	engine, out := loaded(t, 2*time.Second)
	if err := engine.Play(); err != nil {
		t.Fatal(err)
	}
	rec := record(engine, api.EventPause, api.EventLoadedMetadata)

	s, format := silence(100, time.Second)
	if err := engine.Load("next", s, format); err != nil {
		t.Fatal(err)
	}

	if got := rec.events(); len(got) != 2 || got[0] != api.EventPause || got[1] != api.EventLoadedMetadata {
		t.Errorf("Expected pause then loadedmetadata, got %v", got)
	}
	if out.clears != 1 {
		t.Errorf("Expected output to be cleared once, got %d", out.clears)
	}
	if !engine.Paused() {
		t.Error("New source should start paused")
	}
}

func TestPlayPause_Events(t *testing.T) {
	engine, out := loaded(t, 2*time.Second)
	rec := record(engine, api.EventPlay, api.EventPause)

	if err := engine.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := engine.Play(); err != nil {
		t.Fatalf("second Play() error = %v", err)
	}
	if engine.Paused() {
		t.Error("Expected playing")
	}

	if err := engine.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := engine.Pause(); err != nil {
		t.Fatalf("second Pause() error = %v", err)
	}

	if err := engine.Play(); err != nil {
		t.Fatal(err)
	}

	want := []api.EventType{api.EventPlay, api.EventPause, api.EventPlay}
	got := rec.events()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if out.queued() != 1 {
		t.Errorf("Resuming should reuse the queued pipeline, got %d streams", out.queued())
	}
}

func TestSetCurrentTime(t *testing.T) {
	engine, _ := loaded(t, time.Minute)
	rec := record(engine, api.EventTimeUpdate)

	if err := engine.SetCurrentTime(30 * time.Second); err != nil {
		t.Fatalf("SetCurrentTime() error = %v", err)
	}
	if got := engine.CurrentTime(); got != 30*time.Second {
		t.Errorf("Expected 30s, got %v", got)
	}
	if rec.count(api.EventTimeUpdate) != 1 {
		t.Errorf("Expected one timeupdate, got %v", rec.events())
	}

	if err := engine.SetCurrentTime(2 * time.Minute); err != nil {
		t.Fatalf("SetCurrentTime() past end error = %v", err)
	}
	if got := engine.CurrentTime(); got != time.Minute {
		t.Errorf("Expected position clamped to 1m, got %v", got)
	}

	if err := engine.SetCurrentTime(-time.Second); !errors.Is(err, playerrors.ErrInvalidPosition) {
		t.Errorf("Expected ErrInvalidPosition, got %v", err)
	}
}

func TestSetVolume_Valid(t *testing.T) {
	engine, _ := loaded(t, time.Second)

	tests := []struct {
		name    string
		volume  float64
		wantErr bool
	}{
		{"zero volume", 0.0, false},
		{"half volume", 0.5, false},
		{"full volume", 1.0, false},
		{"below zero", -0.1, true},
		{"above one", 1.1, true},
		{"not a number", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.SetVolume(tt.volume)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetVolume(%f) error = %v, wantErr %v", tt.volume, err, tt.wantErr)
			}
			if !tt.wantErr && engine.Volume() != tt.volume {
				t.Errorf("Expected volume %f, got %f", tt.volume, engine.Volume())
			}
		})
	}
}

func TestSetVolume_Gain(t *testing.T) {
	engine, _ := loaded(t, time.Second)

	_ = engine.SetVolume(0)
	if !engine.volume.Silent {
		t.Error("Zero volume should silence the output")
	}

	_ = engine.SetVolume(0.5)
	if engine.volume.Silent || engine.volume.Volume != -1 {
		t.Errorf("Expected half gain (base 2 exponent -1), got silent=%v volume=%f", engine.volume.Silent, engine.volume.Volume)
	}
}

func TestEndOfMedia(t *testing.T) {
	engine, out := loaded(t, time.Second)
	rec := record(engine, api.EventPause, api.EventEnded)

	if err := engine.Play(); err != nil {
		t.Fatal(err)
	}
	out.drain(t)

	waitFor(t, "ended event", func() bool { return rec.count(api.EventEnded) == 1 })
	if rec.count(api.EventPause) != 1 {
		t.Errorf("Engine should pause itself at the end, got %v", rec.events())
	}
	if !engine.Paused() {
		t.Error("Expected paused after the end")
	}
	if got := engine.CurrentTime(); got != time.Second {
		t.Errorf("Expected position at the end, got %v", got)
	}

	rec.reset()
	if err := engine.Play(); err != nil {
		t.Fatal(err)
	}
	if got := engine.CurrentTime(); got != 0 {
		t.Errorf("Playing after the end should restart, got %v", got)
	}
	if out.queued() != 2 {
		t.Errorf("Expected a new pipeline after the end, got %d", out.queued())
	}
}

func TestStart_TimeUpdates(t *testing.T) {
	out := newFakeOutput(100)
	engine := NewEngine(out, WithTickInterval(10*time.Millisecond))
	s, format := silence(100, time.Minute)
	_ = engine.Load("tick", s, format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	rec := record(engine, api.EventTimeUpdate)
	time.Sleep(50 * time.Millisecond)
	if n := rec.count(api.EventTimeUpdate); n != 0 {
		t.Errorf("Expected no time updates while paused, got %d", n)
	}

	_ = engine.Play()
	waitFor(t, "time update", func() bool { return rec.count(api.EventTimeUpdate) > 0 })
}

func TestClose(t *testing.T) {
	engine, _ := loaded(t, time.Second)
	rec := record(engine, api.EventLoadedMetadata)

	if err := engine.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	s, format := silence(100, time.Second)
	if err := engine.Load("late", s, format); !errors.Is(err, playerrors.ErrEngineClosed) {
		t.Errorf("Expected ErrEngineClosed, got %v", err)
	}
	if rec.count(api.EventLoadedMetadata) != 0 {
		t.Error("Listeners should be dropped on Close")
	}
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/music/song.mp3", true},
		{"/music/song.MP3", true},
		{"/music/song.wav", true},
		{"/music/song.flac", true},
		{"/music/song.ogg", false},
		{"/music/song.aac", false},
		{"/music/song.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			result := IsSupported(tt.path)
			if result != tt.expected {
				t.Errorf("IsSupported(%s) = %v, want %v", tt.path, result, tt.expected)
			}
		})
	}
}

// writeWAV writes a silent 16-bit stereo PCM file with the given frames
func writeWAV(t *testing.T, fs afero.Fs, path string, rate, frames int) {
	t.Helper()
	const channels, bits = 2, 16
	frameSize := channels * bits / 8
	dataSize := frames * frameSize

	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataSize))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*frameSize))
	binary.Write(&b, binary.LittleEndian, uint16(frameSize))
	binary.Write(&b, binary.LittleEndian, uint16(bits))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataSize))
	b.Write(make([]byte, dataSize))

	if err := afero.WriteFile(fs, path, b.Bytes(), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestOpenFile_WAV(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/music/tone.wav", 100, 250)

	s, format, err := OpenFile(fs, "/music/tone.wav")
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer s.Close()

	if format.SampleRate != 100 || format.NumChannels != 2 {
		t.Errorf("Unexpected format %+v", format)
	}
	if got := format.SampleRate.D(s.Len()); got != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s, got %v", got)
	}
}

func TestOpenFile_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/music/broken.wav", []byte("not a wav"), 0644)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"unsupported extension", "/music/song.ogg", playerrors.ErrInvalidFormat},
		{"missing file", "/music/missing.wav", os.ErrNotExist},
		{"undecodable", "/music/broken.wav", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := OpenFile(fs, tt.path)
			if err == nil {
				t.Fatal("Expected an error")
			}
			var perr *playerrors.PlayerError
			if !errors.As(err, &perr) || perr.Source != tt.path {
				t.Errorf("Expected a PlayerError for %s, got %v", tt.path, err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEngineOpen_FromFilesystem(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/music/tone.wav", 100, 250)

	e := NewEngine(newFakeOutput(100), WithFilesystem(fs))
	rec := record(e, api.EventLoadedMetadata)

	if err := e.Open("/music/tone.wav"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if e.Source() != "/music/tone.wav" {
		t.Errorf("Expected source /music/tone.wav, got %q", e.Source())
	}
	if got := e.Duration(); got != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s, got %v", got)
	}
	if rec.count(api.EventLoadedMetadata) != 1 {
		t.Errorf("Expected one loadedmetadata, got %v", rec.events())
	}

	if err := e.Open("/music/missing.wav"); err == nil {
		t.Error("Open of a missing file should fail")
	}
	if e.Source() != "/music/tone.wav" {
		t.Error("A failed Open should keep the loaded source")
	}
}
