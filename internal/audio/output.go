package audio

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output is the device an engine streams to. Lock and Unlock guard any
// state the output's streaming goroutine may be reading.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

// SpeakerOutput plays through beep's speaker package, initialised lazily
// on first use at a fixed sample rate.
type SpeakerOutput struct {
	rate    beep.SampleRate
	buffer  time.Duration
	initErr error
	once    sync.Once
}

// NewSpeakerOutput creates a speaker output running at rate
func NewSpeakerOutput(rate beep.SampleRate, buffer time.Duration) *SpeakerOutput {
	if buffer <= 0 {
		buffer = time.Second / 10
	}
	return &SpeakerOutput{rate: rate, buffer: buffer}
}

// Init initialises the speaker; later calls return the first result
func (o *SpeakerOutput) Init() error {
	o.once.Do(func() {
		o.initErr = speaker.Init(o.rate, o.rate.N(o.buffer))
	})
	return o.initErr
}

func (o *SpeakerOutput) SampleRate() beep.SampleRate { return o.rate }

func (o *SpeakerOutput) Play(s beep.Streamer) { speaker.Play(s) }

func (o *SpeakerOutput) Clear() { speaker.Clear() }

func (o *SpeakerOutput) Lock() { speaker.Lock() }

func (o *SpeakerOutput) Unlock() { speaker.Unlock() }
