//go:build (linux && cgo) || windows || darwin

package speaker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"PlayDeck/core/player"
	"PlayDeck/logger"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// Available reports whether this build can play sound.
const Available = true

var errNoSource = errors.New("no source loaded")

const fetchTimeout = 30 * time.Second

// Output is a player.Output on the default sound device.
type Output struct {
	mu sync.Mutex

	initialized bool
	sampleRate  beep.SampleRate
	onEvent     func(player.MediaEvent)

	locator  string
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64
	gen      int
	// drained is set once the speaker has dropped the finished stream.
	drained  bool
}

// New creates an output. The sound device is opened on the first SetSource.
func New() *Output {
	return &Output{sampleRate: beep.SampleRate(44100), level: 1}
}

// OnEvent sets the receiver of media events. It is called on its own goroutine.
func (o *Output) OnEvent(fn func(player.MediaEvent)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEvent = fn
}

func (o *Output) emit(ev player.MediaEvent) {
	if fn := o.onEvent; fn != nil {
		go fn(ev)
	}
}

func (o *Output) initSpeaker() error {
	if o.initialized {
		return nil
	}
	if err := speaker.Init(o.sampleRate, o.sampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	o.initialized = true
	return nil
}

func (o *Output) SetSource(locator string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if locator == o.locator && o.streamer != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	data, err := Fetch(ctx, locator)
	if err != nil {
		return err
	}
	streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := o.initSpeaker(); err != nil {
		streamer.Close()
		return err
	}

	o.closeLocked()
	o.locator = locator
	o.streamer = streamer
	o.format = format
	o.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, format.SampleRate, o.sampleRate, streamer), Paused: true}
	o.volume = &effects.Volume{Streamer: o.ctrl, Base: 2}
	o.applyVolumeLocked()
	o.queueLocked()

	logger.Debug("loaded source", logger.Float64("duration", format.SampleRate.D(streamer.Len()).Seconds()))
	o.emit(player.MediaDurationChange)
	o.emit(player.MediaCanPlay)
	return nil
}

// queueLocked hands the loaded chain to the speaker. The mixer drops a
// stream once it drains, so a finished source is queued again on Play.
func (o *Output) queueLocked() {
	o.gen++
	gen := o.gen
	o.drained = false
	speaker.Play(beep.Seq(o.volume, beep.Callback(func() {
		o.ended(gen)
	})))
}

// ended runs on the speaker goroutine with the speaker locked.
func (o *Output) ended(gen int) {
	go o.finish(gen)
}

func (o *Output) finish(gen int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return
	}
	o.drained = true
	o.emit(player.MediaEnded)
}

func (o *Output) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctrl == nil {
		return errNoSource
	}
	speaker.Lock()
	o.ctrl.Paused = false
	speaker.Unlock()
	if o.drained {
		o.queueLocked()
	}
	o.emit(player.MediaPlaying)
	return nil
}

func (o *Output) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctrl != nil {
		speaker.Lock()
		o.ctrl.Paused = true
		speaker.Unlock()
	}
}

func (o *Output) Position() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := o.streamer.Position()
	speaker.Unlock()
	return o.format.SampleRate.D(pos).Seconds()
}

func (o *Output) SetPosition(seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil {
		return
	}
	n := o.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	n = max(0, min(n, o.streamer.Len()-1))

	speaker.Lock()
	err := o.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		logger.Warn("seek failed", logger.ErrorField(err))
	}
}

func (o *Output) Duration() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil {
		return math.NaN()
	}
	return o.format.SampleRate.D(o.streamer.Len()).Seconds()
}

func (o *Output) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.level
}

func (o *Output) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.level = v
	if o.volume != nil {
		speaker.Lock()
		o.applyVolumeLocked()
		speaker.Unlock()
	}
}

// applyVolumeLocked maps the linear level onto the exponential volume effect.
func (o *Output) applyVolumeLocked() {
	o.volume.Silent = o.level <= 0
	if o.level > 0 {
		o.volume.Volume = math.Log2(o.level)
	}
}

// Close stops playback and releases the decoder.
func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeLocked()
}

func (o *Output) closeLocked() {
	o.gen++
	if o.initialized {
		speaker.Clear()
	}
	if o.streamer != nil {
		o.streamer.Close()
	}
	o.streamer = nil
	o.ctrl = nil
	o.volume = nil
	o.locator = ""
	o.drained = false
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
