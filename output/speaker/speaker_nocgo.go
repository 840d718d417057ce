//go:build !((linux && cgo) || windows || darwin)

package speaker

import (
	"errors"
	"math"
	"sync"

	"PlayDeck/core/player"
)

// Available reports whether this build can play sound. Audio needs cgo for
// the native sound libraries.
const Available = false

var errUnavailable = errors.New("audio output needs a cgo build")

// Output keeps track of volume and source but makes no sound.
type Output struct {
	mu      sync.Mutex
	locator string
	level   float64
}

func New() *Output {
	return &Output{level: 1}
}

func (o *Output) OnEvent(func(player.MediaEvent)) {}

func (o *Output) SetSource(locator string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.locator = locator
	return nil
}

func (o *Output) Play() error {
	return errUnavailable
}

func (o *Output) Pause() {}

func (o *Output) Position() float64 {
	return 0
}

func (o *Output) SetPosition(float64) {}

func (o *Output) Duration() float64 {
	return math.NaN()
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
}

func (o *Output) Close() {}
