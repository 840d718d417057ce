package server

import (
	"math"
	"sync"
	"time"

	"PlayDeck/core/player"
	"PlayDeck/logger"
)

// Output command operations sent to browsers.
const (
	OpSource = "source"
	OpPlay   = "play"
	OpPause  = "pause"
	OpSeek   = "seek"
	OpVolume = "volume"
)

// Command tells the browser audio element what to do.
type Command struct {
	Op       string   `json:"op"`
	Locator  string   `json:"locator,omitempty"`
	Position *float64 `json:"position,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`
}

func f64(v float64) *float64 {
	return &v
}

// Report is what a browser sends back about its audio element.
type Report struct {
	Event    player.MediaEvent `json:"event,omitempty"`
	Locator  string            `json:"locator,omitempty"`
	Position float64           `json:"position"`
	Duration *float64          `json:"duration,omitempty"`
}

// RemoteOutput is a player.Output played by the browsers connected to a Hub.
// It keeps the last reported position and extrapolates it while playing.
type RemoteOutput struct {
	hub *Hub

	mu         sync.Mutex
	locator    string
	playing    bool
	position   float64
	reportedAt time.Time
	duration   float64
	volume     float64
	now        func() time.Time
}

func NewRemoteOutput(hub *Hub) *RemoteOutput {
	return &RemoteOutput{hub: hub, duration: math.NaN(), volume: 1, now: time.Now}
}

func (o *RemoteOutput) send(cmd Command) {
	if err := o.hub.BroadcastMessage(MsgTypeCommand, cmd); err != nil {
		logger.Warn("failed to encode output command", logger.ErrorField(err))
	}
}

func (o *RemoteOutput) SetSource(locator string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if locator == o.locator {
		return nil
	}
	o.locator = locator
	o.position = 0
	o.reportedAt = o.now()
	o.duration = math.NaN()
	o.send(Command{Op: OpSource, Locator: locator})
	return nil
}

func (o *RemoteOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = o.positionLocked()
	o.reportedAt = o.now()
	o.playing = true
	o.send(Command{Op: OpPlay})
	return nil
}

func (o *RemoteOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.playing {
		return
	}
	o.position = o.positionLocked()
	o.reportedAt = o.now()
	o.playing = false
	o.send(Command{Op: OpPause})
}

func (o *RemoteOutput) Position() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.positionLocked()
}

func (o *RemoteOutput) positionLocked() float64 {
	pos := o.position
	if o.playing {
		pos += o.now().Sub(o.reportedAt).Seconds()
	}
	if !math.IsNaN(o.duration) && pos > o.duration {
		pos = o.duration
	}
	return pos
}

func (o *RemoteOutput) SetPosition(seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = seconds
	o.reportedAt = o.now()
	o.send(Command{Op: OpSeek, Position: f64(seconds)})
}

func (o *RemoteOutput) Duration() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.duration
}

func (o *RemoteOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

func (o *RemoteOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
	o.send(Command{Op: OpVolume, Volume: f64(v)})
}

// Apply records a browser report and returns the media event it carries.
// Reports about a source other than the current one are ignored.
func (o *RemoteOutput) Apply(r Report) player.MediaEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r.Locator != "" && r.Locator != o.locator {
		return ""
	}
	if r.Event == player.MediaEnded {
		if !o.playing {
			return ""
		}
		// every connected browser reports the end; act on the first
		o.playing = false
	}
	o.position = r.Position
	o.reportedAt = o.now()
	if r.Duration != nil && !math.IsNaN(*r.Duration) {
		o.duration = *r.Duration
	}
	return r.Event
}

// Replay returns the commands that bring a newly connected browser in line.
func (o *RemoteOutput) Replay() []Command {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.locator == "" {
		return []Command{{Op: OpVolume, Volume: f64(o.volume)}}
	}
	cmds := []Command{
		{Op: OpSource, Locator: o.locator},
		{Op: OpVolume, Volume: f64(o.volume)},
		{Op: OpSeek, Position: f64(o.positionLocked())},
	}
	if o.playing {
		cmds = append(cmds, Command{Op: OpPlay})
	}
	return cmds
}
