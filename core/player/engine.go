// Package player implements the playback engine: a small state machine that
// drives an Output through the current track of a track list.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"PlayDeck/cache"
	"PlayDeck/core/notify"
	"PlayDeck/core/track"
	"PlayDeck/core/tracklist"
	"PlayDeck/logger"
	"PlayDeck/model"
)

var (
	ErrInvalidVolume   = errors.New("volume must be between 0 and 1")
	ErrInvalidFraction = errors.New("seek fraction must be a finite number")
)

const storeTimeout = 2 * time.Second

// Options tunes the engine.
type Options struct {
	SampleInterval    time.Duration
	PersistInterval   time.Duration // 0 disables periodic position writes
	PreviousThreshold float64
	DefaultVolume     float64
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		SampleInterval:    100 * time.Millisecond,
		PersistInterval:   time.Second,
		PreviousThreshold: 3,
		DefaultVolume:     0.5,
	}
}

// Engine owns the output and drives it through the track list. All methods
// are safe for concurrent use. Listeners run with the engine locked and must
// not call back into it.
type Engine struct {
	notify.Emitter

	mu     sync.Mutex
	tracks *tracklist.TrackList
	out    Output
	store  cache.Store
	opts   Options

	state  State
	repeat RepeatMode

	samplerGen  int
	samplerStop chan struct{}

	lastPersisted float64
	done          chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup
}

// New wires an engine to its track list and output and restores the volume
// from store. A non-empty track list starts the engine Paused.
func New(tracks *tracklist.TrackList, out Output, store cache.Store, opts Options) *Engine {
	e := &Engine{
		tracks:        tracks,
		out:           out,
		store:         store,
		opts:          opts,
		state:         Idle,
		lastPersisted: tracks.Position(),
		done:          make(chan struct{}),
	}

	e.restoreVolume()
	tracks.Subscribe(e.onTrackListEvent)

	if tracks.Len() > 0 {
		e.step(Input{Kind: InputNonEmpty})
	}

	if opts.PersistInterval > 0 {
		e.wg.Add(1)
		go e.persistLoop()
	}
	return e
}

func (e *Engine) restoreVolume() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	volume := e.opts.DefaultVolume
	raw, ok, err := e.store.Get(ctx, model.VolumeKey)
	switch {
	case err != nil:
		logger.Warn("failed to read stored volume", logger.ErrorField(err))
	case ok:
		if v, err := strconv.ParseFloat(raw, 64); err == nil && validVolume(v) {
			volume = v
		} else {
			logger.Warn("ignoring stored volume", logger.String("value", raw))
		}
	}
	e.out.SetVolume(volume)
}

// onTrackListEvent forwards track list notifications and follows the list
// between empty and non-empty. It runs with e.mu held.
func (e *Engine) onTrackListEvent(ev model.Event) {
	e.Emit(ev)
	switch ev.Type {
	case model.EventNotEmpty:
		e.step(Input{Kind: InputNonEmpty})
	case model.EventEmpty:
		e.step(Input{Kind: InputEmpty})
	}
}

func (e *Engine) input(kind InputKind) Input {
	return Input{
		Kind:      kind,
		Position:  e.tracks.Position(),
		Threshold: e.opts.PreviousThreshold,
		Repeat:    e.repeat,
	}
}

func (e *Engine) step(in Input) {
	next, effects := Step(e.state, in)
	if next != e.state {
		logger.Debug("player state change",
			logger.String("from", e.state.String()),
			logger.String("to", next.String()))
	}
	e.state = next
	e.apply(effects)
}

func (e *Engine) apply(effects []Effect) {
	for _, fx := range effects {
		switch fx.Kind {
		case EmitPlaying:
			e.Emit(model.Event{Type: model.EventPlaying})
		case EmitPausing:
			e.Emit(model.Event{Type: model.EventPausing})
		case EmitIdling:
			e.Emit(model.Event{Type: model.EventIdling})
		case EmitTime:
			e.emitTime()
		case SyncSource:
			if cur := e.tracks.Current(); cur != nil {
				if err := e.out.SetSource(cur.Source()); err != nil {
					e.emitError(fmt.Errorf("load source: %w", err))
				}
			}
		case SyncPosition:
			e.out.SetPosition(e.tracks.Position())
		case StartOutput:
			if err := e.out.Play(); err != nil {
				e.emitError(fmt.Errorf("start output: %w", err))
			}
		case HaltOutput:
			e.out.Pause()
		case StartSampler:
			e.startSampler()
		case StopSampler:
			e.stopSampler()
		case Advance:
			if err := e.tracks.Advance(fx.Offset); err != nil {
				e.emitError(err)
			}
		case SetPosition:
			e.tracks.SetPosition(fx.Seconds)
		}
	}
}

func (e *Engine) emitTime() {
	current, total := e.times()
	if math.IsNaN(total) || math.IsInf(total, 0) {
		// unknown duration; json cannot carry NaN, so the total is left out
		total = 0
	}
	e.Emit(model.Event{Type: model.EventTime, Current: current, Total: total})
}

func (e *Engine) emitError(err error) {
	logger.Warn("player error", logger.ErrorField(err))
	e.Emit(model.Event{Type: model.EventError, Message: err.Error()})
}

// startSampler begins copying the output position into the track list.
// Ticks from a sampler that has since been stopped are dropped.
func (e *Engine) startSampler() {
	e.stopSampler()
	e.samplerGen++
	gen := e.samplerGen
	stop := make(chan struct{})
	e.samplerStop = stop

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.opts.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.mu.Lock()
				if gen == e.samplerGen {
					e.tracks.SetPosition(e.out.Position())
					e.emitTime()
				}
				e.mu.Unlock()
			}
		}
	}()
}

func (e *Engine) stopSampler() {
	if e.samplerStop == nil {
		return
	}
	close(e.samplerStop)
	e.samplerStop = nil
	e.samplerGen++
}

func (e *Engine) persistLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.PersistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.mu.Lock()
			if pos := e.tracks.Position(); pos != e.lastPersisted {
				e.tracks.PersistPosition()
				e.lastPersisted = pos
			}
			e.mu.Unlock()
		}
	}
}

// Close stops the background goroutines and halts output.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.stopSampler()
		e.out.Pause()
		e.tracks.PersistPosition()
		close(e.done)
		e.mu.Unlock()
		e.wg.Wait()
	})
}

func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step(e.input(InputPlay))
}

func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step(e.input(InputPause))
}

func (e *Engine) Next() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.move(InputNext)
}

// Previous rewinds the current track when it has played past the threshold
// and steps back otherwise.
func (e *Engine) Previous() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.move(InputPrevious)
}

// move feeds a cursor step. The shuffle order is redrawn before each one.
func (e *Engine) move(kind InputKind) {
	e.tracks.Reshuffle()
	e.step(e.input(kind))
}

// Seek moves to seconds within the current track.
func (e *Engine) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seekLocked(seconds)
}

func (e *Engine) seekLocked(seconds float64) {
	in := e.input(InputSeek)
	in.Seconds = seconds
	e.step(in)
}

// SeekFraction seeks to floor(duration * f). It does nothing while the
// duration is unknown.
func (e *Engine) SeekFraction(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrInvalidFraction
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.out.Duration()
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return nil
	}
	e.seekLocked(math.Floor(d * f))
	return nil
}

// Stop pauses and rewinds to the start of the first track.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.step(e.input(InputPause))
	if e.state == Idle {
		return
	}
	e.tracks.SetPosition(0)
	if err := e.tracks.SetCurrentByIndex(0); err != nil {
		e.emitError(err)
		return
	}
	e.apply([]Effect{{Kind: SyncSource}, {Kind: SyncPosition}, {Kind: EmitTime}})
}

// SwitchTo starts playing t from the beginning. Failures are reported as
// error notifications.
func (e *Engine) SwitchTo(t *track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.step(e.input(InputPause))
	if err := e.tracks.SetCurrent(t); err != nil {
		e.emitError(fmt.Errorf("switch track: %w", err))
		return
	}
	e.tracks.SetPosition(0)
	e.step(e.input(InputPlay))
}

// Remove takes t out of the list, moving on to the next track first when t
// is current.
func (e *Engine) Remove(t *track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t != nil && t == e.tracks.Current() {
		e.move(InputNext)
	}
	if err := e.tracks.Remove(t); err != nil {
		e.emitError(fmt.Errorf("remove track: %w", err))
	}
}

// Reorder moves t by offset slots.
func (e *Engine) Reorder(t *track.Track, offset int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks.Reorder(t, offset)
}

// AddSources loads every source in parallel and appends the ones that
// resolve, in argument order. It returns how many were added.
func (e *Engine) AddSources(ctx context.Context, m track.Materializer, sources ...track.Source) int {
	pending := make([]*track.Pending, len(sources))
	for i, src := range sources {
		pending[i] = track.Load(ctx, src, m)
	}

	added := 0
	for _, p := range pending {
		t, err := p.Wait(ctx)

		e.mu.Lock()
		if err == nil {
			err = e.tracks.Add(t)
		}
		if err != nil {
			e.emitError(err)
		} else {
			added++
			logger.Info("track added",
				logger.String("name", p.Name()),
				logger.String("title", t.Tags().Title))
		}
		e.mu.Unlock()
	}
	return added
}

// AddDescriptors appends tracks built from records. Invalid records are
// reported and skipped.
func (e *Engine) AddDescriptors(ds ...model.Descriptor) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addDescriptorsLocked(ds)
}

func (e *Engine) addDescriptorsLocked(ds []model.Descriptor) int {
	added := 0
	for i, d := range ds {
		t, err := track.FromDescriptor(d)
		if err == nil {
			err = e.tracks.Add(t)
		}
		if err != nil {
			e.emitError(fmt.Errorf("playlist entry %d: %w", i, err))
			continue
		}
		added++
	}
	return added
}

// ImportPlaylist reads a playlist document and appends its tracks.
func (e *Engine) ImportPlaylist(r io.Reader) int {
	var pl model.Playlist
	err := json.NewDecoder(r).Decode(&pl)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.emitError(fmt.Errorf("read playlist: %w", err))
		return 0
	}
	return e.addDescriptorsLocked(pl.Tracks)
}

// ExportPlaylist writes the track list as a playlist document.
func (e *Engine) ExportPlaylist(w io.Writer) error {
	e.mu.Lock()
	pl := model.Playlist{Tracks: e.tracks.Descriptors()}
	e.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pl); err != nil {
		return fmt.Errorf("write playlist: %w", err)
	}
	return nil
}

// ToggleRepeat flips the repeat mode and returns whether repeat is now on.
func (e *Engine) ToggleRepeat() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.repeat == Repeat {
		e.repeat = NoRepeat
	} else {
		e.repeat = Repeat
	}
	on := e.repeat == Repeat
	e.Emit(model.Event{Type: model.EventRepeatChange, Enabled: on})
	return on
}

// ToggleShuffle flips the ordering mode and returns whether shuffle is now on.
func (e *Engine) ToggleShuffle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracks.ToggleShuffle()
}

// SetVolume applies v to the output and stores it. Values outside [0, 1]
// are rejected without any change.
func (e *Engine) SetVolume(v float64) error {
	if !validVolume(v) {
		return ErrInvalidVolume
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.out.SetVolume(v)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := e.store.Set(ctx, model.VolumeKey, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		logger.Warn("failed to store volume", logger.ErrorField(err))
	}
	return nil
}

func validVolume(v float64) bool {
	return v >= 0 && v <= 1
}

// Volume reads the live output volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out.Volume()
}

// Times returns the current position and the track duration in seconds.
func (e *Engine) Times() (current, total float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.times()
}

func (e *Engine) times() (float64, float64) {
	return e.tracks.Position(), e.out.Duration()
}

// HandleMediaEvent reacts to a notification from the output.
func (e *Engine) HandleMediaEvent(ev MediaEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev {
	case MediaCanPlay, MediaDurationChange:
		e.apply([]Effect{{Kind: SyncPosition}, {Kind: EmitTime}})
	case MediaEnded:
		// A finished track has played its whole length.
		if d := e.out.Duration(); !math.IsNaN(d) && !math.IsInf(d, 0) {
			e.tracks.SetPosition(d)
		}
		e.move(InputEnded)
	case MediaPlaying:
		logger.Debug("output started playing")
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Repeat() RepeatMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repeat
}

// Current returns the current track, nil when there is none.
func (e *Engine) Current() *track.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracks.Current()
}

// Track looks a track up by ID.
func (e *Engine) Track(id string) (*track.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracks.Find(id)
}

// TrackInfo is a track as listed to outer layers.
type TrackInfo struct {
	ID string `json:"id"`
	model.Descriptor
}

// Status is a snapshot of the engine.
type Status struct {
	State    string      `json:"state"`
	Repeat   bool        `json:"repeat"`
	Shuffle  bool        `json:"shuffle"`
	Current  string      `json:"current,omitempty"`
	Position float64     `json:"position"`
	Duration *float64    `json:"duration,omitempty"`
	Volume   float64     `json:"volume"`
	Tracks   []TrackInfo `json:"tracks"`
}

// Status returns a snapshot for outer layers. Empty slots are left out.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		State:    e.state.String(),
		Repeat:   e.repeat == Repeat,
		Shuffle:  e.tracks.Shuffled(),
		Position: e.tracks.Position(),
		Volume:   e.out.Volume(),
		Tracks:   []TrackInfo{},
	}
	if cur := e.tracks.Current(); cur != nil {
		st.Current = cur.ID()
	}
	if d := e.out.Duration(); !math.IsNaN(d) && !math.IsInf(d, 0) {
		st.Duration = &d
	}
	for _, t := range e.tracks.Tracks() {
		if t != nil {
			st.Tracks = append(st.Tracks, TrackInfo{ID: t.ID(), Descriptor: t.Descriptor()})
		}
	}
	return st
}
