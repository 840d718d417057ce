// Package tracklist keeps the ordered, optionally shuffled list of tracks the
// player works through, together with the current track and its position.
package tracklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"PlayDeck/cache"
	"PlayDeck/core/notify"
	"PlayDeck/core/track"
	"PlayDeck/logger"
	"PlayDeck/metrics"
	"PlayDeck/model"

	"github.com/samber/lo"
)

var (
	ErrTrackNotFound           = errors.New("track is not in the track list")
	ErrEmptyCollection         = errors.New("track list is empty")
	ErrMalformedPersistedState = errors.New("persisted track list is malformed")
)

const storeTimeout = 2 * time.Second

// TrackList is not safe for concurrent use; its owner serializes access.
//
// Slots in tracks may be nil. Moving a track past the end of the list pads
// it with empty slots, and those slots are kept rather than compacted.
type TrackList struct {
	notify.Emitter

	store cache.Store
	rng   *rand.Rand

	tracks       []*track.Track
	shuffleOrder []int
	current      *track.Track
	position     float64
	shuffle      bool
}

// Option configures a TrackList.
type Option func(*TrackList)

// WithRand sets the random source used for reshuffling.
func WithRand(r *rand.Rand) Option {
	return func(tl *TrackList) {
		tl.rng = r
	}
}

// New creates a track list backed by store and rehydrates any state found
// there. Malformed state clears the store and starts empty; a store that
// cannot be read is left untouched and the list starts empty in memory.
func New(store cache.Store, opts ...Option) *TrackList {
	tl := &TrackList{store: store}
	for _, opt := range opts {
		opt(tl)
	}
	if tl.rng == nil {
		tl.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if err := tl.load(); err != nil {
		tl.reset()
		if errors.Is(err, ErrMalformedPersistedState) {
			logger.Warn("discarding persisted track list", logger.ErrorField(err))
			tl.clearStore()
		} else {
			logger.Error("failed to read persisted track list, starting empty", logger.ErrorField(err))
		}
	}
	return tl
}

// Add appends a fully resolved track.
func (tl *TrackList) Add(t *track.Track) error {
	if t == nil {
		return track.ErrInvalidTrackSource
	}

	tl.tracks = append(tl.tracks, t)
	tl.shuffleOrder = append(tl.shuffleOrder, len(tl.tracks)-1)
	tl.Reshuffle()

	tl.Emit(model.Event{Type: model.EventChanged, Change: model.ChangeAdd, TrackID: t.ID()})

	if tl.current == nil {
		if err := tl.SetCurrentByIndex(0); err != nil {
			return err
		}
	}
	if len(tl.tracks) == 1 {
		tl.Emit(model.Event{Type: model.EventNotEmpty})
	}

	metrics.Tracks.Set(float64(tl.Len()))
	tl.persist()
	return nil
}

// Remove takes t out of the list. Callers should move the cursor away from t
// first; if t is current anyway, the track now occupying its slot becomes current.
func (tl *TrackList) Remove(t *track.Track) error {
	idx := tl.indexOf(t)
	if idx < 0 {
		return ErrTrackNotFound
	}

	tl.tracks = append(tl.tracks[:idx], tl.tracks[idx+1:]...)
	tl.shuffleOrder = lo.Without(tl.shuffleOrder, idx)
	for i, v := range tl.shuffleOrder {
		if v > idx {
			tl.shuffleOrder[i] = v - 1
		}
	}

	tl.Emit(model.Event{Type: model.EventChanged, Change: model.ChangeRemove, TrackID: t.ID()})

	if tl.current == t {
		tl.current = nil
		if len(tl.tracks) > 0 {
			tl.current = tl.pick(min(idx, len(tl.tracks)-1))
			tl.position = 0
			tl.emitCurrent()
		}
	}
	if len(tl.tracks) == 0 {
		tl.Emit(model.Event{Type: model.EventEmpty})
	}

	metrics.Tracks.Set(float64(tl.Len()))
	tl.persist()
	return nil
}

// Reorder moves t by offset slots. Moving past the end pads the list with
// empty slots up to the target position. Unknown tracks are ignored.
func (tl *TrackList) Reorder(t *track.Track, offset int) {
	from := tl.indexOf(t)
	if from < 0 {
		return
	}
	to := from + offset

	for len(tl.tracks) <= to {
		tl.tracks = append(tl.tracks, nil)
		tl.shuffleOrder = append(tl.shuffleOrder, len(tl.tracks)-1)
	}

	tl.tracks = append(tl.tracks[:from], tl.tracks[from+1:]...)
	if to < 0 {
		// negative targets count back from the end
		to = max(len(tl.tracks)+to, 0)
	}
	tl.tracks = append(tl.tracks[:to], append([]*track.Track{t}, tl.tracks[to:]...)...)

	tl.persist()
}

// SetCurrentByIndex makes the track at n current, or the first track when n
// does not name a track.
func (tl *TrackList) SetCurrentByIndex(n int) error {
	first := tl.First()
	if first == nil {
		return ErrEmptyCollection
	}

	next := first
	if n >= 0 && n < len(tl.tracks) && tl.tracks[n] != nil {
		next = tl.tracks[n]
	}
	return tl.SetCurrent(next)
}

// SetCurrent makes t the current track.
func (tl *TrackList) SetCurrent(t *track.Track) error {
	if tl.indexOf(t) < 0 {
		return ErrTrackNotFound
	}
	tl.current = t
	tl.persist()
	tl.emitCurrent()
	return nil
}

// Advance moves the cursor by offset in the active ordering and rewinds to 0.
func (tl *TrackList) Advance(offset int) error {
	if len(tl.tracks) == 0 {
		return ErrEmptyCollection
	}

	tl.position = 0
	return tl.SetCurrentByIndex(tl.targetIndex(offset))
}

// targetIndex maps offset through the active ordering, stepping further in
// the same direction past empty slots.
func (tl *TrackList) targetIndex(offset int) int {
	step := 1
	if offset < 0 {
		step = -1
	}
	target := -1
	for range len(tl.tracks) {
		if tl.shuffle {
			target = tl.shuffledIndex(offset)
		} else {
			target = tl.sequentialIndex(offset)
		}
		if tl.tracks[target] != nil {
			break
		}
		offset += step
	}
	return target
}

func (tl *TrackList) sequentialIndex(offset int) int {
	n := len(tl.tracks)
	return mod(offset+n+tl.CurrentIndex(), n)
}

func (tl *TrackList) shuffledIndex(offset int) int {
	n := len(tl.tracks)
	pos := lo.IndexOf(tl.shuffleOrder, tl.CurrentIndex())
	return tl.shuffleOrder[mod(offset+n+pos, n)]
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}

// ToggleShuffle flips between sequential and shuffled order.
func (tl *TrackList) ToggleShuffle() bool {
	tl.SetShuffle(!tl.shuffle)
	return tl.shuffle
}

// SetShuffle forces a mode. Turning shuffle on draws a fresh permutation.
func (tl *TrackList) SetShuffle(enabled bool) {
	if enabled && !tl.shuffle {
		tl.Reshuffle()
	}
	tl.shuffle = enabled
	tl.Emit(model.Event{Type: model.EventShuffleChange, Enabled: enabled})
	tl.persist()
}

// Reshuffle permutes the shuffle order in place, walking from the last slot
// down to slot 1 and swapping each with a slot in [1, i]. Slot 0 keeps its
// entry, so the result is not a uniform shuffle of the whole list.
func (tl *TrackList) Reshuffle() {
	for i := len(tl.shuffleOrder) - 1; i >= 1; i-- {
		j := 1 + tl.rng.Intn(i)
		tl.shuffleOrder[i], tl.shuffleOrder[j] = tl.shuffleOrder[j], tl.shuffleOrder[i]
	}
}

// Position is the playback position of the current track in seconds.
func (tl *TrackList) Position() float64 {
	return tl.position
}

// SetPosition records a playback position. Negative values clamp to 0.
func (tl *TrackList) SetPosition(seconds float64) {
	tl.position = max(seconds, 0)
}

// PersistPosition rewrites only the position of an already stored record.
func (tl *TrackList) PersistPosition() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	raw, ok, err := tl.store.Get(ctx, model.TrackListKey)
	if err != nil {
		logger.Warn("failed to read track list for position update", logger.ErrorField(err))
		return
	}
	if !ok {
		return
	}

	var rec model.PersistedTrackList
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		logger.Warn("stored track list is malformed, clearing it", logger.ErrorField(err))
		tl.clearStore()
		return
	}
	rec.PositionSeconds = tl.position
	tl.write(ctx, rec)
}

func (tl *TrackList) Len() int {
	return len(tl.tracks)
}

// Tracks returns a copy of the slots, including empty ones.
func (tl *TrackList) Tracks() []*track.Track {
	return append([]*track.Track(nil), tl.tracks...)
}

// ShuffleOrder returns a copy of the shuffle permutation.
func (tl *TrackList) ShuffleOrder() []int {
	return append([]int(nil), tl.shuffleOrder...)
}

func (tl *TrackList) Shuffled() bool {
	return tl.shuffle
}

// Current returns the current track, nil when the list is empty.
func (tl *TrackList) Current() *track.Track {
	return tl.current
}

// CurrentIndex returns the slot of the current track, or -1.
func (tl *TrackList) CurrentIndex() int {
	return tl.indexOf(tl.current)
}

// First returns the first track, skipping empty slots.
func (tl *TrackList) First() *track.Track {
	t, _ := lo.Find(tl.tracks, func(t *track.Track) bool { return t != nil })
	return t
}

// Contains reports whether t is in the list.
func (tl *TrackList) Contains(t *track.Track) bool {
	return tl.indexOf(t) >= 0
}

// Find looks a track up by ID.
func (tl *TrackList) Find(id string) (*track.Track, bool) {
	return lo.Find(tl.tracks, func(t *track.Track) bool { return t != nil && t.ID() == id })
}

// Descriptors returns the record form of every track, skipping empty slots.
func (tl *TrackList) Descriptors() []model.Descriptor {
	return lo.Map(tl.real(), func(t *track.Track, _ int) model.Descriptor { return t.Descriptor() })
}

func (tl *TrackList) real() []*track.Track {
	return lo.Filter(tl.tracks, func(t *track.Track, _ int) bool { return t != nil })
}

func (tl *TrackList) indexOf(t *track.Track) int {
	if t == nil {
		return -1
	}
	return lo.IndexOf(tl.tracks, t)
}

// pick returns the track at n, or the first track if slot n is empty.
func (tl *TrackList) pick(n int) *track.Track {
	if t := tl.tracks[n]; t != nil {
		return t
	}
	return tl.First()
}

func (tl *TrackList) emitCurrent() {
	ev := model.Event{Type: model.EventCurrentTrack}
	if tl.current != nil {
		ev.TrackID = tl.current.ID()
	}
	tl.Emit(ev)
}

func (tl *TrackList) snapshot() model.PersistedTrackList {
	real := tl.real()
	return model.PersistedTrackList{
		PositionSeconds: tl.position,
		CurrentTrack:    lo.IndexOf(real, tl.current),
		DoesShuffle:     tl.shuffle,
		Tracks:          tl.Descriptors(),
	}
}

func (tl *TrackList) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	tl.write(ctx, tl.snapshot())
}

// write stores rec. Failures are logged and playback carries on in memory.
func (tl *TrackList) write(ctx context.Context, rec model.PersistedTrackList) {
	data, err := json.Marshal(rec)
	if err != nil {
		logger.Error("failed to encode track list", logger.ErrorField(err))
		return
	}
	if err := tl.store.Set(ctx, model.TrackListKey, string(data)); err != nil {
		metrics.StoreWriteFailures.Inc()
		if errors.Is(err, cache.ErrQuotaExceeded) {
			logger.Warn("track list exceeds store quota, keeping it in memory only",
				logger.Int("bytes", len(data)))
			return
		}
		logger.Warn("failed to store track list", logger.ErrorField(err))
	}
}

func (tl *TrackList) clearStore() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := tl.store.Clear(ctx, model.TrackListKey); err != nil {
		logger.Warn("failed to clear stored track list", logger.ErrorField(err))
	}
}

func (tl *TrackList) reset() {
	tl.tracks = nil
	tl.shuffleOrder = nil
	tl.current = nil
	tl.position = 0
	tl.shuffle = false
}

func (tl *TrackList) load() error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	raw, ok, err := tl.store.Get(ctx, model.TrackListKey)
	if err != nil {
		return fmt.Errorf("read track list: %w", err)
	}
	if !ok {
		return nil
	}

	var rec model.PersistedTrackList
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPersistedState, err)
	}
	if len(rec.Tracks) == 0 {
		return fmt.Errorf("%w: no tracks", ErrMalformedPersistedState)
	}

	for i, d := range rec.Tracks {
		t, err := track.FromDescriptor(d)
		if err != nil {
			return fmt.Errorf("%w: track %d: %v", ErrMalformedPersistedState, i, err)
		}
		tl.tracks = append(tl.tracks, t)
		tl.shuffleOrder = append(tl.shuffleOrder, i)
	}

	tl.current = tl.tracks[0]
	if rec.CurrentTrack >= 0 && rec.CurrentTrack < len(tl.tracks) {
		tl.current = tl.tracks[rec.CurrentTrack]
	}
	tl.SetPosition(rec.PositionSeconds)
	tl.shuffle = rec.DoesShuffle
	tl.Reshuffle()

	metrics.Tracks.Set(float64(tl.Len()))
	logger.Info("restored track list",
		logger.Int("tracks", len(tl.tracks)),
		logger.Int("current", rec.CurrentTrack),
		logger.Bool("shuffle", tl.shuffle))
	return nil
}
