package tracklist

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"PlayDeck/cache"
	"PlayDeck/core/track"
	"PlayDeck/model"
)

func newTrack(t *testing.T, name string) *track.Track {
	t.Helper()
	tr, err := track.FromDescriptor(model.Descriptor{Locator: "music/" + name + ".mp3", Title: name})
	if err != nil {
		t.Fatalf("FromDescriptor(%s): %v", name, err)
	}
	return tr
}

func filled(t *testing.T, store cache.Store, names ...string) (*TrackList, []*track.Track) {
	t.Helper()
	tl := New(store, WithRand(rand.New(rand.NewSource(7))))
	var tracks []*track.Track
	for _, n := range names {
		tr := newTrack(t, n)
		if err := tl.Add(tr); err != nil {
			t.Fatalf("Add(%s): %v", n, err)
		}
		tracks = append(tracks, tr)
	}
	return tl, tracks
}

func record(tl *TrackList) *[]model.EventType {
	var got []model.EventType
	tl.Subscribe(func(ev model.Event) { got = append(got, ev.Type) })
	return &got
}

func TestAddNotifications(t *testing.T) {
	tl := New(cache.NewMemory(0))
	got := record(tl)

	a := newTrack(t, "a")
	if err := tl.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := []model.EventType{model.EventChanged, model.EventCurrentTrack, model.EventNotEmpty}
	if !reflect.DeepEqual(*got, want) {
		t.Fatalf("events after first add = %v, want %v", *got, want)
	}
	if tl.Current() != a {
		t.Fatal("first added track did not become current")
	}

	*got = nil
	if err := tl.Add(newTrack(t, "b")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !reflect.DeepEqual(*got, []model.EventType{model.EventChanged}) {
		t.Errorf("events after second add = %v, want only change", *got)
	}
	if tl.Current() != a {
		t.Error("second add moved the cursor")
	}

	if err := tl.Add(nil); !errors.Is(err, track.ErrInvalidTrackSource) {
		t.Errorf("Add(nil) = %v, want ErrInvalidTrackSource", err)
	}
}

func TestAdvanceSequential(t *testing.T) {
	tl, tracks := filled(t, cache.NewMemory(0), "a", "b", "c")

	for i := 1; i <= 3; i++ {
		tl.SetPosition(30)
		if err := tl.Advance(1); err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if want := tracks[i%3]; tl.Current() != want {
			t.Fatalf("after %d advances current = %v, want %v", i, tl.CurrentIndex(), i%3)
		}
		if tl.Position() != 0 {
			t.Errorf("position after advance = %v, want 0", tl.Position())
		}
	}

	if err := tl.Advance(-1); err != nil {
		t.Fatalf("Advance(-1): %v", err)
	}
	if tl.Current() != tracks[2] {
		t.Errorf("Advance(-1) from first = index %d, want 2", tl.CurrentIndex())
	}
	if err := tl.Advance(-7); err != nil {
		t.Fatalf("Advance(-7): %v", err)
	}
	if tl.Current() != tracks[1] {
		t.Errorf("Advance(-7) from last = index %d, want 1", tl.CurrentIndex())
	}
}

func TestAdvanceShuffledVisitsEveryTrack(t *testing.T) {
	tl, tracks := filled(t, cache.NewMemory(0), "a", "b", "c", "d", "e")
	tl.SetShuffle(true)

	start := tl.Current()
	seen := map[*track.Track]bool{start: true}
	for i := 0; i < len(tracks)-1; i++ {
		if err := tl.Advance(1); err != nil {
			t.Fatalf("Advance: %v", err)
		}
		seen[tl.Current()] = true
	}
	if len(seen) != len(tracks) {
		t.Errorf("visited %d distinct tracks, want %d", len(seen), len(tracks))
	}
	if err := tl.Advance(1); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if tl.Current() != start {
		t.Error("advancing once per track did not return to the start")
	}

	for i := 0; i < 3; i++ {
		tl.Advance(1)
	}
	for i := 0; i < 3; i++ {
		tl.Advance(-1)
	}
	if tl.Current() != start {
		t.Error("+3 then -3 did not return to the start")
	}
}

func TestReshuffleKeepsSlotZero(t *testing.T) {
	tl, _ := filled(t, cache.NewMemory(0), "a", "b", "c", "d")

	const runs = 6000
	counts := map[int]int{}
	for i := 0; i < runs; i++ {
		tl.Reshuffle()
		order := tl.ShuffleOrder()
		if order[0] != 0 {
			t.Fatalf("slot 0 moved: %v", order)
		}
		counts[order[1]]++
	}

	for _, v := range []int{1, 2, 3} {
		if c := counts[v]; c < runs/3-300 || c > runs/3+300 {
			t.Errorf("index %d landed in slot 1 %d times out of %d, not close to uniform", v, c, runs)
		}
	}
}

func TestRemoveKeepsPermutation(t *testing.T) {
	tl, tracks := filled(t, cache.NewMemory(0), "a", "b", "c", "d", "e")
	tl.SetShuffle(true)

	if err := tl.Remove(tracks[2]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	order := tl.ShuffleOrder()
	sort.Ints(order)
	if !reflect.DeepEqual(order, []int{0, 1, 2, 3}) {
		t.Errorf("shuffle order after remove = %v, not a permutation of 0..3", tl.ShuffleOrder())
	}
	if err := tl.Remove(tracks[2]); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("second Remove = %v, want ErrTrackNotFound", err)
	}
}

func TestRemoveCurrent(t *testing.T) {
	tl, tracks := filled(t, cache.NewMemory(0), "a", "b", "c")
	if err := tl.SetCurrent(tracks[1]); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}

	if err := tl.Remove(tracks[1]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if tl.Current() != tracks[2] {
		t.Errorf("current after removing it = index %d, want the next track", tl.CurrentIndex())
	}

	got := record(tl)
	tl.Remove(tracks[0])
	tl.Remove(tracks[2])
	if tl.Current() != nil || tl.Len() != 0 {
		t.Fatalf("list not empty after removing everything: len %d", tl.Len())
	}
	if last := (*got)[len(*got)-1]; last != model.EventEmpty {
		t.Errorf("last event = %s, want empty", last)
	}
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name   string
		move   int
		offset int
		want   []string
	}{
		{name: "forward", move: 0, offset: 1, want: []string{"b", "a", "c"}},
		{name: "backward", move: 2, offset: -1, want: []string{"a", "c", "b"}},
		{name: "negative target counts from end", move: 2, offset: -5, want: []string{"c", "a", "b"}},
		{name: "past the end pads", move: 2, offset: 1, want: []string{"a", "b", "", "c"}},
		{name: "well past the end", move: 0, offset: 4, want: []string{"b", "c", "", "", "a"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tl, tracks := filled(t, cache.NewMemory(0), "a", "b", "c")
			tl.Reorder(tracks[tc.move], tc.offset)

			var got []string
			for _, tr := range tl.Tracks() {
				if tr == nil {
					got = append(got, "")
					continue
				}
				got = append(got, tr.Tags().Title)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("order = %q, want %q", got, tc.want)
			}
			if len(tl.ShuffleOrder()) != tl.Len() {
				t.Errorf("shuffle order has %d entries for %d slots", len(tl.ShuffleOrder()), tl.Len())
			}
			if len(tl.Descriptors()) != 3 {
				t.Errorf("Descriptors() = %d, want 3 real tracks", len(tl.Descriptors()))
			}
		})
	}
}

func TestSetCurrentErrors(t *testing.T) {
	tl := New(cache.NewMemory(0))
	if err := tl.SetCurrentByIndex(0); !errors.Is(err, ErrEmptyCollection) {
		t.Errorf("SetCurrentByIndex on empty = %v, want ErrEmptyCollection", err)
	}
	if err := tl.Advance(1); !errors.Is(err, ErrEmptyCollection) {
		t.Errorf("Advance on empty = %v, want ErrEmptyCollection", err)
	}

	tl, tracks := filled(t, cache.NewMemory(0), "a", "b")
	if err := tl.SetCurrent(newTrack(t, "stranger")); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("SetCurrent(stranger) = %v, want ErrTrackNotFound", err)
	}
	tl.SetCurrent(tracks[1])
	if err := tl.SetCurrentByIndex(9); err != nil {
		t.Fatalf("SetCurrentByIndex(9): %v", err)
	}
	if tl.Current() != tracks[0] {
		t.Error("out of range index did not fall back to the first track")
	}
}

func TestToggleShuffleNotifies(t *testing.T) {
	tl, _ := filled(t, cache.NewMemory(0), "a", "b")
	var states []bool
	tl.Subscribe(func(ev model.Event) {
		if ev.Type == model.EventShuffleChange {
			states = append(states, ev.Enabled)
		}
	})

	if !tl.ToggleShuffle() {
		t.Fatal("first toggle did not enable shuffle")
	}
	if tl.ToggleShuffle() {
		t.Fatal("second toggle did not disable shuffle")
	}
	if !reflect.DeepEqual(states, []bool{true, false}) {
		t.Errorf("shuffle notifications = %v, want [true false]", states)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	store := cache.NewMemory(0)
	tl, _ := filled(t, store, "a", "b", "c")
	tl.SetCurrentByIndex(2)
	tl.SetShuffle(true)
	tl.SetPosition(12.5)
	tl.PersistPosition()

	restored := New(store)
	if restored.Len() != 3 {
		t.Fatalf("restored %d tracks, want 3", restored.Len())
	}
	if restored.CurrentIndex() != 2 {
		t.Errorf("restored current = %d, want 2", restored.CurrentIndex())
	}
	if restored.Position() != 12.5 {
		t.Errorf("restored position = %v, want 12.5", restored.Position())
	}
	if !restored.Shuffled() {
		t.Error("restored list lost shuffle mode")
	}
	if !reflect.DeepEqual(restored.Descriptors(), tl.Descriptors()) {
		t.Errorf("restored descriptors = %+v, want %+v", restored.Descriptors(), tl.Descriptors())
	}
}

func TestRehydrateDoesNotNotifyOrWrite(t *testing.T) {
	store := cache.NewMemory(0)
	filled(t, store, "a", "b")
	writes := store.Writes()

	restored := New(store)
	got := record(restored)
	if store.Writes() != writes {
		t.Errorf("rehydrating wrote to the store %d times", store.Writes()-writes)
	}
	if len(*got) != 0 {
		t.Errorf("rehydrating emitted %v", *got)
	}
}

func TestMalformedStateIsCleared(t *testing.T) {
	tests := map[string]string{
		"not json":        "{not json",
		"no tracks":       `{"positionSeconds":0,"currentTrack":0,"tracks":[]}`,
		"missing locator": `{"currentTrack":0,"tracks":[{"title":"x"}]}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := cache.NewMemory(0)
			store.Set(ctx, model.TrackListKey, raw)

			tl := New(store)
			if tl.Len() != 0 {
				t.Errorf("Len = %d, want 0", tl.Len())
			}
			if _, ok, _ := store.Get(ctx, model.TrackListKey); ok {
				t.Error("malformed record was not cleared")
			}
		})
	}
}

func TestQuotaExceededIsNonFatal(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory(20)
	tl, _ := filled(t, store, "a", "b")

	if tl.Len() != 2 || tl.Current() == nil {
		t.Fatalf("in-memory state lost after failed writes: len %d", tl.Len())
	}
	if _, ok, _ := store.Get(ctx, model.TrackListKey); ok {
		t.Error("record stored despite exceeding quota")
	}
}

func TestFind(t *testing.T) {
	tl, tracks := filled(t, cache.NewMemory(0), "a", "b")
	got, ok := tl.Find(tracks[1].ID())
	if !ok || got != tracks[1] {
		t.Errorf("Find(%s) = %v, %v", tracks[1].ID(), got, ok)
	}
	if _, ok := tl.Find(fmt.Sprintf("missing-%d", 1)); ok {
		t.Error("Find reported an unknown id")
	}
}

// unreadableStore fails every read and records clears.
type unreadableStore struct {
	*cache.Memory
	clears []string
}

func (s *unreadableStore) Get(context.Context, string) (string, bool, error) {
	return "", false, cache.ErrStoreUnavailable
}

func (s *unreadableStore) Clear(ctx context.Context, key string) error {
	s.clears = append(s.clears, key)
	return s.Memory.Clear(ctx, key)
}

func TestUnreadableStoreIsNotCleared(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory(0)
	filled(t, mem, "a", "b")

	store := &unreadableStore{Memory: mem}
	tl := New(store)
	if tl.Len() != 0 || tl.Current() != nil {
		t.Errorf("list after failed read: len %d, current %v", tl.Len(), tl.Current())
	}
	if len(store.clears) != 0 {
		t.Errorf("clear calls = %v, want none", store.clears)
	}
	if _, ok, _ := mem.Get(ctx, model.TrackListKey); !ok {
		t.Error("saved record was removed after a failed read")
	}
}

func TestAdvanceSkipsEmptySlots(t *testing.T) {
	tl, tracks := filled(t, cache.NewMemory(0), "a", "b", "c")
	a, b, c := tracks[0], tracks[1], tracks[2]
	tl.Reorder(a, 4) // [b c _ _ a]

	steps := []struct {
		offset int
		want   *track.Track
	}{
		{offset: 1, want: b},
		{offset: 1, want: c},
		{offset: 1, want: a},
		{offset: 1, want: b},
		{offset: -1, want: a},
		{offset: -1, want: c},
	}
	for i, st := range steps {
		if err := tl.Advance(st.offset); err != nil {
			t.Fatalf("step %d: Advance(%d): %v", i, st.offset, err)
		}
		if tl.Current() != st.want {
			t.Fatalf("step %d: current = %s, want %s", i, tl.Current().Tags().Title, st.want.Tags().Title)
		}
	}

	tl.SetShuffle(true)
	visited := map[*track.Track]bool{}
	for range 3 {
		if err := tl.Advance(1); err != nil {
			t.Fatalf("shuffled Advance: %v", err)
		}
		if tl.Current() == nil {
			t.Fatal("shuffled Advance landed on an empty slot")
		}
		visited[tl.Current()] = true
	}
	if len(visited) != 3 {
		t.Errorf("shuffled advance visited %d tracks, want 3", len(visited))
	}
}
