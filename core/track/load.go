package track

import (
	"context"
	"fmt"
	"io"

	"PlayDeck/core/tags"
	"PlayDeck/model"

	"golang.org/x/sync/errgroup"
)

// Pending is a track whose tag and locator paths are still running. The
// track is usable only after both have finished.
type Pending struct {
	name         string
	locatorReady chan struct{}
	tagsReady    chan struct{}
	done         chan struct{}

	locator string
	tags    model.TagRecord
	track   *Track
	err     error
}

// Load reads src twice in parallel: once for the tag trailer and once to
// materialize a locator with m.
func Load(ctx context.Context, src Source, m Materializer) *Pending {
	p := &Pending{
		locatorReady: make(chan struct{}),
		tagsReady:    make(chan struct{}),
		done:         make(chan struct{}),
	}
	if src == nil || m == nil {
		p.err = ErrInvalidTrackSource
		close(p.done)
		return p
	}
	p.name = src.Name()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := readAll(src)
		if err != nil {
			return err
		}
		p.tags = tags.Extract(data)
		close(p.tagsReady)
		return nil
	})
	g.Go(func() error {
		data, err := readAll(src)
		if err != nil {
			return err
		}
		contentType, err := Sniff(data)
		if err != nil {
			return err
		}
		locator, err := m.Materialize(gctx, src.Name(), contentType, data)
		if err != nil {
			return fmt.Errorf("materialize %s: %w", src.Name(), err)
		}
		p.locator = locator
		close(p.locatorReady)
		return nil
	})

	go func() {
		defer close(p.done)
		if err := g.Wait(); err != nil {
			p.err = fmt.Errorf("load %s: %w", p.name, err)
			return
		}
		p.track = newTrack(p.locator, p.tags)
	}()
	return p
}

func readAll(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.Name(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	return data, nil
}

// Name is the source name the track is loaded from.
func (p *Pending) Name() string {
	return p.name
}

// LocatorReady is closed once the locator path succeeds.
func (p *Pending) LocatorReady() <-chan struct{} {
	return p.locatorReady
}

// TagsReady is closed once the tag path succeeds.
func (p *Pending) TagsReady() <-chan struct{} {
	return p.tagsReady
}

// Wait blocks until both paths have finished or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*Track, error) {
	select {
	case <-p.done:
		return p.track, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
