// Package track builds immutable tracks from raw audio bytes or descriptor records.
package track

import (
	"errors"

	"PlayDeck/model"

	"github.com/google/uuid"
)

var (
	ErrInvalidTrackSource   = errors.New("track cannot be initialized with this type of data")
	ErrUnsupportedMediaType = errors.New("source is not of a valid media type")
)

// Track is a playable locator plus its tags. It never changes once built.
type Track struct {
	id      string
	locator string
	tags    model.TagRecord
}

func newTrack(locator string, tags model.TagRecord) *Track {
	return &Track{id: uuid.NewString(), locator: locator, tags: tags}
}

// FromDescriptor builds a track from a record that already carries a locator.
// Tag fields are copied as they are; a record with no tag fields at all gets
// its display name as title.
func FromDescriptor(d model.Descriptor) (*Track, error) {
	if d.Locator == "" {
		return nil, ErrInvalidTrackSource
	}

	tags := model.TagRecord{Title: d.Name}
	if d.HasTags() {
		tags = model.TagRecord{
			Title:  d.Title,
			Artist: d.Artist,
			Album:  d.Album,
			Year:   d.Year,
			Genre:  d.Genre,
		}
	}
	return newTrack(d.Locator, tags), nil
}

// ID identifies the track for outer layers. It is not persisted.
func (t *Track) ID() string {
	return t.id
}

// Source returns the playable locator.
func (t *Track) Source() string {
	return t.locator
}

func (t *Track) Tags() model.TagRecord {
	return t.tags
}

// Descriptor returns the record form used for persistence.
func (t *Track) Descriptor() model.Descriptor {
	return model.Descriptor{
		Locator: t.locator,
		Title:   t.tags.Title,
		Album:   t.tags.Album,
		Artist:  t.tags.Artist,
		Genre:   t.tags.Genre,
		Year:    t.tags.Year,
	}
}
