package tags

import (
	"fmt"
	"io"

	"PlayDeck/model"

	"github.com/bogem/id3v2"
)

// HeaderTags is what an ID3v2 header at the start of a file declares.
type HeaderTags struct {
	Present bool
	Version byte
	Frames  int
	Tags    model.TagRecord
}

// ProbeHeader parses a leading ID3v2 header from r. It is informational only;
// tracks take their tags from the trailer.
func ProbeHeader(r io.Reader) (HeaderTags, error) {
	tag, err := id3v2.ParseReader(r, id3v2.Options{Parse: true})
	if err != nil {
		return HeaderTags{}, fmt.Errorf("parse id3v2 header: %w", err)
	}

	if !tag.HasFrames() {
		return HeaderTags{}, nil
	}
	return HeaderTags{
		Present: true,
		Version: tag.Version(),
		Frames:  tag.Count(),
		Tags: model.TagRecord{
			Title:  tag.Title(),
			Artist: tag.Artist(),
			Album:  tag.Album(),
			Year:   tag.Year(),
			Genre:  tag.Genre(),
		},
	}, nil
}
