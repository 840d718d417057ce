// Package tags reads the fixed 128-byte tag trailer found at the end of MP3 data.
package tags

import (
	"strings"

	"PlayDeck/model"
)

// TrailerSize is the length of the trailing tag block.
const TrailerSize = 128

// noGenre is the genre code meaning "no genre".
const noGenre = 0xFF

// Field layout, offsets counted back from the end of the buffer.
const (
	markerOffset = -128
	titleOffset  = -125
	artistOffset = -95
	albumOffset  = -65
	yearOffset   = -35
	genreOffset  = -1

	markerLen = 3
	textLen   = 30
	yearLen   = 4
	genreLen  = 1
)

var markers = []string{"TAG", "ID3"}

// HasTrailer reports whether buf ends in a recognised tag trailer.
func HasTrailer(buf []byte) bool {
	if len(buf) < TrailerSize {
		return false
	}
	marker := Latin1(buf, markerOffset, markerLen)
	for _, m := range markers {
		if marker == m {
			return true
		}
	}
	return false
}

// Extract parses the trailer of buf. Buffers without a trailer, including
// those shorter than TrailerSize, yield a record titled model.UnknownTitle.
func Extract(buf []byte) model.TagRecord {
	if !HasTrailer(buf) {
		return model.TagRecord{Title: model.UnknownTitle}
	}

	rec := model.TagRecord{
		Title:  Latin1(buf, titleOffset, textLen),
		Artist: Latin1(buf, artistOffset, textLen),
		Album:  Latin1(buf, albumOffset, textLen),
		Year:   Latin1(buf, yearOffset, yearLen),
		Genre:  Latin1(buf, genreOffset, genreLen),
	}
	if buf[len(buf)-1] == noGenre {
		rec.Genre = ""
	}
	return rec
}

// Latin1 decodes the byte range (start, length) of buf, one character per
// byte. A negative start counts from the end of buf. A zero length runs to
// the end of buf; a negative length stops that many bytes short of
// len(buf)-start. Ranges that fall outside buf decode to "".
func Latin1(buf []byte, start, length int) string {
	lo, hi, ok := resolveRange(len(buf), start, length)
	if !ok {
		return ""
	}

	var b strings.Builder
	b.Grow(hi - lo)
	for _, c := range buf[lo:hi] {
		b.WriteRune(rune(c))
	}
	return b.String()
}

func resolveRange(n, start, length int) (int, int, bool) {
	if start < 0 {
		start = n + start
	}
	switch {
	case length == 0:
		length = n - start
	case length < 0:
		length = n - start + length
	}

	end := start + length
	if start < 0 || length < 0 || end > n {
		return 0, 0, false
	}
	return start, end, true
}
