package track

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// acceptedType is the only media type byte sources may carry.
const acceptedType = "audio/mpeg"

// Materializer turns audio bytes into a playable locator.
type Materializer interface {
	Materialize(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Sniff detects the media type of data and rejects anything that is not MP3.
func Sniff(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !mt.Is(acceptedType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mt.String())
	}
	return acceptedType, nil
}

// DataURI materializes bytes as an inline base64 data URI.
type DataURI struct{}

func (DataURI) Materialize(_ context.Context, _ string, contentType string, data []byte) (string, error) {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
