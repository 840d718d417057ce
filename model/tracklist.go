package model

// PersistedTrackList is the JSON document stored under the "trackList" key.
type PersistedTrackList struct {
	PositionSeconds float64      `json:"positionSeconds"`
	CurrentTrack    int          `json:"currentTrack"`
	DoesShuffle     bool         `json:"doesShuffle"`
	Tracks          []Descriptor `json:"tracks"`
}

// Playlist is the document accepted by playlist import and produced by export.
type Playlist struct {
	Tracks []Descriptor `json:"tracks"`
}

// Store keys.
const (
	TrackListKey = "trackList"
	VolumeKey    = "volume"
)
