package model

// EventType identifies a notification emitted by the playback core.
type EventType string

const (
	EventChanged       EventType = "change"
	EventEmpty         EventType = "empty"
	EventNotEmpty      EventType = "notempty"
	EventCurrentTrack  EventType = "currenttrack"
	EventShuffleChange EventType = "shufflechange"
	EventRepeatChange  EventType = "repeatchange"
	EventTime          EventType = "time"
	EventPlaying       EventType = "playing"
	EventPausing       EventType = "pausing"
	EventIdling        EventType = "idling"
	EventError         EventType = "error"
)

// Change kinds carried by EventChanged.
const (
	ChangeAdd    = "add"
	ChangeRemove = "remove"
)

// Event is a single notification. Only the fields relevant to Type are set.
type Event struct {
	Type    EventType `json:"type"`
	Change  string    `json:"change,omitempty"`
	TrackID string    `json:"trackId,omitempty"`
	Enabled bool      `json:"enabled"`
	Current float64   `json:"current,omitempty"`
	// Total is zero, and omitted, while the duration is unknown.
	Total   float64   `json:"total,omitempty"`
	Message string    `json:"message,omitempty"`
}
