package player

// Output is the media element the engine drives. Implementations must be
// safe to call from the engine while they deliver MediaEvents from another
// goroutine.
type Output interface {
	// SetSource loads locator. Loading the locator already set is a no-op.
	SetSource(locator string) error
	Play() error
	Pause()
	// Position is the playback position in seconds.
	Position() float64
	SetPosition(seconds float64)
	// Duration is the length of the loaded source in seconds, NaN when unknown.
	Duration() float64
	Volume() float64
	SetVolume(v float64)
}

// MediaEvent is a notification reported by an Output.
type MediaEvent string

const (
	MediaPlaying        MediaEvent = "playing"
	MediaCanPlay        MediaEvent = "canplay"
	MediaDurationChange MediaEvent = "durationchange"
	MediaEnded          MediaEvent = "ended"
)
