package recording

// Event is a typed notification from the reference video player
type Event interface {
	event()
}

// PlaybackStatus reports whether the reference video can be played
type PlaybackStatus struct {
	Loaded    bool
	Buffering bool
}

// PlaybackFailed reports an error during reference playback
type PlaybackFailed struct {
	Err error
}

// Orientation of the device
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// OrientationChanged is emitted when the device rotates
type OrientationChanged struct {
	Orientation Orientation
}

func (PlaybackStatus) event()     {}
func (PlaybackFailed) event()     {}
func (OrientationChanged) event() {}
