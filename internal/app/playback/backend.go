package playback

// Backend is the media primitive the controller drives.
//
// Play is asynchronous: it returns immediately and calls done exactly once,
// with nil on success. done may be called before Play returns. Events are
// delivered to the handler registered with Subscribe, in emission order,
// and must not be emitted from inside a call made by the controller.
//
// A backend may drop events emitted for a previously loaded source, but the
// handler runs outside the backend's lock, so an event can still land after
// the next Load. The controller does not rely on that filtering.
type Backend interface {
	// Load prepares source for playback and resets the position to 0.
	Load(source string) error
	// Play starts playback of the loaded source.
	Play(done func(err error))
	// Pause stops audio output. It cannot fail.
	Pause()
	// SetPosition jumps to the given position in seconds.
	SetPosition(seconds float64)
	// Position returns the current position in seconds.
	Position() float64
	// Duration returns the duration of the loaded source, if known.
	Duration() (seconds float64, ok bool)
	// Subscribe registers the event handler, replacing any previous one.
	Subscribe(h EventHandler)
	// Close releases the backend. The controller never calls it.
	Close() error
}

// EventHandler receives backend timeline events.
type EventHandler interface {
	OnPositionUpdated(seconds float64)
	OnMetadataReady(durationSeconds float64)
	OnEnded()
}
