// Package playback provides the playback session controller: the playlist
// cursor, the transport intent and their reconciliation with a media backend.
package playback

// State represents the desired transport state.
type State int

const (
	StatePaused  State = iota // Audio is intended to be paused
	StatePlaying              // Audio is intended to be playing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}
