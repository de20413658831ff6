package playback

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged    EventType = iota // Cursor moved to a track (select/next/previous/auto-advance)
	EventStateChanged                     // Transport intent flipped by play/pause
	EventPositionChanged                  // Position moved (backend progress or seek)
	EventDurationChanged                  // Backend reported the track duration
	EventPlaybackStarted                  // Backend confirmed a play request
	EventPlaybackFailed                   // Load or play failed, state reverted to paused
	EventTrackEnded                       // Backend reached the end of the track
	EventStaleResult                      // A superseded play request resolved and was discarded
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventPositionChanged:
		return "position_changed"
	case EventDurationChanged:
		return "duration_changed"
	case EventPlaybackStarted:
		return "playback_started"
	case EventPlaybackFailed:
		return "playback_failed"
	case EventTrackEnded:
		return "track_ended"
	case EventStaleResult:
		return "stale_result"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Snapshot Snapshot // State right after the event was applied
}
