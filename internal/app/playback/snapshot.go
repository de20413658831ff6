package playback

import (
	"math"

	"github.com/osa030/tunebox/internal/domain/track"
)

// Snapshot is a read-only copy of the playback state.
type Snapshot struct {
	Index         int         // Playlist cursor
	Track         track.Track // Track at Index
	Playing       bool        // Desired transport state
	Position      float64     // Seconds
	Duration      float64     // Seconds, valid when DurationKnown
	DurationKnown bool
	Pending       bool   // A play request is in flight
	Generation    uint64 // Generation of the latest play attempt
	Err           error  // Last load/play failure, cleared by the next attempt
}

// State returns the transport state.
func (s Snapshot) State() State {
	if s.Playing {
		return StatePlaying
	}
	return StatePaused
}

// PositionLabel returns the position as m:ss.
func (s Snapshot) PositionLabel() string {
	return FormatTime(s.Position)
}

// DurationLabel returns the duration as m:ss, or 0:00 while unknown.
func (s Snapshot) DurationLabel() string {
	if !s.DurationKnown {
		return FormatTime(math.NaN())
	}
	return FormatTime(s.Duration)
}

// Progress returns the played fraction in [0, 1].
func (s Snapshot) Progress() float64 {
	if !s.DurationKnown || s.Duration <= 0 {
		return 0
	}
	return math.Min(s.Position/s.Duration, 1)
}

// ErrorMessage returns the last failure as text, or an empty string.
func (s Snapshot) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
