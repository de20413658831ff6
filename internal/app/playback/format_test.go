package playback

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		expected string
	}{
		{name: "zero", seconds: 0, expected: "0:00"},
		{name: "single digit seconds", seconds: 5, expected: "0:05"},
		{name: "over a minute", seconds: 65, expected: "1:05"},
		{name: "fraction truncated", seconds: 125.9, expected: "2:05"},
		{name: "just under a minute", seconds: 59.999, expected: "0:59"},
		{name: "over an hour", seconds: 3725, expected: "62:05"},
		{name: "NaN", seconds: math.NaN(), expected: "0:00"},
		{name: "positive infinity", seconds: math.Inf(1), expected: "0:00"},
		{name: "negative", seconds: -3, expected: "0:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTime(tt.seconds))
		})
	}
}

func TestSnapshot(t *testing.T) {
	tests := []struct {
		name             string
		snapshot         Snapshot
		expectedState    State
		expectedPosition string
		expectedDuration string
		expectedProgress float64
	}{
		{
			name:             "paused with unknown duration",
			snapshot:         Snapshot{Position: 12},
			expectedState:    StatePaused,
			expectedPosition: "0:12",
			expectedDuration: "0:00",
			expectedProgress: 0,
		},
		{
			name:             "playing halfway",
			snapshot:         Snapshot{Playing: true, Position: 90, Duration: 180, DurationKnown: true},
			expectedState:    StatePlaying,
			expectedPosition: "1:30",
			expectedDuration: "3:00",
			expectedProgress: 0.5,
		},
		{
			name:             "zero duration",
			snapshot:         Snapshot{Duration: 0, DurationKnown: true},
			expectedState:    StatePaused,
			expectedPosition: "0:00",
			expectedDuration: "0:00",
			expectedProgress: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedState, tt.snapshot.State())
			assert.Equal(t, tt.expectedPosition, tt.snapshot.PositionLabel())
			assert.Equal(t, tt.expectedDuration, tt.snapshot.DurationLabel())
			assert.InDelta(t, tt.expectedProgress, tt.snapshot.Progress(), 1e-9)
		})
	}
}

func TestSnapshot_ErrorMessage(t *testing.T) {
	assert.Empty(t, Snapshot{}.ErrorMessage())
	assert.Equal(t, "boom", Snapshot{Err: errors.New("boom")}.ErrorMessage())
}

func TestStateAndEventStrings(t *testing.T) {
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "track_changed", EventTrackChanged.String())
	assert.Equal(t, "stale_result", EventStaleResult.String())
}
