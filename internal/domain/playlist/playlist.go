// Package playlist provides the Playlist domain entity.
package playlist

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/domain/track"
)

var (
	ErrEmpty       = errors.New("playlist is empty")
	ErrDuplicateID = errors.New("duplicate track id")
)

// Playlist is an ordered, non-empty sequence of tracks.
// Indices are 0-based and stable for the lifetime of the playlist.
type Playlist struct {
	Name   string        // Playlist name
	Tracks []track.Track // Tracks in play order
}

// New creates a playlist. It rejects an empty track list and duplicate IDs.
func New(name string, tracks []track.Track) (*Playlist, error) {
	if len(tracks) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[string]bool, len(tracks))
	for i, t := range tracks {
		if seen[t.ID] {
			return nil, errors.Wrapf(ErrDuplicateID, "track %q at index %d", t.ID, i)
		}
		seen[t.ID] = true
	}

	copied := make([]track.Track, len(tracks))
	copy(copied, tracks)
	return &Playlist{Name: name, Tracks: copied}, nil
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.Tracks)
}

// Contains reports whether index refers to a track.
func (p *Playlist) Contains(index int) bool {
	return index >= 0 && index < len(p.Tracks)
}

// At returns the track at index. The index must be valid.
func (p *Playlist) At(index int) track.Track {
	return p.Tracks[index]
}

// NextIndex returns the index after i, wrapping to the first track.
func (p *Playlist) NextIndex(i int) int {
	return (i + 1) % len(p.Tracks)
}

// PreviousIndex returns the index before i, wrapping to the last track.
func (p *Playlist) PreviousIndex(i int) int {
	if i == 0 {
		return len(p.Tracks) - 1
	}
	return i - 1
}

// IndexOf returns the index of the track with the given ID, or -1.
func (p *Playlist) IndexOf(trackID string) int {
	for i, t := range p.Tracks {
		if t.ID == trackID {
			return i
		}
	}
	return -1
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}
