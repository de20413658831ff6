// Package track provides the Track domain entity.
package track

import "strings"

// UnknownArtist is shown in place of an empty artist.
const UnknownArtist = "Unknown Artist"

// Track represents a playable audio track.
// A track is immutable once it is part of a playlist.
type Track struct {
	ID     string `json:"id" yaml:"id" mapstructure:"id" validate:"required"`             // Unique track ID
	Title  string `json:"title" yaml:"title" mapstructure:"title" validate:"required"`    // Track title
	Artist string `json:"artist,omitempty" yaml:"artist" mapstructure:"artist"`           // Artist name (optional)
	Source string `json:"source" yaml:"source" mapstructure:"source" validate:"required"` // File path or URI of the audio
}

// DisplayArtist returns the artist name, or UnknownArtist if none is set.
func (t *Track) DisplayArtist() string {
	if strings.TrimSpace(t.Artist) == "" {
		return UnknownArtist
	}
	return t.Artist
}

// SameAs reports whether both tracks have the same identity.
func (t *Track) SameAs(other Track) bool {
	return t.ID == other.ID
}
