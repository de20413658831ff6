package session

import (
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/domain/track"
	"github.com/osa030/tunebox/internal/domain/user"
)

// TrackView is a playlist track as shown to the user.
type TrackView struct {
	track.Track
	Index       int    `json:"index"`
	ArtistLabel string `json:"artist_label"`
	Favorite    bool   `json:"favorite"`
	Current     bool   `json:"current"`
}

// PlayerState is the transport state of a session.
type PlayerState struct {
	Index         int       `json:"index"`
	Track         TrackView `json:"track"`
	State         string    `json:"state"`
	Playing       bool      `json:"playing"`
	Pending       bool      `json:"pending"`
	Position      float64   `json:"position"`
	Duration      float64   `json:"duration"`
	DurationKnown bool      `json:"duration_known"`
	PositionLabel string    `json:"position_label"`
	DurationLabel string    `json:"duration_label"`
	Progress      float64   `json:"progress"`
	Error         string    `json:"error,omitempty"`
}

// Status is the full view of a session.
type Status struct {
	User          user.Public `json:"user"`
	Playlist      string      `json:"playlist"`
	Player        PlayerState `json:"player"`
	Tracks        []TrackView `json:"tracks"`
	FavoriteCount int         `json:"favorite_count"`
}

func (p *player) status() Status {
	snap := p.controller.Snapshot()
	pl := p.controller.Playlist()

	tracks := make([]TrackView, pl.Len())
	for i, t := range pl.Tracks {
		tracks[i] = p.trackView(i, t, snap.Index)
	}

	return Status{
		User:          p.user,
		Playlist:      pl.Name,
		Player:        p.playerState(snap),
		Tracks:        tracks,
		FavoriteCount: p.favorites.Count(),
	}
}

func (p *player) playerState(snap playback.Snapshot) PlayerState {
	return PlayerState{
		Index:         snap.Index,
		Track:         p.trackView(snap.Index, snap.Track, snap.Index),
		State:         snap.State().String(),
		Playing:       snap.Playing,
		Pending:       snap.Pending,
		Position:      snap.Position,
		Duration:      snap.Duration,
		DurationKnown: snap.DurationKnown,
		PositionLabel: snap.PositionLabel(),
		DurationLabel: snap.DurationLabel(),
		Progress:      snap.Progress(),
		Error:         snap.ErrorMessage(),
	}
}

func (p *player) trackView(i int, t track.Track, current int) TrackView {
	return TrackView{
		Track:       t,
		Index:       i,
		ArtistLabel: t.DisplayArtist(),
		Favorite:    p.favorites.Contains(t.ID),
		Current:     i == current,
	}
}
