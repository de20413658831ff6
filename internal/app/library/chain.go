package library

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain concatenates the tracks of several providers into one playlist.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a new provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{
		providers: providers,
	}
}

// Load builds the playlist. Providers are read in order; a failing provider
// is skipped, and tracks whose ID was already seen are dropped.
func (c *Chain) Load(ctx context.Context, name string) (*playlist.Playlist, error) {
	var tracks []track.Track
	seen := make(map[string]bool)

	for i, pm := range c.providers {
		zlog.Debug().Msgf("loading provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		provided, err := pm.Provider.Tracks(ctx)
		if err != nil {
			zlog.Warn().Msgf("provider failed, skipping: provider=%s error=%v", pm.DisplayName, err)
			continue
		}

		added := 0
		for _, t := range provided {
			if seen[t.ID] {
				zlog.Debug().Msgf("skipping duplicate track: provider=%s id=%s title=%s", pm.DisplayName, t.ID, t.Title)
				continue
			}
			seen[t.ID] = true
			tracks = append(tracks, t)
			added++
		}

		zlog.Info().Msgf("provider returned tracks: provider=%s count=%d total_so_far=%d",
			pm.DisplayName, added, len(tracks))
	}

	if len(tracks) == 0 {
		return nil, errors.Wrap(playlist.ErrEmpty, "all providers failed to return tracks")
	}

	return playlist.New(name, tracks)
}

// Providers returns the providers of the chain.
func (c *Chain) Providers() []ProviderWithMetadata {
	return c.providers
}
