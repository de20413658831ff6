package library

import (
	"context"
	"slices"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/track"
)

type StaticProviderConfig struct {
	Tracks []track.Track `yaml:"tracks" mapstructure:"tracks" validate:"required,min=1,dive"`
}

// StaticProvider serves tracks listed inline in the configuration.
type StaticProvider struct {
	config *StaticProviderConfig
}

// NewStaticProvider creates a StaticProvider.
func NewStaticProvider(settings map[string]any) (*StaticProvider, error) {
	var config StaticProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("static provider config: tracks=%d", len(config.Tracks))
	return &StaticProvider{config: &config}, nil
}

func (p *StaticProvider) Tracks(ctx context.Context) ([]track.Track, error) {
	return slices.Clone(p.config.Tracks), nil
}

func (p *StaticProvider) Name() string {
	return "static"
}
