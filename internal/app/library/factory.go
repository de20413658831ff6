package library

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/infra/config"
)

// NewChainFromConfig creates a provider chain from configuration.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	if len(cfg.Library.Providers) == 0 {
		return nil, errors.New("no library providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Library.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating library provider: index=%d type=%s settings=%+v", i+1, pcfg.Type, pcfg.Settings)
		switch pcfg.Type {
		case "static":
			provider, err = NewStaticProvider(pcfg.Settings)

		case "file":
			provider, err = NewFileProvider(pcfg.Settings)

		case "directory":
			provider, err = NewDirectoryProvider(pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		displayName := pcfg.DisplayName
		if displayName == "" {
			displayName = pcfg.Type
		}
		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: displayName,
		})

		zlog.Info().Msgf("registered library provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, displayName)
	}

	return NewChain(providers), nil
}
