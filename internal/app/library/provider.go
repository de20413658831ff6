// Package library provides the playlist sources the player is bound to.
package library

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/tunebox/internal/domain/track"
)

// Provider is the interface for playlist sources.
type Provider interface {
	// Tracks returns the tracks of the source, in play order.
	Tracks(ctx context.Context) ([]track.Track, error)

	// Name returns the provider type (used in config).
	Name() string
}

// pathNamespace scopes IDs derived from file paths.
var pathNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tunebox:track"))

// pathID derives a stable, URL-safe track ID from a path relative to its
// source root.
func pathID(rel string) string {
	return uuid.NewSHA1(pathNamespace, []byte(filepath.ToSlash(rel))).String()
}

// decodeSettings decodes provider settings into config, applies defaults and
// validates the result.
func decodeSettings(settings map[string]any, config any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
