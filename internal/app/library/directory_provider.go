package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/track"
)

type DirectoryProviderConfig struct {
	Path       string   `yaml:"path" mapstructure:"path" validate:"required"`
	Recursive  bool     `yaml:"recursive" mapstructure:"recursive"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions" default:"[\".mp3\",\".wav\",\".flac\",\".ogg\"]" validate:"min=1"`
}

// DirectoryProvider lists the audio files of a directory, sorted by path.
// Titles and artists come from embedded tags, falling back to the file name.
type DirectoryProvider struct {
	config *DirectoryProviderConfig
}

// NewDirectoryProvider creates a DirectoryProvider.
func NewDirectoryProvider(settings map[string]any) (*DirectoryProvider, error) {
	var config DirectoryProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	for i, ext := range config.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		config.Extensions[i] = ext
	}
	zlog.Debug().Msgf("directory provider config: %+v", config)
	return &DirectoryProvider{config: &config}, nil
}

func (p *DirectoryProvider) Tracks(ctx context.Context) ([]track.Track, error) {
	root := p.config.Path

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !p.config.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(p.config.Extensions, strings.ToLower(filepath.Ext(path))) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", root)
	}
	slices.Sort(paths)

	tracks := make([]track.Track, 0, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		t := track.Track{
			ID:     pathID(rel),
			Title:  titleFromPath(path),
			Source: path,
		}
		readTags(path, &t)
		tracks = append(tracks, t)
	}

	zlog.Debug().Msgf("directory provider scanned: path=%s tracks=%d", root, len(tracks))
	return tracks, nil
}

func (p *DirectoryProvider) Name() string {
	return "directory"
}

// readTags fills title and artist from the file's tags, if it has any.
func readTags(path string, t *track.Track) {
	f, err := os.Open(path)
	if err != nil {
		zlog.Debug().Msgf("directory provider: cannot open %s: %v", path, err)
		return
	}
	defer f.Close()

	metadata, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged files keep the file name
		return
	}
	if title := strings.TrimSpace(metadata.Title()); title != "" {
		t.Title = title
	}
	t.Artist = strings.TrimSpace(metadata.Artist())
}
