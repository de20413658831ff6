package library

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/tunebox/internal/domain/track"
)

type FileProviderConfig struct {
	Path   string `yaml:"path" mapstructure:"path" validate:"required"`
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=yaml m3u"` // Detected from the extension when empty
}

// FileProvider reads a playlist file: YAML (name, tracks) or extended M3U.
// Relative sources are resolved against the playlist file's directory.
type FileProvider struct {
	config *FileProviderConfig
}

// NewFileProvider creates a FileProvider.
func NewFileProvider(settings map[string]any) (*FileProvider, error) {
	var config FileProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	if config.Format == "" {
		format, err := detectFormat(config.Path)
		if err != nil {
			return nil, err
		}
		config.Format = format
	}
	zlog.Debug().Msgf("file provider config: %+v", config)
	return &FileProvider{config: &config}, nil
}

func (p *FileProvider) Tracks(ctx context.Context) ([]track.Track, error) {
	f, err := os.Open(p.config.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open playlist file")
	}
	defer f.Close()

	base := filepath.Dir(p.config.Path)
	switch p.config.Format {
	case "m3u":
		return parseM3U(f, base)
	default:
		return parseYAML(f, base)
	}
}

func (p *FileProvider) Name() string {
	return "file"
}

func detectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".m3u", ".m3u8":
		return "m3u", nil
	default:
		return "", errors.Newf("cannot detect playlist format of %s", path)
	}
}

type playlistFile struct {
	Name   string        `yaml:"name"`
	Tracks []track.Track `yaml:"tracks" validate:"dive"`
}

func parseYAML(r io.Reader, base string) ([]track.Track, error) {
	var pf playlistFile
	if err := yaml.NewDecoder(r).Decode(&pf); err != nil {
		return nil, errors.Wrap(err, "failed to parse playlist file")
	}
	if err := validator.New().Struct(pf); err != nil {
		return nil, errors.Wrap(err, "invalid playlist file")
	}

	for i := range pf.Tracks {
		pf.Tracks[i].Source = resolve(base, pf.Tracks[i].Source)
	}
	return pf.Tracks, nil
}

// parseM3U reads an (extended) M3U playlist. "#EXTINF:<secs>,<artist> - <title>"
// lines name the entry that follows them.
func parseM3U(r io.Reader, base string) ([]track.Track, error) {
	var (
		tracks []track.Track
		title  string
		artist string
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "\ufeff")

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			artist, title = parseExtInf(strings.TrimPrefix(line, "#EXTINF:"))
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}

		if title == "" {
			title = titleFromPath(line)
		}
		tracks = append(tracks, track.Track{
			ID:     pathID(line),
			Title:  title,
			Artist: artist,
			Source: resolve(base, line),
		})
		title, artist = "", ""
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read playlist file")
	}
	return tracks, nil
}

func parseExtInf(info string) (artist, title string) {
	_, name, ok := strings.Cut(info, ",")
	if !ok {
		return "", ""
	}
	name = strings.TrimSpace(name)
	if a, t, ok := strings.Cut(name, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", name
}

func resolve(base, source string) string {
	if source == "" || filepath.IsAbs(source) || strings.Contains(source, "://") {
		return source
	}
	return filepath.Join(base, filepath.FromSlash(source))
}

func titleFromPath(path string) string {
	name := filepath.Base(filepath.FromSlash(path))
	return strings.TrimSuffix(name, filepath.Ext(name))
}
