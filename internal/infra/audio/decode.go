// Package audio provides the media backends driven by the playback
// controller.
package audio

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNotLoaded         = errors.New("no source loaded")
	ErrClosed            = errors.New("backend closed")
)

const (
	extMP3  = ".mp3"
	extWAV  = ".wav"
	extFLAC = ".flac"
	extOGG  = ".ogg"
	extOGA  = ".oga"
)

// Decode opens path and decodes it according to its extension.
// Closing the returned streamer closes the file.
func Decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var decode func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)
	switch ext {
	case extMP3:
		decode = mp3.Decode
	case extWAV:
		decode = func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(rc) }
	case extFLAC:
		decode = func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(rc) }
	case extOGG, extOGA:
		decode = vorbis.Decode
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "open %s", path)
	}

	streamer, format, err := decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "decode %s", path)
	}
	return streamer, format, nil
}

// Probe returns the duration of the audio file at path in seconds.
func Probe(path string) (float64, error) {
	streamer, format, err := Decode(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()).Seconds(), nil
}

// toWallTime returns the time with the monotonic clock reading stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
