package audio

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/app/playback"
)

// Options configures the backends.
type Options struct {
	SampleRate int           // Output sample rate (speaker)
	Buffer     time.Duration // Output buffer length (speaker)
	Tick       time.Duration // Position update interval
}

// NewBackend creates a backend by name: "speaker" or "clock".
func NewBackend(kind string, opts Options) (playback.Backend, error) {
	if opts.Tick <= 0 {
		opts.Tick = 250 * time.Millisecond
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 100 * time.Millisecond
	}

	switch kind {
	case "speaker":
		b, err := NewSpeakerBackend(opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "clock", "":
		return NewClockBackend(opts.Tick), nil
	default:
		return nil, errors.Newf("unsupported backend: %s", kind)
	}
}
