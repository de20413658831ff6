package audio

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/playback"
)

const resampleQuality = 4

var (
	speakerOnce sync.Once
	speakerErr  error
	speakerRate beep.SampleRate
)

// initSpeaker initializes the process-wide speaker once.
func initSpeaker(rate beep.SampleRate, buffer time.Duration) (beep.SampleRate, error) {
	speakerOnce.Do(func() {
		speakerRate = rate
		speakerErr = speaker.Init(rate, rate.N(buffer))
		if speakerErr != nil {
			speakerErr = errors.Wrap(speakerErr, "failed to initialize speaker")
		}
	})
	return speakerRate, speakerErr
}

// speakerTrack bundles the resources of the loaded source.
type speakerTrack struct {
	stream     beep.StreamSeekCloser
	format     beep.Format
	ctrl       *beep.Ctrl
	generation uint64
}

// SpeakerBackend plays audio files on the default output device.
type SpeakerBackend struct {
	mu sync.Mutex

	events  *dispatcher
	handler playback.EventHandler
	rate    beep.SampleRate
	tick    time.Duration

	current    *speakerTrack
	generation atomic.Uint64
	playing    bool
	stopTicker context.CancelFunc
	closed     bool
}

// NewSpeakerBackend creates a backend playing through the speaker.
func NewSpeakerBackend(opts Options) (*SpeakerBackend, error) {
	rate, err := initSpeaker(beep.SampleRate(opts.SampleRate), opts.Buffer)
	if err != nil {
		return nil, err
	}
	return &SpeakerBackend{
		events: newDispatcher(),
		rate:   rate,
		tick:   opts.Tick,
	}, nil
}

func (b *SpeakerBackend) Load(source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.unloadLocked()

	stream, format, err := Decode(source)
	if err != nil {
		return err
	}

	var s beep.Streamer = stream
	if format.SampleRate != b.rate {
		s = beep.Resample(resampleQuality, format.SampleRate, b.rate, stream)
	}

	generation := b.generation.Add(1)
	ctrl := &beep.Ctrl{
		Streamer: beep.Seq(s, beep.Callback(func() { b.onStreamEnd(generation) })),
		Paused:   true,
	}
	b.current = &speakerTrack{stream: stream, format: format, ctrl: ctrl, generation: generation}
	speaker.Play(ctrl)

	d := format.SampleRate.D(stream.Len()).Seconds()
	b.emitLocked(func(h playback.EventHandler) { h.OnMetadataReady(d) })

	zlog.Debug().Msgf("speaker backend: loaded: source=%s rate=%d duration=%.3f", source, format.SampleRate, d)
	return nil
}

func (b *SpeakerBackend) Play(done func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.closed:
		b.events.post(func() { done(ErrClosed) })
		return
	case b.current == nil:
		b.events.post(func() { done(ErrNotLoaded) })
		return
	}

	speaker.Lock()
	b.current.ctrl.Paused = false
	speaker.Unlock()

	if !b.playing {
		b.playing = true
		b.stopTicker = b.startTicker(b.current.generation)
	}
	b.events.post(func() { done(nil) })
}

func (b *SpeakerBackend) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pauseLocked()
}

func (b *SpeakerBackend) SetPosition(seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil || math.IsNaN(seconds) {
		return
	}

	t := b.current
	n := t.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	n = max(0, min(n, t.stream.Len()))

	speaker.Lock()
	err := t.stream.Seek(n)
	speaker.Unlock()
	if err != nil {
		zlog.Warn().Msgf("speaker backend: seek failed: position=%.3f err=%v", seconds, err)
	}
}

func (b *SpeakerBackend) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positionLocked()
}

func (b *SpeakerBackend) Duration() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return 0, false
	}
	return b.current.format.SampleRate.D(b.current.stream.Len()).Seconds(), true
}

func (b *SpeakerBackend) Subscribe(h playback.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

func (b *SpeakerBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.unloadLocked()
	b.mu.Unlock()

	b.events.close()
	return nil
}

// onStreamEnd runs on the audio goroutine with the speaker locked, so it
// only hands the event over to the dispatcher.
func (b *SpeakerBackend) onStreamEnd(generation uint64) {
	b.events.post(func() {
		b.mu.Lock()
		if b.closed || b.generation.Load() != generation {
			b.mu.Unlock()
			return
		}
		b.pauseLocked()
		h := b.handler
		b.mu.Unlock()

		if h != nil {
			h.OnEnded()
		}
	})
}

func (b *SpeakerBackend) startTicker(generation uint64) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(b.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.mu.Lock()
				if b.closed || b.current == nil || b.current.generation != generation {
					b.mu.Unlock()
					return
				}
				pos := b.positionLocked()
				b.emitLocked(func(h playback.EventHandler) { h.OnPositionUpdated(pos) })
				b.mu.Unlock()
			}
		}
	}()

	return cancel
}

func (b *SpeakerBackend) positionLocked() float64 {
	if b.current == nil {
		return 0
	}
	speaker.Lock()
	n := b.current.stream.Position()
	speaker.Unlock()
	return b.current.format.SampleRate.D(n).Seconds()
}

func (b *SpeakerBackend) pauseLocked() {
	if b.current != nil {
		speaker.Lock()
		b.current.ctrl.Paused = true
		speaker.Unlock()
	}
	if b.stopTicker != nil {
		b.stopTicker()
		b.stopTicker = nil
	}
	b.playing = false
}

// unloadLocked stops and releases the loaded source.
func (b *SpeakerBackend) unloadLocked() {
	b.pauseLocked()
	if b.current == nil {
		return
	}
	speaker.Clear()
	if err := b.current.stream.Close(); err != nil {
		zlog.Debug().Msgf("speaker backend: close stream: %v", err)
	}
	b.current = nil
	b.generation.Add(1)
}

// emitLocked posts fn with the current handler, dropping it if another
// source is loaded before delivery. The check is best-effort: fn runs after
// b.mu is released.
func (b *SpeakerBackend) emitLocked(fn func(h playback.EventHandler)) {
	h := b.handler
	if h == nil {
		return
	}
	generation := b.generation.Load()
	b.events.post(func() {
		if b.generation.Load() == generation {
			fn(h)
		}
	})
}
