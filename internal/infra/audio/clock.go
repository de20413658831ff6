package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/playback"
)

// ClockBackend is a silent backend. It probes each source for its duration
// and advances the position with the wall clock, so a player can run on a
// machine without audio output.
type ClockBackend struct {
	mu sync.Mutex

	events  *dispatcher
	handler playback.EventHandler
	tick    time.Duration
	probe   func(path string) (float64, error)
	now     func() time.Time

	loaded        bool
	duration      float64
	durationKnown bool
	offset        float64   // Position when playback last started or paused
	startedAt     time.Time // Wall clock of the last start, while playing
	playing       bool
	stopTimer     context.CancelFunc
	generation    uint64
	closed        bool
}

// NewClockBackend creates a clock backend reporting progress every tick.
func NewClockBackend(tick time.Duration) *ClockBackend {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	return &ClockBackend{
		events: newDispatcher(),
		tick:   tick,
		probe:  Probe,
		now:    time.Now,
	}
}

func (b *ClockBackend) Load(source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.stopLocked()
	b.generation++
	b.loaded = false
	b.offset = 0
	b.duration, b.durationKnown = 0, false

	d, err := b.probe(source)
	if err != nil {
		return errors.Wrap(err, "probe source")
	}
	b.loaded = true
	if d > 0 && !math.IsInf(d, 0) {
		b.duration, b.durationKnown = d, true
		b.emitLocked(func(h playback.EventHandler) { h.OnMetadataReady(d) })
	}

	zlog.Debug().Msgf("clock backend: loaded: source=%s duration=%.3f", source, d)
	return nil
}

func (b *ClockBackend) Play(done func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.closed:
		b.events.post(func() { done(ErrClosed) })
		return
	case !b.loaded:
		b.events.post(func() { done(ErrNotLoaded) })
		return
	}

	if !b.playing {
		if b.durationKnown && b.offset >= b.duration {
			b.offset = 0
		}
		b.playing = true
		b.startedAt = toWallTime(b.now())
		b.stopTimer = b.startWallClockTicker(b.generation)
	}
	b.events.post(func() { done(nil) })
}

func (b *ClockBackend) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.playing {
		return
	}
	b.offset = b.positionLocked()
	b.stopLocked()
}

func (b *ClockBackend) SetPosition(seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded || math.IsNaN(seconds) {
		return
	}
	b.offset = b.clampLocked(seconds)
	if b.playing {
		b.startedAt = toWallTime(b.now())
	}
}

func (b *ClockBackend) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positionLocked()
}

func (b *ClockBackend) Duration() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration, b.durationKnown
}

func (b *ClockBackend) Subscribe(h playback.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

func (b *ClockBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.stopLocked()
	b.mu.Unlock()

	b.events.close()
	return nil
}

// startWallClockTicker reports progress every tick until cancelled or the
// end of the source is reached.
func (b *ClockBackend) startWallClockTicker(generation uint64) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(b.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !b.onTick(generation) {
					return
				}
			}
		}
	}()

	return cancel
}

// onTick posts a progress event. Returns false once the ticker should stop.
func (b *ClockBackend) onTick(generation uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || !b.playing || b.generation != generation {
		return false
	}

	pos := b.positionLocked()
	if b.durationKnown && pos >= b.duration {
		b.offset = b.duration
		b.stopLocked()
		end := b.duration
		b.emitLocked(func(h playback.EventHandler) {
			h.OnPositionUpdated(end)
			h.OnEnded()
		})
		return false
	}

	b.emitLocked(func(h playback.EventHandler) { h.OnPositionUpdated(pos) })
	return true
}

func (b *ClockBackend) positionLocked() float64 {
	if !b.playing {
		return b.offset
	}
	elapsed := toWallTime(b.now()).Sub(b.startedAt).Seconds()
	return b.clampLocked(b.offset + elapsed)
}

func (b *ClockBackend) clampLocked(seconds float64) float64 {
	if seconds < 0 {
		return 0
	}
	if b.durationKnown && seconds > b.duration {
		return b.duration
	}
	return seconds
}

// stopLocked stops the ticker and marks the backend paused.
func (b *ClockBackend) stopLocked() {
	if b.stopTimer != nil {
		b.stopTimer()
		b.stopTimer = nil
	}
	b.playing = false
}

// emitLocked posts fn with the current handler, if any. The event is dropped
// if another source is loaded before it is delivered. The check is
// best-effort: fn runs after b.mu is released.
func (b *ClockBackend) emitLocked(fn func(h playback.EventHandler)) {
	h := b.handler
	if h == nil {
		return
	}
	generation := b.generation
	b.events.post(func() {
		b.mu.Lock()
		current := !b.closed && b.generation == generation
		b.mu.Unlock()

		if current {
			fn(h)
		}
	})
}
