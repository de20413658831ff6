package playback

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
)

// Errors
var (
	ErrInvalidIndex  = errors.New("invalid playlist index")
	ErrPlaybackStart = errors.New("playback start failed")
	ErrLoad          = errors.New("load failed")
	ErrClosed        = errors.New("controller closed")
)

const defaultEventBuffer = 64

// Config holds controller configuration.
type Config struct {
	StartIndex  int  // Track selected when the controller mounts
	Autoplay    bool // Start playing the start track immediately
	EventBuffer int  // Event channel capacity
}

// Controller owns the playback state and keeps the backend consistent with it.
//
// Commands are serialized by cmdMu, which is held across backend calls.
// State fields are guarded by mu. Play completions only take mu, so a
// backend may resolve a play request synchronously.
//
// Timeline events carry no track identity. While a track switch is in
// progress they are dropped, and a track end only advances if no switch
// happened between its arrival and the advance.
type Controller struct {
	cmdMu sync.Mutex
	mu    sync.RWMutex

	playlist *playlist.Playlist
	backend  Backend
	config   Config

	// Playback state
	index         int
	playing       bool
	position      float64
	duration      float64
	durationKnown bool
	loaded        bool // Current source loaded into the backend
	pending       bool // Play request in flight
	generation    uint64
	loadGen       uint64 // Incremented by every track switch
	switching     bool   // Track switch in progress
	lastErr       error
	closed        bool

	// Events
	eventCh chan Event
}

// NewController creates a controller bound to pl and subscribes it to the
// backend. The start track is loaded, and played when Autoplay is set.
func NewController(config Config, pl *playlist.Playlist, backend Backend) (*Controller, error) {
	if pl == nil || pl.Len() == 0 {
		return nil, playlist.ErrEmpty
	}
	if !pl.Contains(config.StartIndex) {
		return nil, errors.Wrapf(ErrInvalidIndex, "start index %d out of range [0, %d)", config.StartIndex, pl.Len())
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaultEventBuffer
	}

	c := &Controller{
		playlist: pl,
		backend:  backend,
		config:   config,
		index:    config.StartIndex,
		eventCh:  make(chan Event, config.EventBuffer),
	}
	backend.Subscribe(backendEvents{c: c})

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if config.Autoplay {
		c.startTrack(config.StartIndex)
	} else {
		c.prepare()
	}

	return c, nil
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Playlist returns the playlist the controller is bound to.
func (c *Controller) Playlist() *playlist.Playlist {
	return c.playlist
}

// Snapshot returns a copy of the current playback state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// SelectTrack makes index the current track and starts playing it from the
// beginning. An out-of-range index is rejected with ErrInvalidIndex.
func (c *Controller) SelectTrack(index int) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if err := c.checkIndex(index); err != nil {
		return err
	}

	c.startTrack(index)
	return nil
}

// TogglePlayPause flips the transport intent. Playback failures are recorded
// in the state, never returned.
func (c *Controller) TogglePlayPause() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}

	c.toggle()
	return nil
}

// Activate toggles the current track, or selects another one.
func (c *Controller) Activate(index int) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if err := c.checkIndex(index); err != nil {
		return err
	}

	c.mu.RLock()
	current := c.index
	c.mu.RUnlock()

	if index == current {
		c.toggle()
	} else {
		c.startTrack(index)
	}
	return nil
}

// Next plays the following track, wrapping to the first one.
func (c *Controller) Next() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}

	c.mu.RLock()
	next := c.playlist.NextIndex(c.index)
	c.mu.RUnlock()

	c.startTrack(next)
	return nil
}

// Previous plays the preceding track, wrapping to the last one.
func (c *Controller) Previous() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}

	c.mu.RLock()
	prev := c.playlist.PreviousIndex(c.index)
	c.mu.RUnlock()

	c.startTrack(prev)
	return nil
}

// Seek moves the position to target seconds, clamped to [0, duration].
// The upper bound applies only once the duration is known. NaN is ignored.
func (c *Controller) Seek(target float64) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}

	c.mu.Lock()
	pos, ok := c.clampLocked(target)
	if !ok {
		c.mu.Unlock()
		zlog.Debug().Msgf("playback: ignoring seek to %v", target)
		return nil
	}
	c.position = pos
	c.sendEventLocked(EventPositionChanged)
	c.mu.Unlock()

	c.backend.SetPosition(pos)
	return nil
}

// Close pauses the backend, discards in-flight play requests and closes the
// event channel. The backend itself is not closed.
func (c *Controller) Close() {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.isClosed() {
		return
	}

	c.backend.Pause()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.playing = false
	c.pending = false
	c.generation++
	close(c.eventCh)
}

// startTrack moves the cursor to index and requests playback.
// Must be called with cmdMu held.
func (c *Controller) startTrack(index int) {
	t := c.playlist.At(index)

	c.mu.Lock()
	c.switching = true
	c.loadGen++
	c.mu.Unlock()

	// Stop the previous source first so audio never overlaps.
	c.backend.Pause()

	c.mu.Lock()
	c.index = index
	c.playing = true
	c.position = 0
	c.duration = 0
	c.durationKnown = false
	c.loaded = false
	c.lastErr = nil
	c.generation++
	c.pending = true
	gen := c.generation
	c.sendEventLocked(EventTrackChanged)
	c.mu.Unlock()

	zlog.Debug().Msgf("playback: starting track: index=%d id=%s title=%s generation=%d", index, t.ID, t.Title, gen)

	err := c.load(t)

	c.mu.Lock()
	c.switching = false
	c.mu.Unlock()

	if err != nil {
		c.resolvePlay(gen, err)
		return
	}
	c.requestPlay(gen, t)
}

// toggle flips the transport intent. Must be called with cmdMu held.
func (c *Controller) toggle() {
	c.mu.Lock()
	if c.playing {
		c.playing = false
		c.pending = false
		c.generation++ // supersede any in-flight play request
		c.sendEventLocked(EventStateChanged)
		c.mu.Unlock()

		c.backend.Pause()
		zlog.Debug().Msg("playback: paused")
		return
	}

	loaded := c.loaded
	c.mu.Unlock()

	// The backend is never called with mu held.
	var resumeAt float64
	if loaded {
		resumeAt = c.backend.Position()
	}

	c.mu.Lock()
	c.playing = true
	c.lastErr = nil
	c.generation++
	c.pending = true
	gen := c.generation
	t := c.playlist.At(c.index)
	if !loaded {
		c.position = 0
	} else if pos, ok := c.clampLocked(resumeAt); ok {
		c.position = pos
	}
	c.sendEventLocked(EventStateChanged)
	c.mu.Unlock()

	zlog.Debug().Msgf("playback: resuming: id=%s generation=%d", t.ID, gen)

	if !loaded {
		if err := c.load(t); err != nil {
			c.resolvePlay(gen, err)
			return
		}
	}
	c.requestPlay(gen, t)
}

// prepare loads the current track without playing it.
// Must be called with cmdMu held.
func (c *Controller) prepare() {
	c.mu.RLock()
	t := c.playlist.At(c.index)
	c.mu.RUnlock()

	if err := c.load(t); err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.sendEventLocked(EventPlaybackFailed)
		c.mu.Unlock()
	}
}

// load loads t into the backend and records whether it is loaded.
// Must be called with cmdMu held.
func (c *Controller) load(t track.Track) error {
	if err := c.backend.Load(t.Source); err != nil {
		c.mu.Lock()
		c.loaded = false
		c.mu.Unlock()

		zlog.Warn().Msgf("playback: load failed: id=%s source=%s err=%v", t.ID, t.Source, err)
		return errors.Mark(errors.Wrapf(err, "load track %s (%s)", t.ID, t.Source), ErrLoad)
	}

	d, known := c.backend.Duration()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	if known {
		c.setDurationLocked(d)
	}
	return nil
}

// requestPlay issues an asynchronous play tagged with gen.
func (c *Controller) requestPlay(gen uint64, t track.Track) {
	var once sync.Once
	c.backend.Play(func(err error) {
		once.Do(func() {
			if err != nil {
				err = errors.Mark(errors.Wrapf(err, "play track %s", t.ID), ErrPlaybackStart)
			}
			c.resolvePlay(gen, err)
		})
	})
}

// resolvePlay applies the outcome of the play request tagged with gen.
// Results of superseded requests are discarded.
func (c *Controller) resolvePlay(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if gen != c.generation {
		zlog.Debug().Msgf("playback: discarding stale play result: generation=%d current=%d err=%v", gen, c.generation, err)
		c.sendEventLocked(EventStaleResult)
		return
	}

	c.pending = false

	if err != nil {
		c.playing = false
		c.lastErr = err
		zlog.Warn().Msgf("playback: %v", err)
		c.sendEventLocked(EventPlaybackFailed)
		return
	}

	c.lastErr = nil
	c.sendEventLocked(EventPlaybackStarted)
}

func (c *Controller) checkIndex(index int) error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.playlist.Contains(index) {
		return errors.Wrapf(ErrInvalidIndex, "index %d out of range [0, %d)", index, c.playlist.Len())
	}
	return nil
}

func (c *Controller) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// clampLocked clamps a position into [0, duration].
// Returns false if the value cannot be placed on the timeline.
func (c *Controller) clampLocked(seconds float64) (float64, bool) {
	if math.IsNaN(seconds) {
		return 0, false
	}
	if seconds < 0 {
		return 0, true
	}
	if c.durationKnown {
		return math.Min(seconds, c.duration), true
	}
	if math.IsInf(seconds, 1) {
		return 0, false
	}
	return seconds, true
}

func (c *Controller) setDurationLocked(seconds float64) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		c.duration = 0
		c.durationKnown = false
		return
	}
	c.duration = seconds
	c.durationKnown = true
	if c.position > seconds {
		c.position = seconds
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Index:         c.index,
		Track:         c.playlist.At(c.index),
		Playing:       c.playing,
		Position:      c.position,
		Duration:      c.duration,
		DurationKnown: c.durationKnown,
		Pending:       c.pending,
		Generation:    c.generation,
		Err:           c.lastErr,
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with mu held for writing.
func (c *Controller) sendEventLocked(t EventType) {
	if c.closed {
		return
	}
	select {
	case c.eventCh <- Event{Type: t, Snapshot: c.snapshotLocked()}:
	default:
		// Channel full, drop event
	}
}

// onPositionUpdated handles backend progress.
func (c *Controller) onPositionUpdated(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.switching {
		return
	}
	pos, ok := c.clampLocked(seconds)
	if !ok {
		return
	}
	c.position = pos
	c.sendEventLocked(EventPositionChanged)
}

// onMetadataReady handles the backend reporting a duration.
func (c *Controller) onMetadataReady(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.switching {
		return
	}
	c.setDurationLocked(seconds)
	c.sendEventLocked(EventDurationChanged)
}

// onEnded auto-advances to the next track.
func (c *Controller) onEnded() {
	c.mu.RLock()
	if c.closed || c.switching {
		switching := c.switching
		c.mu.RUnlock()
		if switching {
			zlog.Debug().Msg("playback: ignoring track end during track switch")
		}
		return
	}
	loadGen := c.loadGen
	c.mu.RUnlock()

	c.advanceIfCurrent(loadGen)
}

// advanceIfCurrent moves to the next track unless the track loaded as
// loadGen has been replaced in the meantime.
func (c *Controller) advanceIfCurrent(loadGen uint64) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.loadGen != loadGen {
		zlog.Debug().Msgf("playback: discarding stale track end: load=%d current=%d", loadGen, c.loadGen)
		c.mu.Unlock()
		return
	}
	c.sendEventLocked(EventTrackEnded)
	next := c.playlist.NextIndex(c.index)
	c.mu.Unlock()

	c.startTrack(next)
}

// backendEvents adapts backend callbacks to the controller without exposing
// the handlers on Controller itself.
type backendEvents struct {
	c *Controller
}

func (b backendEvents) OnPositionUpdated(seconds float64) { b.c.onPositionUpdated(seconds) }
func (b backendEvents) OnMetadataReady(seconds float64)   { b.c.onMetadataReady(seconds) }
func (b backendEvents) OnEnded()                          { b.c.onEnded() }
