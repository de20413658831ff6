package audio

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSilence writes a mono WAV file of the given length.
func writeSilence(t *testing.T, path string, rate beep.SampleRate, d time.Duration) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(rate.N(d)), format))
}

func TestDecodeAndProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silence.wav")
	writeSilence(t, path, 8000, 1500*time.Millisecond)

	streamer, format, err := Decode(path)
	require.NoError(t, err)
	assert.Equal(t, beep.SampleRate(8000), format.SampleRate)
	assert.Equal(t, 12000, streamer.Len())
	require.NoError(t, streamer.Close())

	d, err := Probe(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, d, 0.001)
}

func TestDecode_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Decode(filepath.Join(dir, "notes.txt"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)

	_, _, err = Decode(filepath.Join(dir, "missing.mp3"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not a wav file"), 0o644))
	_, err = Probe(garbage)
	assert.Error(t, err)
}

func TestDispatcher(t *testing.T) {
	d := newDispatcher()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		d.post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	d.close()

	require.Len(t, got, 100, "close drains the queue")
	for i, v := range got {
		assert.Equal(t, i, v)
	}

	// Posting after close is a no-op
	d.post(func() { t.Error("ran after close") })
}

// recorder is an EventHandler collecting events.
type recorder struct {
	mu        sync.Mutex
	positions []float64
	durations []float64
	ended     int
}

func (r *recorder) OnPositionUpdated(s float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, s)
}

func (r *recorder) OnMetadataReady(s float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations = append(r.durations, s)
}

func (r *recorder) OnEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended++
}

func (r *recorder) endedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

func (r *recorder) lastPosition() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.positions) == 0 {
		return -1
	}
	return r.positions[len(r.positions)-1]
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestClockBackend(t *testing.T, durations map[string]float64) (*ClockBackend, *fakeClock, *recorder) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := &recorder{}

	b := NewClockBackend(time.Millisecond)
	b.now = clock.Now
	b.probe = func(path string) (float64, error) {
		d, ok := durations[path]
		if !ok {
			return 0, errors.Newf("no such file: %s", path)
		}
		return d, nil
	}
	b.Subscribe(rec)
	t.Cleanup(func() { b.Close() })
	return b, clock, rec
}

// playSync plays and waits for the completion.
func playSync(t *testing.T, b *ClockBackend) error {
	t.Helper()
	result := make(chan error, 1)
	b.Play(func(err error) { result <- err })
	select {
	case err := <-result:
		return err
	case <-time.After(time.Second):
		t.Fatal("play did not complete")
		return nil
	}
}

func TestClockBackend_PlayAndEnd(t *testing.T) {
	b, clock, rec := newTestClockBackend(t, map[string]float64{"a.mp3": 10})

	require.NoError(t, b.Load("a.mp3"))
	d, ok := b.Duration()
	assert.True(t, ok)
	assert.Equal(t, 10.0, d)

	require.NoError(t, playSync(t, b))
	clock.Advance(4 * time.Second)
	assert.InDelta(t, 4.0, b.Position(), 1e-9)

	require.Eventually(t, func() bool { return rec.lastPosition() == 4.0 }, time.Second, time.Millisecond)

	clock.Advance(20 * time.Second)
	require.Eventually(t, func() bool { return rec.endedCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 10.0, b.Position())
	assert.Equal(t, 10.0, rec.lastPosition())
	assert.Equal(t, []float64{10}, rec.durations)
}

func TestClockBackend_PauseAndSeek(t *testing.T) {
	b, clock, _ := newTestClockBackend(t, map[string]float64{"a.mp3": 60})

	require.NoError(t, b.Load("a.mp3"))
	require.NoError(t, playSync(t, b))
	clock.Advance(5 * time.Second)

	b.Pause()
	clock.Advance(30 * time.Second)
	assert.InDelta(t, 5.0, b.Position(), 1e-9, "position holds while paused")

	b.SetPosition(50)
	assert.Equal(t, 50.0, b.Position())
	b.SetPosition(500)
	assert.Equal(t, 60.0, b.Position())
	b.SetPosition(-1)
	assert.Equal(t, 0.0, b.Position())

	require.NoError(t, playSync(t, b))
	clock.Advance(2 * time.Second)
	assert.InDelta(t, 2.0, b.Position(), 1e-9)
}

func TestClockBackend_LoadResets(t *testing.T) {
	b, clock, _ := newTestClockBackend(t, map[string]float64{"a.mp3": 60, "b.mp3": 30})

	require.NoError(t, b.Load("a.mp3"))
	require.NoError(t, playSync(t, b))
	clock.Advance(10 * time.Second)

	require.NoError(t, b.Load("b.mp3"))
	assert.Equal(t, 0.0, b.Position())
	d, _ := b.Duration()
	assert.Equal(t, 30.0, d)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 0.0, b.Position(), "a load leaves the backend paused")
}

func TestClockBackend_Errors(t *testing.T) {
	b, _, _ := newTestClockBackend(t, map[string]float64{"a.mp3": 60})

	assert.True(t, errors.Is(playSync(t, b), ErrNotLoaded))

	assert.Error(t, b.Load("missing.mp3"))
	assert.True(t, errors.Is(playSync(t, b), ErrNotLoaded), "a failed load unloads")

	require.NoError(t, b.Load("a.mp3"))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.True(t, errors.Is(b.Load("a.mp3"), ErrClosed))
}

func TestClockBackend_ReplayAfterEnd(t *testing.T) {
	b, clock, rec := newTestClockBackend(t, map[string]float64{"a.mp3": 1})

	require.NoError(t, b.Load("a.mp3"))
	require.NoError(t, playSync(t, b))
	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return rec.endedCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, playSync(t, b))
	assert.Equal(t, 0.0, b.Position(), "playing a finished source restarts it")
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("clock", Options{})
	require.NoError(t, err)
	assert.IsType(t, &ClockBackend{}, b)
	require.NoError(t, b.Close())

	_, err = NewBackend("browser", Options{})
	assert.Error(t, err)
}
