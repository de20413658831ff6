package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/osa030/tunebox/internal/app/auth"
	"github.com/osa030/tunebox/internal/app/library"
	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/infra/config"
	"github.com/osa030/tunebox/internal/infra/metrics"
	"github.com/osa030/tunebox/internal/infra/storage"
)

const (
	testEmail    = "listener@gmail.com"
	testPassword = "hunter42!"
)

// stubBackend resolves play requests synchronously.
type stubBackend struct {
	mu       sync.Mutex
	source   string
	playing  bool
	position float64
	closed   bool
}

func (b *stubBackend) Load(source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.source, b.position, b.playing = source, 0, false
	return nil
}

func (b *stubBackend) Play(done func(error)) {
	b.mu.Lock()
	b.playing = true
	b.mu.Unlock()
	done(nil)
}

func (b *stubBackend) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playing = false
}

func (b *stubBackend) SetPosition(seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.position = seconds
}

func (b *stubBackend) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

func (b *stubBackend) Duration() (float64, bool)       { return 0, false }
func (b *stubBackend) Subscribe(playback.EventHandler) {}

func (b *stubBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *stubBackend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type fixture struct {
	manager  *Manager
	store    storage.Store
	metrics  *metrics.Metrics
	backends []*stubBackend
}

func newFixture(t *testing.T, store storage.Store, modify func(*config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{
		Library:  config.LibraryConfig{Name: "Library"},
		Playback: config.PlaybackConfig{EventBuffer: 64},
	}
	if modify != nil {
		modify(cfg)
	}

	chain, err := auth.NewChainFromConfig(cfg)
	require.NoError(t, err)

	provider, err := library.NewStaticProvider(map[string]any{
		"tracks": []map[string]any{
			{"id": "1", "title": "HIM 1", "artist": "Karan", "source": "/songs/song1.mp3"},
			{"id": "2", "title": "HIM 2", "artist": "Karan", "source": "/songs/song2.mp3"},
			{"id": "3", "title": "HIM 3", "source": "/songs/song3.mp3"},
		},
	})
	require.NoError(t, err)

	f := &fixture{store: store, metrics: metrics.New(nil)}
	f.manager, err = NewManager(cfg, Deps{
		Gate:    auth.NewGate(store, chain, auth.WithBcryptCost(bcrypt.MinCost)),
		Store:   store,
		Library: library.NewChain([]library.ProviderWithMetadata{{Provider: provider, DisplayName: "Built-in"}}),
		NewBackend: func() (playback.Backend, error) {
			b := &stubBackend{}
			f.backends = append(f.backends, b)
			return b, nil
		},
		Notification: notification.NewManager(),
		Metrics:      f.metrics,
	})
	require.NoError(t, err)
	t.Cleanup(f.manager.Close)
	return f
}

func TestManager_NoSession(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore(), nil)
	m := f.manager

	commands := map[string]func() error{
		"toggle":   m.TogglePlayPause,
		"next":     m.Next,
		"previous": m.Previous,
		"select":   func() error { return m.SelectTrack(1) },
		"activate": func() error { return m.Activate(1) },
		"seek":     func() error { return m.Seek(10) },
		"favorite": func() error { return m.AddFavorite(context.Background(), "1") },
	}
	for name, fn := range commands {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(fn(), ErrNoSession))
		})
	}

	_, err := m.Status()
	assert.True(t, errors.Is(err, ErrNoSession))
	_, err = m.CurrentUser()
	assert.True(t, errors.Is(err, ErrNoSession))
	_, err = m.Playlist()
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestManager_SignupOpensSession(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore(), nil)
	ctx := context.Background()

	u, err := f.manager.Signup(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, testEmail, u.Email)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveSessions))

	status, err := f.manager.Status()
	require.NoError(t, err)
	assert.Equal(t, testEmail, status.User.Email)
	assert.Equal(t, "Library", status.Playlist)
	require.Len(t, status.Tracks, 3)
	assert.True(t, status.Tracks[0].Current)
	assert.Equal(t, "Unknown Artist", status.Tracks[2].ArtistLabel)
	assert.Equal(t, 0, status.Player.Index)
	assert.Equal(t, "paused", status.Player.State)
	assert.Equal(t, "0:00", status.Player.PositionLabel)

	require.Len(t, f.backends, 1)
	assert.Equal(t, "/songs/song1.mp3", f.backends[0].source)
}

func TestManager_SignupRejected(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore(), nil)

	_, err := f.manager.Signup(context.Background(), "someone@example.com", testPassword)
	require.Error(t, err)
	assert.Equal(t, "domain_not_allowed", auth.Code(err))
	assert.Empty(t, f.backends)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthAttempts.WithLabelValues("signup", "error")))
}

func TestManager_Commands(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore(), nil)
	m := f.manager
	_, err := m.Signup(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, m.SelectTrack(2))
	status, _ := m.Status()
	assert.Equal(t, 2, status.Player.Index)
	assert.True(t, status.Player.Playing)
	assert.Equal(t, "HIM 3", status.Player.Track.Title)

	require.NoError(t, m.Next())
	status, _ = m.Status()
	assert.Equal(t, 0, status.Player.Index)

	require.NoError(t, m.Previous())
	status, _ = m.Status()
	assert.Equal(t, 2, status.Player.Index)

	require.NoError(t, m.TogglePlayPause())
	status, _ = m.Status()
	assert.False(t, status.Player.Playing)

	require.NoError(t, m.Seek(42))
	status, _ = m.Status()
	assert.Equal(t, 42.0, status.Player.Position)

	err = m.SelectTrack(7)
	assert.True(t, errors.Is(err, playback.ErrInvalidIndex))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Commands.WithLabelValues("select", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Commands.WithLabelValues("next", "ok")))
}

func TestManager_Favorites(t *testing.T) {
	store := storage.NewMemoryStore()
	f := newFixture(t, store, nil)
	m := f.manager
	ctx := context.Background()
	_, err := m.Signup(ctx, testEmail, testPassword)
	require.NoError(t, err)

	added, err := m.ToggleFavorite(ctx, "2")
	require.NoError(t, err)
	assert.True(t, added)
	require.NoError(t, m.AddFavorite(ctx, "3"))

	status, _ := m.Status()
	assert.False(t, status.Tracks[0].Favorite)
	assert.True(t, status.Tracks[1].Favorite)
	assert.True(t, status.Tracks[2].Favorite)
	assert.Equal(t, 2, status.FavoriteCount)

	err = m.AddFavorite(ctx, "missing")
	assert.True(t, errors.Is(err, ErrTrackNotFound))

	require.NoError(t, m.RemoveFavorite(ctx, "3"))
	favs, err := m.Favorites()
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "2", favs[0].ID)

	// Favorites survive a logout
	require.NoError(t, m.Logout(ctx))
	_, err = m.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	favs, _ = m.Favorites()
	require.Len(t, favs, 1)
	assert.Equal(t, "2", favs[0].ID)
}

func TestManager_LogoutClosesSession(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore(), nil)
	m := f.manager
	ctx := context.Background()
	_, err := m.Signup(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.NoError(t, m.SelectTrack(1))

	require.NoError(t, m.Logout(ctx))
	assert.True(t, f.backends[0].isClosed())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveSessions))
	_, err = m.Status()
	assert.True(t, errors.Is(err, ErrNoSession))

	// A new session starts from scratch
	_, err = m.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	status, _ := m.Status()
	assert.Equal(t, 0, status.Player.Index)
	assert.False(t, status.Player.Playing)
}

func TestManager_LoginSwitchesUser(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore(), nil)
	m := f.manager
	ctx := context.Background()

	_, err := m.Signup(ctx, testEmail, testPassword)
	require.NoError(t, err)

	// Same user keeps the session
	_, err = m.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Len(t, f.backends, 1)

	_, err = m.Signup(ctx, "other@yahoo.com", testPassword)
	require.NoError(t, err)
	require.Len(t, f.backends, 2)
	assert.True(t, f.backends[0].isClosed())

	u, err := m.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "other@yahoo.com", u.Email)

	_, err = m.Login(ctx, testEmail, "wrong-pass1!")
	assert.True(t, errors.Is(err, auth.ErrInvalidPassword))
	u, _ = m.CurrentUser()
	assert.Equal(t, "other@yahoo.com", u.Email)
}

func TestManager_Start(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	first := newFixture(t, store, nil)
	_, err := first.manager.Signup(ctx, testEmail, testPassword)
	require.NoError(t, err)
	first.manager.Close()

	t.Run("restores the current user", func(t *testing.T) {
		f := newFixture(t, store, func(c *config.Config) { c.Playback.StartIndex = 1 })
		require.NoError(t, f.manager.Start(ctx))

		u, err := f.manager.CurrentUser()
		require.NoError(t, err)
		assert.Equal(t, testEmail, u.Email)
		status, _ := f.manager.Status()
		assert.Equal(t, 1, status.Player.Index)
	})

	t.Run("skip restore", func(t *testing.T) {
		f := newFixture(t, store, func(c *config.Config) { c.Playback.SkipRestore = true })
		require.NoError(t, f.manager.Start(ctx))
		_, err := f.manager.CurrentUser()
		assert.True(t, errors.Is(err, ErrNoSession))
	})

	t.Run("nothing to restore", func(t *testing.T) {
		f := newFixture(t, storage.NewMemoryStore(), nil)
		require.NoError(t, f.manager.Start(ctx))
		assert.Empty(t, f.backends)
	})
}

func TestManager_Notifications(t *testing.T) {
	f := newFixture(t, storage.NewMemoryStore(), nil)
	m := f.manager
	stream := notification.NewChannelStream(256)
	m.Notifications().Subscribe(stream)

	_, err := m.Signup(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.NoError(t, m.SelectTrack(1))

	seen := make(map[string]*notification.Notification)
	require.Eventually(t, func() bool {
		for {
			select {
			case n := <-stream.C():
				seen[n.Type] = n
			default:
				return seen["track_changed"] != nil && seen["playback_started"] != nil
			}
		}
	}, time.Second, 5*time.Millisecond)

	assert.Contains(t, seen, NotificationSessionOpened)
	state, ok := seen["playback_started"].Payload.(PlayerState)
	require.True(t, ok)
	assert.Equal(t, 1, state.Index)
	assert.True(t, state.Playing)
	assert.Greater(t, seen["playback_started"].SequenceNo, seen[NotificationSessionOpened].SequenceNo)
}

func TestManager_BackendFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := &config.Config{Library: config.LibraryConfig{Name: "Library"}}
	chain, err := auth.NewChainFromConfig(cfg)
	require.NoError(t, err)
	provider, err := library.NewStaticProvider(map[string]any{
		"tracks": []map[string]any{{"id": "1", "title": "HIM 1", "source": "/songs/song1.mp3"}},
	})
	require.NoError(t, err)

	m, err := NewManager(cfg, Deps{
		Gate:       auth.NewGate(store, chain, auth.WithBcryptCost(bcrypt.MinCost)),
		Store:      store,
		Library:    library.NewChain([]library.ProviderWithMetadata{{Provider: provider}}),
		NewBackend: func() (playback.Backend, error) { return nil, errors.New("no audio device") },
	})
	require.NoError(t, err)

	_, err = m.Signup(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio device")
	_, err = m.Status()
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestNewManager_MissingDeps(t *testing.T) {
	_, err := NewManager(&config.Config{}, Deps{})
	assert.Error(t, err)
}
