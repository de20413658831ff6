// Package session provides the player session manager.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/auth"
	"github.com/osa030/tunebox/internal/app/favorites"
	"github.com/osa030/tunebox/internal/app/library"
	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/track"
	"github.com/osa030/tunebox/internal/domain/user"
	"github.com/osa030/tunebox/internal/infra/config"
	"github.com/osa030/tunebox/internal/infra/metrics"
	"github.com/osa030/tunebox/internal/infra/storage"
)

var (
	ErrNoSession     = errors.New("no player session")
	ErrTrackNotFound = errors.New("track not found")
)

const (
	NotificationSessionOpened = "session_opened"
	NotificationSessionClosed = "session_closed"
)

// BackendFactory creates the media backend of a new player session.
type BackendFactory func() (playback.Backend, error)

// Deps are the collaborators of a Manager.
type Deps struct {
	Gate         *auth.Gate
	Store        storage.Store
	Library      *library.Chain
	NewBackend   BackendFactory
	Notification *notification.Manager
	Metrics      *metrics.Metrics
}

// player is an open session: a logged-in user with a controller bound to
// the library playlist.
type player struct {
	user       user.Public
	controller *playback.Controller
	backend    playback.Backend
	favorites  *favorites.Store
	done       chan struct{}
}

// Manager owns the player session of the logged-in user.
type Manager struct {
	mu sync.RWMutex

	config       *config.Config
	gate         *auth.Gate
	store        storage.Store
	library      *library.Chain
	newBackend   BackendFactory
	notification *notification.Manager
	metrics      *metrics.Metrics

	current *player
}

// NewManager creates a new session manager.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	switch {
	case deps.Gate == nil:
		return nil, errors.New("session: gate is required")
	case deps.Store == nil:
		return nil, errors.New("session: store is required")
	case deps.Library == nil:
		return nil, errors.New("session: library is required")
	case deps.NewBackend == nil:
		return nil, errors.New("session: backend factory is required")
	}
	if deps.Notification == nil {
		deps.Notification = notification.NewManager()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}

	return &Manager{
		config:       cfg,
		gate:         deps.Gate,
		store:        deps.Store,
		library:      deps.Library,
		newBackend:   deps.NewBackend,
		notification: deps.Notification,
		metrics:      deps.Metrics,
	}, nil
}

// Start reopens the session of the persisted current user, if any.
func (m *Manager) Start(ctx context.Context) error {
	if m.config.Playback.SkipRestore {
		zlog.Info().Msg("session: restore skipped")
		return nil
	}

	u, ok := m.gate.CurrentUser(ctx)
	if !ok {
		zlog.Info().Msg("session: no user to restore")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.openLocked(ctx, *u); err != nil {
		return errors.Wrapf(err, "failed to restore session for %s", u.Email)
	}
	zlog.Info().Msgf("session: restored: email=%s", u.Email)
	return nil
}

// Signup registers a user and opens their player session.
func (m *Manager) Signup(ctx context.Context, email, password string) (user.Public, error) {
	u, err := m.gate.Register(ctx, email, password)
	m.metrics.ObserveAuth(auth.ActionSignup.String(), err)
	if err != nil {
		return user.Public{}, err
	}
	return u, m.open(ctx, u)
}

// Login authenticates a user and opens their player session. An open
// session of the same user is kept.
func (m *Manager) Login(ctx context.Context, email, password string) (user.Public, error) {
	u, err := m.gate.Login(ctx, email, password)
	m.metrics.ObserveAuth(auth.ActionLogin.String(), err)
	if err != nil {
		return user.Public{}, err
	}
	return u, m.open(ctx, u)
}

// Logout forgets the current user and discards their player session.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.gate.Logout(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	return nil
}

// Close discards the player session without logging out.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

// CurrentUser returns the user of the open session.
func (m *Manager) CurrentUser() (user.Public, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return user.Public{}, ErrNoSession
	}
	return m.current.user, nil
}

// Notifications returns the manager player notifications are broadcast on.
func (m *Manager) Notifications() *notification.Manager {
	return m.notification
}

// TogglePlayPause flips the transport state.
func (m *Manager) TogglePlayPause() error {
	return m.command("toggle", func(c *playback.Controller) error { return c.TogglePlayPause() })
}

// Next moves to the next track.
func (m *Manager) Next() error {
	return m.command("next", func(c *playback.Controller) error { return c.Next() })
}

// Previous moves to the previous track.
func (m *Manager) Previous() error {
	return m.command("previous", func(c *playback.Controller) error { return c.Previous() })
}

// SelectTrack starts the track at index.
func (m *Manager) SelectTrack(index int) error {
	return m.command("select", func(c *playback.Controller) error { return c.SelectTrack(index) })
}

// Activate toggles the current track or starts another one.
func (m *Manager) Activate(index int) error {
	return m.command("activate", func(c *playback.Controller) error { return c.Activate(index) })
}

// Seek moves the position of the current track.
func (m *Manager) Seek(seconds float64) error {
	return m.command("seek", func(c *playback.Controller) error { return c.Seek(seconds) })
}

// Status returns the player state with the favorite flags of every track.
func (m *Manager) Status() (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return Status{}, ErrNoSession
	}
	return m.current.status(), nil
}

// Playlist returns the playlist of the open session.
func (m *Manager) Playlist() (*playlist.Playlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current.controller.Playlist(), nil
}

// Favorites returns the favorite tracks of the current user.
func (m *Manager) Favorites() ([]track.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current.favorites.List(), nil
}

// AddFavorite marks the playlist track with the given ID as a favorite.
func (m *Manager) AddFavorite(ctx context.Context, trackID string) error {
	return m.favorite(ctx, "favorite_add", trackID, func(f *favorites.Store, t track.Track) error {
		return f.Add(ctx, t)
	})
}

// RemoveFavorite unmarks the track with the given ID.
func (m *Manager) RemoveFavorite(ctx context.Context, trackID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return ErrNoSession
	}
	err := m.current.favorites.Remove(ctx, trackID)
	m.metrics.ObserveCommand("favorite_remove", err)
	if err == nil {
		m.broadcastFavoritesLocked()
	}
	return err
}

// ToggleFavorite flips the favorite flag of a playlist track and reports
// whether it is now a favorite.
func (m *Manager) ToggleFavorite(ctx context.Context, trackID string) (bool, error) {
	var added bool
	err := m.favorite(ctx, "favorite_toggle", trackID, func(f *favorites.Store, t track.Track) error {
		var err error
		added, err = f.Toggle(ctx, t)
		return err
	})
	return added, err
}

func (m *Manager) favorite(ctx context.Context, name, trackID string, fn func(*favorites.Store, track.Track) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return ErrNoSession
	}

	pl := m.current.controller.Playlist()
	i := pl.IndexOf(trackID)
	if i < 0 {
		return errors.Wrapf(ErrTrackNotFound, "id=%s", trackID)
	}

	err := fn(m.current.favorites, pl.At(i))
	m.metrics.ObserveCommand(name, err)
	if err == nil {
		m.broadcastFavoritesLocked()
	}
	return err
}

func (m *Manager) broadcastFavoritesLocked() {
	ids := make([]string, 0, m.current.favorites.Count())
	for _, t := range m.current.favorites.List() {
		ids = append(ids, t.ID)
	}
	m.notification.Broadcast(m.notification.New("favorites_changed", ids))
}

// command runs fn against the open controller.
func (m *Manager) command(name string, fn func(*playback.Controller) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		m.metrics.ObserveCommand(name, ErrNoSession)
		return ErrNoSession
	}

	err := fn(m.current.controller)
	m.metrics.ObserveCommand(name, err)
	if err != nil {
		zlog.Debug().Msgf("session: command failed: name=%s err=%v", name, err)
	}
	return err
}

func (m *Manager) open(ctx context.Context, u user.Public) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.user.Email == u.Email {
		zlog.Debug().Msgf("session: already open: email=%s", u.Email)
		return nil
	}
	return m.openLocked(ctx, u)
}

// openLocked replaces the open session with a new one for u.
// Must be called with mu held.
func (m *Manager) openLocked(ctx context.Context, u user.Public) error {
	m.closeLocked()

	pl, err := m.library.Load(ctx, m.config.Library.Name)
	if err != nil {
		return errors.Wrap(err, "failed to load playlist")
	}

	favs, err := favorites.Open(ctx, m.store, u.Email)
	if err != nil {
		return errors.Wrap(err, "failed to open favorites")
	}

	backend, err := m.newBackend()
	if err != nil {
		return errors.Wrap(err, "failed to create backend")
	}

	startIndex := m.config.Playback.StartIndex
	if !pl.Contains(startIndex) {
		zlog.Warn().Msgf("session: start index %d out of range, using 0", startIndex)
		startIndex = 0
	}

	controller, err := playback.NewController(playback.Config{
		StartIndex:  startIndex,
		Autoplay:    m.config.Playback.Autoplay,
		EventBuffer: m.config.Playback.EventBuffer,
	}, pl, backend)
	if err != nil {
		backend.Close()
		return errors.Wrap(err, "failed to create controller")
	}

	p := &player{
		user:       u,
		controller: controller,
		backend:    backend,
		favorites:  favs,
		done:       make(chan struct{}),
	}
	m.current = p
	m.metrics.ActiveSessions.Inc()
	go m.forwardEvents(p)

	m.notification.Broadcast(m.notification.New(NotificationSessionOpened, p.status()))
	zlog.Info().Msgf("session: opened: email=%s playlist=%s tracks=%d", u.Email, pl.Name, pl.Len())
	return nil
}

// closeLocked closes the open session, if any. Must be called with mu held.
func (m *Manager) closeLocked() {
	p := m.current
	if p == nil {
		return
	}
	m.current = nil

	p.controller.Close()
	<-p.done
	if err := p.backend.Close(); err != nil {
		zlog.Warn().Msgf("session: failed to close backend: %v", err)
	}
	m.metrics.ActiveSessions.Dec()

	m.notification.Broadcast(m.notification.New(NotificationSessionClosed, p.user))
	zlog.Info().Msgf("session: closed: email=%s", p.user.Email)
}

// forwardEvents relays controller events to metrics and subscribers until
// the controller is closed.
func (m *Manager) forwardEvents(p *player) {
	defer close(p.done)

	for ev := range p.controller.Events() {
		name := ev.Type.String()
		m.metrics.ObserveEvent(name)

		if ev.Type == playback.EventPlaybackFailed {
			zlog.Warn().Msgf("session: playback failed: index=%d err=%s", ev.Snapshot.Index, ev.Snapshot.ErrorMessage())
		}
		m.notification.Broadcast(m.notification.New(name, p.playerState(ev.Snapshot)))
	}
}
