// Package auth provides account registration, login and the credential
// rules applied to them.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/osa030/tunebox/internal/domain/user"
	"github.com/osa030/tunebox/internal/infra/storage"
)

const (
	usersKey       = "users"
	currentUserKey = "current_user"
)

var (
	ErrRejected        = errors.New("credentials rejected")
	ErrEmailTaken      = errors.New("email already registered")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
)

// RejectionError reports the rule code that rejected the credentials.
type RejectionError struct {
	Code string
}

func (e *RejectionError) Error() string {
	return "credentials rejected: " + e.Code
}

// Code returns the user-facing code for an error returned by the gate,
// or an empty string.
func Code(err error) string {
	var rejection *RejectionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejection):
		return rejection.Code
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrInvalidPassword):
		return "invalid_password"
	default:
		return ""
	}
}

// Gate registers and authenticates users and remembers the logged-in user.
type Gate struct {
	mu         sync.Mutex
	store      storage.Store
	chain      *Chain
	bcryptCost int
	now        func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(g *Gate) { g.bcryptCost = cost }
}

// WithClock sets the clock used for account creation times.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a gate persisting accounts in store.
func NewGate(store storage.Store, chain *Chain, opts ...Option) *Gate {
	if chain == nil {
		chain = NewChain()
	}
	g := &Gate{
		store:      store,
		chain:      chain,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Chain returns the credential rule chain.
func (g *Gate) Chain() *Chain {
	return g.chain
}

// Register creates an account and makes it the current user.
func (g *Gate) Register(ctx context.Context, email, password string) (user.Public, error) {
	email = user.NormalizeEmail(email)
	if err := g.check(ctx, email, password, ActionSignup); err != nil {
		return user.Public{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	users, err := g.loadUsersLocked(ctx)
	if err != nil {
		return user.Public{}, err
	}
	if _, ok := users[email]; ok {
		return user.Public{}, errors.Wrapf(ErrEmailTaken, "register %s", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.bcryptCost)
	if err != nil {
		return user.Public{}, errors.Wrap(err, "failed to hash password")
	}

	u := user.New(email, string(hash), g.now().UTC())
	users[email] = u
	if err := storage.PutJSON(ctx, g.store, usersKey, users); err != nil {
		return user.Public{}, errors.Wrap(err, "failed to save users")
	}
	if err := g.setCurrentLocked(ctx, u.Public()); err != nil {
		return user.Public{}, err
	}

	zlog.Info().Msgf("auth: registered: email=%s", email)
	return u.Public(), nil
}

// Login authenticates a user and makes it the current user.
func (g *Gate) Login(ctx context.Context, email, password string) (user.Public, error) {
	email = user.NormalizeEmail(email)
	if err := g.check(ctx, email, password, ActionLogin); err != nil {
		return user.Public{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	users, err := g.loadUsersLocked(ctx)
	if err != nil {
		return user.Public{}, err
	}
	u, ok := users[email]
	if !ok {
		return user.Public{}, errors.Wrapf(ErrUserNotFound, "login %s", email)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		zlog.Info().Msgf("auth: login rejected: email=%s", email)
		return user.Public{}, errors.Wrapf(ErrInvalidPassword, "login %s", email)
	}
	if err := g.setCurrentLocked(ctx, u.Public()); err != nil {
		return user.Public{}, err
	}

	zlog.Info().Msgf("auth: logged in: email=%s", email)
	return u.Public(), nil
}

// Logout forgets the current user.
func (g *Gate) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.Delete(ctx, currentUserKey); err != nil {
		return errors.Wrap(err, "failed to clear current user")
	}
	zlog.Info().Msg("auth: logged out")
	return nil
}

// CurrentUser returns the logged-in user, if any.
func (g *Gate) CurrentUser(ctx context.Context) (*user.Public, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var current user.Public
	if err := storage.GetJSON(ctx, g.store, currentUserKey, &current); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			zlog.Warn().Msgf("auth: ignoring current user: %v", err)
		}
		return nil, false
	}
	if current.Email == "" {
		return nil, false
	}
	return &current, true
}

// Lookup returns the account registered under email.
func (g *Gate) Lookup(ctx context.Context, email string) (user.Public, error) {
	email = user.NormalizeEmail(email)

	g.mu.Lock()
	defer g.mu.Unlock()

	users, err := g.loadUsersLocked(ctx)
	if err != nil {
		return user.Public{}, err
	}
	u, ok := users[email]
	if !ok {
		return user.Public{}, errors.Wrapf(ErrUserNotFound, "lookup %s", email)
	}
	return u.Public(), nil
}

func (g *Gate) check(ctx context.Context, email, password string, action Action) error {
	result := g.chain.Execute(ctx, Credentials{Email: email, Password: password}, action)
	if result.Accepted {
		return nil
	}
	zlog.Debug().Msgf("auth: %s rejected: email=%s code=%s", action, email, result.Code)
	return errors.Mark(&RejectionError{Code: result.Code}, ErrRejected)
}

func (g *Gate) loadUsersLocked(ctx context.Context) (map[string]*user.User, error) {
	users := make(map[string]*user.User)
	err := storage.GetJSON(ctx, g.store, usersKey, &users)
	if errors.Is(err, storage.ErrNotFound) {
		return users, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load users")
	}

	return users, nil
}

func (g *Gate) setCurrentLocked(ctx context.Context, u user.Public) error {
	if err := storage.PutJSON(ctx, g.store, currentUserKey, u); err != nil {
		return errors.Wrap(err, "failed to save current user")
	}
	return nil
}
