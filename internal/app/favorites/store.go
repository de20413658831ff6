// Package favorites provides the per-user favorite tracks.
package favorites

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/track"
	"github.com/osa030/tunebox/internal/infra/storage"
)

const keyPrefix = "favorite_songs"

var ErrInvalidTrack = errors.New("invalid track")

// Key returns the storage key holding the favorites of email.
func Key(email string) string {
	return keyPrefix + ":" + email
}

// Store is the set of favorite tracks of one user, kept in insertion order.
// Every change is written through to the backing storage.
type Store struct {
	mu      sync.RWMutex
	storage storage.Store
	key     string
	tracks  []track.Track
}

// Open loads the favorites of email. A missing or unreadable entry yields an
// empty set.
func Open(ctx context.Context, s storage.Store, email string) (*Store, error) {
	f := &Store{storage: s, key: Key(email)}

	data, err := s.Get(ctx, f.key)
	if errors.Is(err, storage.ErrNotFound) {
		return f, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load favorites")
	}

	var tracks []track.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		zlog.Warn().Msgf("favorites: ignoring unreadable favorites: key=%s err=%v", f.key, err)
		return f, nil
	}
	f.tracks = dedupe(tracks)

	return f, nil
}

// Contains reports whether the track is a favorite.
func (f *Store) Contains(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.indexLocked(id) >= 0
}

// Add marks t as a favorite. Adding an existing favorite is a no-op.
func (f *Store) Add(ctx context.Context, t track.Track) error {
	if t.ID == "" {
		return ErrInvalidTrack
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.indexLocked(t.ID) >= 0 {
		return nil
	}
	return f.saveLocked(ctx, append(slices.Clone(f.tracks), t))
}

// Remove unmarks the track. Removing a non-favorite is a no-op.
func (f *Store) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexLocked(id)
	if i < 0 {
		return nil
	}
	return f.saveLocked(ctx, slices.Delete(slices.Clone(f.tracks), i, i+1))
}

// Toggle flips the favorite status of t and returns the new status.
func (f *Store) Toggle(ctx context.Context, t track.Track) (bool, error) {
	if t.ID == "" {
		return false, ErrInvalidTrack
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if i := f.indexLocked(t.ID); i >= 0 {
		if err := f.saveLocked(ctx, slices.Delete(slices.Clone(f.tracks), i, i+1)); err != nil {
			return true, err
		}
		return false, nil
	}

	if err := f.saveLocked(ctx, append(slices.Clone(f.tracks), t)); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the favorites in the order they were added.
func (f *Store) List() []track.Track {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.tracks)
}

// Count returns the number of favorites.
func (f *Store) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tracks)
}

func (f *Store) indexLocked(id string) int {
	return slices.IndexFunc(f.tracks, func(t track.Track) bool { return t.ID == id })
}

// saveLocked persists tracks and, on success, makes them current.
func (f *Store) saveLocked(ctx context.Context, tracks []track.Track) error {
	if tracks == nil {
		tracks = []track.Track{}
	}
	if err := storage.PutJSON(ctx, f.storage, f.key, tracks); err != nil {
		return errors.Wrap(err, "failed to save favorites")
	}
	f.tracks = tracks
	return nil
}

func dedupe(tracks []track.Track) []track.Track {
	seen := make(map[string]bool, len(tracks))
	out := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}
