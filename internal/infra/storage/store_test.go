package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "tunebox.db"))
	require.NoError(t, err)
	memSQLite, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)

	all := map[string]Store{
		"memory":        NewMemoryStore(),
		"sqlite":        sqlite,
		"sqlite memory": memSQLite,
	}
	t.Cleanup(func() {
		for _, s := range all {
			s.Close()
		}
	})
	return all
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "users")
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

			require.NoError(t, s.Put(ctx, "users", []byte(`{}`)))
			v, err := s.Get(ctx, "users")
			require.NoError(t, err)
			assert.Equal(t, `{}`, string(v))

			require.NoError(t, s.Put(ctx, "users", []byte(`{"a":1}`)))
			v, err = s.Get(ctx, "users")
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(v))

			require.NoError(t, s.Delete(ctx, "users"))
			_, err = s.Get(ctx, "users")
			assert.True(t, errors.Is(err, ErrNotFound))

			assert.NoError(t, s.Delete(ctx, "missing"))
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	type record struct {
		Email string `json:"email"`
	}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, PutJSON(ctx, s, "current_user", record{Email: "a@gmail.com"}))

			var got record
			require.NoError(t, GetJSON(ctx, s, "current_user", &got))
			assert.Equal(t, "a@gmail.com", got.Email)

			require.NoError(t, s.Put(ctx, "broken", []byte("{")))
			assert.Error(t, GetJSON(ctx, s, "broken", &got))

			err := GetJSON(ctx, s, "missing", &got)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tunebox.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "favorite_songs:a@gmail.com", []byte(`[]`)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "favorite_songs:a@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(v))
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
