package playlist

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunebox/internal/domain/track"
)

func threeTracks() []track.Track {
	return []track.Track{
		{ID: "1", Title: "HIM 1", Artist: "Karan", Source: "/songs/song1.mp3"},
		{ID: "2", Title: "Song 2", Artist: "Aujla", Source: "/songs/song2.mp3"},
		{ID: "3", Title: "HIM 3", Artist: "Karan Aujla", Source: "/songs/song3.mp3"},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		tracks  []track.Track
		wantErr error
	}{
		{
			name:   "valid playlist",
			tracks: threeTracks(),
		},
		{
			name:    "empty playlist",
			tracks:  []track.Track{},
			wantErr: ErrEmpty,
		},
		{
			name: "duplicate ids",
			tracks: []track.Track{
				{ID: "1", Title: "A"},
				{ID: "1", Title: "B"},
			},
			wantErr: ErrDuplicateID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("Test", tt.tracks)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.tracks), p.Len())
		})
	}
}

func TestNew_CopiesTracks(t *testing.T) {
	tracks := threeTracks()
	p, err := New("Test", tracks)
	require.NoError(t, err)

	tracks[0].Title = "changed"
	assert.Equal(t, "HIM 1", p.At(0).Title)
}

func TestPlaylist_NextPreviousIndex(t *testing.T) {
	p, err := New("Test", threeTracks())
	require.NoError(t, err)

	assert.Equal(t, 1, p.NextIndex(0))
	assert.Equal(t, 2, p.NextIndex(1))
	assert.Equal(t, 0, p.NextIndex(2))

	assert.Equal(t, 2, p.PreviousIndex(0))
	assert.Equal(t, 0, p.PreviousIndex(1))
	assert.Equal(t, 1, p.PreviousIndex(2))

	for i := 0; i < p.Len(); i++ {
		assert.Equal(t, i, p.PreviousIndex(p.NextIndex(i)))

		idx := i
		for n := 0; n < p.Len(); n++ {
			idx = p.NextIndex(idx)
		}
		assert.Equal(t, i, idx, "full cycle from %d", i)
	}
}

func TestPlaylist_SingleTrack(t *testing.T) {
	p, err := New("Solo", threeTracks()[:1])
	require.NoError(t, err)

	assert.Equal(t, 0, p.NextIndex(0))
	assert.Equal(t, 0, p.PreviousIndex(0))
}

func TestPlaylist_Lookup(t *testing.T) {
	p, err := New("Test", threeTracks())
	require.NoError(t, err)

	assert.True(t, p.Contains(0))
	assert.True(t, p.Contains(2))
	assert.False(t, p.Contains(3))
	assert.False(t, p.Contains(-1))

	assert.Equal(t, 1, p.IndexOf("2"))
	assert.Equal(t, -1, p.IndexOf("missing"))
	assert.Equal(t, []string{"1", "2", "3"}, p.TrackIDs())
}
