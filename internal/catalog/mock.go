package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/mkellner/curator/internal/domain"
)

// MockProvider is an in-memory Provider for tests and local runs.
// Zero-value fields fall back to small canned fixtures.
type MockProvider struct {
	Artists       map[string]domain.ArtistRef   // search term -> artist
	Related       map[string][]domain.ArtistRef // artist id -> related
	Top           map[string][]domain.Track     // artist id -> top tracks
	Latest        map[string][]domain.Track     // artist id -> latest release tracks
	Library       []domain.Track
	Playlists     []Playlist
	ReplacedID    string
	ReplacedIDs   []string
	SearchErr     error
	ReplaceErr    error
	LibraryErr    error
	CreatedCount  int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		Artists: map[string]domain.ArtistRef{
			"Mock Artist": {ID: "a1", Name: "Mock Artist"},
		},
		Top: map[string][]domain.Track{
			"a1": {
				{ID: "t1", ArtistID: "a1", ArtistName: "Mock Artist", Title: "Mock Hit", PlayCount: 3},
				{ID: "t2", ArtistID: "a1", ArtistName: "Mock Artist", Title: "Mock Deep Cut"},
			},
		},
	}
}

func (p *MockProvider) SearchArtist(ctx context.Context, name string) (*domain.ArtistRef, error) {
	if p.SearchErr != nil {
		return nil, p.SearchErr
	}
	if a, ok := p.Artists[name]; ok {
		return &a, nil
	}
	return nil, nil
}

func (p *MockProvider) RelatedArtists(ctx context.Context, artistID string, limit int) ([]domain.ArtistRef, error) {
	related := p.Related[artistID]
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

func (p *MockProvider) TopTracks(ctx context.Context, artistID string, limit int) ([]domain.Track, error) {
	top := p.Top[artistID]
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (p *MockProvider) NewReleases(ctx context.Context, artistID string) ([]domain.Track, error) {
	return p.Latest[artistID], nil
}

func (p *MockProvider) LibraryTracks(ctx context.Context) ([]domain.Track, error) {
	if p.LibraryErr != nil {
		return nil, p.LibraryErr
	}
	return p.Library, nil
}

func (p *MockProvider) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	return p.Playlists, nil
}

func (p *MockProvider) CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error) {
	p.CreatedCount++
	pl := Playlist{ID: fmt.Sprintf("pl-%d", time.Now().UnixNano()), Name: name}
	p.Playlists = append(p.Playlists, pl)
	return &pl, nil
}

func (p *MockProvider) ReplacePlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if p.ReplaceErr != nil {
		return p.ReplaceErr
	}
	p.ReplacedID = playlistID
	p.ReplacedIDs = trackIDs
	return nil
}

var _ Provider = (*MockProvider)(nil)
