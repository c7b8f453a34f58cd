package catalog

import (
	"context"

	"github.com/mkellner/curator/internal/domain"
)

// Playlist is a library playlist reference.
type Playlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider is the catalog/library surface the engine depends on.
// SearchArtist returns nil with a nil error when nothing matches.
type Provider interface {
	SearchArtist(ctx context.Context, name string) (*domain.ArtistRef, error)
	RelatedArtists(ctx context.Context, artistID string, limit int) ([]domain.ArtistRef, error)
	TopTracks(ctx context.Context, artistID string, limit int) ([]domain.Track, error)
	NewReleases(ctx context.Context, artistID string) ([]domain.Track, error)
	LibraryTracks(ctx context.Context) ([]domain.Track, error)
	ListPlaylists(ctx context.Context) ([]Playlist, error)
	CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error)
	ReplacePlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error
}
