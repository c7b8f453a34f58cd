package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkellner/curator/internal/domain"
)

func testTokens() *TokenSource {
	return &TokenSource{
		token:   "test-token",
		expiry:  time.Now().Add(24 * time.Hour * 365),
		nowFunc: time.Now,
	}
}

func TestSearchArtist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if got := r.Header.Get("Music-User-Token"); got != "user-token" {
			t.Errorf("unexpected user token header: %q", got)
		}
		fmt.Fprint(w, `{"results":{"artists":{"data":[{"id":"a1","attributes":{"name":"Sam Smith"}}]}}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "us", "user-token", testTokens())
	artist, err := c.SearchArtist(context.Background(), "Sam Smith")
	if err != nil {
		t.Fatalf("SearchArtist failed: %v", err)
	}
	if artist == nil || artist.ID != "a1" || artist.Name != "Sam Smith" {
		t.Errorf("unexpected artist: %+v", artist)
	}
}

func TestSearchArtistNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "us", "", testTokens())
	artist, err := c.SearchArtist(context.Background(), "Nobody")
	if err != nil {
		t.Fatalf("SearchArtist failed: %v", err)
	}
	if artist != nil {
		t.Errorf("expected nil for no match, got %+v", artist)
	}
}

func TestTopTracksMapsResources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"t1","attributes":{"name":"Hit One","artistName":"Sam Smith","durationInMillis":215000,"releaseDate":"2023-01-27"}},
			{"id":"lib-1","attributes":{"name":"Hit Two","artistName":"Sam Smith","playParams":{"catalogId":"t2"}}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "us", "", testTokens())
	tracks, err := c.TopTracks(context.Background(), "a1", 10)
	if err != nil {
		t.Fatalf("TopTracks failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	if tracks[0].DurationSec != 215 {
		t.Errorf("expected duration 215s, got %d", tracks[0].DurationSec)
	}
	if tracks[0].ReleaseDate.Year() != 2023 {
		t.Errorf("expected release year 2023, got %v", tracks[0].ReleaseDate)
	}
	if tracks[0].ArtistID != "a1" {
		t.Errorf("expected artist id a1, got %s", tracks[0].ArtistID)
	}
	// Catalog id from playParams wins over the library row id.
	if tracks[1].ID != "t2" {
		t.Errorf("expected catalog id t2, got %s", tracks[1].ID)
	}
}

func TestLibraryTracksFollowsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			fmt.Fprint(w, `{"data":[{"id":"t1","attributes":{"name":"One","dateAdded":"2026-01-02T10:00:00Z"}}],"next":"/v1/me/library/songs?offset=1"}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"t2","attributes":{"name":"Two"}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "us", "", testTokens())
	tracks, err := c.LibraryTracks(context.Background())
	if err != nil {
		t.Fatalf("LibraryTracks failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks across pages, got %d", len(tracks))
	}
	for _, tr := range tracks {
		if !tr.InLibrary {
			t.Errorf("expected library track %s to be marked in-library", tr.ID)
		}
	}
	if tracks[0].DateAdded.IsZero() {
		t.Error("expected dateAdded to be parsed")
	}
}

func TestNewReleasesFetchesAlbumTracks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/catalog/us/artists/a1/view/latest-release":
			fmt.Fprint(w, `{"data":[{"id":"alb1","attributes":{"name":"Gloria","releaseDate":"2026-08-01"}}]}`)
		case r.URL.Path == "/v1/catalog/us/albums/alb1/tracks":
			fmt.Fprint(w, `{"data":[{"id":"t9","attributes":{"name":"New One","artistName":"Sam Smith"}}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "us", "", testTokens())
	tracks, err := c.NewReleases(context.Background(), "a1")
	if err != nil {
		t.Fatalf("NewReleases failed: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	// Album release date fills in when the track carries none.
	if tracks[0].ReleaseDate.Year() != 2026 {
		t.Errorf("expected album release date inherited, got %v", tracks[0].ReleaseDate)
	}
}

func TestReplacePlaylistTracksSendsSongRefs(t *testing.T) {
	var body struct {
		Data []map[string]string `json:"data"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "us", "", testTokens())
	if err := c.ReplacePlaylistTracks(context.Background(), "pl-1", []string{"t1", "t2"}); err != nil {
		t.Fatalf("ReplacePlaylistTracks failed: %v", err)
	}
	if len(body.Data) != 2 || body.Data[0]["id"] != "t1" || body.Data[0]["type"] != "songs" {
		t.Errorf("unexpected request body: %+v", body.Data)
	}
}

func TestClientMapsAuthErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "us", "", testTokens())
	_, err := c.SearchArtist(context.Background(), "Adele")
	if !errors.Is(err, domain.ErrAuthExpired) {
		t.Errorf("expected ErrAuthExpired, got %v", err)
	}
}

func TestClientMapsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "us", "", testTokens())
	_, err := c.LibraryTracks(context.Background())
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}
