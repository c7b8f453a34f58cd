package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkellner/curator/internal/constants"
	"github.com/mkellner/curator/internal/domain"
)

// Client is the HTTP catalog provider. Catalog endpoints authenticate
// with the developer token alone; library and playlist endpoints also
// send the listener's user token.
type Client struct {
	baseURL    string
	storefront string
	userToken  string
	tokens     *TokenSource
	httpClient *http.Client
}

var _ Provider = (*Client)(nil)

func NewClient(baseURL, storefront, userToken string, tokens *TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		storefront: storefront,
		userToken:  userToken,
		tokens:     tokens,
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
	}
}

func (c *Client) SearchArtist(ctx context.Context, name string) (*domain.ArtistRef, error) {
	u := fmt.Sprintf("%s/v1/catalog/%s/search?term=%s&types=artists&limit=1",
		c.baseURL, c.storefront, url.QueryEscape(name))

	var resp searchResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results.Artists.Data) == 0 {
		return nil, nil
	}
	a := resp.Results.Artists.Data[0]
	return &domain.ArtistRef{ID: a.ID, Name: a.Attributes.Name}, nil
}

func (c *Client) RelatedArtists(ctx context.Context, artistID string, limit int) ([]domain.ArtistRef, error) {
	u := fmt.Sprintf("%s/v1/catalog/%s/artists/%s/view/similar-artists?limit=%d",
		c.baseURL, c.storefront, url.PathEscape(artistID), limit)

	var resp resourceResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	artists := make([]domain.ArtistRef, 0, len(resp.Data))
	for _, r := range resp.Data {
		artists = append(artists, domain.ArtistRef{ID: r.ID, Name: r.Attributes.Name})
	}
	return artists, nil
}

func (c *Client) TopTracks(ctx context.Context, artistID string, limit int) ([]domain.Track, error) {
	u := fmt.Sprintf("%s/v1/catalog/%s/artists/%s/view/top-songs?limit=%d",
		c.baseURL, c.storefront, url.PathEscape(artistID), limit)

	var resp resourceResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	tracks := make([]domain.Track, 0, len(resp.Data))
	for _, r := range resp.Data {
		tracks = append(tracks, trackFromResource(r, artistID))
	}
	return tracks, nil
}

// NewReleases returns the tracks of the artist's most recent release.
// Artists with no releases yield an empty slice.
func (c *Client) NewReleases(ctx context.Context, artistID string) ([]domain.Track, error) {
	u := fmt.Sprintf("%s/v1/catalog/%s/artists/%s/view/latest-release",
		c.baseURL, c.storefront, url.PathEscape(artistID))

	var latest resourceResponse
	if err := c.getJSON(ctx, u, &latest); err != nil {
		return nil, err
	}
	if len(latest.Data) == 0 {
		return nil, nil
	}
	album := latest.Data[0]

	u = fmt.Sprintf("%s/v1/catalog/%s/albums/%s/tracks",
		c.baseURL, c.storefront, url.PathEscape(album.ID))

	var resp resourceResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	tracks := make([]domain.Track, 0, len(resp.Data))
	for _, r := range resp.Data {
		t := trackFromResource(r, artistID)
		if t.ReleaseDate.IsZero() {
			t.ReleaseDate = parseDate(album.Attributes.ReleaseDate)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// LibraryTracks fetches the listener's entire library, following
// pagination until the provider reports no next page.
func (c *Client) LibraryTracks(ctx context.Context) ([]domain.Track, error) {
	var tracks []domain.Track
	next := "/v1/me/library/songs?limit=100"
	for next != "" {
		var resp resourceResponse
		if err := c.getJSON(ctx, c.baseURL+next, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Data {
			t := trackFromResource(r, r.Attributes.PlayParams.ArtistID)
			t.InLibrary = true
			tracks = append(tracks, t)
		}
		next = resp.Next
	}
	return tracks, nil
}

func (c *Client) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	next := "/v1/me/library/playlists?limit=100"
	for next != "" {
		var resp resourceResponse
		if err := c.getJSON(ctx, c.baseURL+next, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Data {
			playlists = append(playlists, Playlist{ID: r.ID, Name: r.Attributes.Name})
		}
		next = resp.Next
	}
	return playlists, nil
}

func (c *Client) CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error) {
	body := map[string]any{
		"attributes": map[string]string{
			"name":        name,
			"description": description,
		},
	}
	var resp resourceResponse
	if err := c.doJSON(ctx, "POST", c.baseURL+"/v1/me/library/playlists", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: create playlist returned no data", domain.ErrProviderUnavailable)
	}
	return &Playlist{ID: resp.Data[0].ID, Name: resp.Data[0].Attributes.Name}, nil
}

func (c *Client) ReplacePlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	refs := make([]map[string]string, 0, len(trackIDs))
	for _, id := range trackIDs {
		refs = append(refs, map[string]string{"id": id, "type": "songs"})
	}
	body := map[string]any{"data": refs}
	u := fmt.Sprintf("%s/v1/me/library/playlists/%s/tracks", c.baseURL, url.PathEscape(playlistID))
	return c.doJSON(ctx, "PUT", u, body, nil)
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	return c.doJSON(ctx, "GET", u, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, u string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userToken != "" {
		req.Header.Set("Music-User-Token", c.userToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: catalog returned status %d", domain.ErrAuthExpired, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: catalog returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		// Views like latest-release 404 for artists without releases.
		return nil
	case resp.StatusCode >= 400:
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func trackFromResource(r resource, artistID string) domain.Track {
	id := r.ID
	if r.Attributes.PlayParams.CatalogID != "" {
		id = r.Attributes.PlayParams.CatalogID
	}
	return domain.Track{
		ID:          id,
		ArtistID:    artistID,
		ArtistName:  r.Attributes.ArtistName,
		Title:       r.Attributes.Name,
		DurationSec: r.Attributes.DurationInMillis / 1000,
		ReleaseDate: parseDate(r.Attributes.ReleaseDate),
		PlayCount:   r.Attributes.PlayCount,
		DateAdded:   parseTimestamp(r.Attributes.DateAdded),
	}
}

func parseDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

type searchResponse struct {
	Results struct {
		Artists struct {
			Data []resource `json:"data"`
		} `json:"artists"`
	} `json:"results"`
}

type resourceResponse struct {
	Data []resource `json:"data"`
	Next string     `json:"next"`
}

type resource struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Attributes attributes `json:"attributes"`
}

type attributes struct {
	Name             string     `json:"name"`
	ArtistName       string     `json:"artistName"`
	DurationInMillis int        `json:"durationInMillis"`
	ReleaseDate      string     `json:"releaseDate"`
	DateAdded        string     `json:"dateAdded"`
	PlayCount        int        `json:"playCount"`
	PlayParams       playParams `json:"playParams"`
}

type playParams struct {
	ID        string `json:"id"`
	CatalogID string `json:"catalogId"`
	ArtistID  string `json:"artistId"`
}
