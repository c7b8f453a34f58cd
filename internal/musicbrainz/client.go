package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkellner/curator/internal/constants"
	"github.com/mkellner/curator/internal/domain"
)

const requestTimeout = 10 * time.Second

// Client talks to the MusicBrainz web service. All requests pass
// through a shared rate limiter, so concurrent callers never exceed
// the service's one-request-per-interval policy.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
}

func NewClient(baseURL string, interval time.Duration) *Client {
	if interval <= 0 {
		interval = constants.DefaultRateInterval
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: constants.DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// LookupArtist resolves enrichment metadata for an artist by name.
// A lookup that completes but matches nothing returns NotFound
// metadata with a nil error; only transport and decode failures are
// errors.
func (c *Client) LookupArtist(ctx context.Context, name string) (*domain.ArtistMeta, error) {
	a, err := c.searchArtist(ctx, name)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return &domain.ArtistMeta{Name: name, NotFound: true}, nil
	}

	meta := &domain.ArtistMeta{
		Name:      name,
		Gender:    domain.ParseGender(a.Gender),
		Countries: artistCountries(a),
	}

	year, err := c.latestReleaseYear(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	meta.LatestReleaseYear = year

	return meta, nil
}

func (c *Client) searchArtist(ctx context.Context, name string) (*artist, error) {
	query := fmt.Sprintf(`artist:"%s"`, strings.ReplaceAll(name, `"`, ``))
	u := fmt.Sprintf("%s/artist?query=%s&fmt=json&limit=%d", c.baseURL, url.QueryEscape(query), constants.ArtistSearchLimit)

	var result artistSearchResponse
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	if len(result.Artists) == 0 {
		return nil, nil
	}

	// Prefer an exact name match over the top-scored result; search
	// scoring ranks popular near-matches above the artist asked for.
	for i := range result.Artists {
		if strings.EqualFold(result.Artists[i].Name, name) {
			return &result.Artists[i], nil
		}
	}
	return &result.Artists[0], nil
}

func (c *Client) latestReleaseYear(ctx context.Context, artistID string) (int, error) {
	u := fmt.Sprintf("%s/release-group?artist=%s&fmt=json&limit=%d", c.baseURL, url.QueryEscape(artistID), constants.ReleaseGroupFetchLimit)

	var result releaseGroupResponse
	if err := c.getJSON(ctx, u, &result); err != nil {
		return 0, err
	}

	latest := 0
	for _, rg := range result.ReleaseGroups {
		if len(rg.FirstReleaseDate) < 4 {
			continue
		}
		var year int
		if _, err := fmt.Sscanf(rg.FirstReleaseDate[:4], "%d", &year); err != nil {
			continue
		}
		if year > latest {
			latest = year
		}
	}
	return latest, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMetadataLookup, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: musicbrainz returned status %d", domain.ErrMetadataLookup, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrMetadataLookup, err)
	}
	return nil
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < constants.DefaultRetryCount; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode == http.StatusServiceUnavailable {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("musicbrainz returned status %d", resp.StatusCode)
			time.Sleep(time.Duration(attempt+1) * constants.DefaultRetryBase)
			continue
		}
		if err == nil {
			return resp, nil
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * constants.DefaultRetryBase)
	}
	return nil, lastErr
}

func artistCountries(a *artist) []string {
	seen := make(map[string]struct{})
	var countries []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		countries = append(countries, s)
	}
	add(a.Country)
	add(a.Area.Name)
	add(a.BeginArea.Name)
	return countries
}

type artistSearchResponse struct {
	Artists []artist `json:"artists"`
}

type artist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortName  string `json:"sort-name"`
	Gender    string `json:"gender"`
	Country   string `json:"country"`
	Area      area   `json:"area"`
	BeginArea area   `json:"begin-area"`
	Score     int    `json:"score"`
}

type area struct {
	Name string `json:"name"`
}

type releaseGroupResponse struct {
	ReleaseGroups []releaseGroup `json:"release-groups"`
}

type releaseGroup struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	PrimaryType      string `json:"primary-type"`
	FirstReleaseDate string `json:"first-release-date"`
}
