package curator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkellner/curator/internal/catalog"
	"github.com/mkellner/curator/internal/constants"
	"github.com/mkellner/curator/internal/domain"
	"github.com/mkellner/curator/internal/logger"
)

// Pools holds the four disjoint candidate pools.
type Pools struct {
	Favorites []domain.Track
	Hits      []domain.Track
	Discovery []domain.Track
	Wildcard  []domain.Track
}

// ByCategory returns the pools keyed by category.
func (p *Pools) ByCategory() map[domain.Category][]domain.Track {
	return map[domain.Category][]domain.Track{
		domain.CategoryFavorites: p.Favorites,
		domain.CategoryHits:      p.Hits,
		domain.CategoryDiscovery: p.Discovery,
		domain.CategoryWildcard:  p.Wildcard,
	}
}

// PoolBuilder gathers candidate tracks per category from the artist
// set and the listener's library.
type PoolBuilder struct {
	catalog        catalog.Provider
	newReleaseDays int
	log            *logger.Logger
	nowFunc        func() time.Time
}

func NewPoolBuilder(cat catalog.Provider, newReleaseDays int, log *logger.Logger) *PoolBuilder {
	return &PoolBuilder{
		catalog:        cat,
		newReleaseDays: newReleaseDays,
		log:            log.WithComponent("pools"),
		nowFunc:        time.Now,
	}
}

// Build assembles the four pools with global dedup by track id and by
// normalized song name, claimed in the fixed order Favorites → Hits →
// Discovery → Wildcard.
func (b *PoolBuilder) Build(ctx context.Context, artists []domain.ArtistRef) (*Pools, error) {
	library, err := b.catalog.LibraryTracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch library: %w", err)
	}
	libByID := make(map[string]domain.Track, len(library))
	for _, t := range library {
		libByID[t.ID] = t
	}

	topTracks, newReleases, err := b.fetchArtistTracks(ctx, artists)
	if err != nil {
		return nil, err
	}

	claimed := newClaimSet()
	pools := &Pools{}

	// Favorites: the listener's most played library tracks.
	favorites := make([]domain.Track, len(library))
	copy(favorites, library)
	sort.SliceStable(favorites, func(i, j int) bool {
		if favorites[i].PlayCount != favorites[j].PlayCount {
			return favorites[i].PlayCount > favorites[j].PlayCount
		}
		return favorites[i].DateAdded.After(favorites[j].DateAdded)
	})
	if len(favorites) > constants.MaxFavoritesPool {
		favorites = favorites[:constants.MaxFavoritesPool]
	}
	for _, t := range favorites {
		if claimed.claim(t) {
			pools.Favorites = append(pools.Favorites, t)
		}
	}

	// Hits vs Discovery: top tracks the listener already knows go to
	// Hits, unheard ones to Discovery.
	for _, t := range topTracks {
		if lib, ok := libByID[t.ID]; ok {
			t.InLibrary = true
			if lib.PlayCount > t.PlayCount {
				t.PlayCount = lib.PlayCount
			}
			if t.DateAdded.IsZero() {
				t.DateAdded = lib.DateAdded
			}
		}
		if !t.InLibrary && t.PlayCount == 0 {
			continue
		}
		if claimed.claim(t) {
			pools.Hits = append(pools.Hits, t)
		}
	}
	for _, t := range topTracks {
		if _, ok := libByID[t.ID]; ok || t.PlayCount > 0 {
			continue
		}
		if claimed.claim(t) {
			pools.Discovery = append(pools.Discovery, t)
		}
	}

	// Wildcard: anything released recently that no pool claimed yet.
	cutoff := b.nowFunc().AddDate(0, 0, -b.newReleaseDays)
	for _, t := range newReleases {
		if t.ReleaseDate.Before(cutoff) {
			continue
		}
		if lib, ok := libByID[t.ID]; ok {
			t.InLibrary = true
			if lib.PlayCount > t.PlayCount {
				t.PlayCount = lib.PlayCount
			}
		}
		if claimed.claim(t) {
			pools.Wildcard = append(pools.Wildcard, t)
		}
	}

	b.log.Info("pools built",
		"favorites", len(pools.Favorites),
		"hits", len(pools.Hits),
		"discovery", len(pools.Discovery),
		"wildcard", len(pools.Wildcard))
	return pools, nil
}

// fetchArtistTracks pulls top tracks and latest releases for every
// artist concurrently, preserving artist order in the merged output.
func (b *PoolBuilder) fetchArtistTracks(ctx context.Context, artists []domain.ArtistRef) (top, releases []domain.Track, err error) {
	topPerArtist := make([][]domain.Track, len(artists))
	relPerArtist := make([][]domain.Track, len(artists))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.FetchConcurrency)
	for i, a := range artists {
		i, a := i, a
		g.Go(func() error {
			tracks, err := b.catalog.TopTracks(gctx, a.ID, constants.TopTracksLimit)
			if err != nil {
				return fmt.Errorf("failed to fetch top tracks for %q: %w", a.Name, err)
			}
			latest, err := b.catalog.NewReleases(gctx, a.ID)
			if err != nil {
				return fmt.Errorf("failed to fetch new releases for %q: %w", a.Name, err)
			}
			mu.Lock()
			topPerArtist[i] = tracks
			relPerArtist[i] = latest
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i := range artists {
		top = append(top, topPerArtist[i]...)
		releases = append(releases, relPerArtist[i]...)
	}
	return top, releases, nil
}

// claimSet enforces global pool dedup by track id and by normalized
// song name, so the same song does not appear twice as different
// editions.
type claimSet struct {
	ids   map[string]bool
	names map[string]bool
}

func newClaimSet() *claimSet {
	return &claimSet{
		ids:   make(map[string]bool),
		names: make(map[string]bool),
	}
}

func (c *claimSet) claim(t domain.Track) bool {
	if c.ids[t.ID] {
		return false
	}
	name := normalizeSongName(t.ArtistName, t.Title)
	if c.names[name] {
		return false
	}
	c.ids[t.ID] = true
	c.names[name] = true
	return true
}

var songVariantRe = regexp.MustCompile(`(?i)\s*[(\[][^)\]]*(remix|live|remaster|acoustic|deluxe|edit|version|mix)[^)\]]*[)\]]`)
var songSuffixRe = regexp.MustCompile(`(?i)\s*-\s*(remix|live|remastered?( \d{4})?|acoustic|single version|radio edit).*$`)

// normalizeSongName reduces a track to a comparison key that ignores
// edition and remaster suffixes.
func normalizeSongName(artist, title string) string {
	title = songVariantRe.ReplaceAllString(title, "")
	title = songSuffixRe.ReplaceAllString(title, "")
	return strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))
}
