package curator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mkellner/curator/internal/catalog"
	"github.com/mkellner/curator/internal/constants"
	"github.com/mkellner/curator/internal/domain"
	"github.com/mkellner/curator/internal/logger"
	"github.com/mkellner/curator/internal/musicbrainz"
)

// Discovery expands seed artists into a filtered candidate set: one
// hop of related artists per seed, then metadata predicates on every
// non-seed candidate. Seeds bypass the filters.
type Discovery struct {
	catalog  catalog.Provider
	enricher musicbrainz.Enricher
	filters  domain.Filters
	log      *logger.Logger
}

// DiscoveryResult holds the artist sets a cycle works from. Seeds and
// Discovered are disjoint; Errors collects soft failures.
type DiscoveryResult struct {
	Seeds      []domain.ArtistRef
	Discovered []domain.ArtistRef
	Errors     []string
}

// Artists returns seeds and discovered artists as one slice.
func (r *DiscoveryResult) Artists() []domain.ArtistRef {
	all := make([]domain.ArtistRef, 0, len(r.Seeds)+len(r.Discovered))
	all = append(all, r.Seeds...)
	all = append(all, r.Discovered...)
	return all
}

func NewDiscovery(cat catalog.Provider, enricher musicbrainz.Enricher, filters domain.Filters, log *logger.Logger) *Discovery {
	return &Discovery{
		catalog:  cat,
		enricher: enricher,
		filters:  filters,
		log:      log.WithComponent("discovery"),
	}
}

// Run resolves seeds, expands them one hop, and filters candidates.
// Catalog transport failures are fatal; an unresolved seed or a failed
// metadata lookup is a soft error.
func (d *Discovery) Run(ctx context.Context, seedNames []string) (*DiscoveryResult, error) {
	result := &DiscoveryResult{}

	seedIDs := make(map[string]bool)
	for _, name := range seedNames {
		ref, err := d.catalog.SearchArtist(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve seed %q: %w", name, err)
		}
		if ref == nil {
			d.log.Warn("seed artist not found, skipping", "seed", name)
			result.Errors = append(result.Errors, fmt.Sprintf("seed not found: %s", name))
			continue
		}
		if seedIDs[ref.ID] {
			continue
		}
		seedIDs[ref.ID] = true
		result.Seeds = append(result.Seeds, *ref)
	}

	candidates, err := d.relatedCandidates(ctx, result.Seeds, seedIDs)
	if err != nil {
		return nil, err
	}

	discovered, softErrs := d.filterCandidates(ctx, candidates)
	result.Discovered = discovered
	result.Errors = append(result.Errors, softErrs...)

	d.log.Info("discovery complete",
		"seeds", len(result.Seeds),
		"candidates", len(candidates),
		"discovered", len(result.Discovered))
	return result, nil
}

// relatedCandidates fetches each seed's related artists concurrently
// and unions them by id, seeds excluded. The result is sorted by id so
// repeated runs over unchanged data produce the same set in the same
// order.
func (d *Discovery) relatedCandidates(ctx context.Context, seeds []domain.ArtistRef, seedIDs map[string]bool) ([]domain.ArtistRef, error) {
	var mu sync.Mutex
	byID := make(map[string]domain.ArtistRef)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.FetchConcurrency)
	for _, seed := range seeds {
		seed := seed
		g.Go(func() error {
			related, err := d.catalog.RelatedArtists(gctx, seed.ID, constants.RelatedArtistsLimit)
			if err != nil {
				return fmt.Errorf("failed to fetch related artists for %q: %w", seed.Name, err)
			}
			mu.Lock()
			for _, ref := range related {
				if !seedIDs[ref.ID] {
					byID[ref.ID] = ref
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]domain.ArtistRef, 0, len(byID))
	for _, ref := range byID {
		candidates = append(candidates, ref)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates, nil
}

// filterCandidates runs every candidate through the enrichment client
// and keeps those passing all configured predicates. With no filters
// configured everything passes and no lookups are made. Lookups run
// concurrently; the client's rate gate serializes the wire.
func (d *Discovery) filterCandidates(ctx context.Context, candidates []domain.ArtistRef) ([]domain.ArtistRef, []string) {
	if !d.filters.Configured() {
		return candidates, nil
	}

	type verdict struct {
		keep bool
		err  string
	}
	verdicts := make([]verdict, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.FetchConcurrency)
	for i, ref := range candidates {
		i, ref := i, ref
		g.Go(func() error {
			meta, err := d.enricher.LookupArtist(gctx, ref.Name)
			if err != nil {
				// Unknown metadata fails the filters conservatively.
				d.log.Warn("metadata lookup failed, excluding artist",
					"artist", ref.Name, "error", err)
				verdicts[i] = verdict{err: fmt.Sprintf("metadata lookup failed for %s: %v", ref.Name, err)}
				return nil
			}
			verdicts[i] = verdict{keep: d.filters.Matches(*meta)}
			return nil
		})
	}
	_ = g.Wait()

	var kept []domain.ArtistRef
	var errs []string
	for i, v := range verdicts {
		if v.keep {
			kept = append(kept, candidates[i])
		}
		if v.err != "" {
			errs = append(errs, v.err)
		}
	}
	return kept, errs
}
