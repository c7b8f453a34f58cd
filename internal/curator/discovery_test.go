package curator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/mkellner/curator/internal/catalog"
	"github.com/mkellner/curator/internal/domain"
	"github.com/mkellner/curator/internal/logger"
)

type mockEnricher struct {
	meta  map[string]domain.ArtistMeta
	errs  map[string]error
	calls atomic.Int32
}

func (m *mockEnricher) LookupArtist(ctx context.Context, name string) (*domain.ArtistMeta, error) {
	m.calls.Add(1)
	if err, ok := m.errs[name]; ok {
		return nil, err
	}
	if meta, ok := m.meta[name]; ok {
		return &meta, nil
	}
	return &domain.ArtistMeta{Name: name, NotFound: true}, nil
}

func discoveryFixture() (*catalog.MockProvider, *mockEnricher) {
	provider := &catalog.MockProvider{
		Artists: map[string]domain.ArtistRef{
			"Sam Smith": {ID: "seed-1", Name: "Sam Smith"},
		},
		Related: map[string][]domain.ArtistRef{
			"seed-1": {
				{ID: "r1", Name: "Calum Scott"},
				{ID: "r2", Name: "Jessie Ware"},
				{ID: "r3", Name: "Lewis Capaldi"},
			},
		},
	}
	enricher := &mockEnricher{
		meta: map[string]domain.ArtistMeta{
			"Calum Scott":   {Name: "Calum Scott", Gender: domain.GenderMale, Countries: []string{"GB"}, LatestReleaseYear: 2022},
			"Jessie Ware":   {Name: "Jessie Ware", Gender: domain.GenderFemale, Countries: []string{"GB"}, LatestReleaseYear: 2023},
			"Lewis Capaldi": {Name: "Lewis Capaldi", Gender: domain.GenderMale, Countries: []string{"GB"}, LatestReleaseYear: 2023},
		},
	}
	return provider, enricher
}

func strictFilters() domain.Filters {
	return domain.Filters{Gender: "Male", Countries: []string{"GB"}, MinReleaseYear: 2020}
}

func TestDiscoveryFiltersCandidates(t *testing.T) {
	provider, enricher := discoveryFixture()
	d := NewDiscovery(provider, enricher, strictFilters(), logger.Default())

	result, err := d.Run(context.Background(), []string{"Sam Smith"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Seeds) != 1 || result.Seeds[0].ID != "seed-1" {
		t.Fatalf("unexpected seeds: %+v", result.Seeds)
	}
	// Jessie Ware fails the gender filter even though she is related
	// to a seed.
	ids := make([]string, 0, len(result.Discovered))
	for _, a := range result.Discovered {
		ids = append(ids, a.ID)
	}
	want := []string{"r1", "r3"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected discovered %v, got %v", want, ids)
	}
}

func TestDiscoverySeedsBypassFilters(t *testing.T) {
	provider, enricher := discoveryFixture()
	// The seed's own metadata would fail every filter, but seeds are
	// definitionally relevant.
	enricher.meta["Sam Smith"] = domain.ArtistMeta{Name: "Sam Smith", Gender: domain.GenderFemale}
	d := NewDiscovery(provider, enricher, strictFilters(), logger.Default())

	result, err := d.Run(context.Background(), []string{"Sam Smith"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Seeds) != 1 {
		t.Errorf("expected seed retained regardless of metadata, got %+v", result.Seeds)
	}
}

func TestDiscoveryUnresolvedSeedIsSoftError(t *testing.T) {
	provider, enricher := discoveryFixture()
	d := NewDiscovery(provider, enricher, domain.Filters{}, logger.Default())

	result, err := d.Run(context.Background(), []string{"Sam Smith", "Unknown Artist"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Seeds) != 1 {
		t.Errorf("expected 1 resolved seed, got %d", len(result.Seeds))
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected unresolved seed recorded as soft error, got %v", result.Errors)
	}
}

func TestDiscoveryCatalogFailureIsFatal(t *testing.T) {
	provider, enricher := discoveryFixture()
	provider.SearchErr = fmt.Errorf("%w: connection refused", domain.ErrProviderUnavailable)
	d := NewDiscovery(provider, enricher, domain.Filters{}, logger.Default())

	_, err := d.Run(context.Background(), []string{"Sam Smith"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestDiscoveryLookupFailureExcludesConservatively(t *testing.T) {
	provider, enricher := discoveryFixture()
	enricher.errs = map[string]error{
		"Calum Scott": fmt.Errorf("%w: timeout", domain.ErrMetadataLookup),
	}
	d := NewDiscovery(provider, enricher, strictFilters(), logger.Default())

	result, err := d.Run(context.Background(), []string{"Sam Smith"})
	if err != nil {
		t.Fatalf("lookup failure must stay soft, got %v", err)
	}
	for _, a := range result.Discovered {
		if a.ID == "r1" {
			t.Error("artist with failed lookup must be excluded")
		}
	}
	if len(result.Errors) == 0 {
		t.Error("expected the lookup failure recorded as a soft error")
	}
}

func TestDiscoveryNoFiltersSkipsEnrichment(t *testing.T) {
	provider, enricher := discoveryFixture()
	d := NewDiscovery(provider, enricher, domain.Filters{}, logger.Default())

	result, err := d.Run(context.Background(), []string{"Sam Smith"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Discovered) != 3 {
		t.Errorf("expected all candidates kept, got %d", len(result.Discovered))
	}
	if n := enricher.calls.Load(); n != 0 {
		t.Errorf("expected no metadata lookups without filters, got %d", n)
	}
}

func TestDiscoveryDeterministicFilteredSet(t *testing.T) {
	provider, enricher := discoveryFixture()
	d := NewDiscovery(provider, enricher, strictFilters(), logger.Default())

	first, err := d.Run(context.Background(), []string{"Sam Smith"})
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := d.Run(context.Background(), []string{"Sam Smith"})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if !reflect.DeepEqual(first.Discovered, second.Discovered) {
		t.Errorf("expected deterministic filtered set, got %v then %v", first.Discovered, second.Discovered)
	}
}

func TestDiscoveryNotFoundFailsConfiguredFilters(t *testing.T) {
	provider, enricher := discoveryFixture()
	delete(enricher.meta, "Lewis Capaldi") // lookup returns NotFound
	d := NewDiscovery(provider, enricher, strictFilters(), logger.Default())

	result, err := d.Run(context.Background(), []string{"Sam Smith"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, a := range result.Discovered {
		if a.ID == "r3" {
			t.Error("NotFound metadata must fail configured filters")
		}
	}
}
