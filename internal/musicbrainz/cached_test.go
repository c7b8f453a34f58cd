package musicbrainz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkellner/curator/internal/domain"
)

type mockCache struct {
	data map[string][]byte
}

func (m *mockCache) GetCache(key string) ([]byte, error) {
	return m.data[key], nil
}

func (m *mockCache) SetCache(key string, data []byte, ttl time.Duration) error {
	m.data[key] = data
	return nil
}

func TestCachedClientHitSkipsNetwork(t *testing.T) {
	cache := &mockCache{data: make(map[string][]byte)}
	cache.data["mb:artist:sam smith"] = []byte(`{"name":"Sam Smith","gender":"male","countries":["GB"],"latest_release_year":2023}`)

	// nil client: a network call would panic
	cc := &CachedClient{client: nil, cache: cache, ttl: time.Hour}

	meta, err := cc.LookupArtist(context.Background(), "Sam Smith")
	if err != nil {
		t.Fatalf("LookupArtist failed: %v", err)
	}
	if meta.Gender != domain.GenderMale || meta.LatestReleaseYear != 2023 {
		t.Errorf("unexpected cached metadata: %+v", meta)
	}
}

func TestCachedClientKeyIsCaseInsensitive(t *testing.T) {
	cache := &mockCache{data: make(map[string][]byte)}
	cache.data["mb:artist:sam smith"] = []byte(`{"name":"Sam Smith"}`)

	cc := &CachedClient{client: nil, cache: cache, ttl: time.Hour}

	meta, err := cc.LookupArtist(context.Background(), "  SAM SMITH ")
	if err != nil {
		t.Fatalf("LookupArtist failed: %v", err)
	}
	if meta.Name != "Sam Smith" {
		t.Errorf("expected cache hit regardless of case, got %+v", meta)
	}
}

func TestCachedClientMissFetchesAndStores(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch {
		case r.URL.Path == "/artist":
			w.Write([]byte(`{"artists":[{"id":"mb-1","name":"Adele","gender":"female","country":"GB"}]}`))
		default:
			w.Write([]byte(`{"release-groups":[{"first-release-date":"2021-11-19"}]}`))
		}
	}))
	defer srv.Close()

	cache := &mockCache{data: make(map[string][]byte)}
	cc := NewCachedClient(NewClient(srv.URL, time.Millisecond), cache, time.Hour)

	meta, err := cc.LookupArtist(context.Background(), "Adele")
	if err != nil {
		t.Fatalf("LookupArtist failed: %v", err)
	}
	if meta.LatestReleaseYear != 2021 {
		t.Errorf("expected latest release year 2021, got %d", meta.LatestReleaseYear)
	}
	if _, ok := cache.data["mb:artist:adele"]; !ok {
		t.Fatal("expected result to be cached")
	}

	before := calls.Load()
	if _, err := cc.LookupArtist(context.Background(), "Adele"); err != nil {
		t.Fatalf("second LookupArtist failed: %v", err)
	}
	if calls.Load() != before {
		t.Error("expected second lookup to be served from cache")
	}
}

func TestCachedClientCachesNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"artists":[]}`))
	}))
	defer srv.Close()

	cache := &mockCache{data: make(map[string][]byte)}
	cc := NewCachedClient(NewClient(srv.URL, time.Millisecond), cache, time.Hour)

	for i := 0; i < 2; i++ {
		meta, err := cc.LookupArtist(context.Background(), "Nobody")
		if err != nil {
			t.Fatalf("LookupArtist failed: %v", err)
		}
		if !meta.NotFound {
			t.Error("expected not-found metadata")
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 network call for repeated misses, got %d", calls.Load())
	}
}

func TestCachedClientDoesNotCacheFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := &mockCache{data: make(map[string][]byte)}
	cc := NewCachedClient(NewClient(srv.URL, time.Millisecond), cache, time.Hour)

	if _, err := cc.LookupArtist(context.Background(), "Adele"); err == nil {
		t.Fatal("expected lookup failure")
	}
	if len(cache.data) != 0 {
		t.Error("failures must not be cached")
	}
}
