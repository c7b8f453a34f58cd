package musicbrainz

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mkellner/curator/internal/domain"
)

// Enricher is the lookup surface the discovery layer depends on.
type Enricher interface {
	LookupArtist(ctx context.Context, name string) (*domain.ArtistMeta, error)
}

var _ Enricher = (*Client)(nil)
var _ Enricher = (*CachedClient)(nil)

type Cache interface {
	GetCache(key string) ([]byte, error)
	SetCache(key string, data []byte, ttl time.Duration) error
}

// CachedClient wraps a Client with a persistent metadata cache. Hits
// skip the rate limiter entirely. Not-found results are cached like
// hits so a miss is not re-fetched every cycle; lookup failures are
// never cached.
type CachedClient struct {
	client *Client
	cache  Cache
	ttl    time.Duration
}

func NewCachedClient(client *Client, cache Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  cache,
		ttl:    ttl,
	}
}

func cacheKey(name string) string {
	return "mb:artist:" + strings.ToLower(strings.TrimSpace(name))
}

func (c *CachedClient) LookupArtist(ctx context.Context, name string) (*domain.ArtistMeta, error) {
	key := cacheKey(name)

	data, err := c.cache.GetCache(key)
	if err != nil {
		return nil, err
	}
	if data != nil {
		var cached domain.ArtistMeta
		if unmarshalErr := json.Unmarshal(data, &cached); unmarshalErr == nil {
			return &cached, nil
		}
	}

	meta, err := c.client.LookupArtist(ctx, name)
	if err != nil {
		return nil, err
	}

	if data, marshalErr := json.Marshal(meta); marshalErr == nil {
		_ = c.cache.SetCache(key, data, c.ttl)
	}

	return meta, nil
}
