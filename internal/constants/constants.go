// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort        = "8080"
	DefaultDBPath      = "curator.db"
	DefaultCatalogURL  = "https://api.music.apple.com"
	DefaultStorefront  = "us"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultRetryCount  = 3
	DefaultRetryBase   = 1 * time.Second
)

// MusicBrainz etiquette: at most one request per second, identified
// by a descriptive User-Agent.
const (
	DefaultMusicBrainzURL  = "https://musicbrainz.org/ws/2"
	DefaultUserAgent       = "curator/1.0 (https://github.com/mkellner/curator)"
	DefaultRateInterval    = 1 * time.Second
	DefaultMetaCacheTTL    = 30 * 24 * time.Hour
	ArtistSearchLimit      = 5
	ReleaseGroupFetchLimit = 100
)

// Algorithm defaults (all configuration-tunable)
const (
	DefaultPlaylistSize    = 50
	DefaultHotZoneSize     = 10
	DefaultHotZoneHours    = 48
	DefaultDecayDays       = 14
	DefaultNewReleaseDays  = 30
	DefaultPositiveBoost   = 0.15
	DefaultNegativePenalty = 0.20
	DefaultDecayRate       = 0.98
)

// Category weight defaults; must sum to 1.0.
const (
	DefaultWeightFavorites = 0.40
	DefaultWeightHits      = 0.30
	DefaultWeightDiscovery = 0.20
	DefaultWeightWildcard  = 0.10
)

// Discovery bounds
const (
	TopTracksLimit      = 10
	RelatedArtistsLimit = 15
	MaxFavoritesPool    = 50
	FetchConcurrency    = 4
)

// Scheduling
const (
	DefaultRefreshTime = "03:00"
	DefaultTimezone    = "UTC"
	CycleTimeout       = 30 * time.Minute
)

// Developer token lifetime; the catalog allows up to six months,
// regenerated when less than a day remains.
const (
	TokenMaxAge       = 180 * 24 * time.Hour
	TokenRefreshSlack = 24 * time.Hour
)
