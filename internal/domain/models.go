package domain

import (
	"strings"
	"time"
)

// ArtistRef is an opaque catalog identity plus display name.
// Immutable once resolved.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Gender as reported by the metadata enrichment provider.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

// ParseGender normalizes a provider gender string.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return GenderMale
	case "female":
		return GenderFemale
	case "":
		return GenderUnknown
	default:
		return GenderOther
	}
}

// ArtistMeta holds enrichment attributes for an artist, cached by name.
// NotFound marks a lookup that completed but matched nothing; it is
// cached like a hit so the same miss is not re-fetched every cycle.
type ArtistMeta struct {
	Name              string   `json:"name"`
	Gender            Gender   `json:"gender"`
	Countries         []string `json:"countries,omitempty"`
	LatestReleaseYear int      `json:"latest_release_year,omitempty"` // 0 = unknown
	NotFound          bool     `json:"not_found,omitempty"`
}

// Filters holds the configured discovery predicates. Zero values mean
// "unconfigured" and pass vacuously.
type Filters struct {
	Gender         string
	Countries      []string
	MinReleaseYear int
}

// Configured reports whether any predicate is active.
func (f Filters) Configured() bool {
	return f.Gender != "" || len(f.Countries) > 0 || f.MinReleaseYear > 0
}

// Matches reports whether the metadata passes every configured
// predicate. NotFound metadata fails every configured predicate.
func (f Filters) Matches(m ArtistMeta) bool {
	if m.NotFound {
		return !f.Configured()
	}
	if f.Gender != "" && !strings.EqualFold(f.Gender, string(m.Gender)) {
		return false
	}
	if len(f.Countries) > 0 {
		found := false
		for _, want := range f.Countries {
			for _, have := range m.Countries {
				if strings.EqualFold(want, have) {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	if f.MinReleaseYear > 0 {
		if m.LatestReleaseYear == 0 || m.LatestReleaseYear < f.MinReleaseYear {
			return false
		}
	}
	return true
}

// Track is a catalog track snapshot. Fetched fresh from the provider
// every cycle; only derived state (TrackState) is persisted.
type Track struct {
	ID          string    `json:"id"`
	ArtistID    string    `json:"artist_id"`
	ArtistName  string    `json:"artist_name"`
	Title       string    `json:"title"`
	DurationSec int       `json:"duration_sec"`
	ReleaseDate time.Time `json:"release_date"`
	PlayCount   int       `json:"play_count"`
	InLibrary   bool      `json:"in_library"`
	DateAdded   time.Time `json:"date_added"`
}

// TrackState is the persisted learned preference state for a track.
// Created on first appearance in an assembled playlist, updated every
// cycle the track is observed, never deleted.
type TrackState struct {
	TrackID           string     `json:"track_id" db:"track_id"`
	LastSeenPlayCount int        `json:"last_seen_play_count" db:"last_seen_play_count"`
	LastSeenAt        time.Time  `json:"last_seen_at" db:"last_seen_at"`
	CurrentWeight     float64    `json:"current_weight" db:"current_weight"`
	HotZoneEnteredAt  *time.Time `json:"hot_zone_entered_at,omitempty" db:"hot_zone_entered_at"`
	LastPlayedAt      *time.Time `json:"last_played_at,omitempty" db:"last_played_at"`
	InLibrary         bool       `json:"in_library" db:"in_library"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// Category is a playlist composition category.
type Category string

const (
	CategoryFavorites Category = "favorites"
	CategoryHits      Category = "hits"
	CategoryDiscovery Category = "discovery"
	CategoryWildcard  Category = "wildcard"
)

// CategoryOrder is the fixed claim/interleave priority.
var CategoryOrder = []Category{CategoryFavorites, CategoryHits, CategoryDiscovery, CategoryWildcard}

// CycleStatus is the recorded outcome of a curation cycle.
type CycleStatus string

const (
	CycleStatusSuccess     CycleStatus = "success"
	CycleStatusFailed      CycleStatus = "failed"
	CycleStatusAuthFailure CycleStatus = "auth_failure"
)

// CycleResult is the append-only audit record of one refresh cycle.
type CycleResult struct {
	ID                string           `json:"id"`
	StartedAt         time.Time        `json:"started_at"`
	DurationSeconds   float64          `json:"duration_seconds"`
	Status            CycleStatus      `json:"status"`
	TrackIDs          []string         `json:"track_ids"`
	Counts            map[Category]int `json:"counts"`
	Errors            []string         `json:"errors,omitempty"`
	ArtistsDiscovered int              `json:"artists_discovered"`
}

// SeedKind distinguishes artist seeds from song seeds.
type SeedKind string

const (
	SeedArtist SeedKind = "artist"
	SeedSong   SeedKind = "song"
)

// Seed is one user-curated discovery starting point.
type Seed struct {
	Name    string    `json:"name" db:"name"`
	Kind    SeedKind  `json:"kind" db:"kind"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}

// PlaylistState tracks the single managed playlist.
type PlaylistState struct {
	PlaylistID    string    `json:"playlist_id" db:"playlist_id"`
	PlaylistName  string    `json:"playlist_name" db:"playlist_name"`
	TrackCount    int       `json:"track_count" db:"track_count"`
	LastRefreshAt time.Time `json:"last_refresh_at" db:"last_refresh_at"`
}
