// Package config loads layered application configuration:
// built-in defaults, then an optional YAML file, then CURATOR_
// environment variables (highest priority).
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/mkellner/curator/internal/constants"
	"github.com/mkellner/curator/internal/domain"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CURATOR_CONFIG"

// DefaultConfigPaths are searched in order; the first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/curator/config.yaml",
}

// UserConfig identifies the listener and the managed playlist.
type UserConfig struct {
	Name         string `koanf:"name"`
	PlaylistName string `koanf:"playlist_name"`
}

// SeedsConfig holds the initial seed set; the persisted seed_set table
// is authoritative after first start.
type SeedsConfig struct {
	Artists []string `koanf:"artists"`
	Songs   []string `koanf:"songs"`
}

// FiltersConfig holds discovery predicates. Empty values leave the
// predicate unconfigured.
type FiltersConfig struct {
	Gender         string   `koanf:"gender"`
	Countries      []string `koanf:"countries"`
	MinReleaseYear int      `koanf:"min_release_year"`
}

// Domain converts to the engine's filter type.
func (f FiltersConfig) Domain() domain.Filters {
	return domain.Filters{
		Gender:         f.Gender,
		Countries:      f.Countries,
		MinReleaseYear: f.MinReleaseYear,
	}
}

// WeightsConfig holds per-category composition weights; must sum to 1.0.
type WeightsConfig struct {
	Favorites float64 `koanf:"favorites"`
	Hits      float64 `koanf:"hits"`
	Discovery float64 `koanf:"discovery"`
	Wildcard  float64 `koanf:"wildcard"`
}

// Map returns the weights keyed by category.
func (w WeightsConfig) Map() map[domain.Category]float64 {
	return map[domain.Category]float64{
		domain.CategoryFavorites: w.Favorites,
		domain.CategoryHits:      w.Hits,
		domain.CategoryDiscovery: w.Discovery,
		domain.CategoryWildcard:  w.Wildcard,
	}
}

// Sum returns the weight total.
func (w WeightsConfig) Sum() float64 {
	return w.Favorites + w.Hits + w.Discovery + w.Wildcard
}

// AlgorithmConfig holds the tunable curation parameters.
type AlgorithmConfig struct {
	PlaylistSize    int           `koanf:"playlist_size"`
	Weights         WeightsConfig `koanf:"weights"`
	HotZoneSize     int           `koanf:"hot_zone_size"`
	HotZoneHours    int           `koanf:"hot_zone_hours"`
	DecayDays       int           `koanf:"decay_days"`
	NewReleaseDays  int           `koanf:"new_release_days"`
	PositiveBoost   float64       `koanf:"positive_boost"`
	NegativePenalty float64       `koanf:"negative_penalty"`
	DecayRate       float64       `koanf:"decay_rate"`
}

// ScheduleConfig controls the daily refresh.
type ScheduleConfig struct {
	Enabled     bool   `koanf:"enabled"`
	RefreshTime string `koanf:"refresh_time"` // HH:MM
	Timezone    string `koanf:"timezone"`
}

// CatalogConfig holds catalog provider connection settings.
type CatalogConfig struct {
	BaseURL        string `koanf:"base_url"`
	Storefront     string `koanf:"storefront"`
	TeamID         string `koanf:"team_id"`
	KeyID          string `koanf:"key_id"`
	PrivateKeyPath string `koanf:"private_key_path"`
	MusicUserToken string `koanf:"music_user_token"`
	PlaylistID     string `koanf:"playlist_id"`
}

// MusicBrainzConfig holds enrichment provider settings.
type MusicBrainzConfig struct {
	BaseURL        string `koanf:"base_url"`
	RateIntervalMS int    `koanf:"rate_interval_ms"`
	CacheTTLDays   int    `koanf:"cache_ttl_days"`
}

// RateInterval returns the minimum interval between outbound requests.
func (m MusicBrainzConfig) RateInterval() time.Duration {
	if m.RateIntervalMS <= 0 {
		return constants.DefaultRateInterval
	}
	return time.Duration(m.RateIntervalMS) * time.Millisecond
}

// CacheTTL returns the metadata cache lifetime.
func (m MusicBrainzConfig) CacheTTL() time.Duration {
	if m.CacheTTLDays <= 0 {
		return constants.DefaultMetaCacheTTL
	}
	return time.Duration(m.CacheTTLDays) * 24 * time.Hour
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port string `koanf:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// NotifyConfig holds auth-failure email settings. Disabled when Host
// is empty.
type NotifyConfig struct {
	SMTPHost string `koanf:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port"`
	Username string `koanf:"smtp_username"`
	Password string `koanf:"smtp_password"`
	From     string `koanf:"from"`
	To       string `koanf:"to"`
}

// Config holds all application configuration
type Config struct {
	User        UserConfig        `koanf:"user"`
	Seeds       SeedsConfig       `koanf:"seeds"`
	Filters     FiltersConfig     `koanf:"filters"`
	Algorithm   AlgorithmConfig   `koanf:"algorithm"`
	Schedule    ScheduleConfig    `koanf:"schedule"`
	Catalog     CatalogConfig     `koanf:"catalog"`
	MusicBrainz MusicBrainzConfig `koanf:"musicbrainz"`
	Database    DatabaseConfig    `koanf:"database"`
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Notify      NotifyConfig      `koanf:"notify"`
}

func defaultConfig() *Config {
	return &Config{
		User: UserConfig{
			Name:         "listener",
			PlaylistName: "Curated Station",
		},
		Algorithm: AlgorithmConfig{
			PlaylistSize: constants.DefaultPlaylistSize,
			Weights: WeightsConfig{
				Favorites: constants.DefaultWeightFavorites,
				Hits:      constants.DefaultWeightHits,
				Discovery: constants.DefaultWeightDiscovery,
				Wildcard:  constants.DefaultWeightWildcard,
			},
			HotZoneSize:     constants.DefaultHotZoneSize,
			HotZoneHours:    constants.DefaultHotZoneHours,
			DecayDays:       constants.DefaultDecayDays,
			NewReleaseDays:  constants.DefaultNewReleaseDays,
			PositiveBoost:   constants.DefaultPositiveBoost,
			NegativePenalty: constants.DefaultNegativePenalty,
			DecayRate:       constants.DefaultDecayRate,
		},
		Schedule: ScheduleConfig{
			Enabled:     true,
			RefreshTime: constants.DefaultRefreshTime,
			Timezone:    constants.DefaultTimezone,
		},
		Catalog: CatalogConfig{
			BaseURL:    constants.DefaultCatalogURL,
			Storefront: constants.DefaultStorefront,
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL:        constants.DefaultMusicBrainzURL,
			RateIntervalMS: int(constants.DefaultRateInterval / time.Millisecond),
			CacheTTLDays:   30,
		},
		Database: DatabaseConfig{
			Path: constants.DefaultDBPath,
		},
		Server: ServerConfig{
			Port: constants.DefaultPort,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Notify: NotifyConfig{
			SMTPPort: 587,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and CURATOR_ environment variables. Nested keys use a double
// underscore: CURATOR_ALGORITHM__PLAYLIST_SIZE.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("CURATOR_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "CURATOR_")
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// weightSumEpsilon tolerates float noise when checking the 1.0 sum.
const weightSumEpsilon = 1e-9

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port == "" {
		errors = append(errors, "server.port cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Server.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("server.port must be a valid number, got: %s", c.Server.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("server.port must be between 1 and 65535, got: %d", port))
		}
	}

	if c.Database.Path == "" {
		errors = append(errors, "database.path cannot be empty")
	}

	if c.Algorithm.PlaylistSize < 1 {
		errors = append(errors, fmt.Sprintf("algorithm.playlist_size must be positive, got: %d", c.Algorithm.PlaylistSize))
	}

	w := c.Algorithm.Weights
	for name, v := range map[string]float64{
		"favorites": w.Favorites,
		"hits":      w.Hits,
		"discovery": w.Discovery,
		"wildcard":  w.Wildcard,
	} {
		if v < 0 || v > 1 {
			errors = append(errors, fmt.Sprintf("algorithm.weights.%s must be between 0 and 1, got: %g", name, v))
		}
	}
	if math.Abs(w.Sum()-1.0) > weightSumEpsilon {
		errors = append(errors, fmt.Sprintf("algorithm.weights must sum to 1.0, got: %g", w.Sum()))
	}

	if c.Algorithm.HotZoneSize < 1 {
		errors = append(errors, "algorithm.hot_zone_size must be positive")
	}
	if c.Algorithm.HotZoneHours < 1 {
		errors = append(errors, "algorithm.hot_zone_hours must be positive")
	}
	if c.Algorithm.DecayDays < 1 {
		errors = append(errors, "algorithm.decay_days must be positive")
	}
	if c.Algorithm.NewReleaseDays < 1 {
		errors = append(errors, "algorithm.new_release_days must be positive")
	}
	if c.Algorithm.PositiveBoost < 0 || c.Algorithm.PositiveBoost > 1 {
		errors = append(errors, "algorithm.positive_boost must be between 0 and 1")
	}
	if c.Algorithm.NegativePenalty < 0 || c.Algorithm.NegativePenalty > 1 {
		errors = append(errors, "algorithm.negative_penalty must be between 0 and 1")
	}
	if c.Algorithm.DecayRate <= 0 || c.Algorithm.DecayRate > 1 {
		errors = append(errors, "algorithm.decay_rate must be in (0, 1]")
	}

	if _, _, err := ParseRefreshTime(c.Schedule.RefreshTime); err != nil {
		errors = append(errors, fmt.Sprintf("schedule.refresh_time: %v", err))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("schedule.timezone is not a valid location: %s", c.Schedule.Timezone))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		errors = append(errors, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got: %s", c.Log.Level))
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.Log.Format] {
		errors = append(errors, fmt.Sprintf("log.format must be one of: text, json, got: %s", c.Log.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%w:\n  - %s", domain.ErrConfigInvalid, strings.Join(errors, "\n  - "))
	}

	return nil
}

// ParseRefreshTime parses an HH:MM wall-clock string.
func ParseRefreshTime(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got: %s", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in refresh time: %s", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in refresh time: %s", s)
	}
	return hour, minute, nil
}
