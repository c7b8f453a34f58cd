package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkellner/curator/internal/domain"
)

var (
	ErrSeedExists   = errors.New("seed already exists")
	ErrSeedNotFound = errors.New("seed not found")
)

type seedRow struct {
	Name    string    `db:"name"`
	Kind    string    `db:"kind"`
	AddedAt time.Time `db:"added_at"`
}

// ListSeeds returns all seeds of the given kind, oldest first.
func (db *DB) ListSeeds(kind domain.SeedKind) ([]domain.Seed, error) {
	var rows []seedRow
	err := db.Select(&rows, "SELECT name, kind, added_at FROM seed_set WHERE kind = ? ORDER BY added_at, name", string(kind))
	if err != nil {
		return nil, err
	}
	seeds := make([]domain.Seed, 0, len(rows))
	for _, r := range rows {
		seeds = append(seeds, domain.Seed{Name: r.Name, Kind: domain.SeedKind(r.Kind), AddedAt: r.AddedAt})
	}
	return seeds, nil
}

// AddSeed inserts a seed. Duplicate names within a kind are rejected
// case-insensitively by the table's collation.
func (db *DB) AddSeed(seed domain.Seed) error {
	name := strings.TrimSpace(seed.Name)
	if name == "" {
		return fmt.Errorf("seed name cannot be empty")
	}

	res, err := db.Exec(`
		INSERT INTO seed_set (name, kind) VALUES (?, ?)
		ON CONFLICT(name, kind) DO NOTHING
	`, name, string(seed.Kind))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrSeedExists, name)
	}
	return nil
}

// RemoveSeed deletes a seed by name and kind.
func (db *DB) RemoveSeed(name string, kind domain.SeedKind) error {
	res, err := db.Exec("DELETE FROM seed_set WHERE name = ? AND kind = ?", name, string(kind))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrSeedNotFound, name)
	}
	return nil
}

// EnsureSeeds bootstraps the seed table from configured names. Names
// already present are left alone, so user edits through the API win
// over config on later starts.
func (db *DB) EnsureSeeds(artists, songs []string) error {
	for _, name := range artists {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := db.Exec("INSERT INTO seed_set (name, kind) VALUES (?, ?) ON CONFLICT(name, kind) DO NOTHING", name, string(domain.SeedArtist)); err != nil {
			return err
		}
	}
	for _, name := range songs {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := db.Exec("INSERT INTO seed_set (name, kind) VALUES (?, ?) ON CONFLICT(name, kind) DO NOTHING", name, string(domain.SeedSong)); err != nil {
			return err
		}
	}
	return nil
}
