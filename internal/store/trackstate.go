package store

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkellner/curator/internal/domain"
)

type trackStateRow struct {
	TrackID           string       `db:"track_id"`
	LastSeenPlayCount int          `db:"last_seen_play_count"`
	LastSeenAt        time.Time    `db:"last_seen_at"`
	CurrentWeight     float64      `db:"current_weight"`
	HotZoneEnteredAt  sql.NullTime `db:"hot_zone_entered_at"`
	LastPlayedAt      sql.NullTime `db:"last_played_at"`
	InLibrary         bool         `db:"in_library"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         sql.NullTime `db:"updated_at"`
}

func (r trackStateRow) toDomain() domain.TrackState {
	st := domain.TrackState{
		TrackID:           r.TrackID,
		LastSeenPlayCount: r.LastSeenPlayCount,
		LastSeenAt:        r.LastSeenAt,
		CurrentWeight:     r.CurrentWeight,
		InLibrary:         r.InLibrary,
		CreatedAt:         r.CreatedAt,
	}
	if r.HotZoneEnteredAt.Valid {
		t := r.HotZoneEnteredAt.Time
		st.HotZoneEnteredAt = &t
	}
	if r.LastPlayedAt.Valid {
		t := r.LastPlayedAt.Time
		st.LastPlayedAt = &t
	}
	return st
}

const trackStateColumns = `track_id, last_seen_play_count, last_seen_at, current_weight,
	hot_zone_entered_at, last_played_at, in_library, created_at, updated_at`

// GetTrackState returns the persisted state for one track, or nil if
// the track has never been placed.
func (db *DB) GetTrackState(trackID string) (*domain.TrackState, error) {
	var row trackStateRow
	err := db.Get(&row, "SELECT "+trackStateColumns+" FROM track_state WHERE track_id = ?", trackID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st := row.toDomain()
	return &st, nil
}

// GetTrackStates returns persisted state for the given track ids,
// keyed by id. Tracks with no state are absent from the map.
func (db *DB) GetTrackStates(trackIDs []string) (map[string]domain.TrackState, error) {
	states := make(map[string]domain.TrackState, len(trackIDs))
	if len(trackIDs) == 0 {
		return states, nil
	}

	query, args, err := sqlx.In("SELECT "+trackStateColumns+" FROM track_state WHERE track_id IN (?)", trackIDs)
	if err != nil {
		return nil, err
	}

	var rows []trackStateRow
	if err := db.Select(&rows, db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		states[r.TrackID] = r.toDomain()
	}
	return states, nil
}

// CountTrackStates returns the number of persisted track states.
func (db *DB) CountTrackStates() (int, error) {
	var count int
	err := db.Get(&count, "SELECT COUNT(*) FROM track_state")
	return count, err
}

func upsertTrackStateTx(tx *sqlx.Tx, st domain.TrackState) error {
	var hotZone, lastPlayed *time.Time
	if st.HotZoneEnteredAt != nil {
		t := *st.HotZoneEnteredAt
		hotZone = &t
	}
	if st.LastPlayedAt != nil {
		t := *st.LastPlayedAt
		lastPlayed = &t
	}

	_, err := tx.Exec(`
		INSERT INTO track_state (track_id, last_seen_play_count, last_seen_at, current_weight,
			hot_zone_entered_at, last_played_at, in_library, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			last_seen_play_count = excluded.last_seen_play_count,
			last_seen_at = excluded.last_seen_at,
			current_weight = excluded.current_weight,
			hot_zone_entered_at = excluded.hot_zone_entered_at,
			last_played_at = excluded.last_played_at,
			in_library = excluded.in_library,
			updated_at = excluded.updated_at
	`, st.TrackID, st.LastSeenPlayCount, st.LastSeenAt, st.CurrentWeight,
		hotZone, lastPlayed, st.InLibrary, st.CreatedAt, time.Now())
	return err
}
