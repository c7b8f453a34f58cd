package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mkellner/curator/internal/domain"
)

type cycleRow struct {
	ID                string       `db:"id"`
	StartedAt         time.Time    `db:"started_at"`
	DurationSeconds   float64      `db:"duration_seconds"`
	Status            string       `db:"status"`
	TrackIDs          string       `db:"track_ids"`
	Counts            string       `db:"counts"`
	Errors            sql.NullString `db:"errors"`
	ArtistsDiscovered int          `db:"artists_discovered"`
}

func (r cycleRow) toDomain() (domain.CycleResult, error) {
	cr := domain.CycleResult{
		ID:                r.ID,
		StartedAt:         r.StartedAt,
		DurationSeconds:   r.DurationSeconds,
		Status:            domain.CycleStatus(r.Status),
		ArtistsDiscovered: r.ArtistsDiscovered,
	}
	if err := json.Unmarshal([]byte(r.TrackIDs), &cr.TrackIDs); err != nil {
		return cr, fmt.Errorf("failed to decode track ids: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Counts), &cr.Counts); err != nil {
		return cr, fmt.Errorf("failed to decode counts: %w", err)
	}
	if r.Errors.Valid && r.Errors.String != "" {
		if err := json.Unmarshal([]byte(r.Errors.String), &cr.Errors); err != nil {
			return cr, fmt.Errorf("failed to decode errors: %w", err)
		}
	}
	return cr, nil
}

func appendCycleResultTx(tx *sqlx.Tx, cr *domain.CycleResult) error {
	trackIDs, err := json.Marshal(cr.TrackIDs)
	if err != nil {
		return err
	}
	counts, err := json.Marshal(cr.Counts)
	if err != nil {
		return err
	}
	var errorsJSON []byte
	if len(cr.Errors) > 0 {
		if errorsJSON, err = json.Marshal(cr.Errors); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		INSERT INTO cycle_results (id, started_at, duration_seconds, status, track_ids, counts, errors, artists_discovered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, cr.ID, cr.StartedAt, cr.DurationSeconds, string(cr.Status),
		string(trackIDs), string(counts), string(errorsJSON), cr.ArtistsDiscovered)
	return err
}

// AppendCycleResult records one cycle outcome in the append-only log.
// Used directly for failed cycles, which commit nothing else.
func (db *DB) AppendCycleResult(cr *domain.CycleResult) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	if err := appendCycleResultTx(tx, cr); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// LatestSuccessfulCycle returns the most recent successful cycle, or
// nil if none exists yet. Its track list is the previously published
// playlist used by the scoring pre-pass.
func (db *DB) LatestSuccessfulCycle() (*domain.CycleResult, error) {
	var row cycleRow
	err := db.Get(&row, `
		SELECT id, started_at, duration_seconds, status, track_ids, counts, errors, artists_discovered
		FROM cycle_results WHERE status = ? ORDER BY started_at DESC LIMIT 1
	`, string(domain.CycleStatusSuccess))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cr, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// ListCycleResults returns recent cycle records, newest first.
func (db *DB) ListCycleResults(limit int) ([]domain.CycleResult, error) {
	var rows []cycleRow
	err := db.Select(&rows, `
		SELECT id, started_at, duration_seconds, status, track_ids, counts, errors, artists_discovered
		FROM cycle_results ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	results := make([]domain.CycleResult, 0, len(rows))
	for _, r := range rows {
		cr, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		results = append(results, cr)
	}
	return results, nil
}

// CountCycleResults returns the total number of recorded cycles.
func (db *DB) CountCycleResults() (int, error) {
	var count int
	err := db.Get(&count, "SELECT COUNT(*) FROM cycle_results")
	return count, err
}

// GetPlaylistState returns the managed playlist state, or nil before
// the first successful cycle.
func (db *DB) GetPlaylistState() (*domain.PlaylistState, error) {
	type playlistRow struct {
		PlaylistID    string       `db:"playlist_id"`
		PlaylistName  string       `db:"playlist_name"`
		TrackCount    int          `db:"track_count"`
		LastRefreshAt sql.NullTime `db:"last_refresh_at"`
	}
	var row playlistRow
	err := db.Get(&row, "SELECT playlist_id, playlist_name, track_count, last_refresh_at FROM playlist_state WHERE id = 1")
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ps := &domain.PlaylistState{
		PlaylistID:   row.PlaylistID,
		PlaylistName: row.PlaylistName,
		TrackCount:   row.TrackCount,
	}
	if row.LastRefreshAt.Valid {
		ps.LastRefreshAt = row.LastRefreshAt.Time
	}
	return ps, nil
}

func upsertPlaylistStateTx(tx *sqlx.Tx, ps *domain.PlaylistState) error {
	_, err := tx.Exec(`
		INSERT INTO playlist_state (id, playlist_id, playlist_name, track_count, last_refresh_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			playlist_id = excluded.playlist_id,
			playlist_name = excluded.playlist_name,
			track_count = excluded.track_count,
			last_refresh_at = excluded.last_refresh_at
	`, ps.PlaylistID, ps.PlaylistName, ps.TrackCount, ps.LastRefreshAt)
	return err
}

// CommitCycle persists everything a successful cycle produced in one
// transaction: updated track states, the cycle record, and the
// playlist state. A failure rolls everything back, leaving prior state
// untouched.
func (db *DB) CommitCycle(states []domain.TrackState, cr *domain.CycleResult, ps *domain.PlaylistState) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}

	for _, st := range states {
		if err := upsertTrackStateTx(tx, st); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to persist track state %s: %w", st.TrackID, err)
		}
	}
	if err := appendCycleResultTx(tx, cr); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to append cycle result: %w", err)
	}
	if ps != nil {
		if err := upsertPlaylistStateTx(tx, ps); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update playlist state: %w", err)
		}
	}

	return tx.Commit()
}
