package store

import (
	"testing"
	"time"

	"github.com/mkellner/curator/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTrackStateRoundTrip(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	hotZone := now.Add(-2 * time.Hour)
	st := domain.TrackState{
		TrackID:           "track-1",
		LastSeenPlayCount: 7,
		LastSeenAt:        now,
		CurrentWeight:     0.85,
		HotZoneEnteredAt:  &hotZone,
		InLibrary:         true,
		CreatedAt:         now,
	}

	if err := db.CommitCycle([]domain.TrackState{st}, testCycle("c1", now, []string{"track-1"}), nil); err != nil {
		t.Fatalf("CommitCycle failed: %v", err)
	}

	got, err := db.GetTrackState("track-1")
	if err != nil {
		t.Fatalf("GetTrackState failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected track state, got nil")
	}
	if got.LastSeenPlayCount != 7 {
		t.Errorf("expected play count 7, got %d", got.LastSeenPlayCount)
	}
	if got.CurrentWeight != 0.85 {
		t.Errorf("expected weight 0.85, got %f", got.CurrentWeight)
	}
	if got.HotZoneEnteredAt == nil {
		t.Error("expected hot zone timestamp to survive round trip")
	}
	if got.LastPlayedAt != nil {
		t.Error("expected nil last played timestamp")
	}
	if !got.InLibrary {
		t.Error("expected in_library to be true")
	}
}

func TestGetTrackStateMissing(t *testing.T) {
	db := newTestDB(t)

	got, err := db.GetTrackState("no-such-track")
	if err != nil {
		t.Fatalf("GetTrackState failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown track, got %+v", got)
	}
}

func TestGetTrackStatesSubset(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC()
	states := []domain.TrackState{
		{TrackID: "a", LastSeenAt: now, CurrentWeight: 1.0, CreatedAt: now},
		{TrackID: "b", LastSeenAt: now, CurrentWeight: 0.5, CreatedAt: now},
	}
	if err := db.CommitCycle(states, testCycle("c1", now, []string{"a", "b"}), nil); err != nil {
		t.Fatalf("CommitCycle failed: %v", err)
	}

	got, err := db.GetTrackStates([]string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("GetTrackStates failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 states, got %d", len(got))
	}
	if _, ok := got["missing"]; ok {
		t.Error("unknown track should be absent from result map")
	}
	if got["b"].CurrentWeight != 0.5 {
		t.Errorf("expected weight 0.5 for b, got %f", got["b"].CurrentWeight)
	}
}

func TestTrackStateUpsertUpdates(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC()
	st := domain.TrackState{TrackID: "a", LastSeenAt: now, CurrentWeight: 1.0, CreatedAt: now}
	if err := db.CommitCycle([]domain.TrackState{st}, testCycle("c1", now, []string{"a"}), nil); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}

	st.CurrentWeight = 0.6
	st.LastSeenPlayCount = 3
	if err := db.CommitCycle([]domain.TrackState{st}, testCycle("c2", now.Add(time.Hour), []string{"a"}), nil); err != nil {
		t.Fatalf("second commit failed: %v", err)
	}

	got, err := db.GetTrackState("a")
	if err != nil {
		t.Fatalf("GetTrackState failed: %v", err)
	}
	if got.CurrentWeight != 0.6 {
		t.Errorf("expected updated weight 0.6, got %f", got.CurrentWeight)
	}
	if got.LastSeenPlayCount != 3 {
		t.Errorf("expected updated play count 3, got %d", got.LastSeenPlayCount)
	}

	count, err := db.CountTrackStates()
	if err != nil {
		t.Fatalf("CountTrackStates failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 state after upsert, got %d", count)
	}
}

func TestCommitCycleWithPlaylistState(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	ps := &domain.PlaylistState{
		PlaylistID:    "pl-1",
		PlaylistName:  "Daily Rotation",
		TrackCount:    50,
		LastRefreshAt: now,
	}
	if err := db.CommitCycle(nil, testCycle("c1", now, []string{"a"}), ps); err != nil {
		t.Fatalf("CommitCycle failed: %v", err)
	}

	got, err := db.GetPlaylistState()
	if err != nil {
		t.Fatalf("GetPlaylistState failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected playlist state, got nil")
	}
	if got.PlaylistID != "pl-1" || got.TrackCount != 50 {
		t.Errorf("unexpected playlist state: %+v", got)
	}

	// Singleton row: a second commit replaces, not appends.
	ps.TrackCount = 40
	if err := db.CommitCycle(nil, testCycle("c2", now.Add(time.Hour), []string{"a"}), ps); err != nil {
		t.Fatalf("second CommitCycle failed: %v", err)
	}
	got, err = db.GetPlaylistState()
	if err != nil {
		t.Fatalf("GetPlaylistState failed: %v", err)
	}
	if got.TrackCount != 40 {
		t.Errorf("expected track count 40 after update, got %d", got.TrackCount)
	}
}

func TestCommitCycleRollsBackOnDuplicateCycleID(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC()
	cr := testCycle("dup", now, []string{"a"})
	if err := db.AppendCycleResult(cr); err != nil {
		t.Fatalf("AppendCycleResult failed: %v", err)
	}

	st := domain.TrackState{TrackID: "a", LastSeenAt: now, CurrentWeight: 1.0, CreatedAt: now}
	err := db.CommitCycle([]domain.TrackState{st}, cr, nil)
	if err == nil {
		t.Fatal("expected duplicate cycle id to fail the commit")
	}

	got, err := db.GetTrackState("a")
	if err != nil {
		t.Fatalf("GetTrackState failed: %v", err)
	}
	if got != nil {
		t.Error("track state should have been rolled back with the failed commit")
	}
}

func TestCycleResultRoundTrip(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	cr := &domain.CycleResult{
		ID:              "cycle-1",
		StartedAt:       now,
		DurationSeconds: 12.5,
		Status:          domain.CycleStatusFailed,
		TrackIDs:        []string{},
		Counts:          map[domain.Category]int{},
		Errors:          []string{"provider unavailable"},
	}
	if err := db.AppendCycleResult(cr); err != nil {
		t.Fatalf("AppendCycleResult failed: %v", err)
	}

	results, err := db.ListCycleResults(10)
	if err != nil {
		t.Fatalf("ListCycleResults failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0]
	if got.Status != domain.CycleStatusFailed {
		t.Errorf("expected failed status, got %s", got.Status)
	}
	if len(got.Errors) != 1 || got.Errors[0] != "provider unavailable" {
		t.Errorf("unexpected errors: %v", got.Errors)
	}
}

func TestLatestSuccessfulCycleSkipsFailures(t *testing.T) {
	db := newTestDB(t)

	base := time.Now().UTC().Truncate(time.Second)
	ok := testCycle("ok", base, []string{"a", "b"})
	if err := db.AppendCycleResult(ok); err != nil {
		t.Fatalf("append ok cycle: %v", err)
	}
	failed := testCycle("failed", base.Add(time.Hour), nil)
	failed.Status = domain.CycleStatusFailed
	if err := db.AppendCycleResult(failed); err != nil {
		t.Fatalf("append failed cycle: %v", err)
	}

	got, err := db.LatestSuccessfulCycle()
	if err != nil {
		t.Fatalf("LatestSuccessfulCycle failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a successful cycle")
	}
	if got.ID != "ok" {
		t.Errorf("expected latest successful cycle 'ok', got %q", got.ID)
	}
	if len(got.TrackIDs) != 2 {
		t.Errorf("expected 2 track ids, got %d", len(got.TrackIDs))
	}
}

func TestLatestSuccessfulCycleEmpty(t *testing.T) {
	db := newTestDB(t)

	got, err := db.LatestSuccessfulCycle()
	if err != nil {
		t.Fatalf("LatestSuccessfulCycle failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil before first cycle, got %+v", got)
	}
}

func TestSeedLifecycle(t *testing.T) {
	db := newTestDB(t)

	if err := db.AddSeed(domain.Seed{Name: "Sam Smith", Kind: domain.SeedArtist}); err != nil {
		t.Fatalf("AddSeed failed: %v", err)
	}
	if err := db.AddSeed(domain.Seed{Name: "sam smith", Kind: domain.SeedArtist}); err == nil {
		t.Error("expected case-insensitive duplicate to be rejected")
	}
	if err := db.AddSeed(domain.Seed{Name: "   ", Kind: domain.SeedArtist}); err == nil {
		t.Error("expected blank seed name to be rejected")
	}
	// Same name, different kind is fine.
	if err := db.AddSeed(domain.Seed{Name: "Sam Smith", Kind: domain.SeedSong}); err != nil {
		t.Errorf("AddSeed with different kind failed: %v", err)
	}

	seeds, err := db.ListSeeds(domain.SeedArtist)
	if err != nil {
		t.Fatalf("ListSeeds failed: %v", err)
	}
	if len(seeds) != 1 {
		t.Fatalf("expected 1 artist seed, got %d", len(seeds))
	}
	if seeds[0].Name != "Sam Smith" {
		t.Errorf("expected 'Sam Smith', got %q", seeds[0].Name)
	}

	if err := db.RemoveSeed("Sam Smith", domain.SeedArtist); err != nil {
		t.Fatalf("RemoveSeed failed: %v", err)
	}
	if err := db.RemoveSeed("Sam Smith", domain.SeedArtist); err == nil {
		t.Error("expected removing a missing seed to fail")
	}
}

func TestEnsureSeedsIdempotent(t *testing.T) {
	db := newTestDB(t)

	if err := db.EnsureSeeds([]string{"Adele", "Hozier", ""}, []string{"Take Me to Church"}); err != nil {
		t.Fatalf("EnsureSeeds failed: %v", err)
	}
	if err := db.EnsureSeeds([]string{"Adele"}, nil); err != nil {
		t.Fatalf("second EnsureSeeds failed: %v", err)
	}

	artists, err := db.ListSeeds(domain.SeedArtist)
	if err != nil {
		t.Fatalf("ListSeeds failed: %v", err)
	}
	if len(artists) != 2 {
		t.Errorf("expected 2 artist seeds, got %d", len(artists))
	}
	songs, err := db.ListSeeds(domain.SeedSong)
	if err != nil {
		t.Fatalf("ListSeeds failed: %v", err)
	}
	if len(songs) != 1 {
		t.Errorf("expected 1 song seed, got %d", len(songs))
	}
}

func TestCacheExpiry(t *testing.T) {
	db := newTestDB(t)

	if err := db.SetCache("k1", []byte("fresh"), time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	data, err := db.GetCache("k1")
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if string(data) != "fresh" {
		t.Errorf("expected 'fresh', got %q", data)
	}

	if err := db.SetCache("k2", []byte("stale"), -time.Minute); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	data, err = db.GetCache("k2")
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if data != nil {
		t.Errorf("expected expired entry to be dropped, got %q", data)
	}

	if err := db.ClearCache(); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	data, err = db.GetCache("k1")
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if data != nil {
		t.Error("expected empty cache after clear")
	}
}

func testCycle(id string, started time.Time, trackIDs []string) *domain.CycleResult {
	return &domain.CycleResult{
		ID:        id,
		StartedAt: started,
		Status:    domain.CycleStatusSuccess,
		TrackIDs:  trackIDs,
		Counts:    map[domain.Category]int{domain.CategoryFavorites: len(trackIDs)},
	}
}
