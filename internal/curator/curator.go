package curator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mkellner/curator/internal/catalog"
	"github.com/mkellner/curator/internal/domain"
	"github.com/mkellner/curator/internal/logger"
	"github.com/mkellner/curator/internal/musicbrainz"
	"github.com/mkellner/curator/internal/store"
)

// CycleState names the orchestrator's current phase.
type CycleState string

const (
	StateIdle         CycleState = "idle"
	StateDiscovering  CycleState = "discovering"
	StatePoolBuilding CycleState = "pool_building"
	StateScoring      CycleState = "scoring"
	StateAssembling   CycleState = "assembling"
	StatePublishing   CycleState = "publishing"
)

// Notifier delivers out-of-band failure notifications. Best-effort:
// the orchestrator never fails a cycle report over a notification.
type Notifier interface {
	NotifyAuthFailure(ctx context.Context, cause error)
}

// Options holds the curation parameters a Curator runs with.
type Options struct {
	PlaylistName   string
	PlaylistID     string // optional: skip playlist discovery entirely
	Filters        domain.Filters
	Model          ModelConfig
	PlaylistSize   int
	Weights        map[domain.Category]float64
	NewReleaseDays int
}

// Curator runs the full curation cycle: discovery, pool building,
// scoring, assembly, publish, commit. Exactly one cycle runs at a
// time; a second request is rejected, not queued.
type Curator struct {
	db       *store.DB
	catalog  catalog.Provider
	notifier Notifier
	opts     Options
	model    *Model
	disc     *Discovery
	pools    *PoolBuilder
	log      *logger.Logger

	mu      sync.Mutex
	state   atomic.Value // CycleState
	nowFunc func() time.Time
}

func New(db *store.DB, cat catalog.Provider, enricher musicbrainz.Enricher, notifier Notifier, opts Options, log *logger.Logger) *Curator {
	c := &Curator{
		db:       db,
		catalog:  cat,
		notifier: notifier,
		opts:     opts,
		model:    NewModel(opts.Model),
		disc:     NewDiscovery(cat, enricher, opts.Filters, log),
		pools:    NewPoolBuilder(cat, opts.NewReleaseDays, log),
		log:      log.WithComponent("curator"),
		nowFunc:  time.Now,
	}
	c.state.Store(StateIdle)
	return c
}

// State reports the current orchestrator phase.
func (c *Curator) State() CycleState {
	return c.state.Load().(CycleState)
}

func (c *Curator) setState(s CycleState) {
	c.state.Store(s)
}

// RunCycle executes one curation cycle. It returns ErrCycleInProgress
// immediately when another cycle is already running. Fatal failures
// leave all persisted track state and the published playlist
// untouched; only an audit record is appended.
func (c *Curator) RunCycle(ctx context.Context) (*domain.CycleResult, error) {
	if !c.mu.TryLock() {
		return nil, domain.ErrCycleInProgress
	}
	defer c.mu.Unlock()
	defer c.setState(StateIdle)

	start := c.nowFunc()
	cr := &domain.CycleResult{
		ID:        uuid.NewString(),
		StartedAt: start,
		TrackIDs:  []string{},
		Counts:    make(map[domain.Category]int),
	}
	log := c.log.WithCycle(cr.ID)
	log.Info("cycle started")

	// Config problems abort before any network call.
	asm, err := NewAssembler(c.opts.PlaylistSize, c.opts.Weights, start.UnixNano())
	if err != nil {
		return c.fail(ctx, cr, start, err)
	}
	seeds, err := c.db.ListSeeds(domain.SeedArtist)
	if err != nil {
		return c.fail(ctx, cr, start, fmt.Errorf("failed to load seeds: %w", err))
	}
	if len(seeds) == 0 {
		return c.fail(ctx, cr, start, fmt.Errorf("%w: seed set is empty", domain.ErrConfigInvalid))
	}
	seedNames := make([]string, 0, len(seeds))
	for _, s := range seeds {
		seedNames = append(seedNames, s.Name)
	}

	c.setState(StateDiscovering)
	disc, err := c.disc.Run(ctx, seedNames)
	if err != nil {
		return c.fail(ctx, cr, start, err)
	}
	cr.Errors = append(cr.Errors, disc.Errors...)
	cr.ArtistsDiscovered = len(disc.Discovered)

	c.setState(StatePoolBuilding)
	pools, err := c.pools.Build(ctx, disc.Artists())
	if err != nil {
		return c.fail(ctx, cr, start, err)
	}

	c.setState(StateScoring)
	states, err := c.advanceStates(pools, start)
	if err != nil {
		return c.fail(ctx, cr, start, err)
	}

	c.setState(StateAssembling)
	playlist, counts, err := asm.Assemble(pools, states)
	if err != nil {
		return c.fail(ctx, cr, start, err)
	}
	cr.Counts = counts
	for _, t := range playlist {
		cr.TrackIDs = append(cr.TrackIDs, t.ID)
	}

	c.setState(StatePublishing)
	pl, err := c.resolvePlaylist(ctx)
	if err != nil {
		return c.fail(ctx, cr, start, err)
	}
	if err := c.catalog.ReplacePlaylistTracks(ctx, pl.ID, cr.TrackIDs); err != nil {
		return c.fail(ctx, cr, start, fmt.Errorf("failed to replace playlist: %w", err))
	}

	commitStates := c.finalStates(states, playlist, start)
	cr.Status = domain.CycleStatusSuccess
	cr.DurationSeconds = c.nowFunc().Sub(start).Seconds()
	ps := &domain.PlaylistState{
		PlaylistID:    pl.ID,
		PlaylistName:  pl.Name,
		TrackCount:    len(playlist),
		LastRefreshAt: start,
	}
	if err := c.db.CommitCycle(commitStates, cr, ps); err != nil {
		return nil, fmt.Errorf("failed to commit cycle: %w", err)
	}

	log.Info("cycle complete",
		"tracks", len(playlist),
		"artists_discovered", cr.ArtistsDiscovered,
		"soft_errors", len(cr.Errors),
		"duration_seconds", cr.DurationSeconds)
	return cr, nil
}

// fail records a failed cycle in the audit log and reports the typed
// error. Track state is never touched on failure.
func (c *Curator) fail(ctx context.Context, cr *domain.CycleResult, start time.Time, cause error) (*domain.CycleResult, error) {
	cr.Status = domain.CycleStatusFailed
	if errors.Is(cause, domain.ErrAuthExpired) {
		cr.Status = domain.CycleStatusAuthFailure
		if c.notifier != nil {
			c.notifier.NotifyAuthFailure(ctx, cause)
		}
	}
	cr.DurationSeconds = c.nowFunc().Sub(start).Seconds()
	cr.Errors = append(cr.Errors, cause.Error())
	if err := c.db.AppendCycleResult(cr); err != nil {
		c.log.Error("failed to record failed cycle", "error", err)
	}
	c.log.Error("cycle failed", "cycle_id", cr.ID, "error", cause)
	return nil, cause
}

// advanceStates runs the learning pre-pass over the previous cycle's
// placed tracks and loads state for every pool candidate. All updates
// use the previous cycle's output plus fresh observations, never this
// cycle's own selection.
func (c *Curator) advanceStates(pools *Pools, now time.Time) (map[string]domain.TrackState, error) {
	prev, err := c.db.LatestSuccessfulCycle()
	if err != nil {
		return nil, fmt.Errorf("failed to load previous cycle: %w", err)
	}

	trackByID := make(map[string]domain.Track)
	for _, tracks := range pools.ByCategory() {
		for _, t := range tracks {
			trackByID[t.ID] = t
		}
	}

	ids := make([]string, 0, len(trackByID))
	for id := range trackByID {
		ids = append(ids, id)
	}
	if prev != nil {
		ids = append(ids, prev.TrackIDs...)
	}

	states, err := c.db.GetTrackStates(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load track states: %w", err)
	}

	if prev == nil {
		return states, nil
	}
	for i, id := range prev.TrackIDs {
		st, ok := states[id]
		if !ok {
			continue
		}
		obs := Observation{
			PlayCount: st.LastSeenPlayCount,
			InLibrary: st.InLibrary,
			Position:  i + 1,
		}
		if t, seen := trackByID[id]; seen {
			obs.PlayCount = t.PlayCount
			obs.InLibrary = t.InLibrary
		}
		states[id] = c.model.Advance(st, obs, now)
	}
	return states, nil
}

// finalStates builds the commit set: every state touched by the
// pre-pass plus one state per placed track, with the hot-zone clock
// stamped against the new playlist.
func (c *Curator) finalStates(states map[string]domain.TrackState, playlist []domain.Track, now time.Time) []domain.TrackState {
	placed := make(map[string]int, len(playlist))
	for i, t := range playlist {
		placed[t.ID] = i + 1
	}

	for i, t := range playlist {
		st, ok := states[t.ID]
		if !ok {
			st = c.model.NewState(t.ID, Observation{PlayCount: t.PlayCount, InLibrary: t.InLibrary}, now)
		} else {
			st.LastSeenPlayCount = t.PlayCount
			st.LastSeenAt = now
			st.InLibrary = t.InLibrary
		}
		states[t.ID] = c.model.MarkHotZone(st, i+1, now)
	}

	out := make([]domain.TrackState, 0, len(states))
	for id, st := range states {
		if _, ok := placed[id]; !ok {
			// Left the playlist entirely; the hot-zone clock only
			// runs while the track is in the published band.
			st = c.model.MarkHotZone(st, 0, now)
		}
		out = append(out, st)
	}
	return out
}

// resolvePlaylist finds the managed playlist: configured id first,
// then the remembered one, then a name match in the library, creating
// it when nothing matches.
func (c *Curator) resolvePlaylist(ctx context.Context) (*catalog.Playlist, error) {
	if c.opts.PlaylistID != "" {
		return &catalog.Playlist{ID: c.opts.PlaylistID, Name: c.opts.PlaylistName}, nil
	}
	ps, err := c.db.GetPlaylistState()
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist state: %w", err)
	}
	if ps != nil && ps.PlaylistID != "" {
		return &catalog.Playlist{ID: ps.PlaylistID, Name: ps.PlaylistName}, nil
	}

	playlists, err := c.catalog.ListPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	want := strings.ToLower(strings.TrimSpace(c.opts.PlaylistName))
	for _, pl := range playlists {
		if strings.ToLower(strings.TrimSpace(pl.Name)) == want {
			return &pl, nil
		}
	}
	return c.catalog.CreatePlaylist(ctx, c.opts.PlaylistName, "Refreshed daily from your listening.")
}

// Status is a point-in-time snapshot for the API.
type Status struct {
	State       CycleState            `json:"state"`
	Playlist    *domain.PlaylistState `json:"playlist,omitempty"`
	LastCycle   *domain.CycleResult   `json:"last_cycle,omitempty"`
	TrackStates int                   `json:"track_states"`
	Cycles      int                   `json:"cycles"`
}

// Status reports the orchestrator phase and store counters.
func (c *Curator) Status() (*Status, error) {
	s := &Status{State: c.State()}

	ps, err := c.db.GetPlaylistState()
	if err != nil {
		return nil, err
	}
	s.Playlist = ps

	cycles, err := c.db.ListCycleResults(1)
	if err != nil {
		return nil, err
	}
	if len(cycles) > 0 {
		s.LastCycle = &cycles[0]
	}

	if s.TrackStates, err = c.db.CountTrackStates(); err != nil {
		return nil, err
	}
	if s.Cycles, err = c.db.CountCycleResults(); err != nil {
		return nil, err
	}
	return s, nil
}
