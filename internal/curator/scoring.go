package curator

import (
	"math"
	"sort"
	"time"

	"github.com/mkellner/curator/internal/domain"
)

// ModelConfig holds the tunable scoring parameters.
type ModelConfig struct {
	PositiveBoost   float64
	NegativePenalty float64
	DecayRate       float64 // per-day multiplier past the decay threshold
	HotZoneSize     int
	HotZoneHours    int
	DecayDays       int
}

// Observation is what the current cycle saw for one track.
type Observation struct {
	PlayCount int
	InLibrary bool
	// Position is the 1-based slot in the previously published
	// playlist; 0 means the track was not placed.
	Position int
}

// Model applies the learning rules to persisted track state. All
// methods are pure: they take state in and hand updated state back,
// persistence is the orchestrator's job.
type Model struct {
	cfg ModelConfig
}

func NewModel(cfg ModelConfig) *Model {
	return &Model{cfg: cfg}
}

// NewState is the baseline for a track placed for the first time.
func (m *Model) NewState(trackID string, obs Observation, now time.Time) domain.TrackState {
	return domain.TrackState{
		TrackID:           trackID,
		LastSeenPlayCount: obs.PlayCount,
		LastSeenAt:        now,
		CurrentWeight:     1.0,
		InLibrary:         obs.InLibrary,
		CreatedAt:         now,
	}
}

// Advance evaluates one cycle transition for a previously placed
// track. Rules, in order:
//
//   - Positive: new plays since the last cycle, or the track newly
//     entered the library. Boosts the weight, records the play, and
//     clears the hot-zone clock.
//   - Negative: the track sat in the hot zone for at least
//     HotZoneHours with zero new plays. Skipped whenever a positive
//     signal fired.
//   - Decay: the last play (or state creation) is older than
//     DecayDays; the weight shrinks multiplicatively per day past the
//     threshold. Never applied in a transition with a positive signal.
//
// The weight stays within [0,1] throughout.
func (m *Model) Advance(st domain.TrackState, obs Observation, now time.Time) domain.TrackState {
	positive := obs.PlayCount > st.LastSeenPlayCount || (obs.InLibrary && !st.InLibrary)

	if positive {
		st.CurrentWeight = math.Min(1.0, st.CurrentWeight+m.cfg.PositiveBoost)
		t := now
		st.LastPlayedAt = &t
		st.HotZoneEnteredAt = nil
	} else {
		inHotZone := obs.Position >= 1 && obs.Position <= m.cfg.HotZoneSize
		if inHotZone && st.HotZoneEnteredAt != nil {
			ignored := now.Sub(*st.HotZoneEnteredAt)
			if ignored >= time.Duration(m.cfg.HotZoneHours)*time.Hour {
				st.CurrentWeight = math.Max(0.0, st.CurrentWeight-m.cfg.NegativePenalty)
			}
		}
		if !inHotZone {
			st.HotZoneEnteredAt = nil
		}

		st.CurrentWeight = m.decayed(st, now)
	}

	st.LastSeenPlayCount = obs.PlayCount
	st.LastSeenAt = now
	st.InLibrary = obs.InLibrary
	return st
}

// decayed applies time decay for the days elapsed past the decay
// threshold since the state was last evaluated, so repeated cycles do
// not re-charge decay for the same days twice.
func (m *Model) decayed(st domain.TrackState, now time.Time) float64 {
	anchor := st.CreatedAt
	if st.LastPlayedAt != nil {
		anchor = *st.LastPlayedAt
	}
	threshold := anchor.Add(time.Duration(m.cfg.DecayDays) * 24 * time.Hour)
	if !now.After(threshold) {
		return st.CurrentWeight
	}

	from := threshold
	if st.LastSeenAt.After(from) {
		from = st.LastSeenAt
	}
	days := now.Sub(from).Hours() / 24
	if days <= 0 {
		return st.CurrentWeight
	}
	return st.CurrentWeight * math.Pow(m.cfg.DecayRate, days)
}

// MarkHotZone stamps the hot-zone clock against a freshly published
// playlist: tracks inside the band keep their existing entry time or
// start the clock now; everything else is cleared.
func (m *Model) MarkHotZone(st domain.TrackState, position int, now time.Time) domain.TrackState {
	if position >= 1 && position <= m.cfg.HotZoneSize {
		if st.HotZoneEnteredAt == nil {
			t := now
			st.HotZoneEnteredAt = &t
		}
	} else {
		st.HotZoneEnteredAt = nil
	}
	return st
}

// scoredTrack pairs a pool track with its current weight.
type scoredTrack struct {
	track  domain.Track
	weight float64
	state  *domain.TrackState
}

// rankTracks orders candidates for selection: weight descending, then
// raw play count descending, then earlier LastSeenAt. Tracks never
// evaluated before sort after established ones.
func rankTracks(tracks []scoredTrack) {
	sort.SliceStable(tracks, func(i, j int) bool {
		a, b := tracks[i], tracks[j]
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		if a.track.PlayCount != b.track.PlayCount {
			return a.track.PlayCount > b.track.PlayCount
		}
		aSeen, bSeen := lastSeen(a.state), lastSeen(b.state)
		switch {
		case aSeen.IsZero():
			return false
		case bSeen.IsZero():
			return true
		default:
			return aSeen.Before(bSeen)
		}
	})
}

func lastSeen(st *domain.TrackState) time.Time {
	if st == nil {
		return time.Time{}
	}
	return st.LastSeenAt
}

// scoreTracks annotates a pool with current weights; tracks without
// prior state score the baseline 1.0.
func scoreTracks(tracks []domain.Track, states map[string]domain.TrackState) []scoredTrack {
	scored := make([]scoredTrack, 0, len(tracks))
	for _, t := range tracks {
		s := scoredTrack{track: t, weight: 1.0}
		if st, ok := states[t.ID]; ok {
			s.weight = st.CurrentWeight
			stCopy := st
			s.state = &stCopy
		}
		scored = append(scored, s)
	}
	return scored
}
