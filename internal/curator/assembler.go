package curator

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mkellner/curator/internal/domain"
)

// Assembler turns weighted pools into the final ordered playlist.
type Assembler struct {
	size    int
	weights map[domain.Category]float64
	rng     *rand.Rand
}

// NewAssembler validates the category weights and prepares a
// per-cycle shuffle source. Weights off a 1.0 sum are rejected before
// any selection happens.
func NewAssembler(size int, weights map[domain.Category]float64, seed int64) (*Assembler, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: playlist size must be positive, got %d", domain.ErrConfigInvalid, size)
	}
	var sum float64
	for _, c := range domain.CategoryOrder {
		w := weights[c]
		if w < 0 || w > 1 {
			return nil, fmt.Errorf("%w: weight for %s out of range: %g", domain.ErrConfigInvalid, c, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("%w: category weights must sum to 1.0, got %g", domain.ErrConfigInvalid, sum)
	}
	return &Assembler{
		size:    size,
		weights: weights,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Assemble selects the per-category targets from the scored pools,
// shuffles within each category, and interleaves round-robin. The
// output length equals the playlist size whenever the pools together
// hold enough tracks.
func (a *Assembler) Assemble(pools *Pools, states map[string]domain.TrackState) ([]domain.Track, map[domain.Category]int, error) {
	scored := make(map[domain.Category][]scoredTrack, len(domain.CategoryOrder))
	for cat, tracks := range pools.ByCategory() {
		s := scoreTracks(tracks, states)
		rankTracks(s)
		scored[cat] = s
	}

	targets := a.targetCounts()
	a.redistribute(targets, scored)

	selected := make(map[domain.Category][]domain.Track, len(domain.CategoryOrder))
	counts := make(map[domain.Category]int, len(domain.CategoryOrder))
	for _, cat := range domain.CategoryOrder {
		n := targets[cat]
		if n > len(scored[cat]) {
			n = len(scored[cat])
		}
		picks := make([]domain.Track, 0, n)
		for _, s := range scored[cat][:n] {
			picks = append(picks, s.track)
		}
		a.rng.Shuffle(len(picks), func(i, j int) {
			picks[i], picks[j] = picks[j], picks[i]
		})
		selected[cat] = picks
		counts[cat] = len(picks)
	}

	return interleave(selected, a.size), counts, nil
}

// targetCounts rounds each category's share of the playlist, assigning
// the rounding remainder to the largest-weight category so the totals
// sum exactly to the playlist size.
func (a *Assembler) targetCounts() map[domain.Category]int {
	targets := make(map[domain.Category]int, len(domain.CategoryOrder))
	total := 0
	largest := domain.CategoryOrder[0]
	for _, cat := range domain.CategoryOrder {
		targets[cat] = int(math.Round(a.weights[cat] * float64(a.size)))
		total += targets[cat]
		if a.weights[cat] > a.weights[largest] {
			largest = cat
		}
	}
	targets[largest] += a.size - total
	if targets[largest] < 0 {
		targets[largest] = 0
	}
	return targets
}

// redistribute moves unfillable target slots to categories that still
// have spare candidates, walking the fixed priority order until
// nothing more can move.
func (a *Assembler) redistribute(targets map[domain.Category]int, scored map[domain.Category][]scoredTrack) {
	for {
		shortfall := 0
		for _, cat := range domain.CategoryOrder {
			if n := len(scored[cat]); targets[cat] > n {
				shortfall += targets[cat] - n
				targets[cat] = n
			}
		}
		if shortfall == 0 {
			return
		}
		moved := false
		for _, cat := range domain.CategoryOrder {
			spare := len(scored[cat]) - targets[cat]
			if spare <= 0 {
				continue
			}
			take := shortfall
			if take > spare {
				take = spare
			}
			targets[cat] += take
			shortfall -= take
			moved = true
			if shortfall == 0 {
				break
			}
		}
		if !moved {
			return
		}
	}
}

// interleave merges the selected categories round-robin in the fixed
// order, skipping exhausted categories.
func interleave(selected map[domain.Category][]domain.Track, limit int) []domain.Track {
	playlist := make([]domain.Track, 0, limit)
	idx := make(map[domain.Category]int, len(domain.CategoryOrder))
	for len(playlist) < limit {
		advanced := false
		for _, cat := range domain.CategoryOrder {
			if idx[cat] >= len(selected[cat]) {
				continue
			}
			playlist = append(playlist, selected[cat][idx[cat]])
			idx[cat]++
			advanced = true
			if len(playlist) == limit {
				break
			}
		}
		if !advanced {
			break
		}
	}
	return playlist
}
