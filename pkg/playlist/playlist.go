// Package playlist orders analyzed tracks into DJ sets: energy-curve
// shaping, greedy harmonic ordering, duration budgeting and pairwise
// compatibility matrices.
package playlist

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dynamix-dj/dynamix/pkg/analysis"
	"github.com/dynamix-dj/dynamix/pkg/batch"
)

// Track pairs a file path with its analysis.
type Track struct {
	Path     string                  `json:"path"`
	Features *analysis.TrackFeatures `json:"features"`
}

// Name returns the track's file name without extension.
func (t Track) Name() string {
	base := filepath.Base(t.Path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func (t Track) energy() float64 {
	if t.Features == nil {
		return 0
	}
	return t.Features.Energy.Mean
}

// Curve shapes how energy evolves across a set.
type Curve string

const (
	// CurveBuild rises steadily from the calmest track to the loudest.
	CurveBuild Curve = "build"
	// CurveWave alternates calmer and louder tracks.
	CurveWave Curve = "wave"
	// CurvePeakMiddle rises to a peak at the set's midpoint, then cools.
	CurvePeakMiddle Curve = "peak-middle"
)

// Order arranges tracks along an energy curve. The input is not modified;
// ordering is deterministic for equal inputs.
func Order(tracks []Track, curve Curve) ([]Track, error) {
	byEnergy := make([]Track, len(tracks))
	copy(byEnergy, tracks)
	sort.SliceStable(byEnergy, func(i, j int) bool {
		if byEnergy[i].energy() != byEnergy[j].energy() {
			return byEnergy[i].energy() < byEnergy[j].energy()
		}
		return byEnergy[i].Path < byEnergy[j].Path
	})

	switch curve {
	case CurveBuild, "":
		return byEnergy, nil

	case CurveWave:
		// Interleave the calm half and the loud half.
		out := make([]Track, 0, len(byEnergy))
		half := (len(byEnergy) + 1) / 2
		low, high := byEnergy[:half], byEnergy[half:]
		for i := 0; i < half; i++ {
			out = append(out, low[i])
			if i < len(high) {
				out = append(out, high[i])
			}
		}
		return out, nil

	case CurvePeakMiddle:
		// Evens climb to the peak, odds descend from it.
		var rise, fall []Track
		for i, tr := range byEnergy {
			if i%2 == 0 {
				rise = append(rise, tr)
			} else {
				fall = append(fall, tr)
			}
		}
		for i, j := 0, len(fall)-1; i < j; i, j = i+1, j-1 {
			fall[i], fall[j] = fall[j], fall[i]
		}
		return append(rise, fall...), nil

	default:
		return nil, fmt.Errorf("%w: unknown energy curve %q", analysis.ErrInvalidInput, curve)
	}
}

// OrderCompatible orders tracks greedily by pairwise compatibility:
// starting from the calmest track, each step appends the unplayed track
// that mixes best out of the current one.
func OrderCompatible(tracks []Track, w analysis.Weights) ([]Track, error) {
	if len(tracks) < 2 {
		out := make([]Track, len(tracks))
		copy(out, tracks)
		return out, nil
	}

	remaining, err := Order(tracks, CurveBuild)
	if err != nil {
		return nil, err
	}

	out := []Track{remaining[0]}
	remaining = remaining[1:]

	for len(remaining) > 0 {
		cur := out[len(out)-1]
		bestIdx, bestScore := 0, -1.0
		for i, cand := range remaining {
			score, err := analysis.Compare(cur.Features, cand.Features, w)
			if err != nil {
				return nil, fmt.Errorf("compare %s vs %s: %w", cur.Path, cand.Path, err)
			}
			if score.Overall > bestScore {
				bestIdx, bestScore = i, score.Overall
			}
		}
		out = append(out, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return out, nil
}

// Matrix computes the pairwise compatibility of every track combination.
// The result is symmetric with 1.0 on the diagonal.
func Matrix(tracks []Track, w analysis.Weights) ([][]float64, error) {
	n := len(tracks)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			score, err := analysis.Compare(tracks[i].Features, tracks[j].Features, w)
			if err != nil {
				return nil, fmt.Errorf("compare %s vs %s: %w", tracks[i].Path, tracks[j].Path, err)
			}
			m[i][j] = score.Overall
			m[j][i] = score.Overall
		}
	}
	return m, nil
}

// BuildSetList selects tracks to fill a duration budget, then orders them
// along the curve. Tracks are admitted calmest-first until the next track
// would overshoot the budget; a zero budget admits everything.
func BuildSetList(tracks []Track, budgetSec float64, curve Curve) ([]Track, error) {
	ordered, err := Order(tracks, CurveBuild)
	if err != nil {
		return nil, err
	}

	if budgetSec <= 0 {
		return Order(ordered, curve)
	}

	var picked []Track
	var total float64
	for _, tr := range ordered {
		d := 0.0
		if tr.Features != nil {
			d = tr.Features.Duration
		}
		if total+d > budgetSec {
			continue
		}
		picked = append(picked, tr)
		total += d
	}
	return Order(picked, curve)
}

// Transition is a planned segue between two adjacent set tracks.
type Transition struct {
	From  string                       `json:"from"`
	To    string                       `json:"to"`
	Score *analysis.CompatibilityScore `json:"score"`
	Plan  *analysis.MixRecommendation  `json:"plan"`
}

// PlanTransitions computes compatibility and a transition plan for each
// adjacent pair of an ordered set.
func PlanTransitions(ordered []Track, w analysis.Weights, cfg analysis.Config) ([]Transition, error) {
	var out []Transition
	for i := 0; i+1 < len(ordered); i++ {
		a, b := ordered[i], ordered[i+1]
		score, err := analysis.Compare(a.Features, b.Features, w)
		if err != nil {
			return nil, fmt.Errorf("compare %s vs %s: %w", a.Path, b.Path, err)
		}
		plan, err := analysis.Recommend(a.Features, b.Features, score, cfg)
		if err != nil {
			return nil, fmt.Errorf("recommend %s into %s: %w", a.Path, b.Path, err)
		}
		out = append(out, Transition{From: a.Path, To: b.Path, Score: score, Plan: plan})
	}
	return out, nil
}

// FromResults converts successful batch results into playlist tracks,
// dropping failed and feature-less entries.
func FromResults(results []batch.Result) []Track {
	var out []Track
	for _, r := range results {
		if r.Err == nil && r.Features != nil {
			out = append(out, Track{Path: r.Path, Features: r.Features})
		}
	}
	return out
}
