package analysis

import (
	"fmt"
	"math"
)

// CompatibilityScore breaks down how well two tracks mix.
type CompatibilityScore struct {
	BPMScore    float64 `json:"bpm_score"`
	KeyScore    float64 `json:"key_score"`
	EnergyScore float64 `json:"energy_score"`

	// Overall is the weighted mean of the sub-scores, in [0,1].
	Overall float64 `json:"overall"`

	// Verdict is a coarse reading of Overall:
	// excellent / good / moderate / low.
	Verdict string `json:"verdict"`
}

// Compare scores the mix compatibility of two analyzed tracks. The
// sub-scores are symmetric: Compare(a, b) == Compare(b, a).
func Compare(a, b *TrackFeatures, w Weights) (*CompatibilityScore, error) {
	if !a.valid() || !b.valid() {
		return nil, fmt.Errorf("%w: comparison needs complete track features", ErrInvalidInput)
	}
	w = w.withDefaults()

	bpm := bpmScore(a.Tempo.BPM, b.Tempo.BPM, w.BPMTolerance)
	key := keyScore(a.Key.Key, b.Key.Key)
	energy := energyScore(a.Energy.Mean, b.Energy.Mean)

	overall := (w.BPM*bpm + w.Key*key + w.Energy*energy) / (w.BPM + w.Key + w.Energy)

	return &CompatibilityScore{
		BPMScore:    bpm,
		KeyScore:    key,
		EnergyScore: energy,
		Overall:     overall,
		Verdict:     verdict(overall),
	}, nil
}

func verdict(overall float64) string {
	switch {
	case overall >= 0.8:
		return "excellent"
	case overall >= 0.6:
		return "good"
	case overall >= 0.4:
		return "moderate"
	default:
		return "low"
	}
}

// bpmScore scores tempo proximity. The relative difference is measured
// against the mean of the two tempos so the score is symmetric. Inside the
// tolerance the score eases from 1 down to 0.9; beyond it decays linearly,
// reaching 0 at four times the tolerance.
func bpmScore(a, b, tol float64) float64 {
	r := math.Abs(a-b) * 2 / (a + b)
	if r <= tol {
		return 1 - 0.1*(r/tol)
	}
	s := 0.9 * (1 - (r-tol)/(3*tol))
	if s < 0 {
		return 0
	}
	return s
}

// keyScore scores harmonic compatibility on the Camelot wheel. Same
// position mixes perfectly, relative major/minor and adjacent positions mix
// well, and the score falls off with wheel distance.
func keyScore(a, b Key) float64 {
	d := camelotDistance(a, b)
	sameMode := a.Mode == b.Mode
	switch {
	case d == 0 && sameMode:
		return 1.0
	case d == 0:
		return 0.8 // relative major/minor
	case d == 1 && sameMode:
		return 0.8
	case d == 1:
		return 0.5
	case d == 2:
		return 0.4
	default:
		return math.Max(0.2, 0.4-0.05*float64(d-2))
	}
}

// energyScore scores loudness similarity from mean RMS. Two silent tracks
// are trivially compatible.
func energyScore(a, b float64) float64 {
	m := math.Max(a, b)
	if m == 0 {
		return 1.0
	}
	return 1 - math.Abs(a-b)/m
}

// MixRecommendation is a concrete transition plan from track A into
// track B.
type MixRecommendation struct {
	// ExitPoints are low-energy moments near the end of A where the
	// outgoing track can fade without cutting a peak.
	ExitPoints []float64 `json:"exit_points"`

	// EntryPoints are high-energy moments near the start of B worth
	// bringing in on.
	EntryPoints []float64 `json:"entry_points"`

	// SuggestedDurationSec scales with compatibility: well-matched
	// tracks can blend longer.
	SuggestedDurationSec float64 `json:"suggested_duration_sec"`

	// BPMSyncRequired is set when the tempo gap exceeds what a
	// beatmatched blend absorbs unaided.
	BPMSyncRequired bool `json:"bpm_sync_required"`

	// Notes are human-readable mixing hints.
	Notes []string `json:"notes,omitempty"`
}

// Valley and peak thresholds relative to the local rolling average.
const (
	exitValleyFactor = 0.8
	entryPeakFactor  = 1.2
)

// Recommend builds a transition plan from A into B given their
// compatibility score.
func Recommend(a, b *TrackFeatures, score *CompatibilityScore, cfg Config) (*MixRecommendation, error) {
	if !a.valid() || !b.valid() || score == nil {
		return nil, fmt.Errorf("%w: recommendation needs complete track features and a score", ErrInvalidInput)
	}
	cfg = cfg.withDefaults()

	window := clamp(0.1*a.Duration, cfg.ExitLookbackMin, cfg.ExitLookbackMax)

	rec := &MixRecommendation{
		ExitPoints:           exitPoints(a, window),
		EntryPoints:          entryPoints(b, window),
		SuggestedDurationSec: clamp(4+20*score.Overall, 4, 24),
	}

	r := math.Abs(a.Tempo.BPM-b.Tempo.BPM) * 2 / (a.Tempo.BPM + b.Tempo.BPM)
	rec.BPMSyncRequired = r > cfg.SyncTolerance
	rec.Notes = mixNotes(a, b, score, r)

	return rec, nil
}

// exitPoints finds energy valleys in the trailing window of a track:
// local minima below exitValleyFactor of the rolling average. With no
// valley the window start is offered as the single exit.
func exitPoints(f *TrackFeatures, window float64) []float64 {
	windowStart := f.Duration - window
	if len(f.EnergyCurve) == 0 || f.CurveFPS <= 0 {
		return []float64{math.Max(windowStart, 0)}
	}

	avg := movingAverage(f.EnergyCurve, int(5*f.CurveFPS))
	startIdx := max(int(windowStart*f.CurveFPS), 1)

	var points []float64
	for i := startIdx; i < len(f.EnergyCurve)-1; i++ {
		v := f.EnergyCurve[i]
		if v <= f.EnergyCurve[i-1] && v < f.EnergyCurve[i+1] && v < exitValleyFactor*avg[i] {
			points = append(points, float64(i)/f.CurveFPS)
		}
	}
	if len(points) == 0 {
		points = []float64{math.Max(windowStart, 0)}
	}
	return points
}

// entryPoints finds energy peaks in the leading window of a track: local
// maxima above entryPeakFactor of the rolling average. With no peak the
// first cue, or the track start, is offered.
func entryPoints(f *TrackFeatures, window float64) []float64 {
	if len(f.EnergyCurve) == 0 || f.CurveFPS <= 0 {
		return []float64{0}
	}

	avg := movingAverage(f.EnergyCurve, int(5*f.CurveFPS))
	endIdx := min(int(window*f.CurveFPS), len(f.EnergyCurve)-1)

	var points []float64
	for i := 1; i < endIdx; i++ {
		v := f.EnergyCurve[i]
		if v >= f.EnergyCurve[i-1] && v > f.EnergyCurve[i+1] && v > entryPeakFactor*avg[i] {
			points = append(points, float64(i)/f.CurveFPS)
		}
	}
	if len(points) == 0 {
		if len(f.Cues) > 0 {
			points = []float64{f.Cues[0].Time}
		} else {
			points = []float64{0}
		}
	}
	return points
}

// mixNotes assembles human-readable hints for the transition.
func mixNotes(a, b *TrackFeatures, score *CompatibilityScore, bpmDiffRel float64) []string {
	notes := []string{fmt.Sprintf("%s compatibility (%.2f)", score.Verdict, score.Overall)}

	bpmGap := math.Abs(a.Tempo.BPM - b.Tempo.BPM)
	switch {
	case bpmGap > 10:
		notes = append(notes, fmt.Sprintf("large tempo gap (%.1f BPM): use pitch shift or a hard cut", bpmGap))
	case bpmGap > 5:
		notes = append(notes, fmt.Sprintf("tempo gap %.1f BPM: adjust tempo gradually during the blend", bpmGap))
	}

	if score.KeyScore < 0.5 {
		notes = append(notes, fmt.Sprintf("keys clash (%s vs %s): avoid overlapping melodic sections", a.Key.Camelot, b.Key.Camelot))
	}
	if score.EnergyScore < 0.7 {
		notes = append(notes, "energy gap: ride the EQ to smooth the level change")
	}
	return notes
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
