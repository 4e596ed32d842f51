package analysis

import (
	"fmt"
	"math"
)

// TempoEstimate is the result of tempo analysis.
type TempoEstimate struct {
	// BPM is the estimated tempo, folded into the configured range.
	BPM float64 `json:"bpm"`

	// Confidence in [0,1] reflects how dominant the winning periodicity
	// was over the runner-up. Silence and aperiodic input score near 0.
	Confidence float64 `json:"confidence"`

	// Beats holds beat timestamps in seconds, spaced by the beat period
	// starting at the phase that best aligns with onset strength.
	Beats []float64 `json:"beats,omitempty"`
}

// tempoCandidate is one periodicity hypothesis from an envelope source.
type tempoCandidate struct {
	bpm        float64
	confidence float64
}

// EstimateTempo estimates the dominant tempo of a waveform.
//
// Two envelope sources vote: the spectral-flux onset curve and the framed
// RMS energy curve. Each is autocorrelated over the lag range covering
// [MinBPM, MaxBPM]; the winning candidate is the one with the higher
// peak-dominance confidence, with ties inside 0.05 broken toward the
// reference band (120-128 by default). Valid waveforms never error; audio
// with no periodic content reports BPM 120 at confidence 0.
func EstimateTempo(w *Waveform, cfg Config) (*TempoEstimate, error) {
	if w == nil || len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: tempo estimation needs a decoded waveform", ErrInvalidInput)
	}
	cfg = cfg.withDefaults()

	spec := ComputeSpectrogram(w, cfg.FrameSize, cfg.HopSize)
	onsets := ComputeOnsetEnvelope(spec)
	energy, err := ComputeEnergyProfile(w, cfg.FrameSize, cfg.HopSize)
	if err != nil {
		return nil, err
	}

	return estimateTempoFromEnvelopes(onsets, energy.RMS, cfg), nil
}

func estimateTempoFromEnvelopes(onsets *OnsetEnvelope, rms []float64, cfg Config) *TempoEstimate {
	fps := onsets.FramesPerSecond()

	onsetCand := bestPeriodicity(onsets.Strength, fps, cfg)
	rmsCand := bestPeriodicity(rms, fps, cfg)

	best := pickCandidate(onsetCand, rmsCand, cfg)
	if best.confidence <= 0 || best.bpm <= 0 {
		// No periodic structure. Report a neutral default so downstream
		// scoring still works, flagged by zero confidence.
		return &TempoEstimate{BPM: 120, Confidence: 0}
	}

	bpm := foldBPM(best.bpm, cfg.MinBPM, cfg.MaxBPM)
	beats := beatGrid(onsets, bpm)

	return &TempoEstimate{BPM: bpm, Confidence: best.confidence, Beats: beats}
}

// bestPeriodicity autocorrelates an envelope and returns the dominant tempo
// hypothesis. Confidence is the normalized gap between the strongest and
// second-strongest autocorrelation peaks.
func bestPeriodicity(env []float64, fps float64, cfg Config) tempoCandidate {
	_, std := meanStd(env)
	if std == 0 {
		// Constant envelope (silence or DC) has no periodicity.
		return tempoCandidate{}
	}

	minLag := int(fps * 60 / cfg.MaxBPM)
	maxLag := int(fps*60/cfg.MinBPM) + 1
	ac := autocorrelate(env, minLag, maxLag)
	if len(ac) == 0 {
		return tempoCandidate{}
	}

	// Peaks only: a plateau maximum at the range edge is not a tempo.
	peaks := findPeaks(ac, 0, 1)
	if len(peaks) == 0 {
		return tempoCandidate{}
	}

	best := peaks[0]
	for _, p := range peaks {
		if ac[p] > ac[best] {
			best = p
		}
	}

	// A strict click train peaks at every beat multiple. Walk down to the
	// shortest sub-multiple lag that still carries most of the peak
	// energy so the base tempo wins over its half-time alias.
	bestLag := best + minLag
	for bestLag/2 >= minLag {
		half := bestLag/2 - minLag
		if ac[half] < 0.85*ac[best] {
			break
		}
		bestLag /= 2
	}

	// Confidence compares the winner against the strongest rival that is
	// not one of its own harmonics.
	conf := 1.0
	if ac[bestLag-minLag] <= 0 {
		conf = 0
	} else {
		rival := math.Inf(-1)
		for _, p := range peaks {
			if !harmonicLags(p+minLag, bestLag) && ac[p] > rival {
				rival = ac[p]
			}
		}
		if !math.IsInf(rival, -1) {
			conf = (ac[bestLag-minLag] - rival) / ac[bestLag-minLag]
		}
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
	}

	return tempoCandidate{bpm: 60 * fps / float64(bestLag), confidence: conf}
}

// harmonicLags reports whether lag a is within 10% of an integer multiple
// or sub-multiple of lag b.
func harmonicLags(a, b int) bool {
	lo, hi := float64(a), float64(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	ratio := hi / lo
	nearest := math.Round(ratio)
	return nearest >= 1 && math.Abs(ratio-nearest) < 0.1*nearest
}

// pickCandidate selects between the onset-derived and RMS-derived tempo
// hypotheses. When confidences are within 0.05 the candidate closer to the
// reference band wins.
func pickCandidate(a, b tempoCandidate, cfg Config) tempoCandidate {
	if a.bpm <= 0 {
		return b
	}
	if b.bpm <= 0 {
		return a
	}
	if math.Abs(a.confidence-b.confidence) < 0.05 {
		if bandDistance(a.bpm, cfg) <= bandDistance(b.bpm, cfg) {
			return a
		}
		return b
	}
	if a.confidence >= b.confidence {
		return a
	}
	return b
}

// bandDistance measures how far a tempo sits from the reference band after
// octave folding. Inside the band the distance is 0.
func bandDistance(bpm float64, cfg Config) float64 {
	bpm = foldBPM(bpm, cfg.MinBPM, cfg.MaxBPM)
	if bpm >= cfg.RefBPMLow && bpm <= cfg.RefBPMHigh {
		return 0
	}
	if bpm < cfg.RefBPMLow {
		return cfg.RefBPMLow - bpm
	}
	return bpm - cfg.RefBPMHigh
}

// foldBPM doubles or halves a tempo until it lands in [minBPM, maxBPM].
func foldBPM(bpm, minBPM, maxBPM float64) float64 {
	for bpm < minBPM {
		bpm *= 2
	}
	for bpm > maxBPM {
		bpm /= 2
	}
	if bpm < minBPM {
		bpm = minBPM
	}
	return bpm
}

// beatGrid lays a constant-tempo grid over the track, choosing the phase
// offset that maximizes summed onset strength at the beat positions.
func beatGrid(onsets *OnsetEnvelope, bpm float64) []float64 {
	if bpm <= 0 || len(onsets.Strength) == 0 {
		return nil
	}
	fps := onsets.FramesPerSecond()
	period := 60 / bpm * fps // beat period in frames
	if period < 1 {
		return nil
	}

	bestPhase, bestScore := 0.0, math.Inf(-1)
	steps := int(period)
	if steps < 1 {
		steps = 1
	}
	for s := 0; s < steps; s++ {
		phase := float64(s)
		var score float64
		for pos := phase; pos < float64(len(onsets.Strength)); pos += period {
			score += onsets.Strength[int(pos)]
		}
		if score > bestScore {
			bestScore = score
			bestPhase = phase
		}
	}

	var beats []float64
	for pos := bestPhase; pos < float64(len(onsets.Strength)); pos += period {
		beats = append(beats, pos/fps)
	}
	return beats
}
