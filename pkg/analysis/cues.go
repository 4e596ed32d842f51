package analysis

import (
	"fmt"
	"sort"
)

// CueKind classifies what a cue point marks.
type CueKind string

const (
	// CueOnset is a plain strong transient.
	CueOnset CueKind = "onset"
	// CuePhraseBoundary is an onset coinciding with a structural boundary.
	CuePhraseBoundary CueKind = "phrase-boundary"
	// CueEnergyPeak is an onset inside the loudest stretch of the track.
	CueEnergyPeak CueKind = "energy-peak"
)

// CuePoint is a suggested jump-in point for a DJ.
type CuePoint struct {
	Time float64 `json:"time"`

	// Strength in [0,1] is the onset strength normalized to the track's
	// strongest onset.
	Strength float64 `json:"strength"`
	Kind     CueKind `json:"kind"`
}

// Spacing and cap applied after threshold filtering. Cues within the
// spacing of a stronger cue are dropped.
const (
	cueMinSpacingSec = 2.0
	maxCues          = 20
)

// How close an onset must be to a section boundary to count as a phrase
// boundary, and the RMS percentile above which it counts as an energy peak.
const (
	phraseBoundaryTolSec = 0.5
	energyPeakPercentile = 90.0
)

// DetectCues finds candidate cue points: onset-strength local maxima above
// a sensitivity-scaled threshold, classified by their surroundings, sorted
// by strength descending, with a 2 s minimum spacing and a cap of 20.
// Silent tracks yield no cues.
func DetectCues(w *Waveform, cfg Config) ([]CuePoint, error) {
	if w == nil || len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: cue detection needs a decoded waveform", ErrInvalidInput)
	}
	cfg = cfg.withDefaults()

	spec := ComputeSpectrogram(w, cfg.FrameSize, cfg.HopSize)
	onsets := ComputeOnsetEnvelope(spec)
	energy, err := ComputeEnergyProfile(w, cfg.FrameSize, cfg.HopSize)
	if err != nil {
		return nil, err
	}
	sections := detectSectionsFromFeatures(spec, energy, w.Duration(), cfg)
	return detectCuesFromFeatures(onsets, energy, sections, cfg), nil
}

func detectCuesFromFeatures(onsets *OnsetEnvelope, energy *EnergyProfile, sections *SectionAnalysis, cfg Config) []CuePoint {
	maxStrength := 0.0
	for _, v := range onsets.Strength {
		if v > maxStrength {
			maxStrength = v
		}
	}
	if maxStrength == 0 {
		return nil
	}

	// Higher sensitivity lowers the threshold.
	mean, std := meanStd(onsets.Strength)
	threshold := mean + (1.5-cfg.CueSensitivity)*std

	fps := onsets.FramesPerSecond()
	minDist := int(cueMinSpacingSec * fps)
	peaks := findPeaks(onsets.Strength, threshold, minDist)

	peakRMS := percentile(energy.RMS, energyPeakPercentile)

	var boundaries []float64
	if sections != nil && len(sections.Sections) > 1 {
		for _, sec := range sections.Sections[1:] {
			boundaries = append(boundaries, sec.Start)
		}
	}

	cues := make([]CuePoint, 0, len(peaks))
	for _, p := range peaks {
		t := onsets.FrameTime(p)
		cue := CuePoint{
			Time:     t,
			Strength: onsets.Strength[p] / maxStrength,
			Kind:     CueOnset,
		}
		if energy.RMS[energy.FrameAt(t)] > peakRMS {
			cue.Kind = CueEnergyPeak
		}
		for _, b := range boundaries {
			if d := t - b; d > -phraseBoundaryTolSec && d < phraseBoundaryTolSec {
				cue.Kind = CuePhraseBoundary
				break
			}
		}
		cues = append(cues, cue)
	}

	sort.Slice(cues, func(i, j int) bool {
		if cues[i].Strength != cues[j].Strength {
			return cues[i].Strength > cues[j].Strength
		}
		return cues[i].Time < cues[j].Time
	})
	if len(cues) > maxCues {
		cues = cues[:maxCues]
	}
	return cues
}

// LoopSuggestion is a candidate loop region.
type LoopSuggestion struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`

	// Beats is the loop length in beats, 0 for fallback loops suggested
	// without a usable beat grid.
	Beats int `json:"beats"`

	// Aligned reports whether both boundaries sit on the beat grid.
	Aligned bool `json:"phrase_aligned"`

	// Stability in [0,1] is 1 - stddev/mean of the energy inside the
	// loop. Flat-energy regions loop cleanly.
	Stability float64 `json:"stability"`
}

// Duration returns the loop length in seconds.
func (l LoopSuggestion) Duration() float64 { return l.End - l.Start }

// Loop lengths tried at each beat, and the cap on returned suggestions.
var loopBeatLengths = []int{4, 8, 16, 32}

const maxLoops = 10

// SuggestLoops proposes loop regions aligned to the beat grid, between
// MinLoopSec and MaxLoopSec long, ranked by energy stability. Without a
// confident beat grid it falls back to fixed-length loops anchored at
// strong onsets.
func SuggestLoops(w *Waveform, cfg Config) ([]LoopSuggestion, error) {
	if w == nil || len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: loop suggestion needs a decoded waveform", ErrInvalidInput)
	}
	cfg = cfg.withDefaults()

	tempo, err := EstimateTempo(w, cfg)
	if err != nil {
		return nil, err
	}
	spec := ComputeSpectrogram(w, cfg.FrameSize, cfg.HopSize)
	onsets := ComputeOnsetEnvelope(spec)
	energy, err := ComputeEnergyProfile(w, cfg.FrameSize, cfg.HopSize)
	if err != nil {
		return nil, err
	}
	return suggestLoopsFromFeatures(tempo, onsets, energy, w.Duration(), cfg), nil
}

func suggestLoopsFromFeatures(tempo *TempoEstimate, onsets *OnsetEnvelope, energy *EnergyProfile, duration float64, cfg Config) []LoopSuggestion {
	var candidates []LoopSuggestion

	if tempo.Confidence > 0 && len(tempo.Beats) > 4 {
		beats := tempo.Beats
		for i := range beats {
			for _, n := range loopBeatLengths {
				if i+n >= len(beats) {
					break
				}
				start, end := beats[i], beats[i+n]
				d := end - start
				if d < cfg.MinLoopSec || d > cfg.MaxLoopSec {
					continue
				}
				candidates = append(candidates, LoopSuggestion{
					Start:     start,
					End:       end,
					Beats:     n,
					Aligned:   true,
					Stability: loopStability(energy, start, end),
				})
				// Shortest aligned length wins at this anchor.
				break
			}
		}
	} else {
		candidates = fallbackLoops(onsets, energy, duration, cfg)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Stability != candidates[j].Stability {
			return candidates[i].Stability > candidates[j].Stability
		}
		return candidates[i].Start < candidates[j].Start
	})

	// Keep the most stable non-overlapping loops.
	var loops []LoopSuggestion
	for _, c := range candidates {
		overlaps := false
		for _, kept := range loops {
			if c.Start < kept.End && kept.Start < c.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			loops = append(loops, c)
			if len(loops) == maxLoops {
				break
			}
		}
	}

	sort.Slice(loops, func(i, j int) bool { return loops[i].Start < loops[j].Start })
	return loops
}

// fallbackLoops anchors fixed-length loops at the strongest onsets when no
// beat grid is available.
func fallbackLoops(onsets *OnsetEnvelope, energy *EnergyProfile, duration float64, cfg Config) []LoopSuggestion {
	length := (cfg.MinLoopSec + cfg.MaxLoopSec) / 2
	mean, std := meanStd(onsets.Strength)
	fps := onsets.FramesPerSecond()
	peaks := findPeaks(onsets.Strength, mean+std, int(length*fps))

	var loops []LoopSuggestion
	for _, p := range peaks {
		start := onsets.FrameTime(p)
		end := start + length
		if end > duration {
			continue
		}
		loops = append(loops, LoopSuggestion{
			Start:     start,
			End:       end,
			Stability: loopStability(energy, start, end),
		})
	}
	return loops
}

// loopStability scores how steady the energy is inside [start, end):
// 1 - stddev/mean, clipped to [0,1].
func loopStability(p *EnergyProfile, start, end float64) float64 {
	lo, hi := p.FrameAt(start), p.FrameAt(end)
	if hi <= lo {
		return 0
	}
	mean, std := meanStd(p.RMS[lo:hi])
	if mean == 0 {
		return 0
	}
	s := 1 - std/mean
	if s < 0 {
		return 0
	}
	return s
}
