package analysis

import (
	"fmt"
	"math"
)

// Section is a contiguous structural segment of a track.
type Section struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label"`

	// Energy is the section's mean RMS relative to the track mean.
	// 1.0 means average loudness.
	Energy float64 `json:"energy"`
}

// Duration returns the section length in seconds.
func (s Section) Duration() float64 { return s.End - s.Start }

// SectionAnalysis is the result of structure detection.
type SectionAnalysis struct {
	Sections []Section `json:"sections"`

	// Drops are timestamps where energy surges after a sustained quiet
	// stretch. They are markers, not sections; a drop usually lands on
	// a section boundary but is reported independently.
	Drops []float64 `json:"drops,omitempty"`
}

// SectionLabeler assigns a label to a detected segment. Implementations see
// the segment's position within the track and its relative energy and
// return a short tag like "intro" or "breakdown".
type SectionLabeler interface {
	Label(sec Section, index, total int, trackDuration float64) string
}

// PositionEnergyLabeler labels sections with heuristic rules on position
// and relative energy. It is the default labeler.
type PositionEnergyLabeler struct{}

// Label implements SectionLabeler.
func (PositionEnergyLabeler) Label(sec Section, index, total int, trackDuration float64) string {
	switch {
	case index == 0 && sec.Start < trackDuration*0.1:
		return "intro"
	case index == total-1 && sec.End > trackDuration*0.9 && sec.Energy < 1.0:
		return "outro"
	case sec.Energy >= 1.15:
		return "chorus"
	case sec.Energy <= 0.7:
		return "breakdown"
	case sec.Energy >= 1.0:
		return "build"
	default:
		return "verse"
	}
}

// Minimum section length. Boundaries closer together than this are merged,
// keeping the stronger novelty peak.
const minSectionSec = 8.0

// DetectSections finds structural boundaries in a track.
//
// Each frame gets a timbral feature vector (spectral centroid, rolloff,
// flatness and three band energies), standardized across the track. The
// novelty curve is the cosine distance between mean vectors of adjacent
// windows; peaks above an adaptive threshold become boundaries. A track
// with no boundary peaks yields a single whole-track section.
func DetectSections(w *Waveform, cfg Config) (*SectionAnalysis, error) {
	if w == nil || len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: section detection needs a decoded waveform", ErrInvalidInput)
	}
	cfg = cfg.withDefaults()

	spec := ComputeSpectrogram(w, cfg.FrameSize, cfg.HopSize)
	energy, err := ComputeEnergyProfile(w, cfg.FrameSize, cfg.HopSize)
	if err != nil {
		return nil, err
	}
	return detectSectionsFromFeatures(spec, energy, w.Duration(), cfg), nil
}

func detectSectionsFromFeatures(spec *Spectrogram, energy *EnergyProfile, duration float64, cfg Config) *SectionAnalysis {
	feats := timbralFeatures(spec)
	standardize(feats)

	fps := spec.FramesPerSecond()
	window := int(4 * fps) // 4 s context on each side
	if window < 1 {
		window = 1
	}
	novelty := noveltyCurve(feats, window)

	// Higher sensitivity lowers the threshold, admitting weaker peaks.
	mean, std := meanStd(novelty)
	threshold := mean + (1.5-cfg.SectionSensitivity)*std

	minDist := int(minSectionSec * fps)
	peaks := findPeaks(novelty, threshold, minDist)

	var boundaries []float64
	for _, p := range peaks {
		t := float64(p) / fps
		if t > minSectionSec/2 && t < duration-minSectionSec/2 {
			boundaries = append(boundaries, t)
		}
	}

	trackMean := energy.Mean()
	edges := append([]float64{0}, boundaries...)
	edges = append(edges, duration)

	sections := make([]Section, 0, len(edges)-1)
	for i := 0; i+1 < len(edges); i++ {
		sec := Section{Start: edges[i], End: edges[i+1]}
		sec.Energy = relativeEnergy(energy, sec.Start, sec.End, trackMean)
		sections = append(sections, sec)
	}
	for i := range sections {
		sections[i].Label = cfg.Labeler.Label(sections[i], i, len(sections), duration)
	}

	return &SectionAnalysis{
		Sections: sections,
		Drops:    detectDrops(energy, trackMean),
	}
}

// timbralFeatures computes a per-frame feature vector:
// centroid, rolloff, flatness, low/mid/high band energy.
func timbralFeatures(spec *Spectrogram) [][]float64 {
	const dims = 6
	feats := make([][]float64, spec.NumFrames())

	for i, frame := range spec.Mags {
		v := make([]float64, dims)

		var total, weighted float64
		for j, m := range frame {
			total += m
			weighted += m * spec.BinFreq(j)
		}
		if total > 0 {
			v[0] = weighted / total // centroid
		}

		// Rolloff: frequency below which 85% of magnitude lies.
		if total > 0 {
			var cum float64
			for j, m := range frame {
				cum += m
				if cum >= 0.85*total {
					v[1] = spec.BinFreq(j)
					break
				}
			}
		}

		// Flatness: geometric over arithmetic mean.
		if len(frame) > 1 {
			var logSum, sum float64
			n := 0
			for _, m := range frame[1:] {
				logSum += math.Log(m + 1e-12)
				sum += m
				n++
			}
			gm := math.Exp(logSum / float64(n))
			am := sum / float64(n)
			if am > 0 {
				v[2] = gm / am
			}
		}

		// Band energies: low <250 Hz, mid 250-2000, high >2000.
		for j, m := range frame {
			f := spec.BinFreq(j)
			switch {
			case f < 250:
				v[3] += m
			case f < 2000:
				v[4] += m
			default:
				v[5] += m
			}
		}

		feats[i] = v
	}
	return feats
}

// standardize z-scores each feature dimension in place.
func standardize(feats [][]float64) {
	if len(feats) == 0 {
		return
	}
	dims := len(feats[0])
	col := make([]float64, len(feats))
	for d := 0; d < dims; d++ {
		for i := range feats {
			col[i] = feats[i][d]
		}
		mean, std := meanStd(col)
		if std == 0 {
			std = 1
		}
		for i := range feats {
			feats[i][d] = (feats[i][d] - mean) / std
		}
	}
}

// noveltyCurve measures timbral change at each frame as the cosine distance
// between the mean feature vectors of the preceding and following windows.
func noveltyCurve(feats [][]float64, window int) []float64 {
	n := len(feats)
	novelty := make([]float64, n)
	if n == 0 {
		return novelty
	}
	dims := len(feats[0])
	before := make([]float64, dims)
	after := make([]float64, dims)

	for i := window; i < n-window; i++ {
		for d := 0; d < dims; d++ {
			before[d], after[d] = 0, 0
		}
		for j := i - window; j < i; j++ {
			for d := 0; d < dims; d++ {
				before[d] += feats[j][d]
			}
		}
		for j := i; j < i+window; j++ {
			for d := 0; d < dims; d++ {
				after[d] += feats[j][d]
			}
		}
		novelty[i] = 1 - cosine(before, after)
	}
	return novelty
}

// cosine returns the cosine similarity of two vectors, 0 if either is zero.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// relativeEnergy returns the mean RMS of [start, end) divided by the track
// mean RMS.
func relativeEnergy(p *EnergyProfile, start, end, trackMean float64) float64 {
	if trackMean == 0 {
		return 0
	}
	lo := p.FrameAt(start)
	hi := p.FrameAt(end)
	if hi <= lo {
		hi = lo + 1
	}
	var sum float64
	n := 0
	for i := lo; i < hi && i < len(p.RMS); i++ {
		sum += p.RMS[i]
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / trackMean
}

// Drop detection parameters: the quiet stretch must run at least this long
// below lowFactor of the track mean, and the surge must exceed highFactor.
const (
	dropQuietSec   = 4.0
	dropLowFactor  = 0.8
	dropHighFactor = 1.3
)

// detectDrops scans the smoothed energy curve for surges that follow a
// sustained quiet stretch.
func detectDrops(p *EnergyProfile, trackMean float64) []float64 {
	if trackMean == 0 || len(p.RMS) == 0 {
		return nil
	}
	fps := float64(p.SampleRate) / float64(p.HopSize)
	smooth := movingAverage(p.RMS, int(fps/4)) // ~0.5 s smoothing

	quietNeeded := int(dropQuietSec * fps)
	graceMax := int(2 * fps) // surge must land within 2 s of leaving the quiet stretch

	var drops []float64
	quietRun, grace := 0, 0
	armed := false
	for i, v := range smooth {
		if v < dropLowFactor*trackMean {
			quietRun++
			if quietRun >= quietNeeded {
				armed = true
			}
			grace = 0
			continue
		}
		quietRun = 0
		if !armed {
			continue
		}
		if v > dropHighFactor*trackMean {
			drops = append(drops, p.FrameTime(i))
			armed = false
			grace = 0
			continue
		}
		grace++
		if grace > graceMax {
			armed = false
			grace = 0
		}
	}
	return drops
}
