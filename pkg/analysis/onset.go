package analysis

import (
	"math"
	"sort"
)

// OnsetEnvelope is a per-frame onset strength curve derived from spectral
// flux. Strength[i] is the half-wave rectified magnitude increase from frame
// i-1 to frame i, summed over bins; Strength[0] is 0.
type OnsetEnvelope struct {
	Strength   []float64
	HopSize    int
	SampleRate int
}

// FrameTime returns the time of frame i in seconds.
func (o *OnsetEnvelope) FrameTime(i int) float64 {
	return float64(i*o.HopSize) / float64(o.SampleRate)
}

// FramesPerSecond returns the envelope frame rate.
func (o *OnsetEnvelope) FramesPerSecond() float64 {
	return float64(o.SampleRate) / float64(o.HopSize)
}

// ComputeOnsetEnvelope computes the spectral-flux onset strength curve from
// a magnitude spectrogram.
func ComputeOnsetEnvelope(spec *Spectrogram) *OnsetEnvelope {
	n := spec.NumFrames()
	strength := make([]float64, n)

	for i := 1; i < n; i++ {
		var flux float64
		prev, cur := spec.Mags[i-1], spec.Mags[i]
		for j := range cur {
			// Half-wave rectification: only magnitude increases count.
			if d := cur[j] - prev[j]; d > 0 {
				flux += d
			}
		}
		strength[i] = flux
	}

	return &OnsetEnvelope{
		Strength:   strength,
		HopSize:    spec.HopSize,
		SampleRate: spec.SampleRate,
	}
}

// autocorrelate computes the raw autocorrelation of xs for lags in
// [minLag, maxLag]. Result index 0 corresponds to minLag.
func autocorrelate(xs []float64, minLag, maxLag int) []float64 {
	if maxLag >= len(xs) {
		maxLag = len(xs) - 1
	}
	if minLag < 1 {
		minLag = 1
	}
	if maxLag < minLag {
		return nil
	}

	// Remove the mean so a DC offset doesn't dominate every lag.
	var mean float64
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))

	out := make([]float64, maxLag-minLag+1)
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < len(xs); i++ {
			sum += (xs[i] - mean) * (xs[i+lag] - mean)
		}
		out[lag-minLag] = sum / float64(len(xs)-lag)
	}
	return out
}

// findPeaks returns indices of local maxima in xs that exceed threshold,
// keeping only the strongest peak within any minDistance span. Indices are
// returned in ascending order.
func findPeaks(xs []float64, threshold float64, minDistance int) []int {
	var candidates []int
	for i := 1; i < len(xs)-1; i++ {
		if xs[i] > threshold && xs[i] >= xs[i-1] && xs[i] > xs[i+1] {
			candidates = append(candidates, i)
		}
	}
	if minDistance <= 1 || len(candidates) == 0 {
		return candidates
	}

	// Greedy suppression: strongest first, drop anything too close.
	order := make([]int, len(candidates))
	copy(order, candidates)
	sort.Slice(order, func(a, b int) bool { return xs[order[a]] > xs[order[b]] })

	kept := make([]bool, len(xs))
	var peaks []int
	for _, idx := range order {
		tooClose := false
		for d := max(idx-minDistance, 0); d < min(idx+minDistance+1, len(xs)); d++ {
			if kept[d] {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept[idx] = true
			peaks = append(peaks, idx)
		}
	}

	sort.Ints(peaks)
	return peaks
}

// meanStd returns the mean and standard deviation of xs.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))
	var ss float64
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

// percentile returns the p-th percentile of xs (p in [0,100]) using
// nearest-rank on a sorted copy.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	idx := int(p / 100 * float64(len(sorted)-1))
	return sorted[idx]
}
