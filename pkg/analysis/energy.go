package analysis

import "math"

// EnergyProfile is a framed RMS energy curve over a track.
// RMS[i] covers samples [i*HopSize, i*HopSize+FrameSize); the final partial
// frame is zero-padded so every sample contributes to exactly one tail frame.
type EnergyProfile struct {
	RMS        []float64
	FrameSize  int
	HopSize    int
	SampleRate int
}

// NumFrames returns the number of energy frames.
func (p *EnergyProfile) NumFrames() int { return len(p.RMS) }

// FrameTime returns the start time of frame i in seconds.
func (p *EnergyProfile) FrameTime(i int) float64 {
	return float64(i*p.HopSize) / float64(p.SampleRate)
}

// FrameAt returns the index of the frame whose start is nearest to t seconds,
// clamped to the valid range.
func (p *EnergyProfile) FrameAt(t float64) int {
	i := int(t*float64(p.SampleRate)/float64(p.HopSize) + 0.5)
	if i < 0 {
		return 0
	}
	if i >= len(p.RMS) {
		return len(p.RMS) - 1
	}
	return i
}

// Mean returns the mean RMS over all frames.
func (p *EnergyProfile) Mean() float64 {
	if len(p.RMS) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.RMS {
		sum += v
	}
	return sum / float64(len(p.RMS))
}

// Max returns the maximum RMS over all frames.
func (p *EnergyProfile) Max() float64 {
	var m float64
	for _, v := range p.RMS {
		if v > m {
			m = v
		}
	}
	return m
}

// Std returns the standard deviation of the RMS curve.
func (p *EnergyProfile) Std() float64 {
	if len(p.RMS) < 2 {
		return 0
	}
	mean := p.Mean()
	var ss float64
	for _, v := range p.RMS {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(p.RMS)))
}

// Normalized returns the RMS curve scaled so its maximum is 1.
// A silent track returns an all-zero copy.
func (p *EnergyProfile) Normalized() []float64 {
	out := make([]float64, len(p.RMS))
	m := p.Max()
	if m == 0 {
		return out
	}
	for i, v := range p.RMS {
		out[i] = v / m
	}
	return out
}

// ComputeEnergyProfile computes framed RMS energy with the given frame and
// hop sizes. Frames step by hop; the last frame is zero-padded past the end
// of the signal.
func ComputeEnergyProfile(w *Waveform, frameSize, hopSize int) (*EnergyProfile, error) {
	if w == nil || len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, ErrInvalidInput
	}
	if frameSize <= 0 {
		frameSize = DefaultConfig().FrameSize
	}
	if hopSize <= 0 {
		hopSize = DefaultConfig().HopSize
	}

	var rms []float64
	for start := 0; start < len(w.Samples); start += hopSize {
		end := min(start+frameSize, len(w.Samples))

		// Zero padding contributes nothing to the sum but the divisor
		// stays frameSize, matching a literal zero-padded frame.
		var sum float64
		for _, s := range w.Samples[start:end] {
			sum += s * s
		}
		rms = append(rms, math.Sqrt(sum/float64(frameSize)))

		if end == len(w.Samples) {
			break
		}
	}

	return &EnergyProfile{
		RMS:        rms,
		FrameSize:  frameSize,
		HopSize:    hopSize,
		SampleRate: w.SampleRate,
	}, nil
}

// EnergySummary condenses an energy profile into scalar statistics used by
// the compatibility engine and playlist ordering.
type EnergySummary struct {
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
	Std  float64 `json:"std"`
}

// Summary returns scalar statistics of the profile.
func (p *EnergyProfile) Summary() EnergySummary {
	return EnergySummary{Mean: p.Mean(), Max: p.Max(), Std: p.Std()}
}

// Downsample reduces the normalized RMS curve to roughly targetFPS frames
// per second by block averaging, returning the curve and its actual rate.
func (p *EnergyProfile) Downsample(targetFPS float64) ([]float64, float64) {
	fps := float64(p.SampleRate) / float64(p.HopSize)
	block := int(fps / targetFPS)
	if block < 1 {
		block = 1
	}
	norm := p.Normalized()
	var out []float64
	for start := 0; start < len(norm); start += block {
		end := min(start+block, len(norm))
		var sum float64
		for _, v := range norm[start:end] {
			sum += v
		}
		out = append(out, sum/float64(end-start))
	}
	return out, fps / float64(block)
}

// movingAverage returns the centered rolling mean of xs over a window of
// 2*half+1 frames, truncated at the edges.
func movingAverage(xs []float64, half int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		lo := max(i-half, 0)
		hi := min(i+half+1, len(xs))
		var sum float64
		for _, v := range xs[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}
