package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrogram is a magnitude STFT of a waveform: Mags[frame][bin].
// A single spectrogram at Config.FrameSize feeds the onset envelope, the
// chroma vector, and the timbral features so the track is transformed once.
type Spectrogram struct {
	Mags       [][]float64
	FrameSize  int
	HopSize    int
	SampleRate int
}

// NumFrames returns the number of analysis frames.
func (s *Spectrogram) NumFrames() int { return len(s.Mags) }

// NumBins returns the number of frequency bins per frame.
func (s *Spectrogram) NumBins() int {
	if len(s.Mags) == 0 {
		return 0
	}
	return len(s.Mags[0])
}

// BinFreq returns the center frequency of bin j in Hz.
func (s *Spectrogram) BinFreq(j int) float64 {
	return float64(j) * float64(s.SampleRate) / float64(s.FrameSize)
}

// FrameTime returns the start time of frame i in seconds.
func (s *Spectrogram) FrameTime(i int) float64 {
	return float64(i*s.HopSize) / float64(s.SampleRate)
}

// FramesPerSecond returns the analysis frame rate.
func (s *Spectrogram) FramesPerSecond() float64 {
	return float64(s.SampleRate) / float64(s.HopSize)
}

// ComputeSpectrogram computes a Hann-windowed magnitude STFT. The final
// partial frame is zero-padded so short tracks still produce one frame.
func ComputeSpectrogram(w *Waveform, frameSize, hopSize int) *Spectrogram {
	window := hannWindow(frameSize)
	fft := fourier.NewFFT(frameSize)

	// Count full frames plus one zero-padded tail frame if samples remain.
	numFrames := 0
	for start := 0; start < len(w.Samples); start += hopSize {
		numFrames++
		if start+frameSize >= len(w.Samples) {
			break
		}
	}

	// Number of frequency bins (RFFT output)
	numBins := frameSize/2 + 1

	mags := make([][]float64, numFrames)
	frame := make([]float64, frameSize)

	for i := 0; i < numFrames; i++ {
		start := i * hopSize

		// Clear frame and apply window
		for j := range frame {
			frame[j] = 0
		}
		for j := 0; j < frameSize && start+j < len(w.Samples); j++ {
			frame[j] = w.Samples[start+j] * window[j]
		}

		coeffs := fft.Coefficients(nil, frame)

		// Extract magnitude for positive frequencies only (RFFT)
		// Normalize: 2/N for one-sided spectrum (except DC and Nyquist)
		scale := 2.0 / float64(frameSize)
		mags[i] = make([]float64, numBins)
		for j := 0; j < numBins; j++ {
			re := real(coeffs[j])
			im := imag(coeffs[j])
			s := scale
			if j == 0 || j == numBins-1 {
				s = 1.0 / float64(frameSize) // DC and Nyquist aren't doubled
			}
			mags[i][j] = math.Sqrt(re*re+im*im) * s
		}
	}

	return &Spectrogram{
		Mags:       mags,
		FrameSize:  frameSize,
		HopSize:    hopSize,
		SampleRate: w.SampleRate,
	}
}

// hannWindow generates a Hann window of given size.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}
