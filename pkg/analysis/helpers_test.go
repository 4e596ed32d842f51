package analysis

import (
	"math"
	"math/rand"
)

const testSampleRate = 44100

// silence returns dur seconds of zeros.
func silence(dur float64) *Waveform {
	return &Waveform{
		Samples:    make([]float64, int(dur*testSampleRate)),
		SampleRate: testSampleRate,
	}
}

// sine returns dur seconds of a pure tone.
func sine(freq, amp, dur float64) *Waveform {
	n := int(dur * testSampleRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}
	return &Waveform{Samples: samples, SampleRate: testSampleRate}
}

// chord returns dur seconds of summed pure tones.
func chord(freqs []float64, amp, dur float64) *Waveform {
	n := int(dur * testSampleRate)
	samples := make([]float64, n)
	for i := range samples {
		var s float64
		for _, f := range freqs {
			s += math.Sin(2 * math.Pi * f * float64(i) / testSampleRate)
		}
		samples[i] = amp * s / float64(len(freqs))
	}
	return &Waveform{Samples: samples, SampleRate: testSampleRate}
}

// clicks returns dur seconds of short tone bursts every interval seconds,
// the shape of a rigid metronome.
func clicks(interval, dur float64) *Waveform {
	n := int(dur * testSampleRate)
	samples := make([]float64, n)
	burstLen := testSampleRate / 20 // 50 ms
	step := int(interval * testSampleRate)
	for start := 0; start < n; start += step {
		for i := 0; i < burstLen && start+i < n; i++ {
			decay := 1 - float64(i)/float64(burstLen)
			samples[start+i] = 0.9 * decay * math.Sin(2*math.Pi*1000*float64(i)/testSampleRate)
		}
	}
	return &Waveform{Samples: samples, SampleRate: testSampleRate}
}

// noise returns dur seconds of seeded uniform noise.
func noise(amp, dur float64, seed int64) *Waveform {
	rng := rand.New(rand.NewSource(seed))
	n := int(dur * testSampleRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * (rng.Float64()*2 - 1)
	}
	return &Waveform{Samples: samples, SampleRate: testSampleRate}
}

// concat joins waveforms sharing a sample rate.
func concat(ws ...*Waveform) *Waveform {
	var samples []float64
	for _, w := range ws {
		samples = append(samples, w.Samples...)
	}
	return &Waveform{Samples: samples, SampleRate: ws[0].SampleRate}
}
