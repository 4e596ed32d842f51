// Package analysis turns decoded audio into DJ-facing track features:
// tempo, key, energy dynamics, structural sections, cue and loop points,
// and pairwise mix-compatibility scores.
package analysis

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// Waveform is a decoded mono PCM signal. Analysis functions treat it as
// read-only; a Waveform can be shared across concurrent analyses.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// NewWaveform validates and wraps a decoded sample sequence.
func NewWaveform(samples []float64, sampleRate int) (*Waveform, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty waveform", ErrInvalidInput)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidInput, sampleRate)
	}
	return &Waveform{Samples: samples, SampleRate: sampleRate}, nil
}

// Duration returns the waveform length in seconds.
func (w *Waveform) Duration() float64 {
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// LoadTrack decodes an audio file into a mono Waveform. Unsupported formats
// and decode failures are reported as ErrInvalidInput so batch callers can
// record them per track and keep going.
func LoadTrack(path string) (*Waveform, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp3" {
		return nil, fmt.Errorf("%w: unsupported audio format %s", ErrInvalidInput, ext)
	}
	samples, sampleRate, err := loadMP3Mono(path)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidInput, path, err)
	}
	return NewWaveform(samples, sampleRate)
}

// Additional samples that go-mp3 produces compared to browser's decoder
// Measured: browser first transient at 48446, go-mp3 at 50735
// LAME header said 1365, so go-mp3 adds: 50735 - 48446 - 1365 = 924 samples
const goMP3DecoderDelay = 924

// Default encoder delay if we can't read it from the LAME header
const defaultEncoderDelay = 576

// readMP3Delay reads the total delay to skip for an MP3 file.
// Combines LAME encoder delay (from header) + go-mp3 decoder delay.
func readMP3Delay(path string) int {
	lameDelay := readLAMEEncoderDelay(path)
	return lameDelay + goMP3DecoderDelay
}

// readLAMEEncoderDelay reads the encoder delay from LAME/Xing header if present.
func readLAMEEncoderDelay(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return defaultEncoderDelay
	}
	defer f.Close()

	// Read first 4KB which should contain any Xing/LAME header
	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil || n < 200 {
		return defaultEncoderDelay
	}
	buf = buf[:n]

	// Look for "LAME" marker in the Xing/Info header
	// The LAME header contains encoder delay at offset 21 from "LAME"
	lameIdx := bytes.Index(buf, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	// LAME header structure: at offset 21 from "LAME" is a 3-byte field
	// containing encoder delay (12 bits) and padding (12 bits)
	delayOffset := lameIdx + 21
	if delayOffset+3 > len(buf) {
		return defaultEncoderDelay
	}

	// Encoder delay is in the upper 12 bits of the 24-bit value
	b := buf[delayOffset : delayOffset+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)

	// Sanity check - delay should be reasonable (typically 576-1152)
	if delay < 0 || delay > 4096 {
		return defaultEncoderDelay
	}

	return delay
}

// loadMP3Mono loads an MP3 file and returns mono float64 samples.
func loadMP3Mono(path string) ([]float64, int, error) {
	// Read total delay (encoder + decoder)
	totalDelay := readMP3Delay(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	sampleRate := decoder.SampleRate()

	// Read all PCM data (16-bit stereo interleaved)
	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	// Convert to mono float64
	// MP3 decoder outputs 16-bit signed stereo (4 bytes per sample pair)
	numSamplePairs := len(pcmData) / 4
	samples := make([]float64, numSamplePairs)

	for i := 0; i < numSamplePairs; i++ {
		offset := i * 4
		// Read left and right channels as signed 16-bit
		left := int16(binary.LittleEndian.Uint16(pcmData[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcmData[offset+2:]))

		// Mix to mono and normalize to [-1, 1]
		mono := (float64(left) + float64(right)) / 2.0
		samples[i] = mono / 32768.0
	}

	// Skip delay at the start to match browser audio playback
	// Browser decoders compensate for MP3 encoder delay automatically
	if len(samples) > totalDelay {
		samples = samples[totalDelay:]
	}

	return samples, sampleRate, nil
}

// Peaks returns downsampled per-pixel max/min amplitudes for waveform
// rendering, pixelsPerSec data points per second.
func (w *Waveform) Peaks(pixelsPerSec int) (peaks, troughs []float64) {
	samplesPerPixel := w.SampleRate / pixelsPerSec
	if samplesPerPixel < 1 {
		samplesPerPixel = 1
	}
	numPixels := len(w.Samples) / samplesPerPixel
	peaks = make([]float64, numPixels)
	troughs = make([]float64, numPixels)

	for i := 0; i < numPixels; i++ {
		start := i * samplesPerPixel
		end := min(start+samplesPerPixel, len(w.Samples))

		maxVal, minVal := math.Inf(-1), math.Inf(1)
		for j := start; j < end; j++ {
			maxVal = math.Max(maxVal, w.Samples[j])
			minVal = math.Min(minVal, w.Samples[j])
		}
		peaks[i] = maxVal
		troughs[i] = minVal
	}
	return peaks, troughs
}
