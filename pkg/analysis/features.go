package analysis

import "fmt"

// TrackFeatures is the complete analysis result for one track. It is the
// unit stored in JSON sidecars and exchanged with the compatibility and
// playlist engines.
type TrackFeatures struct {
	Path       string  `json:"path,omitempty"`
	Title      string  `json:"title,omitempty"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`

	Tempo    *TempoEstimate   `json:"tempo"`
	Key      *KeyEstimate     `json:"key"`
	Energy   EnergySummary    `json:"energy"`
	Sections *SectionAnalysis `json:"sections"`
	Cues     []CuePoint       `json:"cues"`
	Loops    []LoopSuggestion `json:"loops"`

	// EnergyCurve is the normalized RMS curve downsampled to CurveFPS
	// frames per second, kept so transition planning works from a stored
	// sidecar without re-decoding the audio.
	EnergyCurve []float64 `json:"energy_curve,omitempty"`
	CurveFPS    float64   `json:"curve_fps,omitempty"`
}

// valid reports whether the features carry everything the compatibility
// engine needs.
func (f *TrackFeatures) valid() bool {
	return f != nil && f.Tempo != nil && f.Key != nil &&
		f.Tempo.BPM > 0 && f.Duration > 0
}

// Analyze runs the full analysis pipeline on a waveform: energy profile,
// tempo, key, sections, cues and loops. The track is transformed once; the
// spectrogram and envelopes are shared across all estimators.
//
// Analysis is all-or-nothing: on error no partial TrackFeatures is
// returned. Low confidence is reported in the result, never as an error.
func Analyze(w *Waveform, cfg Config) (*TrackFeatures, error) {
	if w == nil || len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: analysis needs a decoded waveform", ErrInvalidInput)
	}
	cfg = cfg.withDefaults()

	spec := ComputeSpectrogram(w, cfg.FrameSize, cfg.HopSize)
	onsets := ComputeOnsetEnvelope(spec)
	energy, err := ComputeEnergyProfile(w, cfg.FrameSize, cfg.HopSize)
	if err != nil {
		return nil, err
	}

	tempo := estimateTempoFromEnvelopes(onsets, energy.RMS, cfg)
	key := estimateKeyFromChroma(averageChroma(spec), cfg.KeyProfile)
	sections := detectSectionsFromFeatures(spec, energy, w.Duration(), cfg)
	cues := detectCuesFromFeatures(onsets, energy, sections, cfg)
	loops := suggestLoopsFromFeatures(tempo, onsets, energy, w.Duration(), cfg)

	curve, curveFPS := energy.Downsample(2)

	return &TrackFeatures{
		Duration:    w.Duration(),
		SampleRate:  w.SampleRate,
		Tempo:       tempo,
		Key:         key,
		Energy:      energy.Summary(),
		Sections:    sections,
		Cues:        cues,
		Loops:       loops,
		EnergyCurve: curve,
		CurveFPS:    curveFPS,
	}, nil
}

// AnalyzeFile loads and analyzes a track from disk, recording its path in
// the result.
func AnalyzeFile(path string, cfg Config) (*TrackFeatures, error) {
	w, err := LoadTrack(path)
	if err != nil {
		return nil, err
	}
	feats, err := Analyze(w, cfg)
	if err != nil {
		return nil, err
	}
	feats.Path = path
	return feats, nil
}
