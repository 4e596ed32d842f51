package analysis

// Config holds the tunable parameters for track analysis.
// All values have documented defaults; zero-value fields are replaced by
// their defaults via withDefaults, so Config{} is always usable.
type Config struct {
	// FrameSize is the analysis window in samples.
	// Default: 2048
	FrameSize int

	// HopSize is the step between analysis frames in samples.
	// Default: 512
	HopSize int

	// MinBPM and MaxBPM bound the tempo search range.
	// Defaults: 60, 200
	MinBPM float64
	MaxBPM float64

	// RefBPMLow and RefBPMHigh define the reference tempo band used to
	// break ties between equally confident tempo candidates. The band
	// defaults to 120-128, the typical range for house and techno.
	RefBPMLow  float64
	RefBPMHigh float64

	// KeyProfile selects the reference key profile set.
	// Default: KeyProfileKrumhansl
	KeyProfile KeyProfileSet

	// SectionSensitivity in [0,1] scales the novelty threshold for
	// structural boundary detection. Higher values detect more
	// boundaries. Default: 0.5
	SectionSensitivity float64

	// CueSensitivity in [0,1] scales the onset threshold for cue point
	// detection. Higher values lower the threshold, yielding more
	// candidate cues. Default: 0.7
	CueSensitivity float64

	// MinLoopSec and MaxLoopSec bound suggested loop durations.
	// Defaults: 4.0, 16.0
	MinLoopSec float64
	MaxLoopSec float64

	// Labeler assigns section labels to detected segments.
	// Default: PositionEnergyLabeler
	Labeler SectionLabeler

	// ExitLookbackMin and ExitLookbackMax bound the trailing window of
	// track A scanned for exit points, in seconds. The window is 10% of
	// the track length clamped to these bounds. Defaults: 10, 30
	ExitLookbackMin float64
	ExitLookbackMax float64

	// SyncTolerance is the relative BPM difference above which
	// recommendations flag that tempo sync is required. Default: 0.03
	SyncTolerance float64
}

// DefaultConfig returns the default analysis configuration.
func DefaultConfig() Config {
	return Config{
		FrameSize:          2048,
		HopSize:            512,
		MinBPM:             60,
		MaxBPM:             200,
		RefBPMLow:          120,
		RefBPMHigh:         128,
		KeyProfile:         KeyProfileKrumhansl,
		SectionSensitivity: 0.5,
		CueSensitivity:     0.7,
		MinLoopSec:         4.0,
		MaxLoopSec:         16.0,
		Labeler:            PositionEnergyLabeler{},
		ExitLookbackMin:    10,
		ExitLookbackMax:    30,
		SyncTolerance:      0.03,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = def.FrameSize
	}
	if cfg.HopSize <= 0 {
		cfg.HopSize = def.HopSize
	}
	if cfg.MinBPM <= 0 {
		cfg.MinBPM = def.MinBPM
	}
	if cfg.MaxBPM <= cfg.MinBPM {
		cfg.MaxBPM = def.MaxBPM
	}
	if cfg.RefBPMLow <= 0 {
		cfg.RefBPMLow = def.RefBPMLow
	}
	if cfg.RefBPMHigh <= cfg.RefBPMLow {
		cfg.RefBPMHigh = def.RefBPMHigh
	}
	if cfg.SectionSensitivity <= 0 {
		cfg.SectionSensitivity = def.SectionSensitivity
	}
	if cfg.CueSensitivity <= 0 {
		cfg.CueSensitivity = def.CueSensitivity
	}
	if cfg.MinLoopSec <= 0 {
		cfg.MinLoopSec = def.MinLoopSec
	}
	if cfg.MaxLoopSec <= cfg.MinLoopSec {
		cfg.MaxLoopSec = def.MaxLoopSec
	}
	if cfg.Labeler == nil {
		cfg.Labeler = def.Labeler
	}
	if cfg.ExitLookbackMin <= 0 {
		cfg.ExitLookbackMin = def.ExitLookbackMin
	}
	if cfg.ExitLookbackMax <= cfg.ExitLookbackMin {
		cfg.ExitLookbackMax = def.ExitLookbackMax
	}
	if cfg.SyncTolerance <= 0 {
		cfg.SyncTolerance = def.SyncTolerance
	}
	return cfg
}

// Weights controls how the three compatibility sub-scores combine into the
// overall score. The defaults mirror the classic 40/30/30 split; they are
// documented starting points, not calibrated against real DJ judgments.
type Weights struct {
	// BPM, Key and Energy weight the respective sub-scores.
	// Defaults: 0.4, 0.3, 0.3
	BPM    float64
	Key    float64
	Energy float64

	// BPMTolerance is the relative tempo difference below which the BPM
	// sub-score stays near 1. Default: 0.08
	BPMTolerance float64
}

// DefaultWeights returns the default compatibility weights.
func DefaultWeights() Weights {
	return Weights{BPM: 0.4, Key: 0.3, Energy: 0.3, BPMTolerance: 0.08}
}

func (w Weights) withDefaults() Weights {
	if w.BPM <= 0 && w.Key <= 0 && w.Energy <= 0 {
		def := DefaultWeights()
		w.BPM, w.Key, w.Energy = def.BPM, def.Key, def.Energy
	}
	if w.BPMTolerance <= 0 {
		w.BPMTolerance = DefaultWeights().BPMTolerance
	}
	return w
}
