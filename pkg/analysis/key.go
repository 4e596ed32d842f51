package analysis

import (
	"fmt"
	"math"
)

// Mode distinguishes major from minor keys.
type Mode int

const (
	ModeMajor Mode = iota
	ModeMinor
)

func (m Mode) String() string {
	if m == ModeMinor {
		return "minor"
	}
	return "major"
}

// KeyProfileSet selects the reference pitch-class profiles the key
// estimator correlates against.
type KeyProfileSet int

const (
	// KeyProfileKrumhansl is the classic Krumhansl-Schmuckler probe-tone
	// profile set.
	KeyProfileKrumhansl KeyProfileSet = iota
	// KeyProfileTemperley is Temperley's revision, weighted toward
	// scale-degree presence.
	KeyProfileTemperley
	// KeyProfileEDMA is tuned for electronic dance music.
	KeyProfileEDMA
)

// Profiles are indexed by pitch class relative to the tonic.
var keyProfiles = map[KeyProfileSet][2][12]float64{
	KeyProfileKrumhansl: {
		{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88},
		{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17},
	},
	KeyProfileTemperley: {
		{0.748, 0.060, 0.488, 0.082, 0.670, 0.460, 0.096, 0.715, 0.104, 0.366, 0.057, 0.400},
		{0.712, 0.084, 0.474, 0.618, 0.049, 0.460, 0.105, 0.747, 0.404, 0.067, 0.133, 0.330},
	},
	KeyProfileEDMA: {
		{0.16519551, 0.04749026, 0.08293076, 0.06687112, 0.09994645, 0.09274123, 0.05294487, 0.13159476, 0.05218986, 0.07443653, 0.06940723, 0.0642515},
		{0.17235348, 0.05336489, 0.0761009, 0.10043649, 0.05621498, 0.08527853, 0.0497915, 0.13451001, 0.07458916, 0.05003023, 0.07139424, 0.05593526},
	},
}

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Key is a musical key: a tonic pitch class (0 = C) and a mode.
type Key struct {
	PitchClass int  `json:"pitch_class"`
	Mode       Mode `json:"mode"`
}

// String returns the conventional key name, e.g. "A minor".
func (k Key) String() string {
	return fmt.Sprintf("%s %s", pitchClassNames[k.PitchClass%12], k.Mode)
}

// Camelot returns the key's position on the Camelot wheel, e.g. "8A" for
// A minor. Minor keys carry the letter A and sit at the Camelot number of
// their relative major; major keys carry B.
func (k Key) Camelot() string {
	pc := k.PitchClass % 12
	letter := "B"
	if k.Mode == ModeMinor {
		pc = (pc + 3) % 12 // relative major
		letter = "A"
	}
	fifths := pc * 7 % 12
	number := (8+fifths-1)%12 + 1
	return fmt.Sprintf("%d%s", number, letter)
}

// camelotNumber returns just the wheel position 1-12.
func (k Key) camelotNumber() int {
	pc := k.PitchClass % 12
	if k.Mode == ModeMinor {
		pc = (pc + 3) % 12
	}
	fifths := pc * 7 % 12
	return (8+fifths-1)%12 + 1
}

// camelotDistance is the circular distance between two keys' wheel
// positions, in [0,6].
func camelotDistance(a, b Key) int {
	d := a.camelotNumber() - b.camelotNumber()
	if d < 0 {
		d = -d
	}
	if d > 6 {
		d = 12 - d
	}
	return d
}

// KeyEstimate is the result of key analysis.
type KeyEstimate struct {
	Key     Key    `json:"key"`
	Name    string `json:"name"`
	Camelot string `json:"camelot"`

	// Confidence in [0,1] is the gap between the best and second-best
	// profile correlations, normalized by the best-to-worst spread.
	Confidence float64 `json:"confidence"`

	// Chroma is the track-averaged 12-bin pitch-class energy vector.
	Chroma [12]float64 `json:"chroma"`
}

// Chroma frequency bounds. Below 65 Hz pitch-class mapping is unreliable at
// 2048-sample resolution; above 4 kHz harmonics smear across classes.
const (
	chromaMinHz = 65.0
	chromaMaxHz = 4000.0
	chromaRefHz = 261.63 // C4
)

// EstimateKey estimates the musical key of a waveform by correlating its
// average chroma vector against 24 rotated reference profiles. The
// estimate is deterministic for identical input.
func EstimateKey(w *Waveform, cfg Config) (*KeyEstimate, error) {
	if w == nil || len(w.Samples) == 0 || w.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: key estimation needs a decoded waveform", ErrInvalidInput)
	}
	cfg = cfg.withDefaults()

	spec := ComputeSpectrogram(w, cfg.FrameSize, cfg.HopSize)
	chroma := averageChroma(spec)
	return estimateKeyFromChroma(chroma, cfg.KeyProfile), nil
}

// averageChroma folds spectrogram bins into 12 pitch classes and averages
// over all frames.
func averageChroma(spec *Spectrogram) [12]float64 {
	var chroma [12]float64
	for _, frame := range spec.Mags {
		for j := 1; j < len(frame); j++ {
			freq := spec.BinFreq(j)
			if freq < chromaMinHz || freq > chromaMaxHz {
				continue
			}
			// Pitch class from semitone distance to C4.
			semis := 12 * math.Log2(freq/chromaRefHz)
			pc := int(math.Round(semis)) % 12
			if pc < 0 {
				pc += 12
			}
			chroma[pc] += frame[j]
		}
	}
	if n := len(spec.Mags); n > 0 {
		for i := range chroma {
			chroma[i] /= float64(n)
		}
	}
	return chroma
}

func estimateKeyFromChroma(chroma [12]float64, set KeyProfileSet) *KeyEstimate {
	profiles, ok := keyProfiles[set]
	if !ok {
		profiles = keyProfiles[KeyProfileKrumhansl]
	}

	best, second, worst := math.Inf(-1), math.Inf(-1), math.Inf(1)
	var bestKey Key
	for mode := 0; mode < 2; mode++ {
		for tonic := 0; tonic < 12; tonic++ {
			var rotated [12]float64
			for i := 0; i < 12; i++ {
				rotated[i] = chroma[(i+tonic)%12]
			}
			r := pearson(rotated[:], profiles[mode][:])
			if r > best {
				second = best
				best = r
				bestKey = Key{PitchClass: tonic, Mode: Mode(mode)}
			} else if r > second {
				second = r
			}
			if r < worst {
				worst = r
			}
		}
	}

	conf := 0.0
	if spread := best - worst; spread > 0 {
		conf = (best - second) / spread
	}
	if conf < 0 || math.IsNaN(conf) {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return &KeyEstimate{
		Key:        bestKey,
		Name:       bestKey.String(),
		Camelot:    bestKey.Camelot(),
		Confidence: conf,
		Chroma:     chroma,
	}
}

// pearson computes the Pearson correlation coefficient of two equal-length
// vectors. A zero-variance vector yields 0.
func pearson(x, y []float64) float64 {
	mx, sx := meanStd(x)
	my, sy := meanStd(y)
	if sx == 0 || sy == 0 {
		return 0
	}
	var sum float64
	for i := range x {
		sum += (x[i] - mx) * (y[i] - my)
	}
	return sum / (float64(len(x)) * sx * sy)
}
