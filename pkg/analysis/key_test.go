package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Camelot(t *testing.T) {
	cases := []struct {
		key  Key
		want string
	}{
		{Key{PitchClass: 0, Mode: ModeMajor}, "8B"},  // C major
		{Key{PitchClass: 9, Mode: ModeMinor}, "8A"},  // A minor
		{Key{PitchClass: 7, Mode: ModeMajor}, "9B"},  // G major
		{Key{PitchClass: 4, Mode: ModeMinor}, "9A"},  // E minor
		{Key{PitchClass: 5, Mode: ModeMajor}, "7B"},  // F major
		{Key{PitchClass: 2, Mode: ModeMinor}, "7A"},  // D minor
		{Key{PitchClass: 1, Mode: ModeMajor}, "3B"},  // C# major
		{Key{PitchClass: 10, Mode: ModeMinor}, "3A"}, // A# minor
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.key.Camelot(), "%s", c.key)
	}
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "A minor", Key{PitchClass: 9, Mode: ModeMinor}.String())
	assert.Equal(t, "F# major", Key{PitchClass: 6, Mode: ModeMajor}.String())
}

func TestCamelotDistance(t *testing.T) {
	cMaj := Key{PitchClass: 0, Mode: ModeMajor}
	aMin := Key{PitchClass: 9, Mode: ModeMinor}
	gMaj := Key{PitchClass: 7, Mode: ModeMajor}
	fsMaj := Key{PitchClass: 6, Mode: ModeMajor}

	assert.Equal(t, 0, camelotDistance(cMaj, cMaj))
	assert.Equal(t, 0, camelotDistance(cMaj, aMin), "relative keys share a wheel position")
	assert.Equal(t, 1, camelotDistance(cMaj, gMaj))
	assert.Equal(t, 6, camelotDistance(cMaj, fsMaj), "tritone is the far side of the wheel")
}

func TestEstimateKeyFromChroma_ProfileRoundTrip(t *testing.T) {
	// Feeding a rotated reference profile back in must recover the key
	// it was rotated to, for every tonic and mode.
	profiles := keyProfiles[KeyProfileKrumhansl]
	for mode := 0; mode < 2; mode++ {
		for tonic := 0; tonic < 12; tonic++ {
			var chroma [12]float64
			for i := 0; i < 12; i++ {
				chroma[(i+tonic)%12] = profiles[mode][i]
			}
			est := estimateKeyFromChroma(chroma, KeyProfileKrumhansl)
			assert.Equal(t, tonic, est.Key.PitchClass, "tonic %d mode %d", tonic, mode)
			assert.Equal(t, Mode(mode), est.Key.Mode, "tonic %d mode %d", tonic, mode)
			assert.Greater(t, est.Confidence, 0.0)
		}
	}
}

func TestEstimateKey_CMajorChord(t *testing.T) {
	// C4, E4, G4, C5.
	w := chord([]float64{261.63, 329.63, 392.00, 523.25}, 0.6, 5)
	est, err := EstimateKey(w, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 0, est.Key.PitchClass, "expected C, got %s", est.Name)
	assert.Equal(t, ModeMajor, est.Key.Mode)
	assert.Equal(t, "8B", est.Camelot)
}

func TestEstimateKey_AMinorChord(t *testing.T) {
	// A3, C4, E4.
	w := chord([]float64{220.00, 261.63, 329.63}, 0.6, 5)
	est, err := EstimateKey(w, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 9, est.Key.PitchClass, "expected A, got %s", est.Name)
	assert.Equal(t, ModeMinor, est.Key.Mode)
}

func TestEstimateKey_Deterministic(t *testing.T) {
	w := chord([]float64{261.63, 329.63, 392.00}, 0.6, 3)
	a, err := EstimateKey(w, DefaultConfig())
	require.NoError(t, err)
	b, err := EstimateKey(w, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestEstimateKey_SilenceIsStillAnAnswer(t *testing.T) {
	// Silence has no harmonic content; the estimate is arbitrary but the
	// call must not fail and confidence must be 0.
	est, err := EstimateKey(silence(5), DefaultConfig())
	require.NoError(t, err)
	assert.Zero(t, est.Confidence)
}

func TestEstimateKey_ProfileSets(t *testing.T) {
	w := chord([]float64{261.63, 329.63, 392.00, 523.25}, 0.6, 3)
	for _, set := range []KeyProfileSet{KeyProfileKrumhansl, KeyProfileTemperley, KeyProfileEDMA} {
		cfg := DefaultConfig()
		cfg.KeyProfile = set
		est, err := EstimateKey(w, cfg)
		require.NoError(t, err)
		assert.Equal(t, 0, est.Key.PitchClass, "profile set %d should still hear C", set)
	}
}

func TestEstimateKey_InvalidInput(t *testing.T) {
	_, err := EstimateKey(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPearson(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, pearson(x, []float64{2, 4, 6, 8}), 1e-9)
	assert.InDelta(t, -1.0, pearson(x, []float64{8, 6, 4, 2}), 1e-9)
	assert.Zero(t, pearson(x, []float64{5, 5, 5, 5}))
}
