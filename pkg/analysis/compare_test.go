package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeatures(bpm float64, key Key, energy float64) *TrackFeatures {
	return &TrackFeatures{
		Duration:   240,
		SampleRate: 44100,
		Tempo:      &TempoEstimate{BPM: bpm, Confidence: 0.9},
		Key:        &KeyEstimate{Key: key, Name: key.String(), Camelot: key.Camelot(), Confidence: 0.8},
		Energy:     EnergySummary{Mean: energy, Max: energy * 1.5, Std: energy * 0.2},
	}
}

func TestCompare_IdenticalTracks(t *testing.T) {
	f := testFeatures(124, Key{PitchClass: 9, Mode: ModeMinor}, 0.4)
	score, err := Compare(f, f, DefaultWeights())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, score.BPMScore, 1e-9)
	assert.InDelta(t, 1.0, score.KeyScore, 1e-9)
	assert.InDelta(t, 1.0, score.EnergyScore, 1e-9)
	assert.InDelta(t, 1.0, score.Overall, 1e-9)
	assert.Equal(t, "excellent", score.Verdict)
}

func TestCompare_Symmetric(t *testing.T) {
	a := testFeatures(120, Key{PitchClass: 0, Mode: ModeMajor}, 0.3)
	b := testFeatures(128, Key{PitchClass: 7, Mode: ModeMajor}, 0.5)

	ab, err := Compare(a, b, DefaultWeights())
	require.NoError(t, err)
	ba, err := Compare(b, a, DefaultWeights())
	require.NoError(t, err)

	assert.Equal(t, ab.Overall, ba.Overall)
	assert.Equal(t, ab.BPMScore, ba.BPMScore)
	assert.Equal(t, ab.KeyScore, ba.KeyScore)
	assert.Equal(t, ab.EnergyScore, ba.EnergyScore)
}

func TestBPMScore(t *testing.T) {
	// Identical tempos score 1; the score decreases with distance and
	// hits the 0.9 knee at the tolerance boundary.
	assert.InDelta(t, 1.0, bpmScore(120, 120, 0.08), 1e-9)

	s1 := bpmScore(120, 124, 0.08)
	s2 := bpmScore(120, 130, 0.08)
	s3 := bpmScore(120, 150, 0.08)
	assert.Greater(t, s1, s2)
	assert.Greater(t, s2, s3)
	assert.Greater(t, s1, 0.9)
	assert.Less(t, s3, 0.5)

	// 120 vs 130 is an 8% relative difference, right at tolerance.
	assert.InDelta(t, 0.9, s2, 0.01)
}

func TestBPMScore_FarApartIsZero(t *testing.T) {
	assert.Zero(t, bpmScore(80, 160, 0.08))
}

func TestKeyScore(t *testing.T) {
	cMaj := Key{PitchClass: 0, Mode: ModeMajor}
	aMin := Key{PitchClass: 9, Mode: ModeMinor}
	gMaj := Key{PitchClass: 7, Mode: ModeMajor}
	eMin := Key{PitchClass: 4, Mode: ModeMinor}
	dMaj := Key{PitchClass: 2, Mode: ModeMajor}
	fsMaj := Key{PitchClass: 6, Mode: ModeMajor}

	assert.InDelta(t, 1.0, keyScore(cMaj, cMaj), 1e-9)
	assert.InDelta(t, 0.8, keyScore(cMaj, aMin), 1e-9, "relative major/minor")
	assert.InDelta(t, 0.8, keyScore(cMaj, gMaj), 1e-9, "adjacent same mode")
	assert.InDelta(t, 0.5, keyScore(cMaj, eMin), 1e-9, "adjacent cross mode")
	assert.InDelta(t, 0.4, keyScore(cMaj, dMaj), 1e-9, "two steps")
	assert.InDelta(t, 0.2, keyScore(cMaj, fsMaj), 1e-9, "tritone floor")
}

func TestEnergyScore(t *testing.T) {
	assert.InDelta(t, 1.0, energyScore(0.4, 0.4), 1e-9)
	assert.InDelta(t, 0.5, energyScore(0.2, 0.4), 1e-9)
	assert.InDelta(t, 1.0, energyScore(0, 0), 1e-9, "two silent tracks are trivially compatible")
	assert.Zero(t, energyScore(0, 0.4))
}

func TestVerdictBuckets(t *testing.T) {
	assert.Equal(t, "excellent", verdict(0.85))
	assert.Equal(t, "good", verdict(0.7))
	assert.Equal(t, "moderate", verdict(0.5))
	assert.Equal(t, "low", verdict(0.2))
}

func TestCompare_WeightsShiftOverall(t *testing.T) {
	a := testFeatures(120, Key{PitchClass: 0, Mode: ModeMajor}, 0.4)
	b := testFeatures(120, Key{PitchClass: 6, Mode: ModeMajor}, 0.4)

	bpmHeavy := Weights{BPM: 1.0, Key: 0.01, Energy: 0.01, BPMTolerance: 0.08}
	keyHeavy := Weights{BPM: 0.01, Key: 1.0, Energy: 0.01, BPMTolerance: 0.08}

	sBPM, err := Compare(a, b, bpmHeavy)
	require.NoError(t, err)
	sKey, err := Compare(a, b, keyHeavy)
	require.NoError(t, err)

	assert.Greater(t, sBPM.Overall, sKey.Overall,
		"clashing keys should only hurt when key weight dominates")
}

func TestCompare_InvalidInput(t *testing.T) {
	ok := testFeatures(120, Key{}, 0.4)

	_, err := Compare(nil, ok, DefaultWeights())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Compare(ok, &TrackFeatures{Duration: 100}, DefaultWeights())
	assert.ErrorIs(t, err, ErrInvalidInput)

	noTempo := testFeatures(120, Key{}, 0.4)
	noTempo.Tempo = nil
	_, err = Compare(ok, noTempo, DefaultWeights())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecommend_Basics(t *testing.T) {
	a := testFeatures(124, Key{PitchClass: 9, Mode: ModeMinor}, 0.4)
	b := testFeatures(125, Key{PitchClass: 9, Mode: ModeMinor}, 0.4)

	score, err := Compare(a, b, DefaultWeights())
	require.NoError(t, err)

	rec, err := Recommend(a, b, score, DefaultConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ExitPoints)
	assert.NotEmpty(t, rec.EntryPoints)
	assert.GreaterOrEqual(t, rec.SuggestedDurationSec, 4.0)
	assert.LessOrEqual(t, rec.SuggestedDurationSec, 24.0)
	assert.False(t, rec.BPMSyncRequired, "1 BPM apart needs no sync")
	assert.NotEmpty(t, rec.Notes)
}

func TestRecommend_BPMSyncRequired(t *testing.T) {
	a := testFeatures(120, Key{}, 0.4)
	b := testFeatures(132, Key{}, 0.4)

	score, err := Compare(a, b, DefaultWeights())
	require.NoError(t, err)
	rec, err := Recommend(a, b, score, DefaultConfig())
	require.NoError(t, err)

	assert.True(t, rec.BPMSyncRequired)
}

func TestRecommend_BetterScoreLongerBlend(t *testing.T) {
	a := testFeatures(124, Key{PitchClass: 9, Mode: ModeMinor}, 0.4)
	good := testFeatures(124, Key{PitchClass: 9, Mode: ModeMinor}, 0.4)
	bad := testFeatures(80, Key{PitchClass: 3, Mode: ModeMajor}, 0.05)

	sGood, err := Compare(a, good, DefaultWeights())
	require.NoError(t, err)
	sBad, err := Compare(a, bad, DefaultWeights())
	require.NoError(t, err)

	recGood, err := Recommend(a, good, sGood, DefaultConfig())
	require.NoError(t, err)
	recBad, err := Recommend(a, bad, sBad, DefaultConfig())
	require.NoError(t, err)

	assert.Greater(t, recGood.SuggestedDurationSec, recBad.SuggestedDurationSec)
}

func TestRecommend_ExitPointsInTrailingWindow(t *testing.T) {
	// A 240 s track with a pronounced energy valley near the end.
	a := testFeatures(124, Key{PitchClass: 9, Mode: ModeMinor}, 0.4)
	curve := make([]float64, 480) // 2 fps over 240 s
	for i := range curve {
		curve[i] = 0.8
	}
	for i := 450; i < 460; i++ {
		curve[i] = 0.1 // valley at 225-230 s
	}
	a.EnergyCurve = curve
	a.CurveFPS = 2

	b := testFeatures(124, Key{PitchClass: 9, Mode: ModeMinor}, 0.4)
	score, err := Compare(a, b, DefaultWeights())
	require.NoError(t, err)
	rec, err := Recommend(a, b, score, DefaultConfig())
	require.NoError(t, err)

	require.NotEmpty(t, rec.ExitPoints)
	for _, p := range rec.ExitPoints {
		assert.GreaterOrEqual(t, p, 240.0-DefaultConfig().ExitLookbackMax)
		assert.LessOrEqual(t, p, 240.0)
	}
}

func TestRecommend_InvalidInput(t *testing.T) {
	f := testFeatures(120, Key{}, 0.4)
	_, err := Recommend(nil, f, &CompatibilityScore{}, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Recommend(f, f, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidInput)
}
