package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSections_SilenceSingleSection(t *testing.T) {
	w := silence(60)
	res, err := DetectSections(w, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, res.Sections, 1)
	sec := res.Sections[0]
	assert.Equal(t, 0.0, sec.Start)
	assert.InDelta(t, 60.0, sec.End, 0.1)
	assert.NotEmpty(t, sec.Label)
	assert.Empty(t, res.Drops)
}

func TestDetectSections_TimbralChange(t *testing.T) {
	// 30 s of a quiet low tone, then 30 s of loud noise. The timbral
	// contrast should produce a boundary near the midpoint.
	w := concat(sine(220, 0.1, 30), noise(0.9, 30, 3))
	res, err := DetectSections(w, DefaultConfig())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(res.Sections), 2)

	found := false
	for _, sec := range res.Sections[1:] {
		if sec.Start > 25 && sec.Start < 35 {
			found = true
		}
	}
	assert.True(t, found, "expected a boundary near 30s, sections: %+v", res.Sections)
}

func TestDetectSections_CoverTrackWithoutGaps(t *testing.T) {
	w := concat(sine(220, 0.1, 20), noise(0.9, 20, 4), sine(440, 0.3, 20))
	res, err := DetectSections(w, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Sections[0].Start)
	for i := 1; i < len(res.Sections); i++ {
		assert.Equal(t, res.Sections[i-1].End, res.Sections[i].Start, "sections must tile the track")
	}
	assert.InDelta(t, w.Duration(), res.Sections[len(res.Sections)-1].End, 0.1)
}

func TestDetectSections_SensitivityMonotonic(t *testing.T) {
	w := concat(sine(220, 0.1, 20), noise(0.9, 20, 5), sine(440, 0.3, 20))

	low := DefaultConfig()
	low.SectionSensitivity = 0.1
	high := DefaultConfig()
	high.SectionSensitivity = 0.9

	resLow, err := DetectSections(w, low)
	require.NoError(t, err)
	resHigh, err := DetectSections(w, high)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(resHigh.Sections), len(resLow.Sections),
		"higher sensitivity admits at least as many boundaries")
}

func TestDetectDrops(t *testing.T) {
	// 10 s quiet then a loud stretch: one drop right at the switch.
	w := concat(sine(220, 0.05, 10), noise(1.0, 10, 6))
	p, err := ComputeEnergyProfile(w, 2048, 512)
	require.NoError(t, err)

	drops := detectDrops(p, p.Mean())
	require.NotEmpty(t, drops)
	assert.InDelta(t, 10.0, drops[0], 1.5)
}

func TestDetectDrops_NoQuietStretchNoDrop(t *testing.T) {
	w := noise(0.8, 20, 8)
	p, err := ComputeEnergyProfile(w, 2048, 512)
	require.NoError(t, err)
	assert.Empty(t, detectDrops(p, p.Mean()))
}

func TestPositionEnergyLabeler(t *testing.T) {
	l := PositionEnergyLabeler{}
	dur := 300.0

	assert.Equal(t, "intro", l.Label(Section{Start: 0, End: 30, Energy: 0.6}, 0, 5, dur))
	assert.Equal(t, "outro", l.Label(Section{Start: 280, End: 300, Energy: 0.5}, 4, 5, dur))
	assert.Equal(t, "chorus", l.Label(Section{Start: 120, End: 150, Energy: 1.3}, 2, 5, dur))
	assert.Equal(t, "breakdown", l.Label(Section{Start: 150, End: 180, Energy: 0.5}, 3, 5, dur))
	assert.Equal(t, "build", l.Label(Section{Start: 90, End: 120, Energy: 1.05}, 2, 5, dur))
	assert.Equal(t, "verse", l.Label(Section{Start: 60, End: 90, Energy: 0.9}, 1, 5, dur))
}

func TestSectionLabelsAssigned(t *testing.T) {
	w := concat(sine(220, 0.1, 20), noise(0.9, 20, 9))
	res, err := DetectSections(w, DefaultConfig())
	require.NoError(t, err)
	for _, sec := range res.Sections {
		assert.NotEmpty(t, sec.Label)
	}
}

func TestDetectSections_InvalidInput(t *testing.T) {
	_, err := DetectSections(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidInput)
}
