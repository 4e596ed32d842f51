package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamix-dj/dynamix/pkg/analysis"
	"github.com/dynamix-dj/dynamix/pkg/batch"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	return New(dir, analysis.DefaultConfig(), analysis.DefaultWeights()), dir
}

func addTrack(t *testing.T, dir, name string, feats *analysis.TrackFeatures) {
	t.Helper()
	audio := filepath.Join(dir, name+".mp3")
	require.NoError(t, os.WriteFile(audio, []byte("stub audio"), 0o644))
	if feats != nil {
		require.NoError(t, batch.WriteSidecar(batch.SidecarPath(audio), feats))
	}
}

func features(bpm, energy float64, key analysis.Key) *analysis.TrackFeatures {
	return &analysis.TrackFeatures{
		Duration:   300,
		SampleRate: 44100,
		Tempo:      &analysis.TempoEstimate{BPM: bpm, Confidence: 0.9},
		Key: &analysis.KeyEstimate{
			Key:     key,
			Name:    key.String(),
			Camelot: key.Camelot(),
		},
		Energy: analysis.EnergySummary{Mean: energy},
	}
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestListTracks(t *testing.T) {
	s, dir := newTestServer(t)
	aMin := analysis.Key{PitchClass: 9, Mode: analysis.ModeMinor}
	addTrack(t, dir, "analyzed", features(124, 0.5, aMin))
	addTrack(t, dir, "raw", nil)

	rec := do(t, s, "/api/tracks")
	require.Equal(t, http.StatusOK, rec.Code)

	var tracks []Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracks))
	require.Len(t, tracks, 2)

	byName := map[string]Track{}
	for _, tr := range tracks {
		byName[tr.Name] = tr
	}
	assert.True(t, byName["analyzed"].Analyzed)
	assert.False(t, byName["raw"].Analyzed)
}

func TestListTracks_EmptyLibrary(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/api/tracks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestServeTrack_Analysis(t *testing.T) {
	s, dir := newTestServer(t)
	aMin := analysis.Key{PitchClass: 9, Mode: analysis.ModeMinor}
	addTrack(t, dir, "track", features(124, 0.5, aMin))

	rec := do(t, s, "/api/tracks/track.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var feats analysis.TrackFeatures
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feats))
	assert.Equal(t, 124.0, feats.Tempo.BPM)
	assert.Equal(t, "8A", feats.Key.Camelot)
}

func TestServeTrack_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/api/tracks/missing.mp3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeTrack_TraversalBlocked(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/api/tracks/..%2Fsecret.json")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeTrack_DisallowedType(t *testing.T) {
	s, dir := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	rec := do(t, s, "/api/tracks/notes.txt")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCompare(t *testing.T) {
	s, dir := newTestServer(t)
	aMin := analysis.Key{PitchClass: 9, Mode: analysis.ModeMinor}
	eMin := analysis.Key{PitchClass: 4, Mode: analysis.ModeMinor}
	addTrack(t, dir, "one", features(124, 0.5, aMin))
	addTrack(t, dir, "two", features(126, 0.55, eMin))

	rec := do(t, s, "/api/compare?a=one.mp3&b=two.mp3")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Score          *analysis.CompatibilityScore `json:"score"`
		Recommendation *analysis.MixRecommendation  `json:"recommendation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.Score)
	require.NotNil(t, out.Recommendation)
	assert.Greater(t, out.Score.Overall, 0.5)
	assert.NotEmpty(t, out.Recommendation.ExitPoints)
}

func TestCompare_MissingParam(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/api/compare?a=one.mp3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompare_UnanalyzedTrack(t *testing.T) {
	s, dir := newTestServer(t)
	addTrack(t, dir, "raw", nil)
	aMin := analysis.Key{PitchClass: 9, Mode: analysis.ModeMinor}
	addTrack(t, dir, "done", features(124, 0.5, aMin))

	rec := do(t, s, "/api/compare?a=done.mp3&b=raw.mp3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaylist(t *testing.T) {
	s, dir := newTestServer(t)
	aMin := analysis.Key{PitchClass: 9, Mode: analysis.ModeMinor}
	addTrack(t, dir, "calm", features(122, 0.2, aMin))
	addTrack(t, dir, "loud", features(128, 0.8, aMin))
	addTrack(t, dir, "mid", features(124, 0.5, aMin))

	rec := do(t, s, "/api/playlist?curve=build")
	require.Equal(t, http.StatusOK, rec.Code)

	var tracks []struct {
		Path     string                  `json:"path"`
		Features *analysis.TrackFeatures `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracks))
	require.Len(t, tracks, 3)

	for i := 1; i < len(tracks); i++ {
		assert.LessOrEqual(t,
			tracks[i-1].Features.Energy.Mean,
			tracks[i].Features.Energy.Mean,
			"build curve must rise")
	}
}

func TestPlaylist_UnknownCurve(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, "/api/playlist?curve=spiral")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
