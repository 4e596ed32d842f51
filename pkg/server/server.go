// Package server exposes the track library and its analysis over HTTP.
package server

import (
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dynamix-dj/dynamix/pkg/analysis"
	"github.com/dynamix-dj/dynamix/pkg/batch"
	"github.com/dynamix-dj/dynamix/pkg/playlist"
)

// Track is a library entry as reported by the API.
type Track struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Analyzed bool   `json:"analyzed"`
}

// Server serves a music library directory and its analysis sidecars.
type Server struct {
	musicDir string
	cfg      analysis.Config
	weights  analysis.Weights
}

// New returns a server rooted at musicDir.
func New(musicDir string, cfg analysis.Config, w analysis.Weights) *Server {
	return &Server{musicDir: musicDir, cfg: cfg, weights: w}
}

// Run starts the web server on addr.
func (s *Server) Run(addr string) error {
	return s.Echo().Start(addr)
}

// Echo builds the configured echo instance. Split out from Run so tests can
// drive the handlers through httptest.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/api/tracks", s.listTracks)
	e.GET("/api/tracks/*", s.serveTrack)
	e.GET("/api/compare", s.compareTracks)
	e.GET("/api/playlist", s.buildPlaylist)

	return e
}

// listTracks returns every track in the library and whether analysis
// exists for it.
func (s *Server) listTracks(c echo.Context) error {
	tracks := []Track{}

	err := filepath.WalkDir(s.musicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".mp3" {
			return nil
		}

		rel, err := filepath.Rel(s.musicDir, path)
		if err != nil {
			return err
		}

		track := Track{
			Name: strings.TrimSuffix(filepath.Base(path), ext),
			Path: rel,
		}
		if _, err := os.Stat(batch.SidecarPath(path)); err == nil {
			track.Analyzed = true
		}

		tracks = append(tracks, track)
		return nil
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tracks)
}

// serveTrack serves an audio file, or its analysis when the .json path is
// requested.
func (s *Server) serveTrack(c echo.Context) error {
	path := c.Param("*")
	decodedPath, err := url.PathUnescape(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path encoding")
	}

	// Security: prevent directory traversal
	if strings.Contains(decodedPath, "..") {
		return echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}
	fullPath := filepath.Join(s.musicDir, decodedPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if info.IsDir() {
		return echo.NewHTTPError(http.StatusForbidden, "cannot serve directory")
	}

	switch strings.ToLower(filepath.Ext(decodedPath)) {
	case ".mp3":
		return c.File(fullPath)
	case ".json":
		feats, err := batch.ReadSidecar(fullPath)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "invalid analysis file")
		}
		return c.JSON(http.StatusOK, feats)
	default:
		return echo.NewHTTPError(http.StatusForbidden, "file type not allowed")
	}
}

// compareTracks scores two analyzed tracks and plans the transition.
// Both tracks must have sidecars; the server never analyzes on demand.
func (s *Server) compareTracks(c echo.Context) error {
	a, err := s.loadFeatures(c.QueryParam("a"))
	if err != nil {
		return err
	}
	b, err := s.loadFeatures(c.QueryParam("b"))
	if err != nil {
		return err
	}

	score, err := analysis.Compare(a, b, s.weights)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	rec, err := analysis.Recommend(a, b, score, s.cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"score":          score,
		"recommendation": rec,
	})
}

// buildPlaylist orders all analyzed tracks along the requested energy
// curve ("build", "wave" or "peak-middle"; default "build").
func (s *Server) buildPlaylist(c echo.Context) error {
	curve := playlist.Curve(c.QueryParam("curve"))

	var tracks []playlist.Track
	err := filepath.WalkDir(s.musicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.ToLower(filepath.Ext(path)) != ".json" {
			return nil
		}
		feats, err := batch.ReadSidecar(path)
		if err != nil {
			return nil // ignore unrelated JSON files
		}
		rel, err := filepath.Rel(s.musicDir, path)
		if err != nil {
			return err
		}
		tracks = append(tracks, playlist.Track{Path: rel, Features: feats})
		return nil
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ordered, err := playlist.Order(tracks, curve)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ordered)
}

// loadFeatures resolves a query parameter to a sidecar inside the library.
func (s *Server) loadFeatures(name string) (*analysis.TrackFeatures, error) {
	if name == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "missing track parameter")
	}
	if strings.Contains(name, "..") {
		return nil, echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}

	path := filepath.Join(s.musicDir, name)
	if strings.ToLower(filepath.Ext(path)) == ".mp3" {
		path = batch.SidecarPath(path)
	}
	feats, err := batch.ReadSidecar(path)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "track not analyzed")
	}
	return feats, nil
}
