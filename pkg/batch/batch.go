package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"github.com/dynamix-dj/dynamix/pkg/analysis"
)

// Result is the outcome of analyzing one track. A failed track carries its
// error here; failures never abort the batch.
type Result struct {
	Path     string
	Features *analysis.TrackFeatures
	Skipped  bool
	Err      error
}

// Options configures a batch run.
type Options struct {
	// Workers bounds concurrent analyses. Zero means NumCPU-1 (min 2).
	Workers int

	// Force re-analyzes tracks that already have a JSON sidecar.
	Force bool

	// Progress draws a progress bar on stderr.
	Progress bool

	// Config is shared read-only by all workers.
	Config analysis.Config

	// Cache, when set, skips recomputation for unchanged files.
	Cache *Cache
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	w := runtime.NumCPU() - 1
	if w < 2 {
		w = 2
	}
	return w
}

// AnalyzeDir analyzes every supported audio file under dir, writing a JSON
// sidecar next to each track. Per-track failures are recorded in the
// returned results; only walk errors and context cancellation abort the
// run. Cancellation is honored between tracks, never mid-analysis.
func AnalyzeDir(ctx context.Context, dir string, opts Options) ([]Result, error) {
	paths, err := findTracks(dir)
	if err != nil {
		return nil, err
	}
	return analyzeAll(ctx, paths, opts)
}

// AnalyzeFiles analyzes an explicit list of tracks with the same semantics
// as AnalyzeDir.
func AnalyzeFiles(ctx context.Context, paths []string, opts Options) ([]Result, error) {
	return analyzeAll(ctx, paths, opts)
}

func findTracks(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == ".mp3" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func analyzeAll(ctx context.Context, paths []string, opts Options) ([]Result, error) {
	results := make([]Result, len(paths))

	var bar *mpb.Bar
	var progress *mpb.Progress
	if opts.Progress {
		progress = mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
		bar = progress.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("Analyzing: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			// Cooperative cancellation: checked per track, the current
			// analysis always runs to completion.
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = analyzeOne(path, opts)
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}

	err := g.Wait()
	if progress != nil {
		if err != nil {
			bar.Abort(false)
		}
		progress.Wait()
	}
	if err != nil {
		return results, err
	}
	return results, nil
}

func analyzeOne(path string, opts Options) Result {
	res := Result{Path: path}

	sidecar := SidecarPath(path)
	if !opts.Force {
		if feats, err := ReadSidecar(sidecar); err == nil {
			res.Features = feats
			res.Skipped = true
			return res
		}
	}

	compute := func() (*analysis.TrackFeatures, error) {
		return analysis.AnalyzeFile(path, opts.Config)
	}

	var feats *analysis.TrackFeatures
	var err error
	if opts.Cache != nil {
		var key string
		if key, err = Fingerprint(path); err == nil {
			feats, err = opts.Cache.GetOrCompute(key, compute)
		}
	} else {
		feats, err = compute()
	}
	if err != nil {
		res.Err = err
		return res
	}

	res.Features = feats
	if err := WriteSidecar(sidecar, feats); err != nil {
		res.Err = err
	}
	return res
}

// SidecarPath returns the JSON sidecar path for an audio file.
func SidecarPath(audioPath string) string {
	ext := filepath.Ext(audioPath)
	return strings.TrimSuffix(audioPath, ext) + ".json"
}

// WriteSidecar writes track features as indented JSON.
func WriteSidecar(path string, feats *analysis.TrackFeatures) error {
	data, err := json.MarshalIndent(feats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// ReadSidecar loads track features from a JSON sidecar.
func ReadSidecar(path string) (*analysis.TrackFeatures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var feats analysis.TrackFeatures
	if err := json.Unmarshal(data, &feats); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", path, err)
	}
	return &feats, nil
}
