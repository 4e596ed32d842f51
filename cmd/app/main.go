// CLI for track analysis, mix compatibility and playlist building.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dynamix-dj/dynamix/pkg/analysis"
	"github.com/dynamix-dj/dynamix/pkg/batch"
	"github.com/dynamix-dj/dynamix/pkg/playlist"
	"github.com/dynamix-dj/dynamix/pkg/server"
)

var rootCmd = &cobra.Command{
	Use:   "dynamix",
	Short: "DJ track analysis and mix planning",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <directory>",
	Short: "Analyze audio files and create JSON sidecars",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		workers, _ := cmd.Flags().GetInt("workers")
		return runAnalyze(cmd, args[0], force, workers)
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <trackA> <trackB>",
	Short: "Score mix compatibility of two analyzed tracks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompare(args[0], args[1])
	},
}

var playlistCmd = &cobra.Command{
	Use:   "playlist <directory>",
	Short: "Order analyzed tracks into a set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		curve, _ := cmd.Flags().GetString("curve")
		budget, _ := cmd.Flags().GetFloat64("budget")
		harmonic, _ := cmd.Flags().GetBool("harmonic")
		return runPlaylist(cmd, args[0], curve, budget, harmonic)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve <directory>",
	Short: "Start web server on :8080",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return runServe(args[0], addr)
	},
}

func init() {
	analyzeCmd.Flags().BoolP("force", "f", false, "Force re-analysis even if JSON exists")
	analyzeCmd.Flags().IntP("workers", "w", 0, "Concurrent analyses (default NumCPU-1)")
	playlistCmd.Flags().String("curve", "build", "Energy curve: build, wave, peak-middle")
	playlistCmd.Flags().Float64("budget", 0, "Set duration budget in seconds (0 = no limit)")
	playlistCmd.Flags().Bool("harmonic", false, "Order by pairwise compatibility instead of energy only")
	playlistCmd.Flags().String("out", "", "Write the set list with transitions to a JSON file")
	serveCmd.Flags().String("addr", ":8080", "Listen address")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(playlistCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, dir string, force bool, workers int) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := batch.AnalyzeDir(ctx, dir, batch.Options{
		Workers:  workers,
		Force:    force,
		Progress: true,
		Config:   analysis.DefaultConfig(),
		Cache:    batch.NewCache(),
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Printf("%s: error: %v\n", r.Path, r.Err)
		case r.Skipped:
			fmt.Printf("%s: skipped (already analyzed)\n", r.Path)
		default:
			f := r.Features
			fmt.Printf("%s: %.1f BPM (%s), key %s, %d cues, %d loops\n",
				r.Path, f.Tempo.BPM, f.Sections.Sections[0].Label,
				f.Key.Camelot, len(f.Cues), len(f.Loops))
		}
	}
	if failed > 0 {
		fmt.Printf("%d of %d tracks failed\n", failed, len(results))
	}
	return nil
}

func runCompare(pathA, pathB string) error {
	a, err := batch.ReadSidecar(batch.SidecarPath(pathA))
	if err != nil {
		return fmt.Errorf("read analysis for %s (run analyze first): %w", pathA, err)
	}
	b, err := batch.ReadSidecar(batch.SidecarPath(pathB))
	if err != nil {
		return fmt.Errorf("read analysis for %s (run analyze first): %w", pathB, err)
	}

	score, err := analysis.Compare(a, b, analysis.DefaultWeights())
	if err != nil {
		return err
	}
	rec, err := analysis.Recommend(a, b, score, analysis.DefaultConfig())
	if err != nil {
		return err
	}

	fmt.Printf("BPM:    %.2f (%.1f vs %.1f)\n", score.BPMScore, a.Tempo.BPM, b.Tempo.BPM)
	fmt.Printf("Key:    %.2f (%s vs %s)\n", score.KeyScore, a.Key.Camelot, b.Key.Camelot)
	fmt.Printf("Energy: %.2f\n", score.EnergyScore)
	fmt.Printf("Overall: %.2f (%s)\n", score.Overall, score.Verdict)
	fmt.Printf("Blend:  %.0f s", rec.SuggestedDurationSec)
	if rec.BPMSyncRequired {
		fmt.Print(", BPM sync required")
	}
	fmt.Println()
	for _, note := range rec.Notes {
		fmt.Printf("  - %s\n", note)
	}
	return nil
}

func runPlaylist(cmd *cobra.Command, dir, curve string, budget float64, harmonic bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reuse sidecars; only unanalyzed tracks cost anything here.
	results, err := batch.AnalyzeDir(ctx, dir, batch.Options{
		Progress: true,
		Config:   analysis.DefaultConfig(),
		Cache:    batch.NewCache(),
	})
	if err != nil {
		return err
	}
	tracks := playlist.FromResults(results)
	if len(tracks) == 0 {
		return fmt.Errorf("no analyzable tracks in %s", dir)
	}

	ordered, err := playlist.BuildSetList(tracks, budget, playlist.Curve(curve))
	if err != nil {
		return err
	}
	if harmonic {
		if ordered, err = playlist.OrderCompatible(ordered, analysis.DefaultWeights()); err != nil {
			return err
		}
	}

	transitions, err := playlist.PlanTransitions(ordered, analysis.DefaultWeights(), analysis.DefaultConfig())
	if err != nil {
		return err
	}

	for i, tr := range ordered {
		f := tr.Features
		fmt.Printf("%2d. %s  %.1f BPM  %s  energy %.2f\n",
			i+1, tr.Name(), f.Tempo.BPM, f.Key.Camelot, f.Energy.Mean)
		if i < len(transitions) {
			t := transitions[i]
			fmt.Printf("      -> %s blend, %.0f s\n", t.Score.Verdict, t.Plan.SuggestedDurationSec)
		}
	}

	out, _ := cmd.Flags().GetString("out")
	if out != "" {
		data, err := json.MarshalIndent(map[string]any{
			"tracks":      ordered,
			"transitions": transitions,
		}, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("write playlist: %w", err)
		}
	}
	return nil
}

func runServe(musicDir, addr string) error {
	s := server.New(musicDir, analysis.DefaultConfig(), analysis.DefaultWeights())
	return s.Run(addr)
}
