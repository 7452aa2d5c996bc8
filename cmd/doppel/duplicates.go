package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/doppel/internal/cliout"
	"github.com/jackzampolin/doppel/internal/cluster"
	"github.com/jackzampolin/doppel/internal/report"
	"github.com/jackzampolin/doppel/internal/store"
)

var (
	dupSamples    int
	dupOut        string
	dupMaxWorkers int
)

// duplicatesResult pairs the evaluation sheet location with collection
// level duplicate counts.
type duplicatesResult struct {
	Sheet           string          `json:"sheet" yaml:"sheet"`
	SampledClusters int             `json:"sampled_clusters" yaml:"sampled_clusters"`
	Summary         *report.Summary `json:"summary" yaml:"summary"`
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Report near-duplicate clusters for review",
	Long: `Duplicates groups volumes sharing a fingerprint, strips likely false
positives (language mismatches, text-length outliers), and writes an
evaluation sheet CSV: one sampled cluster per row with up to 20
reference URLs a reviewer can open side by side.

Requires fingerprints plus imported text-analysis and language signals.

Examples:
  doppel duplicates                     # Sheet written into {home}/exports
  doppel duplicates --samples 250 --out /tmp/eval.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := newEnv()
		if err != nil {
			return err
		}
		if err := e.home.CheckReady(); err != nil {
			return err
		}

		cfg := e.cfg.Get()
		workers := cfg.Filter.MaxWorkers
		if cmd.Flags().Changed("max-workers") {
			workers = dupMaxWorkers
		}
		samples := cfg.Report.Samples
		if cmd.Flags().Changed("samples") {
			samples = dupSamples
		}

		st, err := store.Open(e.home.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		groups, err := cluster.Duplicates(ctx, st, cluster.Options{
			Workers: workers,
			Filter: cluster.FilterOptions{
				LengthTolerance: cfg.Filter.LengthTolerance,
				LengthFloor:     cfg.Filter.LengthFloor,
			},
			Logger: e.log,
		})
		if err != nil {
			return err
		}

		outPath := dupOut
		if outPath == "" {
			name := fmt.Sprintf("duplicates-%s.csv", time.Now().Format("2006-01-02-150405"))
			outPath = filepath.Join(e.home.ExportsDir(), name)
		}

		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create evaluation sheet: %w", err)
		}
		written, err := report.WriteEvalSheet(f, groups, report.SheetOptions{
			Samples:         samples,
			URLTemplate:     cfg.Report.URLTemplate,
			ViewableTranche: cfg.Report.ViewableTranche,
		})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		e.log.Info("wrote evaluation sheet", "path", outPath, "clusters", written)

		summary, err := report.Summarize(ctx, st, groups)
		if err != nil {
			return err
		}

		return cliout.Print(duplicatesResult{
			Sheet:           outPath,
			SampledClusters: written,
			Summary:         summary,
		})
	},
}

func init() {
	duplicatesCmd.Flags().IntVar(&dupSamples, "samples", 100, "clusters sampled into the evaluation sheet")
	duplicatesCmd.Flags().StringVar(&dupOut, "out", "", "evaluation sheet path (default: {home}/exports/duplicates-<timestamp>.csv)")
	duplicatesCmd.Flags().IntVar(&dupMaxWorkers, "max-workers", 0, "parallel filter workers (0 = one per CPU core)")

	rootCmd.AddCommand(duplicatesCmd)
}
