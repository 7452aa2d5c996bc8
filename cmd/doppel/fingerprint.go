package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/doppel/internal/cliout"
	"github.com/jackzampolin/doppel/internal/generate"
	"github.com/jackzampolin/doppel/internal/store"
)

var (
	fpShingleWidth int
	fpOverwrite    bool
	fpOffset       int
	fpLimit        int
	fpMaxWorkers   int
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Fingerprint the collection's OCR text",
	Long: `Fingerprint computes a 64-bit fingerprint from every volume's OCR
text. Volumes with no usable text get a null fingerprint; volumes
already fingerprinted are skipped unless --overwrite is set, so an
interrupted run resumes where it stopped.

Volumes written in scripts without word segmentation (Chinese,
Japanese, Thai, ...) are shingled one rune at a time regardless of the
configured width.

Examples:
  doppel fingerprint                    # Whole collection, one worker per core
  doppel fingerprint --overwrite        # Recompute everything
  doppel fingerprint --offset 0 --limit 1000 --max-workers 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := newEnv()
		if err != nil {
			return err
		}
		if err := e.home.CheckReady(); err != nil {
			return err
		}
		e.watchConfig()

		cfg := e.cfg.Get()
		opts := generate.Options{
			Offset:         fpOffset,
			Limit:          fpLimit,
			ShingleWidth:   cfg.Generate.ShingleWidth,
			Overwrite:      fpOverwrite,
			Workers:        cfg.Generate.MaxWorkers,
			WriteBatchSize: cfg.Generate.WriteBatchSize,
			Logger:         e.log,
		}
		// Flags take precedence over config when set explicitly.
		if cmd.Flags().Changed("shingle-width") {
			opts.ShingleWidth = fpShingleWidth
		}
		if cmd.Flags().Changed("max-workers") {
			opts.Workers = fpMaxWorkers
		}

		st, err := store.Open(e.home.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := generate.Run(ctx, st, e.shardsDir(), opts)
		if err != nil {
			return err
		}
		return cliout.Print(res)
	},
}

func init() {
	fingerprintCmd.Flags().IntVar(&fpShingleWidth, "shingle-width", 7, "runes per shingle")
	fingerprintCmd.Flags().BoolVar(&fpOverwrite, "overwrite", false, "recompute volumes that already have a fingerprint")
	fingerprintCmd.Flags().IntVar(&fpOffset, "offset", 0, "skip this many leading volumes (barcode order)")
	fingerprintCmd.Flags().IntVar(&fpLimit, "limit", 0, "process at most this many volumes (0 = all)")
	fingerprintCmd.Flags().IntVar(&fpMaxWorkers, "max-workers", 0, "parallel workers (0 = one per CPU core)")

	rootCmd.AddCommand(fingerprintCmd)
}
