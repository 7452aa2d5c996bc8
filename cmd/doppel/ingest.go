package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/doppel/internal/cliout"
	"github.com/jackzampolin/doppel/internal/ingest"
	"github.com/jackzampolin/doppel/internal/store"
)

var (
	ingestAnalysisCSV  string
	ingestLanguagesCSV string
)

// ingestResult is the combined structured output of one ingest run.
type ingestResult struct {
	Shards       int64 `json:"shards" yaml:"shards"`
	Books        int64 `json:"books" yaml:"books"`
	AnalysisRows int64 `json:"analysis_rows" yaml:"analysis_rows"`
	LanguageRows int64 `json:"language_rows" yaml:"language_rows"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [shard.jsonl ...]",
	Short: "Index OCR text shards and import collaborator signals",
	Long: `Ingest indexes book records from OCR text shards (JSONL) so later
passes can read any volume's text by seeking its byte offset. Every
record is validated against the shard schema and the first invalid
record aborts the run.

Shard files are named on the command line (resolved inside the shards
directory) or discovered automatically when no names are given. Safe to
re-run after a collection update: records are refreshed in place.

Once the index is built the collection is marked ready and the
fingerprint and duplicates commands unlock.

Examples:
  doppel ingest                          # Index every *.jsonl in the shards dir
  doppel ingest VIEW_FULL-0001.jsonl     # Index one shard
  doppel ingest --analysis analysis.csv --languages languages.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := newEnv()
		if err != nil {
			return err
		}
		if err := e.home.EnsureExists(); err != nil {
			return err
		}

		st, err := store.Open(e.home.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.InitSchema(ctx); err != nil {
			return err
		}

		opts := ingest.Options{Logger: e.log}

		res, err := ingest.IndexShards(ctx, st, e.shardsDir(), args, opts)
		if err != nil {
			return err
		}
		if err := e.home.SetReady(true); err != nil {
			return err
		}

		out := ingestResult{Shards: res.Shards, Books: res.Books}

		if ingestAnalysisCSV != "" {
			n, err := ingest.ImportAnalysis(ctx, st, ingestAnalysisCSV, opts)
			if err != nil {
				return err
			}
			out.AnalysisRows = n
		}
		if ingestLanguagesCSV != "" {
			n, err := ingest.ImportLanguages(ctx, st, ingestLanguagesCSV, opts)
			if err != nil {
				return err
			}
			out.LanguageRows = n
		}

		return cliout.Print(out)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestAnalysisCSV, "analysis", "", "text-analysis CSV export to import")
	ingestCmd.Flags().StringVar(&ingestLanguagesCSV, "languages", "", "language-detection CSV export to import")

	rootCmd.AddCommand(ingestCmd)
}
