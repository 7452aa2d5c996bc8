package main

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/doppel/internal/cliout"
	"github.com/jackzampolin/doppel/internal/store"
)

// tableCounts reports per-table row counts.
type tableCounts struct {
	Books        int64 `json:"books" yaml:"books"`
	Fingerprints int64 `json:"fingerprints" yaml:"fingerprints"`
	TextAnalysis int64 `json:"text_analysis" yaml:"text_analysis"`
	MainLanguage int64 `json:"main_language" yaml:"main_language"`
}

// statusResult is the structured output of doppel status.
type statusResult struct {
	Ready         bool         `json:"ready" yaml:"ready"`
	Hint          string       `json:"hint,omitempty" yaml:"hint,omitempty"`
	Database      string       `json:"database,omitempty" yaml:"database,omitempty"`
	DatabaseBytes int64        `json:"database_bytes,omitempty" yaml:"database_bytes,omitempty"`
	ShardBytes    int64        `json:"shard_bytes,omitempty" yaml:"shard_bytes,omitempty"`
	Tables        *tableCounts `json:"tables,omitempty" yaml:"tables,omitempty"`
	CPUCores      int          `json:"cpu_cores" yaml:"cpu_cores"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report pipeline readiness and database contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := newEnv()
		if err != nil {
			return err
		}

		out := statusResult{
			Ready:    e.home.IsReady(),
			CPUCores: runtime.NumCPU(),
		}
		if !out.Ready {
			out.Hint = "run `doppel ingest` to build the collection index"
			return cliout.Print(out)
		}

		st, err := store.Open(e.home.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		out.Database = st.Path()
		if size, err := st.Size(); err == nil {
			out.DatabaseBytes = size
		}
		out.ShardBytes = dirSize(e.shardsDir(), ".jsonl")

		var tables tableCounts
		if tables.Books, err = st.CountBooks(ctx); err != nil {
			return err
		}
		if tables.Fingerprints, err = st.CountFingerprintRows(ctx); err != nil {
			return err
		}
		if tables.TextAnalysis, err = st.CountTextAnalysis(ctx); err != nil {
			return err
		}
		if tables.MainLanguage, err = st.CountLanguages(ctx); err != nil {
			return err
		}
		out.Tables = &tables

		return cliout.Print(out)
	},
}

// dirSize sums the sizes of regular files in dir with the given
// extension. Missing directories count as zero.
func dirSize(dir, ext string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
