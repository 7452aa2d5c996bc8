package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/doppel/internal/cliout"
	"github.com/jackzampolin/doppel/internal/config"
	"github.com/jackzampolin/doppel/internal/home"
	"github.com/jackzampolin/doppel/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "doppel",
	Short: "Near-duplicate detection for digitized book collections",
	Long: `Doppel finds near-duplicate volumes in a digitized book collection by
fingerprinting each volume's OCR text with SimHash and grouping exact
fingerprint matches into suspected duplicate clusters.

The pipeline:
  - Indexes OCR text shards (JSONL) for lazy per-volume access
  - Imports collaborator text-analysis and language-detection signals
  - Fingerprints every volume's shingled text
  - Collects duplicate clusters, strips likely false positives, and
    samples an evaluation sheet for human review`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.doppel/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "doppel home directory (default: ~/.doppel)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cliout.Set(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// env is what every command run needs before touching the database: the
// home directory, loaded configuration, and a logger at the configured
// level.
type env struct {
	home  *home.Dir
	cfg   *config.Manager
	log   *slog.Logger
	level *slog.LevelVar
}

// newEnv resolves the home directory and loads configuration. The
// config file comes from --config when set, then the home directory's
// config.yaml, then viper's working-directory search.
func newEnv() (*env, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	cm, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}

	level := new(slog.LevelVar)
	level.Set(logLevel(cm.Get().Log.Level))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	return &env{home: h, cfg: cm, log: logger, level: level}, nil
}

// watchConfig hot-reloads the log level while a long command runs.
func (e *env) watchConfig() {
	e.cfg.OnChange(func(c *config.Config) {
		e.level.Set(logLevel(c.Log.Level))
		e.log.Info("configuration reloaded", "log_level", c.Log.Level)
	})
	e.cfg.WatchConfig()
}

// shardsDir resolves where OCR text shards live.
func (e *env) shardsDir() string {
	dir := config.ResolveEnvVars(e.cfg.Get().Ingest.ShardsDir)
	if dir == "" {
		dir = e.home.ShardsDir()
	}
	return dir
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
