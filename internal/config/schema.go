package config

// Config holds doppel configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Generate GenerateCfg `mapstructure:"generate" yaml:"generate"`
	Filter   FilterCfg   `mapstructure:"filter" yaml:"filter"`
	Report   ReportCfg   `mapstructure:"report" yaml:"report"`
	Ingest   IngestCfg   `mapstructure:"ingest" yaml:"ingest"`
	Log      LogCfg      `mapstructure:"log" yaml:"log"`
}

// GenerateCfg configures the fingerprint pass.
type GenerateCfg struct {
	ShingleWidth   int `mapstructure:"shingle_width" yaml:"shingle_width"`       // Runes per shingle
	MaxWorkers     int `mapstructure:"max_workers" yaml:"max_workers"`           // 0 = number of CPU cores
	WriteBatchSize int `mapstructure:"write_batch_size" yaml:"write_batch_size"` // Fingerprints per database flush
}

// FilterCfg configures the false-positive filters applied to duplicate
// clusters.
type FilterCfg struct {
	// LengthTolerance is the multiplicative band around the cluster's
	// median text length; members outside [median/t, median*t] are
	// dropped. 1.15 means +/-15%.
	LengthTolerance float64 `mapstructure:"length_tolerance" yaml:"length_tolerance"`
	// LengthFloor widens the band to at least +/-N characters when > 0.
	LengthFloor int64 `mapstructure:"length_floor" yaml:"length_floor"`
	MaxWorkers  int   `mapstructure:"max_workers" yaml:"max_workers"`
}

// ReportCfg configures the duplicate evaluation sheet.
type ReportCfg struct {
	Samples     int    `mapstructure:"samples" yaml:"samples"`           // Clusters sampled per sheet
	URLTemplate string `mapstructure:"url_template" yaml:"url_template"` // One %s, replaced by the barcode
	// ViewableTranche restricts sampling to clusters whose members are
	// all in this tranche, so a reviewer can open every referenced scan.
	// Empty disables the restriction.
	ViewableTranche string `mapstructure:"viewable_tranche" yaml:"viewable_tranche"`
}

// IngestCfg configures shard discovery.
type IngestCfg struct {
	// ShardsDir is where OCR text shards live (supports ${ENV_VAR}
	// syntax). Empty means {home}/shards.
	ShardsDir string `mapstructure:"shards_dir" yaml:"shards_dir"`
}

// LogCfg configures process logging.
type LogCfg struct {
	Level string `mapstructure:"level" yaml:"level"` // "debug", "info", "warn", "error"
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Generate: GenerateCfg{
			ShingleWidth:   7,
			MaxWorkers:     0,
			WriteBatchSize: 1000,
		},
		Filter: FilterCfg{
			LengthTolerance: 1.15,
			LengthFloor:     0,
			MaxWorkers:      0,
		},
		Report: ReportCfg{
			Samples:         100,
			URLTemplate:     "https://babel.hathitrust.org/cgi/pt?id=hvd.%s",
			ViewableTranche: "VIEW_FULL",
		},
		Ingest: IngestCfg{
			ShardsDir: "",
		},
		Log: LogCfg{
			Level: "info",
		},
	}
}
