package home

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotReady reports that the collection has not been ingested yet.
var ErrNotReady = errors.New("collection is not ready")

const (
	// DefaultDirName is the default name for the doppel home directory.
	DefaultDirName = ".doppel"

	// DatabaseDirName is the subdirectory holding the SQLite database.
	DatabaseDirName = "database"

	// DatabaseFileName is the SQLite database file name.
	DatabaseFileName = "doppel.db"

	// ShardsDirName is the subdirectory for OCR text shards (JSONL).
	ShardsDirName = "shards"

	// ExportsDirName is the subdirectory for generated reports.
	ExportsDirName = "exports"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// readyFileName marks the pipeline as ingested and ready for batch
	// commands.
	readyFileName = "ready.check"

	// readyContent is what the marker file must contain to count.
	readyContent = "READY"
)

// Dir represents the doppel home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.doppel).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DatabaseDir returns the path to the database directory.
func (d *Dir) DatabaseDir() string {
	return filepath.Join(d.path, DatabaseDirName)
}

// DatabasePath returns the path to the SQLite database file.
func (d *Dir) DatabasePath() string {
	return filepath.Join(d.DatabaseDir(), DatabaseFileName)
}

// ShardsDir returns the directory OCR text shards are read from.
func (d *Dir) ShardsDir() string {
	return filepath.Join(d.path, ShardsDirName)
}

// ExportsDir returns the directory reports are written to.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, ExportsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ReadyPath returns the path to the readiness marker file.
func (d *Dir) ReadyPath() string {
	return filepath.Join(d.path, readyFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.DatabaseDir(), d.ShardsDir(), d.ExportsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// SetReady writes or removes the readiness marker. Batch commands refuse
// to run until ingest has marked the pipeline ready.
func (d *Dir) SetReady(ready bool) error {
	if !ready {
		if err := os.Remove(d.ReadyPath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove readiness marker: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(d.ReadyPath(), []byte(readyContent), 0o644); err != nil {
		return fmt.Errorf("failed to write readiness marker: %w", err)
	}
	return nil
}

// IsReady reports whether the readiness marker is present and intact.
func (d *Dir) IsReady() bool {
	data, err := os.ReadFile(d.ReadyPath())
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == readyContent
}

// CheckReady returns ErrNotReady unless the readiness marker is present.
func (d *Dir) CheckReady() error {
	if !d.IsReady() {
		return fmt.Errorf("%w: run `doppel ingest` first", ErrNotReady)
	}
	return nil
}
