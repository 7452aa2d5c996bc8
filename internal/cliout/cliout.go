// Package cliout renders command results in the format selected by the
// global --output flag.
package cliout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Format is a structured output format for CLI commands.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// current is set once by the root command's --output flag.
var current = FormatYAML

// Set selects the process-wide output format. Unknown names fall back
// to YAML.
func Set(name string) {
	switch Format(name) {
	case FormatJSON:
		current = FormatJSON
	default:
		current = FormatYAML
	}
}

// Current returns the process-wide output format.
func Current() Format {
	return current
}

// Print renders v to stdout in the selected format.
func Print(v any) error {
	return Fprint(os.Stdout, current, v)
}

// Fprint renders v to w in the given format.
func Fprint(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
