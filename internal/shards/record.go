// Package shards reads OCR text shards: JSONL files holding one record
// per scanned book. Records are large (a whole book's text), so the
// database only indexes their byte offsets and the text is read back
// lazily on demand.
package shards

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Record is one shard line: a book's barcode and its OCR text split by
// page.
type Record struct {
	Barcode    string   `json:"barcode"`
	TextByPage []string `json:"text_by_page"`
}

// MergedText joins the per-page OCR text with newlines into the single
// blob the fingerprinting pass consumes.
func (r *Record) MergedText() string {
	return strings.Join(r.TextByPage, "\n")
}

// recordSchema is what every shard line must look like. Producers
// occasionally emit nulls for unscanned pages, so pages may be null and
// are treated as empty.
const recordSchema = `{
	"type": "object",
	"required": ["barcode", "text_by_page"],
	"properties": {
		"barcode": {
			"type": "string",
			"minLength": 1
		},
		"text_by_page": {
			"type": "array",
			"items": {
				"type": ["string", "null"]
			}
		}
	}
}`

// Validator checks raw shard lines against the record schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the record schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.json", strings.NewReader(recordSchema)); err != nil {
		return nil, fmt.Errorf("failed to load record schema: %w", err)
	}
	schema, err := compiler.Compile("record.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile record schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Parse validates one shard line and decodes it into a Record. Null
// pages come back as empty strings.
func (v *Validator) Parse(line []byte) (*Record, error) {
	var doc any
	if err := json.Unmarshal(line, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("record does not match schema: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

// unmarshalRecord decodes a shard line without schema validation: the
// ingest pass validates every line, so the read-back path trusts its
// own index.
func unmarshalRecord(line []byte, rec *Record) error {
	if err := json.Unmarshal(line, rec); err != nil {
		return err
	}
	if rec.Barcode == "" {
		return fmt.Errorf("record has no barcode")
	}
	return nil
}

// shardNamePattern matches shard file names of the form
// {TRANCHE}-{NNNN}.jsonl, e.g. VIEW_FULL-0214.jsonl.
var shardNamePattern = regexp.MustCompile(`^(.+)-\d+\.jsonl$`)

// TrancheFromFilename extracts the tranche encoded in a shard file name,
// or "" when the name does not follow the convention.
func TrancheFromFilename(name string) string {
	m := shardNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}
