package shards

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeShard writes lines to a shard file under dir and returns the byte
// offset each line starts at.
func writeShard(t *testing.T, dir, name string, lines []string) []int64 {
	t.Helper()

	var sb strings.Builder
	offsets := make([]int64, len(lines))
	for i, line := range lines {
		offsets[i] = int64(sb.Len())
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("failed to write shard: %v", err)
	}
	return offsets
}

func TestReaderReadsRecordAtOffset(t *testing.T) {
	dir := t.TempDir()
	offsets := writeShard(t, dir, "VIEW_FULL-0001.jsonl", []string{
		`{"barcode": "b1", "text_by_page": ["page one", "page two"]}`,
		`{"barcode": "b2", "text_by_page": ["alone"]}`,
		`{"barcode": "b3", "text_by_page": []}`,
	})

	r := NewReader(dir)
	defer r.Close()

	rec, err := r.Read("VIEW_FULL-0001.jsonl", offsets[1])
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if rec.Barcode != "b2" {
		t.Errorf("barcode = %q, want b2", rec.Barcode)
	}
	if got := rec.MergedText(); got != "alone" {
		t.Errorf("merged text = %q, want alone", got)
	}

	// Reads can jump backwards; the Reader reuses the open handle.
	rec, err = r.Read("VIEW_FULL-0001.jsonl", offsets[0])
	if err != nil {
		t.Fatalf("second Read failed: %v", err)
	}
	if rec.Barcode != "b1" {
		t.Errorf("barcode = %q, want b1", rec.Barcode)
	}
	if got := rec.MergedText(); got != "page one\npage two" {
		t.Errorf("merged text = %q, want pages joined by newline", got)
	}
}

func TestReaderEmptyPages(t *testing.T) {
	dir := t.TempDir()
	offsets := writeShard(t, dir, "VIEW_FULL-0001.jsonl", []string{
		`{"barcode": "b1", "text_by_page": []}`,
		`{"barcode": "b2", "text_by_page": [null, "text", null]}`,
	})

	r := NewReader(dir)
	defer r.Close()

	rec, err := r.Read("VIEW_FULL-0001.jsonl", offsets[0])
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := rec.MergedText(); got != "" {
		t.Errorf("merged text of empty book = %q, want empty", got)
	}

	// Null pages degrade to empty strings, keeping page alignment.
	rec, err = r.Read("VIEW_FULL-0001.jsonl", offsets[1])
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := rec.MergedText(); got != "\ntext\n" {
		t.Errorf("merged text = %q, want \"\\ntext\\n\"", got)
	}
}

func TestReaderErrors(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "VIEW_FULL-0001.jsonl", []string{
		`{"barcode": "b1", "text_by_page": ["x"]}`,
	})

	r := NewReader(dir)
	defer r.Close()

	if _, err := r.Read("missing.jsonl", 0); err == nil {
		t.Error("expected an error for a missing shard")
	}
	if _, err := r.Read("VIEW_FULL-0001.jsonl", 9999); err == nil {
		t.Error("expected an error for an offset past the end")
	}
	// Offset into the middle of a record yields garbage JSON.
	if _, err := r.Read("VIEW_FULL-0001.jsonl", 3); err == nil {
		t.Error("expected an error for a misaligned offset")
	}
}

func TestScannerTracksOffsets(t *testing.T) {
	lines := []string{
		`{"barcode": "b1", "text_by_page": ["a"]}`,
		`{"barcode": "b2", "text_by_page": ["b"]}`,
		`{"barcode": "b3", "text_by_page": ["c"]}`,
	}
	input := strings.Join(lines, "\n") + "\n"

	sc := NewScanner(strings.NewReader(input))
	var got []int64
	var want int64
	for i := 0; sc.Scan(); i++ {
		if string(sc.Line()) != lines[i] {
			t.Errorf("line %d = %q, want %q", i, sc.Line(), lines[i])
		}
		got = append(got, sc.Offset())
		if sc.Offset() != want {
			t.Errorf("offset %d = %d, want %d", i, sc.Offset(), want)
		}
		want += int64(len(lines[i]) + 1)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("scanned %d lines, want 3", len(got))
	}
}

func TestScannerNoTrailingNewline(t *testing.T) {
	sc := NewScanner(strings.NewReader(`{"barcode": "b1", "text_by_page": []}`))
	if !sc.Scan() {
		t.Fatal("expected one record")
	}
	if sc.Scan() {
		t.Error("expected exactly one record")
	}
	if err := sc.Err(); err != nil {
		t.Errorf("scan error: %v", err)
	}
}

func TestScannerSkipsBlankLines(t *testing.T) {
	input := "\n" + `{"barcode": "b1", "text_by_page": []}` + "\n\n" +
		`{"barcode": "b2", "text_by_page": []}` + "\n\n"

	sc := NewScanner(strings.NewReader(input))
	var barcodes []string
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	for sc.Scan() {
		rec, err := v.Parse(sc.Line())
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		barcodes = append(barcodes, rec.Barcode)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(barcodes) != 2 || barcodes[0] != "b1" || barcodes[1] != "b2" {
		t.Errorf("scanned %v, want [b1 b2]", barcodes)
	}
}

func TestValidatorRejectsBadRecords(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	tests := []struct {
		name string
		line string
		ok   bool
	}{
		{"valid", `{"barcode": "b1", "text_by_page": ["x"]}`, true},
		{"null pages allowed", `{"barcode": "b1", "text_by_page": [null]}`, true},
		{"extra fields allowed", `{"barcode": "b1", "text_by_page": [], "tranche": "VIEW_FULL"}`, true},
		{"missing barcode", `{"text_by_page": ["x"]}`, false},
		{"empty barcode", `{"barcode": "", "text_by_page": ["x"]}`, false},
		{"missing pages", `{"barcode": "b1"}`, false},
		{"pages not an array", `{"barcode": "b1", "text_by_page": "x"}`, false},
		{"numeric page", `{"barcode": "b1", "text_by_page": [42]}`, false},
		{"not json", `barcode=b1`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Parse([]byte(tt.line))
			if tt.ok && err != nil {
				t.Errorf("Parse(%q) failed: %v", tt.line, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.line)
			}
		})
	}
}

func TestTrancheFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"VIEW_FULL-0214.jsonl", "VIEW_FULL"},
		{"VIEW_SEARCH-0001.jsonl", "VIEW_SEARCH"},
		{"NO_VIEW-12.jsonl", "NO_VIEW"},
		{"books.jsonl", ""},
		{"VIEW_FULL-abc.jsonl", ""},
		{"VIEW_FULL-0214.csv", ""},
	}
	for _, tt := range tests {
		if got := TrancheFromFilename(tt.name); got != tt.want {
			t.Errorf("TrancheFromFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
