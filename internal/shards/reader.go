package shards

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Reader fetches single records from shard files by byte offset. It
// keeps the underlying files open across calls, so it is not safe for
// concurrent use: give every worker its own Reader.
type Reader struct {
	dir   string
	files map[string]*os.File
}

// NewReader creates a Reader rooted at the shards directory.
func NewReader(dir string) *Reader {
	return &Reader{
		dir:   dir,
		files: make(map[string]*os.File),
	}
}

// Read returns the record stored in shardFile at the given byte offset.
func (r *Reader) Read(shardFile string, offset int64) (*Record, error) {
	f, err := r.open(shardFile)
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek %s to %d: %w", shardFile, offset, err)
	}

	line, err := bufio.NewReaderSize(f, 1<<20).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read %s at %d: %w", shardFile, offset, err)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("no record in %s at %d", shardFile, offset)
	}

	var rec Record
	if err := unmarshalRecord(line, &rec); err != nil {
		return nil, fmt.Errorf("bad record in %s at %d: %w", shardFile, offset, err)
	}
	return &rec, nil
}

// Close releases all shard files held open by this Reader.
func (r *Reader) Close() error {
	var first error
	for name, f := range r.files {
		if err := f.Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close %s: %w", name, err)
		}
		delete(r.files, name)
	}
	return first
}

func (r *Reader) open(shardFile string) (*os.File, error) {
	if f, ok := r.files[shardFile]; ok {
		return f, nil
	}
	f, err := os.Open(filepath.Join(r.dir, shardFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open shard: %w", err)
	}
	r.files[shardFile] = f
	return f, nil
}

// Scanner iterates a shard file line by line, reporting the byte offset
// every record starts at so it can be indexed for random access.
type Scanner struct {
	r      *bufio.Reader
	offset int64

	line       []byte
	lineOffset int64
	err        error
}

// NewScanner wraps an open shard stream.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 1<<20)}
}

// Scan advances to the next record, skipping blank lines. It returns
// false at end of input or on error; check Err afterwards.
func (s *Scanner) Scan() bool {
	for s.err == nil {
		line, err := s.r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			s.err = err
			return false
		}

		s.lineOffset = s.offset
		s.offset += int64(len(line))

		// Strip the delimiter; the final line may not carry one.
		for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
			line = line[:len(line)-1]
		}

		if len(line) > 0 {
			s.line = line
			return true
		}
		if err == io.EOF {
			return false
		}
	}
	return false
}

// Line returns the current record line, without its trailing newline.
func (s *Scanner) Line() []byte {
	return s.line
}

// Offset returns the byte offset the current record starts at.
func (s *Scanner) Offset() int64 {
	return s.lineOffset
}

// Err returns the first error hit while scanning, excluding EOF.
func (s *Scanner) Err() error {
	return s.err
}
