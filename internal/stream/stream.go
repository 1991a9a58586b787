// Package stream reads and writes line-delimited JSON records.
//
// A measurement line is either a pattern object with all nine fields
//
//	{"brightness":0.6,"color_temp":6500,...}
//
// or a nine-element array in canonical dimension order. Blank lines and
// lines starting with '#' are skipped.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/rendezvous/internal/pattern"
)

// maxLineBytes bounds a single record.
const maxLineBytes = 1 << 20

// LineError reports a record that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Reader decodes measurement patterns one line at a time.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &Reader{scanner: scanner}
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// Next returns the next pattern, or io.EOF when the input is exhausted.
// Decode failures are returned as *LineError and reading may continue.
func (r *Reader) Next() (pattern.Pattern, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		p, err := DecodePattern(line)
		if err != nil {
			return pattern.Pattern{}, &LineError{Line: r.line, Err: err}
		}
		return p, nil
	}
	if err := r.scanner.Err(); err != nil {
		return pattern.Pattern{}, fmt.Errorf("reading line %d: %w", r.line+1, err)
	}
	return pattern.Pattern{}, io.EOF
}

// ReadAll reads every pattern, stopping at the first error.
func (r *Reader) ReadAll() ([]pattern.Pattern, error) {
	var patterns []pattern.Pattern
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return patterns, nil
		}
		if err != nil {
			return patterns, err
		}
		patterns = append(patterns, p)
	}
}

// dimensionIndex maps a JSON field name to its position in canonical order.
var dimensionIndex = func() map[string]int {
	m := make(map[string]int, pattern.NumDimensions)
	for i, d := range pattern.Dimensions {
		m[d.Name] = i
	}
	return m
}()

// DecodePattern parses one JSON object or nine-element array. Objects must
// carry every dimension with a numeric value; nothing may follow the record.
func DecodePattern(data []byte) (pattern.Pattern, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return pattern.Pattern{}, errors.New("empty record")
	}

	if data[0] == '[' {
		var values []*float32
		if err := json.Unmarshal(data, &values); err != nil {
			return pattern.Pattern{}, fmt.Errorf("decoding array: %w", err)
		}
		if len(values) != pattern.NumDimensions {
			return pattern.Pattern{}, fmt.Errorf("expected %d values, got %d", pattern.NumDimensions, len(values))
		}
		var v [pattern.NumDimensions]float32
		for i, value := range values {
			if value == nil {
				return pattern.Pattern{}, fmt.Errorf("value %d is null", i)
			}
			v[i] = *value
		}
		return pattern.FromVector(v), nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var fields map[string]*float32
	if err := dec.Decode(&fields); err != nil {
		return pattern.Pattern{}, fmt.Errorf("decoding object: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return pattern.Pattern{}, errors.New("unexpected data after record")
	}
	if fields == nil {
		return pattern.Pattern{}, errors.New("record is null")
	}

	var v [pattern.NumDimensions]float32
	for name, value := range fields {
		i, ok := dimensionIndex[name]
		if !ok {
			return pattern.Pattern{}, fmt.Errorf("unknown field %q", name)
		}
		if value == nil {
			return pattern.Pattern{}, fmt.Errorf("field %q is null", name)
		}
		v[i] = *value
	}
	for _, d := range pattern.Dimensions {
		if _, ok := fields[d.Name]; !ok {
			return pattern.Pattern{}, fmt.Errorf("missing field %q", d.Name)
		}
	}
	return pattern.FromVector(v), nil
}

// WriteJSONL writes v as a single JSON line.
func WriteJSONL(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WritePretty writes v as indented JSON followed by a newline.
func WritePretty(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// OpenInput opens path for reading. "-" and "" mean stdin, in which case
// the returned close function does nothing.
func OpenInput(path string) (io.Reader, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return f, f.Close, nil
}
