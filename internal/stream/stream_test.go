package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/rendezvous/internal/pattern"
)

func TestReader_ObjectsAndArrays(t *testing.T) {
	input := `{"brightness":0.5,"color_temp":6000,"focal_distance":0.5,"volume":0.5,"tempo":120,"pitch":440,"temperature":22,"movement":0.5,"arousal":0.5}

# comment
[0.1, 3000, 0.2, 0.3, 90, 220, 18, 0.4, 0.6]
`
	r := NewReader(strings.NewReader(input))
	patterns, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("got %d patterns, want 2", len(patterns))
	}

	want0 := pattern.Pattern{Brightness: 0.5, ColorTemp: 6000, FocalDistance: 0.5, Volume: 0.5, Tempo: 120, Pitch: 440, Temperature: 22, Movement: 0.5, Arousal: 0.5}
	if patterns[0] != want0 {
		t.Errorf("pattern[0] = %+v, want %+v", patterns[0], want0)
	}
	want1 := pattern.FromVector([pattern.NumDimensions]float32{0.1, 3000, 0.2, 0.3, 90, 220, 18, 0.4, 0.6})
	if patterns[1] != want1 {
		t.Errorf("pattern[1] = %+v, want %+v", patterns[1], want1)
	}
	if r.Line() != 4 {
		t.Errorf("Line() = %d, want 4", r.Line())
	}
}

func TestReader_LineNumbersInErrors(t *testing.T) {
	input := "[0,0,0,0,0,0,0,0,0]\n\n{\"brightness\": \"bright\"}\n[0,0,0,0,0,0,0,0,0]\n"
	r := NewReader(strings.NewReader(input))

	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}

	_, err := r.Next()
	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("Next() error = %v, want *LineError", err)
	}
	if lineErr.Line != 3 {
		t.Errorf("LineError.Line = %d, want 3", lineErr.Line)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error message %q lacks line number", err)
	}

	// Reading continues past a bad line.
	if _, err := r.Next(); err != nil {
		t.Errorf("Next() after bad line error = %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestDecodePattern_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"short array", "[1,2,3]"},
		{"long array", "[0,0,0,0,0,0,0,0,0,0]"},
		{"unknown field", `{"brightness":0.5,"loudness":1}`},
		{"not json", "brightness=0.5"},
		{"string value", `{"tempo":"fast"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePattern([]byte(tt.input)); err == nil {
				t.Errorf("DecodePattern(%q) = nil error", tt.input)
			}
		})
	}
}

func TestDecodePattern_RequiresCompleteRecord(t *testing.T) {
	full := `{"brightness":0.5,"color_temp":6000,"focal_distance":0.5,"volume":0.5,"tempo":120,"pitch":440,"temperature":22,"movement":0.5,"arousal":0.5}`
	if _, err := DecodePattern([]byte(full)); err != nil {
		t.Fatalf("complete record rejected: %v", err)
	}

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"partial object", `{"pitch": 440}`, "missing field"},
		{"null field", strings.Replace(full, `"tempo":120`, `"tempo":null`, 1), "null"},
		{"trailing object", full + ` {"pitch":1}`, "after record"},
		{"trailing garbage", full + ` x`, "after record"},
		{"trailing after array", `[0,0,0,0,0,0,0,0,0] 1`, "array"},
		{"null record", `null`, "null"},
		{"null in array", `[0,0,0,0,null,0,0,0,0]`, "null"},
		{"extra field", strings.Replace(full, `"arousal":0.5`, `"arousal":0.5,"loudness":1`, 1), "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePattern([]byte(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("DecodePattern(%q) error = %v, want substring %q", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSONL(&buf, map[string]int{"b": 2}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "{\"a\":1}\n{\"b\":2}\n" {
		t.Errorf("WriteJSONL output = %q", got)
	}
}

func TestWritePretty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePretty(&buf, pattern.Zeros()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  \"brightness\": 0") {
		t.Errorf("WritePretty output not indented: %q", buf.String())
	}
	var back pattern.Pattern
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Errorf("WritePretty output not valid JSON: %v", err)
	}
}

func TestOpenInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jsonl")
	if err := os.WriteFile(path, []byte("[0,0,0,0,0,0,0,0,0]\n"), 0600); err != nil {
		t.Fatal(err)
	}

	r, closeFn, err := OpenInput(path)
	if err != nil {
		t.Fatalf("OpenInput() error = %v", err)
	}
	defer closeFn()
	patterns, err := NewReader(r).ReadAll()
	if err != nil || len(patterns) != 1 {
		t.Errorf("ReadAll() = %v, %v", patterns, err)
	}

	stdin, closeStdin, err := OpenInput("-")
	if err != nil {
		t.Fatal(err)
	}
	if stdin != os.Stdin {
		t.Error("OpenInput(\"-\") should return stdin")
	}
	if err := closeStdin(); err != nil {
		t.Errorf("stdin close returned %v", err)
	}

	if _, _, err := OpenInput(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
