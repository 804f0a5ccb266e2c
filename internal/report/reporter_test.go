package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dshills/lspbench/internal/bench"
)

func sampleMeasurement() bench.Measurement {
	return bench.Measurement{
		File:        "/tmp/a.go",
		Line:        3,
		Column:      7,
		Elapsed:     12500 * time.Microsecond,
		ResultCount: 2,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"csv", FormatCSV, false},
		{"json", FormatJSON, false},
		{"", "", true},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	for _, format := range []Format{FormatText, FormatCSV, FormatJSON} {
		if _, err := New(format, &buf, "run-1"); err != nil {
			t.Errorf("New(%q) error = %v", format, err)
		}
	}

	if _, err := New("bogus", &buf, "run-1"); err == nil {
		t.Error("New(bogus) = nil error, want error")
	}
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf)

	if err := r.Report(sampleMeasurement()); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	line := buf.String()
	if !strings.HasPrefix(line, "/tmp/a.go:3:7\t") {
		t.Errorf("line = %q, want position prefix", line)
	}
	if !strings.Contains(line, "2 results") {
		t.Errorf("line = %q, want result count", line)
	}
}

func TestCSVReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewCSVReporter(&buf)

	if err := r.Report(sampleMeasurement()); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	m2 := sampleMeasurement()
	m2.Line = 4
	if err := r.Report(m2); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 records:\n%s", len(lines), buf.String())
	}
	if lines[0] != "file,line,column,elapsed_ms,results" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "/tmp/a.go,3,7,12.500,2" {
		t.Errorf("record = %q", lines[1])
	}
}

func TestCSVReporter_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	r := NewCSVReporter(&buf)

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if got := strings.TrimSpace(buf.String()); got != "file,line,column,elapsed_ms,results" {
		t.Errorf("empty run output = %q, want header row", got)
	}
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(&buf, "run-abc")

	if err := r.Report(sampleMeasurement()); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var doc struct {
		RunID        string  `json:"run_id"`
		DurationMS   float64 `json:"duration_ms"`
		Measurements []struct {
			File      string  `json:"file"`
			Line      int     `json:"line"`
			Column    int     `json:"column"`
			ElapsedMS float64 `json:"elapsed_ms"`
			Results   int     `json:"results"`
		} `json:"measurements"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}

	if doc.RunID != "run-abc" {
		t.Errorf("run_id = %q, want run-abc", doc.RunID)
	}
	if len(doc.Measurements) != 1 {
		t.Fatalf("got %d measurements, want 1", len(doc.Measurements))
	}
	m := doc.Measurements[0]
	if m.File != "/tmp/a.go" || m.Line != 3 || m.Column != 7 || m.Results != 2 {
		t.Errorf("measurement = %+v", m)
	}
	if m.ElapsedMS != 12.5 {
		t.Errorf("elapsed_ms = %v, want 12.5", m.ElapsedMS)
	}

	// A non-terminal writer gets compact output ending in a newline
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("output should end with a newline")
	}
}

func TestJSONReporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(&buf, "run-empty")

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var doc struct {
		Measurements []any `json:"measurements"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if doc.Measurements == nil || len(doc.Measurements) != 0 {
		t.Errorf("measurements = %v, want empty array", doc.Measurements)
	}
}
