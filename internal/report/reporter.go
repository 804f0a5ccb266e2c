// Package report renders completed measurements. Formatting is entirely
// this package's concern: the driver hands over each Measurement as it is
// produced and never looks at it again.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dshills/lspbench/internal/bench"
)

// Format names an output format.
type Format string

const (
	// FormatText writes one human-readable line per measurement.
	FormatText Format = "text"
	// FormatCSV writes delimited records with a header row.
	FormatCSV Format = "csv"
	// FormatJSON collects measurements into a single JSON document.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatCSV, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, csv, or json)", s)
	}
}

// Reporter renders measurements. Flush must be called after the last
// Report; some formats buffer until then.
type Reporter interface {
	Report(m bench.Measurement) error
	Flush() error
}

// New returns a reporter for the given format writing to w. The runID tags
// JSON output so runs can be told apart when collected.
func New(format Format, w io.Writer, runID string) (Reporter, error) {
	switch format {
	case FormatText:
		return NewTextReporter(w), nil
	case FormatCSV:
		return NewCSVReporter(w), nil
	case FormatJSON:
		return NewJSONReporter(w, runID), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// TextReporter writes one human-readable line per measurement.
type TextReporter struct {
	w io.Writer
}

// NewTextReporter creates a text reporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// Report implements Reporter.
func (r *TextReporter) Report(m bench.Measurement) error {
	_, err := fmt.Fprintf(r.w, "%s:%d:%d\t%s\t%d results\n",
		m.File, m.Line, m.Column, m.Elapsed, m.ResultCount)
	return err
}

// Flush implements Reporter. Text output is unbuffered.
func (r *TextReporter) Flush() error {
	return nil
}

// CSVReporter writes delimited records, header first.
type CSVReporter struct {
	w           *csv.Writer
	wroteHeader bool
}

// csvHeader names the record columns.
var csvHeader = []string{"file", "line", "column", "elapsed_ms", "results"}

// NewCSVReporter creates a CSV reporter writing to w.
func NewCSVReporter(w io.Writer) *CSVReporter {
	return &CSVReporter{w: csv.NewWriter(w)}
}

// writeHeader emits the header row once.
func (r *CSVReporter) writeHeader() error {
	if r.wroteHeader {
		return nil
	}
	r.wroteHeader = true
	return r.w.Write(csvHeader)
}

// Report implements Reporter.
func (r *CSVReporter) Report(m bench.Measurement) error {
	if err := r.writeHeader(); err != nil {
		return err
	}

	record := []string{
		m.File,
		strconv.Itoa(m.Line),
		strconv.Itoa(m.Column),
		strconv.FormatFloat(float64(m.Elapsed.Microseconds())/1000.0, 'f', 3, 64),
		strconv.Itoa(m.ResultCount),
	}
	if err := r.w.Write(record); err != nil {
		return err
	}

	// Flush per record so partial progress survives a hung server
	r.w.Flush()
	return r.w.Error()
}

// Flush implements Reporter. A run with no measurements still gets the
// header row, so the column set stays visible in the output.
func (r *CSVReporter) Flush() error {
	if err := r.writeHeader(); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}
