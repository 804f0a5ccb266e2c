package report

import (
	"io"
	"os"
	"time"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"golang.org/x/term"

	"github.com/dshills/lspbench/internal/bench"
)

// JSONReporter collects measurements into a single JSON document written
// on Flush. When the writer is a terminal the document is pretty-printed;
// otherwise it stays compact for piping.
type JSONReporter struct {
	w       io.Writer
	runID   string
	started time.Time
	doc     string
}

// NewJSONReporter creates a JSON reporter writing to w.
func NewJSONReporter(w io.Writer, runID string) *JSONReporter {
	doc, _ := sjson.Set("{}", "run_id", runID)
	doc, _ = sjson.SetRaw(doc, "measurements", "[]")
	return &JSONReporter{
		w:       w,
		runID:   runID,
		started: time.Now(),
		doc:     doc,
	}
}

// Report implements Reporter.
func (r *JSONReporter) Report(m bench.Measurement) error {
	rec, err := sjson.Set("{}", "file", m.File)
	if err != nil {
		return err
	}
	if rec, err = sjson.Set(rec, "line", m.Line); err != nil {
		return err
	}
	if rec, err = sjson.Set(rec, "column", m.Column); err != nil {
		return err
	}
	if rec, err = sjson.Set(rec, "elapsed_ms", float64(m.Elapsed.Microseconds())/1000.0); err != nil {
		return err
	}
	if rec, err = sjson.Set(rec, "results", m.ResultCount); err != nil {
		return err
	}

	r.doc, err = sjson.SetRaw(r.doc, "measurements.-1", rec)
	return err
}

// Flush writes the collected document.
func (r *JSONReporter) Flush() error {
	doc, err := sjson.Set(r.doc, "duration_ms", float64(time.Since(r.started).Microseconds())/1000.0)
	if err != nil {
		return err
	}

	out := []byte(doc)
	if isTerminal(r.w) {
		out = pretty.Pretty(out)
	} else {
		out = append(out, '\n')
	}

	_, err = r.w.Write(out)
	return err
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
