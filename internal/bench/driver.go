package bench

import (
	"context"
	"fmt"
	"os"

	"github.com/dshills/lspbench/internal/lsp"
)

// Session is the slice of the LSP client the driver needs: everything the
// simulator uses plus document opening.
type Session interface {
	LanguageSession
	OpenDocument(ctx context.Context, path, languageID, content string) error
}

// Reporter receives each Measurement as it completes. Implementations
// decide formatting; the driver never batches, so partial progress stays
// visible even if a later token hangs.
type Reporter interface {
	Report(m Measurement) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(m Measurement) error

// Report implements Reporter.
func (f ReporterFunc) Report(m Measurement) error {
	return f(m)
}

// Logger is the subset of the application logger the driver uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Driver iterates the configured files, opens each as a document, runs the
// simulator over it, and forwards measurements to the reporter.
type Driver struct {
	session  Session
	reporter Reporter
	mode     Mode

	languageID string
	log        Logger
	onReqErr   func(file string, line, col int, err error)
}

// DriverOption configures the driver.
type DriverOption func(*Driver)

// WithLanguageID fixes the declared language identifier for opened
// documents. When empty, the identifier is detected from each file's
// extension.
func WithLanguageID(id string) DriverOption {
	return func(d *Driver) {
		d.languageID = id
	}
}

// WithLogger sets the driver's logger.
func WithLogger(log Logger) DriverOption {
	return func(d *Driver) {
		d.log = log
	}
}

// WithRequestErrorHandler sets a callback for per-token request failures.
// Such tokens are skipped; the run continues.
func WithRequestErrorHandler(fn func(file string, line, col int, err error)) DriverOption {
	return func(d *Driver) {
		d.onReqErr = fn
	}
}

// NewDriver creates a driver measuring the given mode.
func NewDriver(session Session, reporter Reporter, mode Mode, opts ...DriverOption) *Driver {
	d := &Driver{
		session:  session,
		reporter: reporter,
		mode:     mode,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run benchmarks every file in order. Each file's content is read once;
// the snapshot is both the revert payload and the base for all offset
// math. A fatal session error aborts the remaining files.
func (d *Driver) Run(ctx context.Context, files []string) error {
	for _, file := range files {
		if err := d.runFile(ctx, file); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

// runFile opens one file as a document and measures every eligible token.
func (d *Driver) runFile(ctx context.Context, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	text := string(content)

	languageID := d.languageID
	if languageID == "" {
		languageID = lsp.DetectLanguageID(file)
	}

	if d.log != nil {
		d.log.Debug("opening %s (%s, %d bytes)", file, languageID, len(text))
	}

	if err := d.session.OpenDocument(ctx, file, languageID, text); err != nil {
		return err
	}

	sim := NewSimulator(d.session, d.mode)
	sim.OnRequestError = func(file string, line, col int, err error) {
		if d.log != nil {
			d.log.Warn("request failed at %s:%d:%d: %v", file, line, col, err)
		}
		if d.onReqErr != nil {
			d.onReqErr(file, line, col, err)
		}
	}

	return sim.Run(ctx, file, text, d.reporter.Report)
}
