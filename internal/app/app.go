package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/dshills/lspbench/internal/bench"
	"github.com/dshills/lspbench/internal/config"
	"github.com/dshills/lspbench/internal/lsp"
	"github.com/dshills/lspbench/internal/report"
)

// App owns one benchmark run: it spawns the server, drives every input
// file through the simulator, and renders the measurements.
type App struct {
	cfg     config.Config
	logger  *Logger
	metrics *Metrics
	runID   string

	output io.Writer
}

// Option configures the App.
type Option func(*App)

// WithLogOutput redirects the run log.
func WithLogOutput(w io.Writer) Option {
	return func(a *App) {
		a.logger.SetOutput(w)
	}
}

// WithOutput redirects the measurement report (defaults to stdout).
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.output = w
	}
}

// New validates the configuration and builds an App.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := NewLogger(LoggerConfig{
		Level:  ParseLogLevel(cfg.LogLevel),
		Output: os.Stderr,
		Prefix: "lspbench",
	})

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(),
		runID:   uuid.NewString(),
		output:  os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Logger returns the run logger.
func (a *App) Logger() *Logger {
	return a.logger
}

// Metrics returns the run metrics.
func (a *App) Metrics() *Metrics {
	return a.metrics
}

// RunID returns the unique identifier of this run.
func (a *App) RunID() string {
	return a.runID
}

// Run executes the benchmark end to end. It returns the first fatal
// error; per-token request failures are logged and skipped.
func (a *App) Run(ctx context.Context) error {
	log := a.logger

	folders := make([]lsp.WorkspaceFolder, 0, len(a.cfg.WorkspaceRoots))
	for _, root := range a.cfg.WorkspaceRoots {
		folders = append(folders, lsp.WorkspaceFolderFromPath(root))
	}

	client := lsp.NewClient(lsp.ServerConfig{
		Command:        a.cfg.ServerCommand,
		Args:           a.cfg.ServerArgs,
		RequestTimeout: a.cfg.RequestTimeout,
	}, folders)

	client.OnProtocolError(func(err error) {
		log.WithComponent("transport").Warn("dropped frame: %v", err)
	})

	log.Info("run %s: starting %s", a.runID, a.cfg.ServerCommand)
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	defer func() {
		if err := client.Shutdown(context.Background()); err != nil {
			log.Warn("shutdown: %v", err)
		}
	}()

	if info := client.ServerInfo(); info != nil {
		log.Info("server: %s %s", info.Name, info.Version)
	}

	reporter, err := report.New(a.cfg.Format, a.output, a.runID)
	if err != nil {
		return err
	}

	// Record each measurement in the metrics on its way to the reporter.
	seen := make(map[string]struct{})
	recording := bench.ReporterFunc(func(m bench.Measurement) error {
		if _, ok := seen[m.File]; !ok {
			seen[m.File] = struct{}{}
			a.metrics.RecordFile()
		}
		a.metrics.RecordMeasurement(m.Elapsed, m.ResultCount)
		return reporter.Report(m)
	})

	driver := bench.NewDriver(client, recording, a.cfg.Mode,
		bench.WithLanguageID(a.cfg.LanguageID),
		bench.WithLogger(log.WithComponent("driver")),
		bench.WithRequestErrorHandler(func(file string, line, col int, err error) {
			a.metrics.RecordFailure()
		}),
	)

	runErr := driver.Run(ctx, a.cfg.Files)

	if err := reporter.Flush(); err != nil {
		log.Error("flushing report: %v", err)
		if runErr == nil {
			runErr = err
		}
	}

	a.logSummary()
	return runErr
}

// logSummary logs one line describing what the run measured.
func (a *App) logSummary() {
	s := a.metrics.Snapshot()
	a.logger.Info("run %s: %d measurements across %d files in %s (avg %.2fms, %d failures)",
		a.runID, s.MeasurementCount, s.FileCount, s.Duration.Round(1e6),
		s.AvgElapsedMs(), s.FailureCount)
}
