// Package config assembles and validates the benchmark configuration from
// defaults, an optional TOML file, environment variables, and command-line
// flags, in that order of increasing precedence. Validation happens before
// the server process is spawned; the rest of the program consumes an
// already-validated value.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dshills/lspbench/internal/bench"
	"github.com/dshills/lspbench/internal/report"
)

// Config is the validated benchmark configuration.
type Config struct {
	// Files are the input files to benchmark, in order.
	Files []string

	// ServerCommand and ServerArgs spawn the language server under test.
	ServerCommand string
	ServerArgs    []string

	// Mode selects the measured request.
	Mode bench.Mode

	// Format selects the report output format.
	Format report.Format

	// WorkspaceRoots are the workspace folders declared in the handshake.
	// Defaults to the current working directory.
	WorkspaceRoots []string

	// LanguageID is the declared language identifier for opened documents.
	// Empty means detect from the file extension.
	LanguageID string

	// RequestTimeout bounds every request.
	RequestTimeout time.Duration

	// LogLevel is the minimum log level name.
	LogLevel string
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Mode:           bench.ModeDefinition,
		Format:         report.FormatText,
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
	}
}

// Validate checks the configuration and fills defaulted fields. It must
// pass before any process is spawned.
func (c *Config) Validate() error {
	if len(c.Files) == 0 {
		return &Error{Field: "files", Message: "no input files given"}
	}
	for _, f := range c.Files {
		info, err := os.Stat(f)
		if err != nil {
			return &Error{Field: "files", Message: fmt.Sprintf("cannot read %s", f), Err: err}
		}
		if info.IsDir() {
			return &Error{Field: "files", Message: fmt.Sprintf("%s is a directory", f)}
		}
	}

	if c.ServerCommand == "" {
		return &Error{Field: "server", Message: "no server command given"}
	}

	if _, err := bench.ParseMode(string(c.Mode)); err != nil {
		return &Error{Field: "mode", Message: err.Error()}
	}

	if _, err := report.ParseFormat(string(c.Format)); err != nil {
		return &Error{Field: "format", Message: err.Error()}
	}

	if len(c.WorkspaceRoots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return &Error{Field: "workspace", Message: "cannot determine working directory", Err: err}
		}
		c.WorkspaceRoots = []string{cwd}
	}

	if c.RequestTimeout <= 0 {
		return &Error{Field: "timeout", Message: "request timeout must be positive"}
	}

	return nil
}

// SplitArgs separates the positional arguments into input files and the
// server command line. Everything before the "--" separator is an input
// file; everything after is the spawn command and its arguments. A missing
// separator is a configuration error: there is no way to tell files from
// the server command without it.
func SplitArgs(args []string) (files []string, command []string, err error) {
	sep := -1
	for i, a := range args {
		if a == "--" {
			sep = i
			break
		}
	}
	if sep < 0 {
		return nil, nil, &Error{Field: "args", Message: "missing \"--\" separator before server command"}
	}
	if sep == len(args)-1 {
		return nil, nil, &Error{Field: "args", Message: "no server command after \"--\""}
	}
	return args[:sep], args[sep+1:], nil
}
