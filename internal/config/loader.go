package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/lspbench/internal/bench"
	"github.com/dshills/lspbench/internal/report"
)

// fileConfig mirrors the TOML file layout.
type fileConfig struct {
	Files []string `toml:"files"`

	Server struct {
		Command string   `toml:"command"`
		Args    []string `toml:"args"`
	} `toml:"server"`

	Mode       string   `toml:"mode"`
	Format     string   `toml:"format"`
	Workspace  []string `toml:"workspace"`
	LanguageID string   `toml:"language_id"`
	Timeout    string   `toml:"timeout"`
	LogLevel   string   `toml:"log_level"`
}

// LoadFile overlays settings from a TOML file onto cfg. A missing file is
// not an error; an unreadable or unparsable one is.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &Error{Field: "config", Message: "reading " + path, Err: err}
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return &Error{Field: "config", Message: "parsing " + path, Err: err}
	}

	if len(fc.Files) > 0 {
		cfg.Files = fc.Files
	}
	if fc.Server.Command != "" {
		cfg.ServerCommand = fc.Server.Command
		cfg.ServerArgs = fc.Server.Args
	}
	if fc.Mode != "" {
		cfg.Mode = bench.Mode(fc.Mode)
	}
	if fc.Format != "" {
		cfg.Format = report.Format(fc.Format)
	}
	if len(fc.Workspace) > 0 {
		cfg.WorkspaceRoots = fc.Workspace
	}
	if fc.LanguageID != "" {
		cfg.LanguageID = fc.LanguageID
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return &Error{Field: "timeout", Message: "invalid duration " + fc.Timeout, Err: err}
		}
		cfg.RequestTimeout = d
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}

	return nil
}

// ApplyEnv overlays LSPBENCH_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("LSPBENCH_MODE"); ok {
		cfg.Mode = bench.Mode(v)
	}
	if v, ok := os.LookupEnv("LSPBENCH_FORMAT"); ok {
		cfg.Format = report.Format(v)
	}
	if v, ok := os.LookupEnv("LSPBENCH_LANGUAGE_ID"); ok {
		cfg.LanguageID = v
	}
	if v, ok := os.LookupEnv("LSPBENCH_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("LSPBENCH_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &Error{Field: "timeout", Message: "invalid LSPBENCH_TIMEOUT " + v, Err: err}
		}
		cfg.RequestTimeout = d
	}
	return nil
}
