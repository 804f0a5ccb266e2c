// Package main is the entry point for the lspbench benchmark driver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/lspbench/internal/app"
	"github.com/dshills/lspbench/internal/bench"
	"github.com/dshills/lspbench/internal/config"
	"github.com/dshills/lspbench/internal/report"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, ok := parseFlags()
	if !ok {
		return 1
	}

	application, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Handle signals for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		cancel()
	}()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

func parseFlags() (config.Config, bool) {
	cfg := config.Default()

	var (
		configPath  string
		mode        string
		format      string
		timeout     time.Duration
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&mode, "mode", "", "Request to measure (definition, completion, hover)")
	flag.StringVar(&mode, "m", "", "Request to measure (shorthand)")
	flag.StringVar(&format, "format", "", "Output format (text, csv, json)")
	flag.StringVar(&format, "f", "", "Output format (shorthand)")
	flag.StringVar(&cfg.LanguageID, "lang", "", "Language identifier for opened documents (default: by extension)")
	flag.DurationVar(&timeout, "timeout", 0, "Per-request timeout (default 30s)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	var roots stringList
	flag.Var(&roots, "root", "Workspace root (repeatable; default: current directory)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "lspbench - language server latency benchmark\n\n")
		fmt.Fprintf(os.Stderr, "Usage: lspbench [options] files... -- server-command [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lspbench main.go -- gopls serve                Measure definition latency\n")
		fmt.Fprintf(os.Stderr, "  lspbench -m completion src/*.rs -- rust-analyzer\n")
		fmt.Fprintf(os.Stderr, "  lspbench -f json -root ./proj main.go -- gopls serve\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("lspbench %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if configPath != "" {
		if err := config.LoadFile(configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return cfg, false
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, false
	}

	// Flags win over file and environment settings
	if mode != "" {
		cfg.Mode = bench.Mode(mode)
	}
	if format != "" {
		cfg.Format = report.Format(format)
	}
	if timeout != 0 {
		cfg.RequestTimeout = timeout
	}
	if len(roots) > 0 {
		cfg.WorkspaceRoots = roots
	}

	if flag.NArg() > 0 {
		files, command, err := config.SplitArgs(flag.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			flag.Usage()
			return cfg, false
		}
		cfg.Files = files
		cfg.ServerCommand = command[0]
		cfg.ServerArgs = command[1:]
	}

	return cfg, true
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprint(*s)
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
