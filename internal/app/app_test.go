package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/lspbench/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Files = []string{path}
	cfg.ServerCommand = "fake-server"
	return cfg
}

func TestNew(t *testing.T) {
	var logBuf, outBuf bytes.Buffer

	a, err := New(testConfig(t), WithLogOutput(&logBuf), WithOutput(&outBuf))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if a.RunID() == "" {
		t.Error("RunID is empty")
	}
	if a.Logger() == nil {
		t.Error("Logger is nil")
	}
	if a.Metrics() == nil {
		t.Error("Metrics is nil")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ServerCommand = ""

	if _, err := New(cfg); err == nil {
		t.Fatal("New() = nil error for invalid config")
	}
}

func TestNew_DistinctRunIDs(t *testing.T) {
	cfg := testConfig(t)

	a1, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if a1.RunID() == a2.RunID() {
		t.Errorf("two runs share id %s", a1.RunID())
	}
}
