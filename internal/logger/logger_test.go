package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestInitCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(Config{ConfigDir: dir, Level: "info"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() { Logger = nil }()

	Info("hello", "component", "test")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "daybook.log"))
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing message: %q", data)
	}
}

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		cfg  Config
		want log.Level
	}{
		{Config{}, log.WarnLevel},
		{Config{Level: "INFO"}, log.InfoLevel},
		{Config{Level: "bogus"}, log.WarnLevel},
		{Config{Debug: true, Level: "error"}, log.DebugLevel},
	}
	for _, tt := range tests {
		if got := resolveLevel(tt.cfg); got != tt.want {
			t.Errorf("resolveLevel(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	Logger = nil
	Debug("noop")
	Info("noop")
	Warn("noop")
	Error("noop")
	With("k", "v").Info("noop")
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, log.DebugLevel)
	defer func() { Logger = nil }()

	With("collection", "todos").Info("loaded")
	if !strings.Contains(buf.String(), "collection=todos") {
		t.Errorf("expected keyval in output, got %q", buf.String())
	}
}
