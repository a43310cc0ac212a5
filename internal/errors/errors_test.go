package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"simple error", stderrors.New("something went wrong"), "Error: something went wrong"},
		{"wrapped error", fmt.Errorf("load todos: %w", stderrors.New("not found")), "Error: load todos: not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.err); got != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestFormatf(t *testing.T) {
	if got := Formatf("failed to load %s", "journal"); got != "Error: failed to load journal" {
		t.Errorf("Formatf() = %q", got)
	}
}

func TestExitCode(t *testing.T) {
	base := stderrors.New("nope")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", base, ExitFailure},
		{"coded", WithCode(ExitForbidden, base), ExitForbidden},
		{"wrapped coded", fmt.Errorf("delete post: %w", WithCode(ExitNotFound, base)), ExitNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithCodeKeepsChain(t *testing.T) {
	base := stderrors.New("nope")
	err := WithCode(ExitUsage, base)
	if !stderrors.Is(err, base) {
		t.Error("expected coded error to unwrap to its cause")
	}
	if WithCode(ExitUsage, nil) != nil {
		t.Error("expected WithCode(nil) to be nil")
	}
}

func TestFatalUsesExitCode(t *testing.T) {
	if os.Getenv("GO_TEST_FATAL_CODED") == "1" {
		Fatal(WithCode(ExitForbidden, stderrors.New("not allowed")))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFatalUsesExitCode")
	cmd.Env = append(os.Environ(), "GO_TEST_FATAL_CODED=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	e, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("Fatal() did not exit with error: %v", err)
	}
	if e.ExitCode() != ExitForbidden {
		t.Errorf("Fatal() exit code = %d, want %d", e.ExitCode(), ExitForbidden)
	}
	if !strings.Contains(stderr.String(), "Error: not allowed") {
		t.Errorf("Fatal() stderr = %q", stderr.String())
	}
}

func TestFatalNilError(t *testing.T) {
	Fatal(nil)
}
