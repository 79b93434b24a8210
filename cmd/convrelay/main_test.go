package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func TestPrintUsage(t *testing.T) {
	_, stdout, _ := captureOutputWithExitCode(t, func() int {
		printUsage()
		return 0
	})
	if !strings.Contains(stdout, "convrelay <command> [flags]") {
		t.Fatalf("usage missing command synopsis: %s", stdout)
	}
	if !strings.Contains(stdout, "start") {
		t.Fatalf("usage missing start command: %s", stdout)
	}
}

func TestRunStartRejectsMalformedConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("service: [not a mapping\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runStart([]string{"--config", configPath})
	})
	if code != 1 {
		t.Fatalf("runStart() code = %d, want 1 (stderr: %s)", code, stderr)
	}
	if !strings.Contains(stderr, "Failed to load config") {
		t.Fatalf("stderr missing load failure: %s", stderr)
	}
}

func TestRunStartRejectsInvalidPort(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("service:\n  port: 99999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runStart([]string{"--config", configPath})
	})
	if code != 1 {
		t.Fatalf("runStart() code = %d, want 1 (stderr: %s)", code, stderr)
	}
}
