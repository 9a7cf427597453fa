package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sambeau/trellis/config"
)

func noEnv(string) string { return "" }

func TestRunVersion(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := run(context.Background(), []string{"--version"}, stdout, stderr, noEnv)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "trellis version") {
		t.Errorf("expected version output, got %q", output)
	}
}

func TestRunHelp(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := run(context.Background(), []string{"--help"}, stdout, stderr, noEnv)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "trellis - A preview server for block tree pages") {
		t.Errorf("expected help output, got %q", output)
	}
	if !strings.Contains(output, "--config") {
		t.Errorf("expected --config in help, got %q", output)
	}
	if !strings.Contains(output, "--dev") {
		t.Errorf("expected --dev in help, got %q", output)
	}
}

func TestRunInvalidFlag(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := run(context.Background(), []string{"--invalid-flag"}, stdout, stderr, noEnv)

	if err == nil {
		t.Error("expected error for invalid flag")
	}
}

func TestRunMissingConfig(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := run(context.Background(), []string{"--config", "/nonexistent/config.yaml"}, stdout, stderr, noEnv)

	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("expected 'config file not found' error, got %q", err.Error())
	}
}

func TestRunInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trellis.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 99999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := run(context.Background(), []string{"--config", path}, &bytes.Buffer{}, &bytes.Buffer{}, noEnv)
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
	if !strings.Contains(err.Error(), "port") {
		t.Errorf("expected port error, got %q", err.Error())
	}
}

func TestNewLogger(t *testing.T) {
	var stdout, stderr bytes.Buffer

	logger, closeLog, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: "stdout"}, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	defer closeLog()

	logger.Info().Msg("hidden")
	logger.Warn().Str("k", "v").Msg("shown")

	out := stdout.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected info to be filtered, got %q", out)
	}
	if !strings.Contains(out, `"message":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("expected JSON warn entry, got %q", out)
	}
	if stderr.Len() != 0 {
		t.Errorf("expected nothing on stderr, got %q", stderr.String())
	}
}

func TestNewLoggerText(t *testing.T) {
	var stderr bytes.Buffer

	logger, closeLog, err := newLogger(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, &bytes.Buffer{}, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	defer closeLog()

	logger.Info().Str("route", "/").Msg("compiled")
	if out := stderr.String(); !strings.Contains(out, "compiled") || !strings.Contains(out, "route=/") {
		t.Errorf("expected console entry, got %q", out)
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trellis.log")

	logger, closeLog, err := newLogger(config.LoggingConfig{Format: "json", Output: path}, &bytes.Buffer{}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Msg("to file")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("expected log file entry, got %q", data)
	}
}
