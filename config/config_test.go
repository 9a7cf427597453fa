package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != "file" {
		t.Errorf("expected default store driver 'file', got %q", cfg.Store.Driver)
	}
	if cfg.Compiler.ClassPrefix != "trellis-" {
		t.Errorf("expected default class prefix 'trellis-', got %q", cfg.Compiler.ClassPrefix)
	}
	if cfg.Compiler.MaxComponentDepth != 32 {
		t.Errorf("expected default max component depth 32, got %d", cfg.Compiler.MaxComponentDepth)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected default cache ttl 5m, got %s", cfg.Cache.TTL)
	}
	if !cfg.Compression.Enabled {
		t.Error("expected compression to be enabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if err := validateBasic(cfg); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestHTTPSEnabled(t *testing.T) {
	tests := []struct {
		cfg  HTTPSConfig
		want bool
	}{
		{HTTPSConfig{}, false},
		{HTTPSConfig{Cert: "c.pem"}, false},
		{HTTPSConfig{Cert: "c.pem", Key: "k.pem"}, true},
	}
	for _, tt := range tests {
		if got := tt.cfg.Enabled(); got != tt.want {
			t.Errorf("Enabled(%+v): expected %v, got %v", tt.cfg, tt.want, got)
		}
	}
}

func TestInterpolateEnv(t *testing.T) {
	getenv := func(key string) string {
		switch key {
		case "TEST_HOST":
			return "example.com"
		case "TEST_PORT":
			return "9000"
		default:
			return ""
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple substitution",
			input:    "host: ${TEST_HOST}",
			expected: "host: example.com",
		},
		{
			name:     "with default (env set)",
			input:    "host: ${TEST_HOST:-localhost}",
			expected: "host: example.com",
		},
		{
			name:     "with default (env not set)",
			input:    "host: ${UNSET_VAR:-localhost}",
			expected: "host: localhost",
		},
		{
			name:     "unset without default",
			input:    "dsn: ${UNSET_VAR}",
			expected: "dsn: ",
		},
		{
			name:     "multiple substitutions",
			input:    "addr: ${TEST_HOST}:${TEST_PORT}",
			expected: "addr: example.com:9000",
		},
		{
			name:     "no substitution needed",
			input:    "static: value",
			expected: "static: value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := string(interpolateEnv([]byte(tt.input), getenv))
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestValidClassPrefix(t *testing.T) {
	tests := map[string]bool{
		"trellis-": true,
		"x_":       true,
		"a1":       true,
		"1a":       false,
		"a b":      false,
		"a.b":      false,
	}
	for in, want := range tests {
		if got := validClassPrefix(in); got != want {
			t.Errorf("validClassPrefix(%q): expected %v, got %v", in, want, got)
		}
	}
}
