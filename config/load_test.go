package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "trellis.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func noEnv(string) string { return "" }

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, `
server:
  host: localhost
  port: 3000

store:
  driver: sqlite
  dsn: ./data/trellis.db

compiler:
  class_prefix: site-
  base_url: https://cdn.example.com
  preserve_falsy_in_repeaters: true

cache:
  ttl: 30s
  max_entries: 50

compression:
  level: best

logging:
  level: debug
  format: json
`)

	cfg, path, err := LoadWithPath(configPath, noEnv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != configPath {
		t.Errorf("expected path %q, got %q", configPath, path)
	}

	if cfg.Server.Host != "localhost" || cfg.Server.Port != 3000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected driver sqlite, got %q", cfg.Store.Driver)
	}
	if want := filepath.Join(dir, "data", "trellis.db"); cfg.Store.DSN != want {
		t.Errorf("expected dsn %q, got %q", want, cfg.Store.DSN)
	}
	if cfg.Compiler.ClassPrefix != "site-" || !cfg.Compiler.PreserveFalsyInRepeaters {
		t.Errorf("unexpected compiler config: %+v", cfg.Compiler)
	}
	// unset fields keep their defaults
	if cfg.Compiler.MaxComponentDepth != 32 {
		t.Errorf("expected default depth 32, got %d", cfg.Compiler.MaxComponentDepth)
	}
	if cfg.Cache.TTL != 30*time.Second || cfg.Cache.MaxEntries != 50 {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if !cfg.Compression.Enabled || cfg.Compression.Level != "best" {
		t.Errorf("unexpected compression config: %+v", cfg.Compression)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.BaseDir != dir {
		t.Errorf("expected base dir %q, got %q", dir, cfg.BaseDir)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, `
server:
  https:
    cert: certs/cert.pem
    key: /etc/ssl/key.pem
store:
  dir: site
logging:
  output: logs/trellis.log
`)

	cfg, err := Load(configPath, noEnv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name, got, want string
	}{
		{"store.dir", cfg.Store.Dir, filepath.Join(dir, "site")},
		{"https.cert", cfg.Server.HTTPS.Cert, filepath.Join(dir, "certs", "cert.pem")},
		{"https.key", cfg.Server.HTTPS.Key, "/etc/ssl/key.pem"},
		{"logging.output", cfg.Logging.Output, filepath.Join(dir, "logs", "trellis.log")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, tt.got)
		}
	}
}

func TestLoadKeepsSpecialDSNs(t *testing.T) {
	for _, dsn := range []string{":memory:", "file:test.db?cache=shared"} {
		cfg, err := Parse([]byte("store:\n  driver: sqlite\n  dsn: \""+dsn+"\"\n"), "/base", noEnv)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", dsn, err)
		}
		if cfg.Store.DSN != dsn {
			t.Errorf("expected dsn %q unchanged, got %q", dsn, cfg.Store.DSN)
		}
	}

	cfg, err := Parse([]byte("store:\n  driver: postgres\n  dsn: postgres://localhost/trellis\n"), "/base", noEnv)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Store.DSN != "postgres://localhost/trellis" {
		t.Errorf("expected postgres dsn unchanged, got %q", cfg.Store.DSN)
	}
}

func TestLoadWithEnvInterpolation(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, `
server:
  host: ${TRELLIS_HOST:-localhost}
store:
  driver: postgres
  dsn: ${DATABASE_URL}
`)

	getenv := func(key string) string {
		switch key {
		case "TRELLIS_HOST":
			return "preview.example.com"
		case "DATABASE_URL":
			return "postgres://db/trellis"
		}
		return ""
	}

	cfg, err := Load(configPath, getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Host != "preview.example.com" {
		t.Errorf("expected host 'preview.example.com', got %q", cfg.Server.Host)
	}
	if cfg.Store.DSN != "postgres://db/trellis" {
		t.Errorf("expected dsn from env, got %q", cfg.Store.DSN)
	}

	// without DATABASE_URL the postgres driver has no dsn
	_, err = Load(configPath, noEnv)
	if err == nil || !strings.Contains(err.Error(), "requires a dsn") {
		t.Errorf("expected dsn error, got %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "server: [\n")
	_, err := Load(configPath, noEnv)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "server:\n  port: 8080\n")

	if _, err := resolveConfigPath("/nonexistent/trellis.yaml", noEnv); err == nil ||
		!strings.Contains(err.Error(), "config file not found") {
		t.Errorf("expected not found error, got %v", err)
	}

	getenv := func(key string) string {
		if key == "TRELLIS_CONFIG" {
			return configPath
		}
		return ""
	}
	path, err := resolveConfigPath("", getenv)
	if err != nil {
		t.Fatalf("resolveConfigPath failed: %v", err)
	}
	if path != configPath {
		t.Errorf("expected %q, got %q", configPath, path)
	}

	badEnv := func(key string) string {
		if key == "TRELLIS_CONFIG" {
			return filepath.Join(dir, "missing.yaml")
		}
		return ""
	}
	if _, err := resolveConfigPath("", badEnv); err == nil ||
		!strings.Contains(err.Error(), "TRELLIS_CONFIG file not found") {
		t.Errorf("expected TRELLIS_CONFIG error, got %v", err)
	}
}

func TestValidateBasic(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			modify:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid port: 0",
		},
		{
			name:    "cert without key",
			modify:  func(c *Config) { c.Server.HTTPS.Cert = "cert.pem" },
			wantErr: "cert and key must be set together",
		},
		{
			name:    "unsupported driver",
			modify:  func(c *Config) { c.Store.Driver = "mongo" },
			wantErr: `unsupported driver "mongo"`,
		},
		{
			name:    "database driver without dsn",
			modify:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: "driver mysql requires a dsn",
		},
		{
			name:    "negative depth",
			modify:  func(c *Config) { c.Compiler.MaxComponentDepth = -1 },
			wantErr: "invalid max_component_depth",
		},
		{
			name:    "bad class prefix",
			modify:  func(c *Config) { c.Compiler.ClassPrefix = "9x" },
			wantErr: "invalid class_prefix",
		},
		{
			name:    "negative ttl",
			modify:  func(c *Config) { c.Cache.TTL = -time.Second },
			wantErr: "cache: invalid ttl",
		},
		{
			name:    "bad compression level",
			modify:  func(c *Config) { c.Compression.Level = "max" },
			wantErr: "compression: invalid level: max",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "invalid log level: trace",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format: xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 70000
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "configuration errors:") {
		t.Errorf("expected combined message, got %q", msg)
	}
	if !strings.Contains(msg, "invalid port: 70000") || !strings.Contains(msg, "invalid log format: xml") {
		t.Errorf("expected both errors, got %q", msg)
	}
}

func TestWarnings(t *testing.T) {
	dir := t.TempDir()

	cfg := Defaults()
	cfg.Store.Dir = dir
	cfg.Cache.TTL = 0
	cfg.Compiler.BaseURL = "cdn.example.com"

	warnings := Warnings(cfg)
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d: %v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0], "no pages directory") {
		t.Errorf("expected pages warning, got %q", warnings[0])
	}

	if err := os.Mkdir(filepath.Join(dir, "pages"), 0755); err != nil {
		t.Fatal(err)
	}
	cfg.Server.Dev = true
	cfg.Compiler.BaseURL = "https://cdn.example.com"
	if warnings := Warnings(cfg); len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
}
