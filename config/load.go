package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the resolved path.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Dir(absPath), getenv)
	if err != nil {
		return nil, "", err
	}
	return cfg, absPath, nil
}

// Parse decodes a config document over Defaults. Relative paths are
// resolved against baseDir.
func Parse(data []byte, baseDir string, getenv func(string) string) (*Config, error) {
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.BaseDir = baseDir

	if cfg.Store.Dir != "" && !filepath.IsAbs(cfg.Store.Dir) {
		cfg.Store.Dir = filepath.Join(baseDir, cfg.Store.Dir)
	}
	// sqlite DSNs are file paths unless they are URIs or in-memory
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN != "" && !filepath.IsAbs(cfg.Store.DSN) &&
		!strings.HasPrefix(cfg.Store.DSN, "file:") && cfg.Store.DSN != ":memory:" {
		cfg.Store.DSN = filepath.Join(baseDir, cfg.Store.DSN)
	}
	if cfg.Server.HTTPS.Cert != "" && !filepath.IsAbs(cfg.Server.HTTPS.Cert) {
		cfg.Server.HTTPS.Cert = filepath.Join(baseDir, cfg.Server.HTTPS.Cert)
	}
	if cfg.Server.HTTPS.Key != "" && !filepath.IsAbs(cfg.Server.HTTPS.Key) {
		cfg.Server.HTTPS.Key = filepath.Join(baseDir, cfg.Server.HTTPS.Key)
	}
	if out := cfg.Logging.Output; out != "" && out != "stderr" && out != "stdout" && !filepath.IsAbs(out) {
		cfg.Logging.Output = filepath.Join(baseDir, out)
	}

	if err := validateBasic(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs full configuration validation.
// Call this after applying CLI overrides (like --port).
func Validate(cfg *Config) error {
	return validateBasic(cfg)
}

// Warnings returns non-fatal configuration issues that should be reported to the user.
func Warnings(cfg *Config) []string {
	var warnings []string

	if cfg.Store.Driver == "file" || cfg.Store.Driver == "" {
		if info, err := os.Stat(filepath.Join(cfg.Store.Dir, "pages")); err != nil || !info.IsDir() {
			warnings = append(warnings, fmt.Sprintf("store: no pages directory in %s - every page will return 404", cfg.Store.Dir))
		}
	}

	if cfg.Cache.TTL == 0 && !cfg.Server.Dev {
		warnings = append(warnings, "cache: ttl is 0 - every request compiles its page from the store")
	}

	if cfg.Compiler.BaseURL != "" && !strings.HasPrefix(cfg.Compiler.BaseURL, "http://") && !strings.HasPrefix(cfg.Compiler.BaseURL, "https://") {
		warnings = append(warnings, fmt.Sprintf("compiler: base_url %q has no http(s) scheme", cfg.Compiler.BaseURL))
	}

	return warnings
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > TRELLIS_CONFIG env > ./trellis.yaml > ~/.config/trellis/trellis.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv("TRELLIS_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("TRELLIS_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("trellis.yaml"); err == nil {
		return "trellis.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "trellis", "trellis.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", fmt.Errorf("no config file found (tried TRELLIS_CONFIG, trellis.yaml, ~/.config/trellis/trellis.yaml)")
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// validateBasic checks the configuration for errors, reporting all of them at once.
func validateBasic(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port: %d (must be 1-65535)", cfg.Server.Port))
	}
	if (cfg.Server.HTTPS.Cert == "") != (cfg.Server.HTTPS.Key == "") {
		errs = append(errs, "https: cert and key must be set together")
	}

	switch cfg.Store.Driver {
	case "", "file":
	case "sqlite", "postgres", "mysql":
		if cfg.Store.DSN == "" {
			errs = append(errs, fmt.Sprintf("store: driver %s requires a dsn", cfg.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("store: unsupported driver %q (must be file, sqlite, postgres, or mysql)", cfg.Store.Driver))
	}

	if cfg.Compiler.MaxComponentDepth < 0 {
		errs = append(errs, fmt.Sprintf("compiler: invalid max_component_depth: %d", cfg.Compiler.MaxComponentDepth))
	}
	if p := cfg.Compiler.ClassPrefix; p != "" && !validClassPrefix(p) {
		errs = append(errs, fmt.Sprintf("compiler: invalid class_prefix %q (letters, digits, '-' and '_' only, not starting with a digit)", p))
	}

	if cfg.Cache.TTL < 0 {
		errs = append(errs, fmt.Sprintf("cache: invalid ttl: %s", cfg.Cache.TTL))
	}
	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Sprintf("cache: invalid max_entries: %d", cfg.Cache.MaxEntries))
	}

	validCompression := map[string]bool{"fastest": true, "default": true, "best": true, "none": true}
	if !validCompression[cfg.Compression.Level] {
		errs = append(errs, fmt.Sprintf("compression: invalid level: %s (must be fastest, default, best, or none)", cfg.Compression.Level))
	}
	if cfg.Compression.MinSize < 0 {
		errs = append(errs, fmt.Sprintf("compression: invalid min_size: %d", cfg.Compression.MinSize))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func validClassPrefix(p string) bool {
	for i, r := range p {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
