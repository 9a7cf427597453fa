package config

import "time"

// Config represents the complete Trellis configuration
type Config struct {
	BaseDir     string            `yaml:"-"` // Directory containing config file, for resolving relative paths
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Compiler    CompilerConfig    `yaml:"compiler"`
	Cache       CacheConfig       `yaml:"cache"`
	Compression CompressionConfig `yaml:"compression"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds preview server settings
type ServerConfig struct {
	Host  string      `yaml:"host"`
	Port  int         `yaml:"port"`
	Dev   bool        `yaml:"dev"` // Also set via --dev
	HTTPS HTTPSConfig `yaml:"https"`
}

// HTTPSConfig holds TLS settings. Both cert and key are required to serve HTTPS.
type HTTPSConfig struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// Enabled reports whether a certificate pair is configured.
func (h HTTPSConfig) Enabled() bool {
	return h.Cert != "" && h.Key != ""
}

// StoreConfig selects where pages and components are read from
type StoreConfig struct {
	Driver string `yaml:"driver"` // file, sqlite, postgres or mysql (default: file)
	DSN    string `yaml:"dsn"`    // Data source name for database drivers
	Dir    string `yaml:"dir"`    // Root directory for the file driver (default: ".")
}

// CompilerConfig holds compiler options shared by every compilation
type CompilerConfig struct {
	ClassPrefix              string `yaml:"class_prefix"`                // Scoped class prefix (default: "trellis-")
	BaseURL                  string `yaml:"base_url"`                    // Prefix for root-relative img src
	PreserveFalsyInRepeaters bool   `yaml:"preserve_falsy_in_repeaters"` // Keep "" and 0 inside repeaters
	MaxComponentDepth        int    `yaml:"max_component_depth"`         // Nested component bound (default: 32)
}

// CacheConfig holds store and compiled template cache settings
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`         // Entry lifetime, 0 disables caching (default: 5m)
	MaxEntries int           `yaml:"max_entries"` // Entries per cache (default: 1000)
}

// CompressionConfig holds HTTP response compression settings
type CompressionConfig struct {
	Enabled bool   `yaml:"enabled"`  // Enable gzip compression (default: true)
	Level   string `yaml:"level"`    // Compression level: "fastest", "default", "best", "none" (default: "default")
	MinSize int    `yaml:"min_size"` // Minimum response size to compress in bytes (default: 1024)
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, or file path
	Quiet  bool   `yaml:"quiet"`  // suppress request logs
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "",
			Port: 8080,
		},
		Store: StoreConfig{
			Driver: "file",
			Dir:    ".",
		},
		Compiler: CompilerConfig{
			ClassPrefix:       "trellis-",
			MaxComponentDepth: 32,
		},
		Cache: CacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 1000,
		},
		Compression: CompressionConfig{
			Enabled: true,
			Level:   "default",
			MinSize: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
