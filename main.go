package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/sambeau/trellis/config"
	"github.com/sambeau/trellis/pkg/store"
	"github.com/sambeau/trellis/server"
)

// Version is set at build time via -ldflags
var Version = "0.1.0-dev"

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("trellis", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		configPath  = flags.String("config", "", "Path to config file")
		devMode     = flags.Bool("dev", false, "Development mode (watch the store, show error details)")
		port        = flags.Int("port", 0, "Override listen port")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}

	if *showVersion {
		fmt.Fprintf(stdout, "trellis version %s\n", Version)
		return nil
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configFile, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply CLI overrides
	if *devMode {
		cfg.Server.Dev = true
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Full validation after CLI overrides applied
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	for _, w := range config.Warnings(cfg) {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}

	logger, closeLog, err := newLogger(cfg.Logging, stdout, stderr)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer closeLog()
	logger.Info().Str("config", configFile).Str("version", Version).Msg("starting trellis")

	st, err := store.Open(ctx, store.Options{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DSN,
		Dir:    cfg.Store.Dir,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	srv, err := server.New(cfg, st, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

// newLogger builds the process logger from the logging config. The returned
// func closes the log file, if one was opened.
func newLogger(cfg config.LoggingConfig, stdout, stderr io.Writer) (zerolog.Logger, func(), error) {
	var w io.Writer
	closer := func() {}
	switch cfg.Output {
	case "", "stderr":
		w = stderr
	case "stdout":
		w = stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		w = f
		closer = func() { f.Close() }
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(w)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true})
	}
	return logger.Level(level).With().Timestamp().Logger(), closer, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `trellis - A preview server for block tree pages

Usage:
  trellis [options]

Options:
  --config PATH    Path to config file (default: auto-detect)
  --dev            Development mode (watch the store, show error details)
  --port PORT      Override listen port
  --version        Show version
  --help           Show this help

Config Resolution:
  1. --config flag
  2. TRELLIS_CONFIG environment variable
  3. ./trellis.yaml
  4. ~/.config/trellis/trellis.yaml

Examples:
  trellis                     Start with auto-detected config
  trellis --dev               Development mode on localhost:8080
  trellis --config site.yaml  Use specific config file
  trellis --dev --port 3000   Dev mode on port 3000

To compile a single block tree without a server, use trellisc.

`)
}
