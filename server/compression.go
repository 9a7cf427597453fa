package server

import (
	"compress/gzip"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"

	"github.com/sambeau/trellis/config"
)

// newCompressionHandler wraps an HTTP handler with gzip compression.
// Returns the original handler if compression is disabled or level is "none".
func newCompressionHandler(h http.Handler, cfg config.CompressionConfig, log zerolog.Logger) http.Handler {
	if !cfg.Enabled || cfg.Level == "none" {
		return h
	}

	level := gzip.DefaultCompression
	switch cfg.Level {
	case "fastest":
		level = gzip.BestSpeed
	case "best":
		level = gzip.BestCompression
	}

	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(cfg.MinSize),
		gzhttp.CompressionLevel(level),
		gzhttp.ContentTypes([]string{"text/html", "text/css", "application/json"}),
	)
	if err != nil {
		log.Warn().Err(err).Str("level", cfg.Level).Msg("compression disabled")
		return h
	}

	return wrapper(h)
}
