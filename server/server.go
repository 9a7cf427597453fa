package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sambeau/trellis/config"
	"github.com/sambeau/trellis/pkg/store"
)

// Server is a Trellis preview server instance.
type Server struct {
	config  *config.Config
	store   *store.CachedStore
	pages   *pageCache
	log     zerolog.Logger
	mux     *http.ServeMux
	server  *http.Server
	watcher *Watcher
}

// New creates a preview server reading pages and components from st.
// Store reads and compiled pages are cached for cfg.Cache.TTL; in dev mode
// the file watcher also clears both caches on every edit.
func New(cfg *config.Config, st store.Store, logger zerolog.Logger) (*Server, error) {
	if st == nil {
		return nil, errors.New("server: store is required")
	}

	s := &Server{
		config: cfg,
		store:  store.NewCachedStore(st, cfg.Cache.TTL, cfg.Cache.MaxEntries),
		pages:  newPageCache(cfg.Cache.TTL, cfg.Cache.MaxEntries),
		log:    logger,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures the HTTP mux.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /__compiled/{route...}", s.handleCompiled)
	s.mux.HandleFunc("GET /__stats", s.handleStats)
	s.mux.HandleFunc("GET /{route...}", s.handlePage)
}

// Handler returns the full handler chain: routes, compression and request
// logging.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = newCompressionHandler(handler, s.config.Compression, s.log)

	if !s.config.Logging.Quiet && s.config.Logging.Level != "error" {
		handler = newRequestLogger(handler, s.log)
	}
	return handler
}

// ClearCaches drops every cached page, component and compiled template.
func (s *Server) ClearCaches() {
	s.store.Clear()
	s.pages.Clear()
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.listenAddr()

	// In dev mode, watch the file store for edits
	if s.config.Server.Dev {
		if fs, ok := s.store.Store.(*store.FileStore); ok {
			watcher, err := NewWatcher(s, fs.Dir(), s.log)
			if err != nil {
				s.log.Error().Err(err).Msg("failed to create watcher")
			} else {
				s.watcher = watcher
				if err := s.watcher.Start(ctx); err != nil {
					s.log.Error().Err(err).Msg("failed to start watcher")
				}
				defer s.watcher.Close()
			}
		}
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		https := s.config.Server.HTTPS
		if https.Enabled() {
			s.log.Info().Str("addr", addr).Msg("starting trellis on https")
			errCh <- s.server.ListenAndServeTLS(https.Cert, https.Key)
			return
		}
		s.log.Info().Str("addr", addr).Bool("dev", s.config.Server.Dev).Msg("starting trellis on http")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// listenAddr returns the address to listen on based on configuration.
func (s *Server) listenAddr() string {
	host := s.config.Server.Host
	port := s.config.Server.Port

	if s.config.Server.Dev && host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 8080
	}

	return fmt.Sprintf("%s:%d", host, port)
}
