package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// requestLogger is middleware that logs HTTP requests
type requestLogger struct {
	handler http.Handler
	log     zerolog.Logger
}

// responseCapture wraps http.ResponseWriter to capture status code and size
type responseCapture struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rc *responseCapture) WriteHeader(code int) {
	if rc.status == 0 {
		rc.status = code
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if rc.status == 0 {
		rc.status = http.StatusOK
	}
	n, err := rc.ResponseWriter.Write(b)
	rc.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// newRequestLogger creates request logging middleware
func newRequestLogger(handler http.Handler, log zerolog.Logger) *requestLogger {
	return &requestLogger{
		handler: handler,
		log:     log,
	}
}

func (rl *requestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	rc := &responseCapture{ResponseWriter: w}
	rl.handler.ServeHTTP(rc, r)

	duration := time.Since(start)
	if rc.status == 0 {
		rc.status = http.StatusOK
	}

	// Get client IP (respecting X-Forwarded-For if present)
	clientIP := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		clientIP = xff
	}

	event := rl.log.Info()
	if rc.status >= http.StatusInternalServerError {
		event = rl.log.Error()
	}
	event.
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rc.status).
		Int("bytes", rc.bytes).
		Dur("duration", duration).
		Str("client_ip", clientIP).
		Str("user_agent", r.UserAgent()).
		Msg("request")
}
