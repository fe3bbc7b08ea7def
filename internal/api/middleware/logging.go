package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// statusRecorder captures the status code written by the handler chain
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets the queue stream endpoint push events through the recorder
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LoggingMiddleware logs one line per request, tagging the acting user when
// the X-Actor-ID header is present.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		event := log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start))
		if actor := r.Header.Get("X-Actor-ID"); actor != "" {
			event = event.Str("actor_id", actor)
		}
		event.Msg("request")
	})
}
