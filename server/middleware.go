package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Logging attaches logger to each request context and writes one access log
// line per request.
func Logging(next http.Handler, logger zerolog.Logger) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, elapsed time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("elapsed", elapsed).
			Msg("request")
	})(next)
	return hlog.NewHandler(logger)(h)
}
