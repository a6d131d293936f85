package auth

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// loggingTransport logs outgoing Google API requests at debug level.
// Only method, URL, status and latency are recorded; bodies may hold mail.
type loggingTransport struct {
	base http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	rt := t.base
	if rt == nil {
		rt = http.DefaultTransport
	}
	resp, err := rt.RoundTrip(req)
	if err != nil {
		log.Debug().Err(err).
			Str("method", req.Method).
			Str("url", req.URL.Redacted()).
			Dur("elapsed", time.Since(start)).
			Msg("google api request failed")
		return resp, err
	}

	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("google api request")
	return resp, nil
}
