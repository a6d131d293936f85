// Package api serves the mailassist HTTP interface: listing, reading, sending
// and drafting Gmail messages, and generating replies and summaries for them.
package api

import (
	"context"
	"net/http"

	"github.com/daviddao/mailassist/internal/assistant"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gm "google.golang.org/api/gmail/v1"
)

// SessionProvider yields an authenticated Gmail service per request.
type SessionProvider interface {
	Service(ctx context.Context) (*gm.Service, error)
}

// Options tune the HTTP surface.
type Options struct {
	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string
}

// Server routes API requests to the mailbox client and the assistant.
type Server struct {
	sessions  SessionProvider
	assistant *assistant.Assistant
	origins   []string
	handler   http.Handler
}

// NewServer wires the routes and middleware.
func NewServer(sessions SessionProvider, asst *assistant.Assistant, opts Options) *Server {
	s := &Server{
		sessions:  sessions,
		assistant: asst,
		origins:   opts.CORSOrigins,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /emails", s.handleList)
	mux.HandleFunc("GET /emails/{$}", s.handleList)
	mux.HandleFunc("GET /emails/{id}", s.handleGet)
	mux.HandleFunc("POST /emails/send", s.handleSend)
	mux.HandleFunc("POST /emails/draft", s.handleDraft)
	mux.HandleFunc("POST /emails/{id}/auto-reply", s.handleAutoReply)
	mux.HandleFunc("POST /emails/{id}/summary", s.handleSummary)

	// instrument must sit directly on the mux so it can read r.Pattern.
	s.handler = requestID(s.cors(instrument(mux)))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
