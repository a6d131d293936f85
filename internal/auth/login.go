package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const callbackPath = "/oauth2/callback"

// LoginOptions tune the interactive loopback flow.
type LoginOptions struct {
	// Host is used in the redirect URL; it must match the OAuth client.
	Host string
	// Timeout bounds how long to wait for the browser redirect.
	Timeout time.Duration
	// Out receives the consent URL.
	Out io.Writer
}

// Login runs the installed-app loopback flow: it starts a temporary HTTP
// server on a random local port, prints the consent URL, waits for the
// redirect carrying the auth code, exchanges it and saves the token.
func Login(ctx context.Context, credentialsPath string, store TokenStore, opts LoginOptions) error {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	config, err := LoadOAuthConfig(credentialsPath)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen on loopback: %w", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	config.RedirectURL = fmt.Sprintf("http://%s:%d%s", opts.Host, port, callbackPath)

	state, err := newState()
	if err != nil {
		return err
	}

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.Handle(callbackPath, callbackHandler(state, codeCh))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)
	defer srv.Close()

	url := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(opts.Out, "Open this URL to authorize mailassist:\n\n%s\n\n", url)

	var code string
	select {
	case code = <-codeCh:
	case <-time.After(opts.Timeout):
		return fmt.Errorf("authorization timeout after %s", opts.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange auth code: %w", err)
	}
	if err := store.Save(token, config); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// callbackHandler accepts the OAuth redirect and forwards the code once.
func callbackHandler(state string, codeCh chan<- string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied: "+e, http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "code missing", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Authorization received. You can close this tab.")
		select {
		case codeCh <- code:
		default:
		}
	})
}

// newState generates a random 32-character hex state value.
func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
