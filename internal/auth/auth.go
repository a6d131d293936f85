// Package auth provides Google OAuth2 authentication for mailassist.
//
// It reads the same credentials.json and token.json files used by the
// Python google-auth library, so existing tokens work without re-authentication.
// Tokens may alternatively live in the OS keyring.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultScopes grant read, send and compose access.
var DefaultScopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	gmail.GmailComposeScope,
}

// ErrNoToken is returned when no stored token exists yet; run the login flow.
var ErrNoToken = errors.New("no oauth token stored")

// Provider yields authenticated Gmail sessions. Each call reloads the stored
// token, refreshes it if needed and persists the refreshed token. The whole
// cycle runs under a lock so concurrent requests never race on refresh.
type Provider struct {
	credentialsPath string
	store           TokenStore
	scopes          []string

	mu sync.Mutex
}

// NewProvider returns a Provider reading the client secret from
// credentialsPath and tokens from store.
func NewProvider(credentialsPath string, store TokenStore) *Provider {
	return &Provider{
		credentialsPath: credentialsPath,
		store:           store,
		scopes:          DefaultScopes,
	}
}

// Service returns an authenticated Gmail API service.
func (p *Provider) Service(ctx context.Context) (*gmail.Service, error) {
	client, err := p.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("get oauth client: %w", err)
	}
	return gmail.NewService(ctx, option.WithHTTPClient(client))
}

// Client returns an authenticated HTTP client, refreshing and saving the
// token first if it has expired.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	config, err := LoadOAuthConfig(p.credentialsPath, p.scopes...)
	if err != nil {
		return nil, err
	}

	token, err := p.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: &loggingTransport{base: http.DefaultTransport},
	})

	// Use a token source that auto-refreshes and save the refreshed token.
	ts := config.TokenSource(ctx, token)
	newToken, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if newToken.AccessToken != token.AccessToken {
		if saveErr := p.store.Save(newToken, config); saveErr != nil {
			// Non-fatal: the refreshed token is still usable for this session.
			log.Warn().Err(saveErr).Msg("could not save refreshed token")
		} else {
			log.Debug().Time("expiry", newToken.Expiry).Msg("oauth token refreshed")
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

// LoadOAuthConfig reads credentials.json and returns an OAuth2 config.
func LoadOAuthConfig(credentialsPath string, scopes ...string) (*oauth2.Config, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials from %s: %w", credentialsPath, err)
	}

	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return config, nil
}
