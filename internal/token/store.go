// Package token manages the Google OAuth2 credential lifecycle: persisting
// the token granted during setup, transparently refreshing it near expiry,
// and handing the provider client an HTTP client that always carries a valid
// access token. Refresh failures surface as [AuthError] rather than being
// retried indefinitely; the setup flow must re-authorize.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// scopePhotosReadonly grants read-only access to the Photos library.
const scopePhotosReadonly = "https://www.googleapis.com/auth/photoslibrary.readonly"

// redirectURL is the loopback redirect used by the paste-the-code setup flow.
const redirectURL = "http://localhost"

// ErrNotConfigured reports that no credentials have been stored yet.
var ErrNotConfigured = errors.New("no credentials stored")

// AuthError reports invalid or unrefreshable credentials. The sync engine
// aborts a pass immediately on this error; recovery requires the user to run
// setup again.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication required: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// CredentialStore persists the OAuth2 token. Implemented by [state.Store].
type CredentialStore interface {
	// Credentials returns the stored token, or nil when none is configured.
	Credentials(ctx context.Context) (*oauth2.Token, error)
	// SetCredentials replaces the stored token.
	SetCredentials(ctx context.Context, tok *oauth2.Token) error
}

// Store supplies valid credentials to the provider client, refreshing and
// re-persisting them as needed. Safe for concurrent use.
type Store struct {
	creds CredentialStore
	conf  *oauth2.Config
	log   *slog.Logger

	mu sync.Mutex // serialises refreshes so only one hits the token endpoint
}

// NewStore creates a Store for the given OAuth2 application credentials.
func NewStore(creds CredentialStore, clientID, clientSecret string, logger *slog.Logger) *Store {
	return &Store{
		creds: creds,
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{scopePhotosReadonly},
			RedirectURL:  redirectURL,
		},
		log: logger,
	}
}

// Token returns a valid access token, refreshing an expiring one first and
// persisting the result. Returns [AuthError] when no credentials are stored
// or the refresh is rejected (e.g. the grant was revoked).
func (s *Store) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.creds.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if tok == nil {
		return nil, &AuthError{Err: ErrNotConfigured}
	}
	if tok.Valid() {
		return tok, nil
	}

	fresh, err := s.conf.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := s.creds.SetCredentials(ctx, fresh); err != nil {
			return nil, fmt.Errorf("persisting refreshed credentials: %w", err)
		}
		s.log.Debug("access token refreshed", "expiry", fresh.Expiry)
	}
	return fresh, nil
}

// Client returns an HTTP client whose transport injects the access token and
// transparently refreshes it, persisting every new token before use.
func (s *Store) Client(ctx context.Context) (*http.Client, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	src := &persistingSource{
		ctx:   ctx,
		store: s,
		ts:    oauth2.ReuseTokenSource(tok, s.conf.TokenSource(ctx, tok)),
		last:  tok.AccessToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

// Save persists a newly granted token, replacing any prior credentials.
func (s *Store) Save(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("refusing to store an empty token")
	}
	if err := s.creds.SetCredentials(ctx, tok); err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}
	return nil
}

// AuthCodeURL returns the Google consent page URL for the setup flow.
// Offline access is requested so a refresh token is granted.
func (s *Store) AuthCodeURL(state string) string {
	return s.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent select_account"),
	)
}

// Exchange trades an authorization code for a token and persists it.
func (s *Store) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := s.conf.Exchange(ctx, code)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("exchanging authorization code: %w", err)}
	}
	if err := s.Save(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// persistingSource wraps a TokenSource and persists every token the wrapped
// source mints, so a refresh performed mid-request survives a restart.
type persistingSource struct {
	ctx   context.Context
	store *Store
	ts    oauth2.TokenSource

	mu   sync.Mutex
	last string // access token already persisted
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.ts.Token()
	if err != nil {
		// Keep the oauth2.RetrieveError in the chain so the provider
		// client can classify this as an authorization failure.
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.store.creds.SetCredentials(p.ctx, tok); err != nil {
			return nil, fmt.Errorf("persisting refreshed credentials: %w", err)
		}
		p.last = tok.AccessToken
		p.store.log.Debug("access token refreshed", "expiry", tok.Expiry)
	}
	return tok, nil
}
