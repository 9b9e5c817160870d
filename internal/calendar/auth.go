package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	log "log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Authorizer obtains a brand new token, usually by asking the user.
type Authorizer interface {
	Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)
}

// LoadOAuthConfig reads a client secrets file downloaded from the Google
// console.
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(b, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return conf, nil
}

// DefaultAuthTimeout bounds an interactive authorization. It is detached
// from the caller's deadline so a consent started by a chat message is not
// cut short by the per-call timeout.
const DefaultAuthTimeout = 5 * time.Minute

// TokenStore owns the token file. Every access holds mu, so concurrent
// callers observing an expired token refresh it once.
type TokenStore struct {
	path        string
	conf        *oauth2.Config
	auth        Authorizer
	authTimeout time.Duration

	mu sync.Mutex
}

func NewTokenStore(path string, conf *oauth2.Config, auth Authorizer) *TokenStore {
	return &TokenStore{path: path, conf: conf, auth: auth, authTimeout: DefaultAuthTimeout}
}

func (s *TokenStore) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.load()
	if err != nil {
		return nil, err
	}

	switch {
	case tok != nil && tok.Valid():
		return tok, nil
	case tok != nil && tok.RefreshToken != "":
		log.Debug("Refreshing calendar token", "expiry", tok.Expiry)
		fresh, err := s.conf.TokenSource(ctx, tok).Token()
		if err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		tok = fresh
	default:
		log.Info("No usable calendar token, starting authorization")
		if s.auth == nil {
			return nil, errors.New("authorization required but no authorizer configured")
		}
		authCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.authTimeout)
		tok, err = s.auth.Authorize(authCtx, s.conf)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("authorize: %w", err)
		}
	}

	if err := s.save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func (s *TokenStore) load() (*oauth2.Token, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		log.Warn("Ignoring corrupt token file", "path", s.path, "err", err)
		return nil, nil
	}
	return &tok, nil
}

// save writes through a temp file so readers never see half a token.
func (s *TokenStore) save(tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("save token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	log.Debug("Saved calendar token", "path", s.path)
	return nil
}

type storeSource struct {
	ctx   context.Context
	store *TokenStore
}

func (s storeSource) Token() (*oauth2.Token, error) {
	return s.store.Token(s.ctx)
}

// OAuthConnector loads the credential on every call and builds a fresh
// service around it. Token refreshes, code exchanges and API calls all go
// through client when it is set.
type OAuthConnector struct {
	store  *TokenStore
	client *http.Client
	opts   []option.ClientOption
}

func NewOAuthConnector(store *TokenStore, client *http.Client, opts ...option.ClientOption) *OAuthConnector {
	return &OAuthConnector{store: store, client: client, opts: opts}
}

func (c *OAuthConnector) Service(ctx context.Context) (*gcal.Service, error) {
	ctx = WithHTTPClient(ctx, c.client)
	tok, err := c.store.Token(ctx)
	if err != nil {
		return nil, err
	}

	src := oauth2.ReuseTokenSource(tok, storeSource{ctx: ctx, store: c.store})
	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, src))}, c.opts...)

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return svc, nil
}

// WithHTTPClient makes the oauth2 package use client for token requests made
// under ctx. A nil client leaves ctx untouched.
func WithHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
