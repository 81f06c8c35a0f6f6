// Package auth builds Spotify clients: an app client for reading playlists and
// a user client, authorized once in the browser, for creating them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ademuri/playlist-builder/internal/config"
	"github.com/ademuri/playlist-builder/internal/store"
)

var ErrMissingCredentials = errors.New("spotify client id and secret are required")

// TokenName is the ledger key of the cached user token.
const TokenName = "spotify"

// ReadClient returns a client authorized with the client-credentials grant,
// enough to read public playlists and catalog metadata.
func ReadClient(ctx context.Context, cfg config.Spotify) (*spotify.Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := cc.Token(ctx); err != nil {
		return nil, fmt.Errorf("getting client credentials token: %w", err)
	}
	return spotify.New(cc.Client(ctx)), nil
}

// TokenStore persists the user token between runs. *store.Store implements it.
type TokenStore interface {
	LoadToken(name string) (*store.Token, error)
	SaveToken(name string, tok store.Token) error
}

// Authenticator runs the authorization-code flow against a local callback
// server and caches the resulting token.
type Authenticator struct {
	auth     *spotifyauth.Authenticator
	oauth    *oauth2.Config
	redirect *url.URL
	tokens   TokenStore

	// Prompt is shown the URL the user has to open. It defaults to logging it.
	Prompt func(authURL string)
}

func New(cfg config.Spotify, tokens TokenStore) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	redirect, err := url.Parse(cfg.RedirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("invalid redirect uri %q", cfg.RedirectURI)
	}

	scopes := []string{spotifyauth.ScopePlaylistModifyPrivate}
	return &Authenticator{
		auth: spotifyauth.New(
			spotifyauth.WithClientID(cfg.ClientID),
			spotifyauth.WithClientSecret(cfg.ClientSecret),
			spotifyauth.WithRedirectURL(cfg.RedirectURI),
			spotifyauth.WithScopes(scopes...),
		),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		redirect: redirect,
		tokens:   tokens,
		Prompt: func(authURL string) {
			log.Info().Str("url", authURL).Msg("Open this URL to authorize playlist creation")
		},
	}, nil
}

type loginResult struct {
	token *oauth2.Token
	err   error
}

// Login runs the browser flow and saves the token. It blocks until the
// callback arrives or ctx is done.
func (a *Authenticator) Login(ctx context.Context) (*oauth2.Token, error) {
	state := uuid.NewString()
	done := make(chan loginResult, 1)

	mux := http.NewServeMux()
	mux.Handle(a.callbackPath(), a.callback(state, done))
	ln, err := net.Listen("tcp", a.redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("listening for callback on %s: %w", a.redirect.Host, err)
	}
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	a.Prompt(a.auth.AuthURL(state))

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("authorizing: %w", res.err)
		}
		if err := a.save(res.token); err != nil {
			return nil, err
		}
		return res.token, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Authenticator) callbackPath() string {
	if a.redirect.Path == "" {
		return "/"
	}
	return a.redirect.Path
}

// callback exchanges the authorization code. Only the first request on the
// redirect path is reported on done; browsers also ask for things like
// /favicon.ico, which get a 404.
func (a *Authenticator) callback(state string, done chan<- loginResult) http.Handler {
	var once sync.Once
	path := a.callbackPath()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		tok, err := a.auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Authorization failed", http.StatusForbidden)
		} else {
			fmt.Fprintln(w, "Authorized, you can close this window.")
		}
		once.Do(func() { done <- loginResult{token: tok, err: err} })
	})
}

// UserClient returns a client acting as the user. A cached token is reused
// and refreshed as needed; without one, Login runs first.
func (a *Authenticator) UserClient(ctx context.Context) (*spotify.Client, error) {
	tok, err := a.cached()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		if tok, err = a.Login(ctx); err != nil {
			return nil, err
		}
	}

	src := oauth2.ReuseTokenSource(tok, &savingSource{
		base: a.oauth.TokenSource(ctx, tok),
		last: tok.AccessToken,
		save: a.save,
	})
	return spotify.New(oauth2.NewClient(ctx, src)), nil
}

func (a *Authenticator) cached() (*oauth2.Token, error) {
	saved, err := a.tokens.LoadToken(TokenName)
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}
	if saved == nil || saved.RefreshToken == "" {
		return nil, nil
	}
	return &oauth2.Token{
		AccessToken:  saved.AccessToken,
		TokenType:    saved.TokenType,
		RefreshToken: saved.RefreshToken,
		Expiry:       saved.Expiry,
	}, nil
}

func (a *Authenticator) save(tok *oauth2.Token) error {
	if err := a.tokens.SaveToken(TokenName, store.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}); err != nil {
		return fmt.Errorf("caching token: %w", err)
	}
	return nil
}

// savingSource writes every newly issued token back to the cache.
type savingSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last string
	save func(*oauth2.Token) error
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.save(tok); err != nil {
			log.Warn().Err(err).Msg("Could not cache refreshed token")
		}
	}
	return tok, nil
}
