package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Token is a cached OAuth token.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
}

// LoadToken returns the token saved under name, or nil if there is none.
func (s *Store) LoadToken(name string) (*Token, error) {
	row := s.db.QueryRow("SELECT access_token, token_type, refresh_token, expiry FROM Token WHERE name = ?", name)
	var tok Token
	var expiry sql.NullTime
	err := row.Scan(&tok.AccessToken, &tok.TokenType, &tok.RefreshToken, &expiry)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting token %q: %w", name, err)
	}
	tok.Expiry = expiry.Time
	return &tok, nil
}

// SaveToken stores tok under name, replacing any previous token.
func (s *Store) SaveToken(name string, tok Token) error {
	var expiry any
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.UTC()
	}
	_, err := s.db.Exec(`
INSERT INTO Token (name, access_token, token_type, refresh_token, expiry)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  access_token = excluded.access_token,
  token_type = excluded.token_type,
  refresh_token = excluded.refresh_token,
  expiry = excluded.expiry`,
		name, tok.AccessToken, tok.TokenType, tok.RefreshToken, expiry)
	if err != nil {
		return fmt.Errorf("saving token %q: %w", name, err)
	}
	return nil
}
