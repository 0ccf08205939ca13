// Package login keeps the bearer tokens handed out at login. A token is
// opaque to the client and maps to exactly one game session.
package login

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("login token not found")

type Store struct {
	db *sql.DB
}

// NewStore expects the logins table to exist (see migrations).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Issue creates a fresh random token for sessionID.
func (s *Store) Issue(ctx context.Context, sessionID string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO logins (token, session_id, created_at)
		VALUES (lower(hex(randomblob(16))), ?, ?)
		RETURNING token
	`, sessionID, time.Now().UTC().Format(time.RFC3339)).Scan(&token)
	if err != nil {
		return "", fmt.Errorf("issuing token for %s: %w", sessionID, err)
	}
	return token, nil
}

// Lookup returns the session a token was issued for, or ErrNotFound.
func (s *Store) Lookup(ctx context.Context, token string) (string, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id FROM logins WHERE token = ?`, token,
	).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up token: %w", err)
	}
	return sessionID, nil
}

// Revoke drops every token issued for sessionID.
func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM logins WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("revoking tokens for %s: %w", sessionID, err)
	}
	return nil
}
