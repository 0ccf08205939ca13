// Package snapshot keeps the latest serialized game state of each session
// in a named slot. Writes overwrite the whole slot; there is no history.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("snapshot not found")

// SlotPrefix names the slot family holding game states.
const SlotPrefix = "fragment-forge-state"

// Slot returns the slot name for a session.
func Slot(sessionID string) string {
	return SlotPrefix + ":" + sessionID
}

type Store struct {
	db *sql.DB
}

// NewStore expects the snapshots table to exist (see migrations).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the blob stored in slot, or ErrNotFound.
func (s *Store) Load(ctx context.Context, slot string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE slot = ?`, slot,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %q: %w", slot, err)
	}
	return []byte(data), nil
}

// Save replaces the content of slot with data.
func (s *Store) Save(ctx context.Context, slot string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (slot, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		slot, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", slot, err)
	}
	return nil
}

// Ping reports whether the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
