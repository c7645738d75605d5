package store

import (
	"database/sql"
	"fmt"
	"time"
)

// FlagStore is a generic key/value slot store backing ephemeral runtime
// state. Values are opaque strings; callers own the encoding.
type FlagStore struct {
	q Querier
}

func NewFlagStore(db *sql.DB) *FlagStore {
	return &FlagStore{q: db}
}

// Get returns the value and last update time for a key. A missing key is
// reported via the bool, not an error.
func (s *FlagStore) Get(key string) (string, time.Time, bool, error) {
	var value string
	var updatedAt time.Time
	err := s.q.QueryRow(`SELECT value, updated_at FROM runtime_flags WHERE key = ?`, key).
		Scan(&value, &updatedAt)
	if err == sql.ErrNoRows {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("get flag %q: %w", key, err)
	}
	return value, updatedAt, true, nil
}

func (s *FlagStore) Set(key, value string) error {
	_, err := s.q.Exec(
		`INSERT INTO runtime_flags (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set flag %q: %w", key, err)
	}
	return nil
}

func (s *FlagStore) Delete(key string) error {
	_, err := s.q.Exec(`DELETE FROM runtime_flags WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete flag %q: %w", key, err)
	}
	return nil
}
