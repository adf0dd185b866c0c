package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// StateRepository stores opaque values by key. Writes replace the whole
// value in one statement, so readers never see a partial update.
type StateRepository struct {
	db *sql.DB
}

// State returns the session state repository for this store.
func (s *Store) State() *StateRepository {
	return &StateRepository{db: s.db}
}

// Get returns the value stored under key.
func (r *StateRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM session_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (r *StateRepository) Put(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// PutAll stores several values in one transaction.
func (r *StateRepository) PutAll(values map[string]string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for key, value := range values {
		if _, err := tx.Exec(
			`INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes key. Deleting a missing key returns ErrNotFound.
func (r *StateRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM session_state WHERE key = ?`, key)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (r *StateRepository) DeletePrefix(prefix string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM session_state WHERE key LIKE ? ESCAPE '\'`, likePrefix(prefix))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Keys lists keys starting with prefix in lexical order.
func (r *StateRepository) Keys(prefix string) ([]string, error) {
	rows, err := r.db.Query(`SELECT key FROM session_state WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
