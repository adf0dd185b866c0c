package store

import "fmt"

// schema holds one entry per schema version. Entries are append-only; the
// applied version is tracked in PRAGMA user_version.
var schema = []string{
	// 1: session state documents keyed by name (calibration profile,
	// retargeted expert segments) and the practice feedback log.
	`CREATE TABLE session_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE practice_runs (
		id TEXT PRIMARY KEY,
		sequence_id TEXT NOT NULL,
		pose_count INTEGER NOT NULL,
		summary_text TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE feedback (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES practice_runs(id) ON DELETE CASCADE,
		pose_index INTEGER NOT NULL,
		expected_pose TEXT NOT NULL,
		detected_pose TEXT NOT NULL DEFAULT '',
		speech_text TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT '',
		audio_uri TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX idx_feedback_run_id ON feedback(run_id);`,
}

// Version reports the schema version the database is at.
func (s *Store) Version() (int, error) {
	var v int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// migrate applies every schema step past the recorded version, each in its
// own transaction.
func (s *Store) migrate() error {
	current, err := s.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > len(schema) {
		return fmt.Errorf("database schema v%d is newer than supported v%d", current, len(schema))
	}

	for v := current; v < len(schema); v++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(schema[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("schema v%d: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("schema v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
