package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestStore creates a new Store with an in-memory database for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New("")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestNewStore_InMemoryByDefault(t *testing.T) {
	s := newTestStore(t)
	if s.Path() != MemoryPath {
		t.Errorf("Path() = %q, want %q", s.Path(), MemoryPath)
	}
}

func TestNewStore_CreatesDatabaseFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "session.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
}

func TestNewStore_ReopenKeepsSchemaAndState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.State().Put("calibration.v1", "{}"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	v, err := s.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v != len(schema) {
		t.Errorf("Version() = %d, want %d", v, len(schema))
	}
	if _, err := s.State().Get("calibration.v1"); err != nil {
		t.Errorf("state lost across reopen: %v", err)
	}
}

func TestNewStore_RejectsNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.DB().Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	s.Close()

	if _, err := New(dbPath); err == nil {
		t.Fatal("New() should refuse a newer schema")
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	tables := []string{"session_state", "practice_runs", "feedback"}
	for _, table := range tables {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	// After closing, DB operations should fail
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStateRepository(t *testing.T) {
	repo := newTestStore(t).State()

	if _, err := repo.Get("calibration.v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on empty store error = %v, want ErrNotFound", err)
	}

	if err := repo.Put("calibration.v1", `{"a":1}`); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := repo.Put("calibration.v1", `{"a":2}`); err != nil {
		t.Fatalf("Put() replace error = %v", err)
	}
	got, err := repo.Get("calibration.v1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != `{"a":2}` {
		t.Errorf("Get() = %q, want replaced value", got)
	}

	if err := repo.Delete("calibration.v1"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := repo.Delete("calibration.v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStateRepository_Prefix(t *testing.T) {
	repo := newTestStore(t).State()

	err := repo.PutAll(map[string]string{
		"expert_transformed.1.S1.v1": "a",
		"expert_transformed.1.S2.v1": "b",
		"expert_transformed.v1":      "b",
		"expert_transformedX":        "literal",
		"calibration.v1":             "c",
	})
	if err != nil {
		t.Fatalf("PutAll() error = %v", err)
	}

	keys, err := repo.Keys("expert_transformed.")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("Keys() = %v, want 3 keys", keys)
	}

	// "_" and "%" in a prefix are literal, not wildcards
	keys, err = repo.Keys("expert_")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 4 {
		t.Errorf("Keys(expert_) = %v, want 4 keys", keys)
	}

	n, err := repo.DeletePrefix("expert_transformed.")
	if err != nil {
		t.Fatalf("DeletePrefix() error = %v", err)
	}
	if n != 3 {
		t.Errorf("DeletePrefix() = %d, want 3", n)
	}
	if _, err := repo.Get("calibration.v1"); err != nil {
		t.Errorf("calibration should survive prefix delete: %v", err)
	}
	if _, err := repo.Get("expert_transformedX"); err != nil {
		t.Errorf("non-matching key should survive prefix delete: %v", err)
	}
}

func TestFeedbackRepository(t *testing.T) {
	repo := newTestStore(t).Feedback()

	run := &PracticeRun{ID: "run-1", SequenceID: "1", PoseCount: 3}
	if err := repo.CreateRun(run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	for i, name := range []string{"Wuji", "Open and close lotus flower"} {
		err := repo.Add(&Feedback{
			ID:           "fb-" + name,
			RunID:        run.ID,
			PoseIndex:    i,
			ExpectedPose: name,
			DetectedPose: name,
			SpeechText:   "Relax your shoulders.",
		})
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	n, err := repo.CountByRun(run.ID)
	if err != nil {
		t.Fatalf("CountByRun() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountByRun() = %d, want 2", n)
	}

	list, err := repo.ListByRun(run.ID)
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	if len(list) != 2 || list[0].ExpectedPose != "Wuji" {
		t.Errorf("ListByRun() = %+v", list)
	}

	if err := repo.SetSummary(run.ID, "Good session."); err != nil {
		t.Fatalf("SetSummary() error = %v", err)
	}
	got, err := repo.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.SummaryText != "Good session." {
		t.Errorf("SummaryText = %q", got.SummaryText)
	}

	if err := repo.SetSummary("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetSummary(missing) error = %v, want ErrNotFound", err)
	}

	// feedback for an unknown run violates the foreign key
	if err := repo.Add(&Feedback{ID: "orphan", RunID: "nope", ExpectedPose: "Wuji"}); err == nil {
		t.Error("Add() with unknown run should fail")
	}

	if err := repo.DeleteRun(run.ID); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}
	n, _ = repo.CountByRun(run.ID)
	if n != 0 {
		t.Errorf("CountByRun() after delete = %d, want 0", n)
	}
	if _, err := repo.GetRun(run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() after delete error = %v, want ErrNotFound", err)
	}
}
