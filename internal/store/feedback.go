package store

import (
	"database/sql"
	"errors"
	"time"
)

// PracticeRun is one attempt at a practice sequence.
type PracticeRun struct {
	ID          string
	SequenceID  string
	PoseCount   int
	SummaryText string
	CreatedAt   time.Time
}

// Feedback is the coaching result for one completed pose.
type Feedback struct {
	ID           string
	RunID        string
	PoseIndex    int
	ExpectedPose string
	DetectedPose string
	SpeechText   string
	Explanation  string
	AudioURI     string
	Error        string
	CreatedAt    time.Time
}

// FeedbackRepository stores practice runs and their per-pose feedback.
type FeedbackRepository struct {
	db *sql.DB
}

// Feedback returns the feedback repository for this store.
func (s *Store) Feedback() *FeedbackRepository {
	return &FeedbackRepository{db: s.db}
}

// CreateRun inserts a new practice run.
func (r *FeedbackRepository) CreateRun(run *PracticeRun) error {
	run.CreatedAt = time.Now()
	_, err := r.db.Exec(
		`INSERT INTO practice_runs (id, sequence_id, pose_count, summary_text, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.SequenceID, run.PoseCount, run.SummaryText, run.CreatedAt,
	)
	return err
}

// GetRun retrieves a run by ID.
func (r *FeedbackRepository) GetRun(id string) (*PracticeRun, error) {
	run := &PracticeRun{}
	err := r.db.QueryRow(
		`SELECT id, sequence_id, pose_count, summary_text, created_at
		 FROM practice_runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.SequenceID, &run.PoseCount, &run.SummaryText, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// SetSummary stores the end-of-run summary text.
func (r *FeedbackRepository) SetSummary(runID, summary string) error {
	result, err := r.db.Exec(`UPDATE practice_runs SET summary_text = ? WHERE id = ?`, summary, runID)
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

// DeleteRun removes a run and, through the foreign key, its feedback.
func (r *FeedbackRepository) DeleteRun(id string) error {
	_, err := r.db.Exec(`DELETE FROM practice_runs WHERE id = ?`, id)
	return err
}

// Add appends a feedback entry to its run.
func (r *FeedbackRepository) Add(f *Feedback) error {
	f.CreatedAt = time.Now()
	_, err := r.db.Exec(
		`INSERT INTO feedback (id, run_id, pose_index, expected_pose, detected_pose,
		 speech_text, explanation, audio_uri, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.RunID, f.PoseIndex, f.ExpectedPose, f.DetectedPose,
		f.SpeechText, f.Explanation, f.AudioURI, f.Error, f.CreatedAt,
	)
	return err
}

// ListByRun returns the feedback for a run in the order it was recorded.
func (r *FeedbackRepository) ListByRun(runID string) ([]*Feedback, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, pose_index, expected_pose, detected_pose,
		 speech_text, explanation, audio_uri, error, created_at
		 FROM feedback WHERE run_id = ? ORDER BY created_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Feedback
	for rows.Next() {
		f := &Feedback{}
		if err := rows.Scan(&f.ID, &f.RunID, &f.PoseIndex, &f.ExpectedPose, &f.DetectedPose,
			&f.SpeechText, &f.Explanation, &f.AudioURI, &f.Error, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountByRun returns how many feedback entries a run has.
func (r *FeedbackRepository) CountByRun(runID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feedback WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
