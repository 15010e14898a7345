package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

const defaultMaxAttempts = 3

// EnqueueJob adds a pending job. ID defaults to a new UUID, RunAfter to now
// and MaxAttempts to 3.
func (s *Store) EnqueueJob(job Job) error {
	now := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = defaultMaxAttempts
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, JobPending, job.MaxAttempts,
		formatTime(job.RunAfter), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("enqueueing %s job: %w", job.Type, err)
	}
	return nil
}

// ClaimNextJob marks the oldest due pending job of one of types as running
// and returns it, or returns nil when nothing is due.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := formatTime(time.Now())
	args := []any{JobRunning, now, JobPending, now}
	for _, t := range types {
		args = append(args, t)
	}
	args = append(args, JobPending)

	row := s.db.QueryRow(`
		UPDATE jobs SET status = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = ? AND run_after <= ? AND type IN (?`+strings.Repeat(",?", len(types)-1)+`)
			ORDER BY run_after, created_at
			LIMIT 1
		) AND status = ?
		RETURNING id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error`,
		args...)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return &j, nil
}

func scanJob(row rowScanner) (Job, error) {
	var (
		j                              Job
		runAfter, createdAt, updatedAt string
		lastError                      sql.NullString
	)
	err := row.Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError)
	if err != nil {
		return Job{}, err
	}
	j.LastError = lastError.String
	if j.RunAfter, err = parseTime(runAfter); err != nil {
		return Job{}, err
	}
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return Job{}, err
	}
	if j.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Job{}, err
	}
	return j, nil
}

// CompleteJob marks a job as done.
func (s *Store) CompleteJob(id string) error {
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		JobCompleted, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob records a failed attempt. The job goes back to pending with a
// 2^attempts second delay, or to failed once max_attempts is reached.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now()
	attempts++
	status, runAfter := JobPending, now.Add(time.Duration(1<<attempts)*time.Second)
	if attempts >= maxAttempts {
		status, runAfter = JobFailed, now
	}

	if _, err := tx.Exec(`
		UPDATE jobs SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ?
		WHERE id = ?`,
		status, attempts, errMsg, formatTime(runAfter), formatTime(now), id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// CountJobs returns the number of jobs per status.
func (s *Store) CountJobs() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
