package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
	"github.com/opensupplyhub/contribute/internal/store"
)

// submissionColumns is the ordered list of columns selected in submissions queries.
const submissionColumns = `moderation_id, session_id, request_type, os_id, status, claim_status,
	cleaned_data, created_at, updated_at, last_checked_at`

// scanSubmission scans a sql.Row (or sql.Rows via its Scan method) into a domain.Submission.
func scanSubmission(scanner interface{ Scan(dest ...any) error }) (*domain.Submission, error) {
	var sub domain.Submission

	var (
		requestType string
		osID        string
		status      string
		claimStatus string
		cleanedData string
		createdAt   string
		updatedAt   string
		lastChecked sql.NullString
	)

	err := scanner.Scan(
		&sub.ModerationID,
		&sub.SessionID,
		&requestType,
		&osID,
		&status,
		&claimStatus,
		&cleanedData,
		&createdAt,
		&updatedAt,
		&lastChecked,
	)
	if err != nil {
		return nil, err
	}

	sub.RequestType = domain.RequestType(requestType)
	sub.OSID = domain.OSID(osID)
	sub.Status = domain.ModerationStatus(status)
	sub.ClaimStatus = domain.ClaimStatus(claimStatus)

	if err := json.Unmarshal([]byte(cleanedData), &sub.CleanedData); err != nil {
		return nil, fmt.Errorf("decode cleaned_data: %w", err)
	}

	sub.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sub.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	sub.LastCheckedAt, err = parseNullableTime(lastChecked)
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

// PutSubmission inserts or replaces the cached copy of a submission.
func (s *Store) PutSubmission(ctx context.Context, sub *domain.Submission) error {
	data, err := json.Marshal(sub.CleanedData)
	if err != nil {
		return fmt.Errorf("encode cleaned_data: %w", err)
	}
	status := sub.Status
	if status == "" {
		status = domain.ModerationPending
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (
			moderation_id, session_id, request_type, os_id, status, claim_status,
			cleaned_data, created_at, updated_at, last_checked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(moderation_id) DO UPDATE SET
			session_id = excluded.session_id,
			request_type = excluded.request_type,
			os_id = excluded.os_id,
			status = excluded.status,
			claim_status = excluded.claim_status,
			cleaned_data = excluded.cleaned_data,
			updated_at = excluded.updated_at,
			last_checked_at = excluded.last_checked_at`,
		sub.ModerationID,
		sub.SessionID,
		string(sub.RequestType),
		string(sub.OSID),
		string(status),
		string(sub.ClaimStatus),
		string(data),
		formatTime(sub.CreatedAt),
		formatTime(sub.UpdatedAt),
		nullTimeString(sub.LastCheckedAt),
	)
	if err != nil {
		return fmt.Errorf("put submission: %w", err)
	}
	return nil
}

// GetSubmission retrieves a cached submission by moderation id.
// Returns store.ErrNotFound if it is not cached.
func (s *Store) GetSubmission(ctx context.Context, moderationID string) (*domain.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE moderation_id = ?`, moderationID)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListSessionSubmissions returns a session's submissions, newest first.
func (s *Store) ListSessionSubmissions(ctx context.Context, sessionID string) ([]*domain.Submission, error) {
	return s.query(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE session_id = ? ORDER BY created_at DESC`,
		sessionID)
}

// ListPendingSubmissions returns up to limit pending submissions, least recently checked first.
func (s *Store) ListPendingSubmissions(ctx context.Context, limit int) ([]*domain.Submission, error) {
	return s.query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		WHERE status = 'PENDING'
		ORDER BY COALESCE(last_checked_at, '') ASC, created_at ASC
		LIMIT ?`,
		limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// RecordCheck stores the outcome of polling the backend for a submission and reports
// whether its status, os id or claim status changed.
func (s *Store) RecordCheck(ctx context.Context, moderationID string, status domain.ModerationStatus,
	osID domain.OSID, claim domain.ClaimStatus, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = ?, os_id = CASE WHEN ? = '' THEN os_id ELSE ? END, claim_status = ?,
			updated_at = ?, last_checked_at = ?
		WHERE moderation_id = ? AND (status != ? OR (? != '' AND os_id != ?) OR claim_status != ?)`,
		string(status), string(osID), string(osID), string(claim),
		formatTime(at), formatTime(at),
		moderationID, string(status), string(osID), string(osID), string(claim),
	)
	if err != nil {
		return false, fmt.Errorf("record check: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	// Unchanged: only move the check cursor.
	_, err = s.db.ExecContext(ctx,
		`UPDATE submissions SET last_checked_at = ? WHERE moderation_id = ?`,
		formatTime(at), moderationID)
	if err != nil {
		return false, fmt.Errorf("record check: %w", err)
	}
	return false, nil
}

// DeleteSubmissionsBefore drops settled submissions last updated before cutoff.
func (s *Store) DeleteSubmissionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM submissions WHERE status != 'PENDING' AND updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete submissions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
