package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/focus-timer/internal/persistence"
)

const sessionColumns = `
	id, owner_id, subject_id, subject_title, kind, status, start_time,
	target_seconds, observed_seconds, paused_seconds, paused_at,
	origin_device_id, created_at, last_updated_at`

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite timer session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// FindActiveRunning returns the most recently updated RUNNING session for
// the owner and subject. Ties on last_updated_at fall back to created_at.
func (r *SessionRepository) FindActiveRunning(ctx context.Context, ownerID, subjectID string) (persistence.TimerSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM timer_sessions
		WHERE owner_id = ? AND subject_id = ? AND status = 'RUNNING'
		ORDER BY last_updated_at DESC, created_at DESC, id DESC
		LIMIT 1`

	return r.scanOne(r.helper.QueryRow(ctx, query, ownerID, subjectID))
}

// FindLatestRunning returns the most recently updated RUNNING session of the
// owner across all subjects.
func (r *SessionRepository) FindLatestRunning(ctx context.Context, ownerID string) (persistence.TimerSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM timer_sessions
		WHERE owner_id = ? AND status = 'RUNNING'
		ORDER BY last_updated_at DESC, created_at DESC, id DESC
		LIMIT 1`

	return r.scanOne(r.helper.QueryRow(ctx, query, ownerID))
}

// GetSession retrieves a session by ID regardless of status.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.TimerSession, error) {
	if id == "" {
		return persistence.TimerSession{}, persistence.ErrNotFound
	}

	query := `SELECT ` + sessionColumns + ` FROM timer_sessions WHERE id = ?`
	return r.scanOne(r.helper.QueryRow(ctx, query, id))
}

// InsertSession stores a new session row.
func (r *SessionRepository) InsertSession(ctx context.Context, session persistence.TimerSession) error {
	if session.ID == "" || session.OwnerID == "" || session.SubjectID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO timer_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.helper.Exec(ctx, query,
		session.ID,
		session.OwnerID,
		session.SubjectID,
		session.SubjectTitle,
		session.Kind,
		session.Status,
		formatTime(session.StartTime),
		session.TargetSeconds,
		session.ObservedSeconds,
		session.PausedSeconds,
		formatNullableTime(session.PausedAt),
		session.OriginDeviceID,
		formatTime(session.CreatedAt),
		formatTime(session.LastUpdatedAt),
	)
	return err
}

// UpdateSession overwrites the mutable snapshot fields of an existing row.
// Ownership and creation time never change.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.TimerSession) error {
	if session.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE timer_sessions
		SET subject_title = ?, kind = ?, status = ?, start_time = ?,
			target_seconds = ?, observed_seconds = ?, paused_seconds = ?,
			paused_at = ?, origin_device_id = ?, last_updated_at = ?
		WHERE id = ?`

	result, err := r.helper.Exec(ctx, query,
		session.SubjectTitle,
		session.Kind,
		session.Status,
		formatTime(session.StartTime),
		session.TargetSeconds,
		session.ObservedSeconds,
		session.PausedSeconds,
		formatNullableTime(session.PausedAt),
		session.OriginDeviceID,
		formatTime(session.LastUpdatedAt),
		session.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) scanOne(row *sql.Row) (persistence.TimerSession, error) {
	var (
		session                             persistence.TimerSession
		startTime, createdAt, lastUpdatedAt string
		pausedAt                            sql.NullString
	)

	err := row.Scan(
		&session.ID,
		&session.OwnerID,
		&session.SubjectID,
		&session.SubjectTitle,
		&session.Kind,
		&session.Status,
		&startTime,
		&session.TargetSeconds,
		&session.ObservedSeconds,
		&session.PausedSeconds,
		&pausedAt,
		&session.OriginDeviceID,
		&createdAt,
		&lastUpdatedAt,
	)
	if err != nil {
		return persistence.TimerSession{}, r.mapper.MapError(err)
	}

	if session.StartTime, err = parseTime(startTime); err != nil {
		return persistence.TimerSession{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.TimerSession{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.LastUpdatedAt, err = parseTime(lastUpdatedAt); err != nil {
		return persistence.TimerSession{}, fmt.Errorf("failed to parse last_updated_at: %w", err)
	}
	if session.PausedAt, err = parseNullableTime(pausedAt); err != nil {
		return persistence.TimerSession{}, fmt.Errorf("failed to parse paused_at: %w", err)
	}

	return session, nil
}
