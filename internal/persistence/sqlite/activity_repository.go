package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/focus-timer/internal/persistence"
)

const activityColumns = `
	id, session_id, owner_id, subject_id, subject_title, kind,
	start_time, end_time, duration_minutes, local_date, created_at`

// ActivityRepository implements persistence.ActivityRepository using SQLite.
// Entries are write-once; session_id is unique.
type ActivityRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewActivityRepository creates a new SQLite activity log repository
func NewActivityRepository(pool *ConnectionPool) *ActivityRepository {
	return &ActivityRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// AppendActivity stores an archival entry. It returns persistence.ErrDuplicate
// when the session has already been archived.
func (r *ActivityRepository) AppendActivity(ctx context.Context, entry persistence.ActivityLogEntry) error {
	if entry.ID == "" || entry.SessionID == "" || entry.LocalDate == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO activity_log (` + activityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.helper.Exec(ctx, query,
		entry.ID,
		entry.SessionID,
		entry.OwnerID,
		entry.SubjectID,
		entry.SubjectTitle,
		entry.Kind,
		formatTime(entry.StartTime),
		formatTime(entry.EndTime),
		entry.DurationMinutes,
		entry.LocalDate,
		formatTime(entry.CreatedAt),
	)
	return err
}

// GetActivityBySession returns the archival entry written for a session.
func (r *ActivityRepository) GetActivityBySession(ctx context.Context, sessionID string) (persistence.ActivityLogEntry, error) {
	query := `SELECT ` + activityColumns + ` FROM activity_log WHERE session_id = ?`

	rows, err := r.helper.Query(ctx, query, sessionID)
	if err != nil {
		return persistence.ActivityLogEntry{}, r.mapper.MapError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return persistence.ActivityLogEntry{}, r.mapper.MapError(err)
		}
		return persistence.ActivityLogEntry{}, persistence.ErrNotFound
	}
	return scanActivity(rows)
}

// ListActivity returns an owner's entries within an inclusive local date
// range, oldest first. Empty bounds are open.
func (r *ActivityRepository) ListActivity(ctx context.Context, filter persistence.ActivityFilter) ([]persistence.ActivityLogEntry, error) {
	var (
		conditions = []string{"owner_id = ?"}
		args       = []any{filter.OwnerID}
	)
	if filter.FromDate != "" {
		conditions = append(conditions, "local_date >= ?")
		args = append(args, filter.FromDate)
	}
	if filter.ToDate != "" {
		conditions = append(conditions, "local_date <= ?")
		args = append(args, filter.ToDate)
	}

	query := `SELECT ` + activityColumns + `
		FROM activity_log
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY local_date ASC, start_time ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	entries := make([]persistence.ActivityLogEntry, 0)
	for rows.Next() {
		entry, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return entries, nil
}

func scanActivity(rows *sql.Rows) (persistence.ActivityLogEntry, error) {
	var (
		entry                         persistence.ActivityLogEntry
		startTime, endTime, createdAt string
	)

	if err := rows.Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.OwnerID,
		&entry.SubjectID,
		&entry.SubjectTitle,
		&entry.Kind,
		&startTime,
		&endTime,
		&entry.DurationMinutes,
		&entry.LocalDate,
		&createdAt,
	); err != nil {
		return persistence.ActivityLogEntry{}, fmt.Errorf("failed to scan activity entry: %w", err)
	}

	var err error
	if entry.StartTime, err = parseTime(startTime); err != nil {
		return persistence.ActivityLogEntry{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if entry.EndTime, err = parseTime(endTime); err != nil {
		return persistence.ActivityLogEntry{}, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ActivityLogEntry{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return entry, nil
}
