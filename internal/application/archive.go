package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/example/focus-timer/internal/persistence"
)

const localDateLayout = "2006-01-02"

// ActivityRepository captures the archival log operations. Entries are never
// updated or deleted.
type ActivityRepository interface {
	AppendActivity(ctx context.Context, entry ActivityLogEntry) error
	GetActivityBySession(ctx context.Context, sessionID string) (ActivityLogEntry, error)
	ListActivity(ctx context.Context, ownerID, fromDate, toDate string) ([]ActivityLogEntry, error)
}

// Archiver turns a finished session into its permanent activity log entry.
type Archiver struct {
	activity    ActivityRepository
	location    *time.Location
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewArchiver constructs an Archiver. local_date is computed in location;
// nil means UTC.
func NewArchiver(activity ActivityRepository, location *time.Location, idGenerator func() string, now func() time.Time) *Archiver {
	return NewArchiverWithLogger(activity, location, idGenerator, now, nil)
}

// NewArchiverWithLogger constructs an Archiver with a specified logger.
func NewArchiverWithLogger(activity ActivityRepository, location *time.Location, idGenerator func() string, now func() time.Time, logger *slog.Logger) *Archiver {
	if location == nil {
		location = time.UTC
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &Archiver{
		activity:    activity,
		location:    location,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (a *Archiver) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, a.logger, "Archiver", operation, attrs...)
}

// Archive writes the activity log entry for session. When the session was
// already archived by an earlier attempt, the existing entry is returned and
// no second entry is written.
func (a *Archiver) Archive(ctx context.Context, session TimerSession) (entry ActivityLogEntry, err error) {
	if a == nil || a.activity == nil {
		err = fmt.Errorf("activity repository not configured")
		return
	}

	logger := a.loggerWith(ctx, "Archive",
		"session_id", session.ID,
		"owner_id", session.OwnerID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to archive session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"activity_id", entry.ID,
			"duration_minutes", entry.DurationMinutes,
		).InfoContext(ctx, "session archived")
	}()

	now := a.now()
	entry = ActivityLogEntry{
		ID:              a.idGenerator(),
		SessionID:       session.ID,
		OwnerID:         session.OwnerID,
		SubjectID:       session.SubjectID,
		SubjectTitle:    session.SubjectTitle,
		Kind:            session.Kind,
		StartTime:       session.StartTime,
		EndTime:         now,
		DurationMinutes: DurationMinutes(session.ObservedSeconds),
		LocalDate:       session.StartTime.In(a.location).Format(localDateLayout),
		CreatedAt:       now,
	}

	err = a.activity.AppendActivity(ctx, entry)
	if err == nil {
		return
	}
	if !errors.Is(err, persistence.ErrDuplicate) && !errors.Is(err, ErrAlreadyExists) {
		err = mapTimerRepoError(err)
		return
	}

	logger.InfoContext(ctx, "session already archived, reusing entry")
	entry, err = a.activity.GetActivityBySession(ctx, session.ID)
	if err != nil {
		err = mapTimerRepoError(err)
	}
	return
}

// ListActivity returns an owner's entries between two inclusive local dates.
func (a *Archiver) ListActivity(ctx context.Context, ownerID, fromDate, toDate string) ([]ActivityLogEntry, error) {
	if a == nil || a.activity == nil {
		return nil, fmt.Errorf("activity repository not configured")
	}
	entries, err := a.activity.ListActivity(ctx, ownerID, fromDate, toDate)
	if err != nil {
		return nil, mapTimerRepoError(err)
	}
	return entries, nil
}

// DurationMinutes converts whole seconds to minutes, rounding half away
// from zero.
func DurationMinutes(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(float64(seconds) / 60))
}
