package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/focus-timer/internal/persistence"
)

// SessionRepository captures the timer session persistence operations needed
// by the service. Lookups return ErrNotFound (or persistence.ErrNotFound)
// when nothing matches.
type SessionRepository interface {
	FindActiveRunning(ctx context.Context, ownerID, subjectID string) (TimerSession, error)
	FindLatestRunning(ctx context.Context, ownerID string) (TimerSession, error)
	InsertSession(ctx context.Context, session TimerSession) error
	UpdateSession(ctx context.Context, session TimerSession) error
	GetSession(ctx context.Context, id string) (TimerSession, error)
}

// EventRepository captures the append-only journal operations.
type EventRepository interface {
	AppendEvent(ctx context.Context, event TimerEvent) error
	ListEvents(ctx context.Context, sessionID string) ([]TimerEvent, error)
}

// TimerService enforces the session state machine and hands completed
// sessions to the Archiver.
type TimerService struct {
	sessions    SessionRepository
	events      EventRepository
	archiver    *Archiver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTimerService constructs a timer service with the provided dependencies.
func NewTimerService(sessions SessionRepository, events EventRepository, archiver *Archiver, idGenerator func() string, now func() time.Time) *TimerService {
	return NewTimerServiceWithLogger(sessions, events, archiver, idGenerator, now, nil)
}

// NewTimerServiceWithLogger constructs a timer service with a specified logger.
func NewTimerServiceWithLogger(sessions SessionRepository, events EventRepository, archiver *Archiver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TimerService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TimerService{
		sessions:    sessions,
		events:      events,
		archiver:    archiver,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *TimerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TimerService", operation, attrs...)
}

// StartOrSync reuses the most recently updated RUNNING session for the owner
// and subject, overwriting its snapshot, or inserts a new RUNNING session.
// Paused time reported by the client only ever grows the stored total; a
// snapshot with a different start time replaces it.
// A sync event is journaled either way; a fresh session also gets a start
// event first. Two concurrent calls may both insert; readers resolve that by
// most-recent-wins.
func (s *TimerService) StartOrSync(ctx context.Context, params StartOrSyncParams) (session TimerSession, err error) {
	if s == nil {
		err = fmt.Errorf("TimerService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "StartOrSync",
		"owner_id", params.Principal.OwnerID,
		"subject_id", params.SubjectID,
		"device_id", params.DeviceID,
	)
	created := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to start or sync session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"session_id", session.ID,
			"created", created,
			"observed_seconds", session.ObservedSeconds,
		).InfoContext(ctx, "session synced")
	}()

	if params.Principal.OwnerID == "" {
		err = ErrNotAuthenticated
		return
	}

	params.SubjectID = strings.TrimSpace(params.SubjectID)
	params.SubjectTitle = strings.TrimSpace(params.SubjectTitle)
	params.DeviceID = strings.TrimSpace(params.DeviceID)
	if params.DeviceID == "" {
		params.DeviceID = params.Principal.DeviceID
	}
	if vErr := validateStartOrSync(params); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	existing, lookupErr := s.sessions.FindActiveRunning(ctx, params.Principal.OwnerID, params.SubjectID)
	switch {
	case lookupErr == nil:
		session = existing
		if !session.StartTime.Equal(params.StartTime) {
			// A different run took over the row; its pauses are not ours.
			session.PausedSeconds = 0
			session.PausedAt = nil
		}
		if params.PausedSeconds > session.PausedSeconds {
			session.PausedSeconds = params.PausedSeconds
		}
		session.SubjectTitle = params.SubjectTitle
		session.Kind = params.Kind
		session.StartTime = params.StartTime.UTC()
		session.TargetSeconds = params.TargetSeconds
		session.ObservedSeconds = params.ObservedSeconds
		session.OriginDeviceID = params.DeviceID
		session.LastUpdatedAt = now
		if err = s.sessions.UpdateSession(ctx, session); err != nil {
			err = mapTimerRepoError(err)
			return
		}
	case isNotFound(lookupErr):
		created = true
		session = TimerSession{
			ID:              s.idGenerator(),
			OwnerID:         params.Principal.OwnerID,
			SubjectID:       params.SubjectID,
			SubjectTitle:    params.SubjectTitle,
			Kind:            params.Kind,
			Status:          SessionStatusRunning,
			StartTime:       params.StartTime.UTC(),
			TargetSeconds:   params.TargetSeconds,
			ObservedSeconds: params.ObservedSeconds,
			PausedSeconds:   params.PausedSeconds,
			OriginDeviceID:  params.DeviceID,
			CreatedAt:       now,
			LastUpdatedAt:   now,
		}
		if err = s.sessions.InsertSession(ctx, session); err != nil {
			err = mapTimerRepoError(err)
			return
		}
		s.appendEvent(ctx, logger, session, EventKindStart, params.DeviceID, map[string]any{
			"subject_id":     session.SubjectID,
			"kind":           string(session.Kind),
			"start_time":     session.StartTime.Format(time.RFC3339),
			"target_seconds": session.TargetSeconds,
		})
	default:
		err = mapTimerRepoError(lookupErr)
		return
	}

	s.appendEvent(ctx, logger, session, EventKindSync, params.DeviceID, map[string]any{
		"observed_seconds": session.ObservedSeconds,
		"target_seconds":   session.TargetSeconds,
		"status":           string(session.Status),
	})
	return
}

// Pause moves a RUNNING session to PAUSED. Pausing an already PAUSED session
// is a no-op and journals nothing.
func (s *TimerService) Pause(ctx context.Context, principal Principal, sessionID string) (err error) {
	if s == nil {
		return fmt.Errorf("TimerService is nil")
	}

	logger := s.loggerWith(ctx, "Pause",
		"owner_id", principal.OwnerID,
		"session_id", sessionID,
	)
	changed := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to pause session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("changed", changed).InfoContext(ctx, "session paused")
	}()

	var session TimerSession
	if session, err = s.loadOwned(ctx, principal, sessionID); err != nil {
		return
	}

	switch session.Status {
	case SessionStatusCompleted:
		return ErrSessionCompleted
	case SessionStatusPaused:
		return nil
	}

	now := s.now()
	session.ObservedSeconds = session.ElapsedAt(now)
	session.Status = SessionStatusPaused
	session.PausedAt = &now
	session.LastUpdatedAt = now
	if err = s.sessions.UpdateSession(ctx, session); err != nil {
		return mapTimerRepoError(err)
	}
	changed = true

	s.appendEvent(ctx, logger, session, EventKindPause, principal.DeviceID, map[string]any{
		"observed_seconds": session.ObservedSeconds,
	})
	return nil
}

// Resume moves a PAUSED session back to RUNNING and folds the pause into
// PausedSeconds. Resuming a RUNNING session is a no-op and journals nothing.
func (s *TimerService) Resume(ctx context.Context, principal Principal, sessionID string) (err error) {
	if s == nil {
		return fmt.Errorf("TimerService is nil")
	}

	logger := s.loggerWith(ctx, "Resume",
		"owner_id", principal.OwnerID,
		"session_id", sessionID,
	)
	changed := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to resume session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("changed", changed).InfoContext(ctx, "session resumed")
	}()

	var session TimerSession
	if session, err = s.loadOwned(ctx, principal, sessionID); err != nil {
		return
	}

	switch session.Status {
	case SessionStatusCompleted:
		return ErrSessionCompleted
	case SessionStatusRunning:
		return nil
	}

	now := s.now()
	foldPause(&session, now)
	session.Status = SessionStatusRunning
	session.LastUpdatedAt = now
	if err = s.sessions.UpdateSession(ctx, session); err != nil {
		return mapTimerRepoError(err)
	}
	changed = true

	s.appendEvent(ctx, logger, session, EventKindResume, principal.DeviceID, map[string]any{
		"paused_seconds": session.PausedSeconds,
	})
	return nil
}

// Complete archives the session and only then marks it COMPLETED. If
// archival fails the session keeps its status so the call can be retried.
func (s *TimerService) Complete(ctx context.Context, params CompleteParams) (err error) {
	if s == nil {
		return fmt.Errorf("TimerService is nil")
	}
	if s.archiver == nil {
		return fmt.Errorf("archiver not configured")
	}

	logger := s.loggerWith(ctx, "Complete",
		"owner_id", params.Principal.OwnerID,
		"session_id", params.SessionID,
	)
	var entry ActivityLogEntry
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"activity_id", entry.ID,
			"duration_minutes", entry.DurationMinutes,
		).InfoContext(ctx, "session completed")
	}()

	if params.ObservedSeconds != nil && *params.ObservedSeconds < 0 {
		vErr := &ValidationError{}
		vErr.add("observed_duration_seconds", "observed duration must not be negative")
		return vErr
	}

	var session TimerSession
	if session, err = s.loadOwned(ctx, params.Principal, params.SessionID); err != nil {
		return
	}
	if session.Status == SessionStatusCompleted {
		return ErrSessionCompleted
	}
	if params.ObservedSeconds != nil {
		session.ObservedSeconds = *params.ObservedSeconds
	}

	if entry, err = s.archiver.Archive(ctx, session); err != nil {
		return
	}

	now := s.now()
	foldPause(&session, now)
	session.Status = SessionStatusCompleted
	session.LastUpdatedAt = now
	if err = s.sessions.UpdateSession(ctx, session); err != nil {
		return mapTimerRepoError(err)
	}

	s.appendEvent(ctx, logger, session, EventKindStop, params.Principal.DeviceID, map[string]any{
		"observed_seconds": session.ObservedSeconds,
		"duration_minutes": entry.DurationMinutes,
		"activity_id":      entry.ID,
	})
	return nil
}

// GetActive returns the owner's most recently updated RUNNING session, or nil
// when there is none.
func (s *TimerService) GetActive(ctx context.Context, principal Principal) (session *TimerSession, err error) {
	if s == nil {
		err = fmt.Errorf("TimerService is nil")
		return
	}
	if principal.OwnerID == "" {
		err = ErrNotAuthenticated
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	found, lookupErr := s.sessions.FindLatestRunning(ctx, principal.OwnerID)
	if lookupErr != nil {
		if isNotFound(lookupErr) {
			return nil, nil
		}
		err = mapTimerRepoError(lookupErr)
		s.loggerWith(ctx, "GetActive", "owner_id", principal.OwnerID).
			ErrorContext(ctx, "failed to load active session", "error", err, "error_kind", ErrorKind(err))
		return
	}
	return &found, nil
}

// GetSession returns one of the owner's sessions in any status.
func (s *TimerService) GetSession(ctx context.Context, principal Principal, sessionID string) (TimerSession, error) {
	if s == nil {
		return TimerSession{}, fmt.Errorf("TimerService is nil")
	}
	return s.loadOwned(ctx, principal, sessionID)
}

// ListEvents returns the journal of one of the owner's sessions ordered by
// occurrence.
func (s *TimerService) ListEvents(ctx context.Context, principal Principal, sessionID string) ([]TimerEvent, error) {
	if s == nil {
		return nil, fmt.Errorf("TimerService is nil")
	}
	if _, err := s.loadOwned(ctx, principal, sessionID); err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, nil
	}

	events, err := s.events.ListEvents(ctx, sessionID)
	if err != nil {
		err = mapTimerRepoError(err)
		s.loggerWith(ctx, "ListEvents", "owner_id", principal.OwnerID, "session_id", sessionID).
			ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return events, nil
}

// ListActivity returns the owner's archived entries within a local date range.
func (s *TimerService) ListActivity(ctx context.Context, params ListActivityParams) ([]ActivityLogEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("TimerService is nil")
	}
	if params.Principal.OwnerID == "" {
		return nil, ErrNotAuthenticated
	}
	if s.archiver == nil {
		return nil, fmt.Errorf("archiver not configured")
	}

	vErr := &ValidationError{}
	from, fromErr := parseLocalDate(params.From)
	if fromErr != nil {
		vErr.add("from", "from must be a date in YYYY-MM-DD format")
	}
	to, toErr := parseLocalDate(params.To)
	if toErr != nil {
		vErr.add("to", "to must be a date in YYYY-MM-DD format")
	}
	if fromErr == nil && toErr == nil && !from.IsZero() && !to.IsZero() && to.Before(from) {
		vErr.add("to", "to must not be before from")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	return s.archiver.ListActivity(ctx, params.Principal.OwnerID, params.From, params.To)
}

// loadOwned fetches a session and hides sessions of other owners.
func (s *TimerService) loadOwned(ctx context.Context, principal Principal, sessionID string) (TimerSession, error) {
	if principal.OwnerID == "" {
		return TimerSession{}, ErrNotAuthenticated
	}
	if s.sessions == nil {
		return TimerSession{}, fmt.Errorf("session repository not configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return TimerSession{}, ErrNotFound
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return TimerSession{}, mapTimerRepoError(err)
	}
	if session.OwnerID != principal.OwnerID {
		return TimerSession{}, ErrNotFound
	}
	return session, nil
}

// appendEvent journals an event. The journal is an audit trail, so a failed
// append is logged and does not fail the transition that produced it.
func (s *TimerService) appendEvent(ctx context.Context, logger *slog.Logger, session TimerSession, kind EventKind, deviceID string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if deviceID == "" {
		deviceID = session.OriginDeviceID
	}

	event := TimerEvent{
		ID:             s.idGenerator(),
		SessionID:      session.ID,
		Kind:           kind,
		Payload:        payload,
		OriginDeviceID: deviceID,
		OccurredAt:     s.now(),
	}
	if err := s.events.AppendEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to append timer event",
			"event_kind", string(kind),
			"error", err,
		)
	}
}

// foldPause adds an ongoing pause to PausedSeconds and clears PausedAt.
func foldPause(session *TimerSession, now time.Time) {
	if session.PausedAt == nil {
		return
	}
	if now.After(*session.PausedAt) {
		session.PausedSeconds += int(now.Sub(*session.PausedAt) / time.Second)
	}
	session.PausedAt = nil
}

func validateStartOrSync(params StartOrSyncParams) *ValidationError {
	vErr := &ValidationError{}
	if params.SubjectID == "" {
		vErr.add("subject_id", "subject id is required")
	}
	if params.SubjectTitle == "" {
		vErr.add("subject_title", "subject title is required")
	}
	if !params.Kind.Valid() {
		vErr.add("kind", "kind must be one of FOCUS, SHORT_BREAK, LONG_BREAK")
	}
	if params.StartTime.IsZero() {
		vErr.add("start_time", "start time is required")
	}
	if params.TargetSeconds <= 0 {
		vErr.add("target_duration_seconds", "target duration must be positive")
	}
	if params.ObservedSeconds < 0 {
		vErr.add("observed_duration_seconds", "observed duration must not be negative")
	}
	if params.PausedSeconds < 0 {
		vErr.add("paused_duration_seconds", "paused duration must not be negative")
	}
	if params.DeviceID == "" {
		vErr.add("device_id", "device id is required")
	}
	return vErr
}

func parseLocalDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(localDateLayout, value)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

func mapTimerRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("session", "session violates a storage constraint")
		return vErr
	}
	return err
}
