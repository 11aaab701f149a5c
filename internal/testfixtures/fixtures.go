package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/focus-timer/internal/application"
	"github.com/example/focus-timer/internal/persistence"
)

var (
	sessionCounter  uint64
	activityCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ------------------------- Timer session fixtures -------------------------

// SessionFixture represents a deterministic timer session row.
type SessionFixture struct {
	ID              string
	OwnerID         string
	SubjectID       string
	SubjectTitle    string
	Kind            application.SessionKind
	Status          application.SessionStatus
	StartTime       time.Time
	TargetSeconds   int
	ObservedSeconds int
	PausedSeconds   int
	PausedAt        *time.Time
	OriginDeviceID  string
	CreatedAt       time.Time
	LastUpdatedAt   time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a RUNNING 25 minute focus session started at
// ReferenceTime, with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:             fmt.Sprintf("session-%03d", idx),
		OwnerID:        "owner-001",
		SubjectID:      fmt.Sprintf("subject-%03d", idx),
		SubjectTitle:   fmt.Sprintf("Subject %03d", idx),
		Kind:           application.SessionKindFocus,
		Status:         application.SessionStatusRunning,
		StartTime:      referenceTime,
		TargetSeconds:  1500,
		OriginDeviceID: "device-001",
		CreatedAt:      referenceTime,
		LastUpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionOwner sets the owning user.
func WithSessionOwner(ownerID string) SessionOption {
	return func(f *SessionFixture) {
		f.OwnerID = ownerID
	}
}

// WithSessionSubject sets the subject id and title.
func WithSessionSubject(id, title string) SessionOption {
	return func(f *SessionFixture) {
		f.SubjectID = id
		f.SubjectTitle = title
	}
}

// WithSessionKind sets the session kind.
func WithSessionKind(kind application.SessionKind) SessionOption {
	return func(f *SessionFixture) {
		f.Kind = kind
	}
}

// WithSessionStatus sets the session status.
func WithSessionStatus(status application.SessionStatus) SessionOption {
	return func(f *SessionFixture) {
		f.Status = status
	}
}

// WithSessionPausedAt marks the session PAUSED since t.
func WithSessionPausedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		paused := t
		f.Status = application.SessionStatusPaused
		f.PausedAt = &paused
	}
}

// WithSessionStartTime moves the start, creation and update timestamps to t.
func WithSessionStartTime(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.StartTime = t
		f.CreatedAt = t
		f.LastUpdatedAt = t
	}
}

// WithSessionDurations sets the target and observed seconds.
func WithSessionDurations(target, observed int) SessionOption {
	return func(f *SessionFixture) {
		f.TargetSeconds = target
		f.ObservedSeconds = observed
	}
}

// WithSessionPausedSeconds sets the accumulated paused seconds.
func WithSessionPausedSeconds(seconds int) SessionOption {
	return func(f *SessionFixture) {
		f.PausedSeconds = seconds
	}
}

// WithSessionDevice sets the originating device.
func WithSessionDevice(deviceID string) SessionOption {
	return func(f *SessionFixture) {
		f.OriginDeviceID = deviceID
	}
}

// WithSessionUpdatedAt sets the last update timestamp.
func WithSessionUpdatedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.LastUpdatedAt = t
	}
}

// Application returns the fixture as an application.TimerSession value.
func (f SessionFixture) Application() application.TimerSession {
	return application.TimerSession{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		SubjectID:       f.SubjectID,
		SubjectTitle:    f.SubjectTitle,
		Kind:            f.Kind,
		Status:          f.Status,
		StartTime:       f.StartTime,
		TargetSeconds:   f.TargetSeconds,
		ObservedSeconds: f.ObservedSeconds,
		PausedSeconds:   f.PausedSeconds,
		PausedAt:        copyTimePtr(f.PausedAt),
		OriginDeviceID:  f.OriginDeviceID,
		CreatedAt:       f.CreatedAt,
		LastUpdatedAt:   f.LastUpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.TimerSession value.
func (f SessionFixture) Persistence() persistence.TimerSession {
	return persistence.TimerSession{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		SubjectID:       f.SubjectID,
		SubjectTitle:    f.SubjectTitle,
		Kind:            string(f.Kind),
		Status:          string(f.Status),
		StartTime:       f.StartTime,
		TargetSeconds:   f.TargetSeconds,
		ObservedSeconds: f.ObservedSeconds,
		PausedSeconds:   f.PausedSeconds,
		PausedAt:        copyTimePtr(f.PausedAt),
		OriginDeviceID:  f.OriginDeviceID,
		CreatedAt:       f.CreatedAt,
		LastUpdatedAt:   f.LastUpdatedAt,
	}
}

// Principal returns the owner principal on the originating device.
func (f SessionFixture) Principal() application.Principal {
	return application.Principal{OwnerID: f.OwnerID, DeviceID: f.OriginDeviceID}
}

// StartParams returns the snapshot a client would post for this session.
func (f SessionFixture) StartParams() application.StartOrSyncParams {
	return application.StartOrSyncParams{
		Principal:       f.Principal(),
		SubjectID:       f.SubjectID,
		SubjectTitle:    f.SubjectTitle,
		Kind:            f.Kind,
		StartTime:       f.StartTime,
		TargetSeconds:   f.TargetSeconds,
		ObservedSeconds: f.ObservedSeconds,
		DeviceID:        f.OriginDeviceID,
	}
}

// ------------------------ Activity log fixtures --------------------------

// ActivityFixture represents a deterministic archived activity entry.
type ActivityFixture struct {
	ID              string
	SessionID       string
	OwnerID         string
	SubjectID       string
	SubjectTitle    string
	Kind            application.SessionKind
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	LocalDate       string
	CreatedAt       time.Time
}

// ActivityOption configures the generated activity fixture.
type ActivityOption func(*ActivityFixture)

// NewActivityFixture returns a 25 minute focus entry dated by ReferenceTime in UTC.
func NewActivityFixture(opts ...ActivityOption) ActivityFixture {
	idx := atomic.AddUint64(&activityCounter, 1)
	end := referenceTime.Add(25 * time.Minute)
	fixture := ActivityFixture{
		ID:              fmt.Sprintf("activity-%03d", idx),
		SessionID:       fmt.Sprintf("session-%03d", idx),
		OwnerID:         "owner-001",
		SubjectID:       fmt.Sprintf("subject-%03d", idx),
		SubjectTitle:    fmt.Sprintf("Subject %03d", idx),
		Kind:            application.SessionKindFocus,
		StartTime:       referenceTime,
		EndTime:         end,
		DurationMinutes: 25,
		LocalDate:       referenceTime.Format(time.DateOnly),
		CreatedAt:       end,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithActivitySession sets the archived session id.
func WithActivitySession(sessionID string) ActivityOption {
	return func(f *ActivityFixture) {
		f.SessionID = sessionID
	}
}

// WithActivityOwner sets the owning user.
func WithActivityOwner(ownerID string) ActivityOption {
	return func(f *ActivityFixture) {
		f.OwnerID = ownerID
	}
}

// WithActivityLocalDate sets the reporting date.
func WithActivityLocalDate(date string) ActivityOption {
	return func(f *ActivityFixture) {
		f.LocalDate = date
	}
}

// WithActivityMinutes sets the rounded duration.
func WithActivityMinutes(minutes int) ActivityOption {
	return func(f *ActivityFixture) {
		f.DurationMinutes = minutes
	}
}

// Application returns the fixture as an application.ActivityLogEntry value.
func (f ActivityFixture) Application() application.ActivityLogEntry {
	return application.ActivityLogEntry{
		ID:              f.ID,
		SessionID:       f.SessionID,
		OwnerID:         f.OwnerID,
		SubjectID:       f.SubjectID,
		SubjectTitle:    f.SubjectTitle,
		Kind:            f.Kind,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime,
		DurationMinutes: f.DurationMinutes,
		LocalDate:       f.LocalDate,
		CreatedAt:       f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.ActivityLogEntry value.
func (f ActivityFixture) Persistence() persistence.ActivityLogEntry {
	return persistence.ActivityLogEntry{
		ID:              f.ID,
		SessionID:       f.SessionID,
		OwnerID:         f.OwnerID,
		SubjectID:       f.SubjectID,
		SubjectTitle:    f.SubjectTitle,
		Kind:            string(f.Kind),
		StartTime:       f.StartTime,
		EndTime:         f.EndTime,
		DurationMinutes: f.DurationMinutes,
		LocalDate:       f.LocalDate,
		CreatedAt:       f.CreatedAt,
	}
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
