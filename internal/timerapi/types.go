// Package timerapi defines the JSON wire format of the focus timer API and a
// client for it. Timestamps are RFC 3339 in UTC and durations are whole
// seconds.
package timerapi

import "time"

// Session kinds accepted by the API.
const (
	KindFocus      = "FOCUS"
	KindShortBreak = "SHORT_BREAK"
	KindLongBreak  = "LONG_BREAK"
)

// Session statuses reported by the API.
const (
	StatusRunning   = "RUNNING"
	StatusPaused    = "PAUSED"
	StatusCompleted = "COMPLETED"
)

// DeviceIDHeader carries the caller's device identifier.
const DeviceIDHeader = "X-Device-ID"

// Session is the wire form of a timer session.
type Session struct {
	ID                      string     `json:"id"`
	OwnerID                 string     `json:"owner_id"`
	SubjectID               string     `json:"subject_id"`
	SubjectTitle            string     `json:"subject_title"`
	Kind                    string     `json:"kind"`
	Status                  string     `json:"status"`
	StartTime               time.Time  `json:"start_time"`
	TargetDurationSeconds   int        `json:"target_duration_seconds"`
	ObservedDurationSeconds int        `json:"observed_duration_seconds"`
	PausedDurationSeconds   int        `json:"paused_duration_seconds"`
	PausedAt                *time.Time `json:"paused_at,omitempty"`
	OriginDeviceID          string     `json:"origin_device_id"`
	LastUpdatedAt           time.Time  `json:"last_updated_at"`
}

// StartOrSyncRequest is posted on start and on every heartbeat.
type StartOrSyncRequest struct {
	SubjectID               string    `json:"subject_id"`
	SubjectTitle            string    `json:"subject_title"`
	Kind                    string    `json:"kind"`
	StartTime               time.Time `json:"start_time"`
	TargetDurationSeconds   int       `json:"target_duration_seconds"`
	ObservedDurationSeconds int       `json:"observed_duration_seconds"`
	PausedDurationSeconds   int       `json:"paused_duration_seconds,omitempty"`
	DeviceID                string    `json:"device_id"`
}

// CompleteRequest optionally carries the final elapsed time.
type CompleteRequest struct {
	ObservedDurationSeconds *int `json:"observed_duration_seconds,omitempty"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Session Session `json:"session"`
}

// ActiveSessionResponse wraps the active session, which is null when the
// owner has none.
type ActiveSessionResponse struct {
	Session *Session `json:"session"`
}

// Event is the wire form of a journal entry.
type Event struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	Kind           string         `json:"kind"`
	Payload        map[string]any `json:"payload"`
	OriginDeviceID string         `json:"origin_device_id"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// EventsResponse lists a session's journal in occurrence order.
type EventsResponse struct {
	Events []Event `json:"events"`
}

// ActivityEntry is the wire form of an archival record.
type ActivityEntry struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	SubjectID       string    `json:"subject_id"`
	SubjectTitle    string    `json:"subject_title"`
	Kind            string    `json:"kind"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	LocalDate       string    `json:"local_date"`
}

// ActivityResponse lists archival records.
type ActivityResponse struct {
	Entries []ActivityEntry `json:"entries"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Error codes carried in ErrorResponse.
const (
	CodeNotAuthenticated = "NOT_AUTHENTICATED"
	CodeValidation       = "VALIDATION_FAILED"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeSessionCompleted = "SESSION_COMPLETED"
	CodeInternal         = "INTERNAL_ERROR"
)
