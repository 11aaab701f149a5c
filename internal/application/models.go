package application

import "time"

// SessionKind classifies a timer run.
type SessionKind string

const (
	SessionKindFocus      SessionKind = "FOCUS"
	SessionKindShortBreak SessionKind = "SHORT_BREAK"
	SessionKindLongBreak  SessionKind = "LONG_BREAK"
)

// Valid reports whether k is a known session kind.
func (k SessionKind) Valid() bool {
	switch k {
	case SessionKindFocus, SessionKindShortBreak, SessionKindLongBreak:
		return true
	}
	return false
}

// SessionStatus is the server-side state of a timer session.
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "RUNNING"
	SessionStatusPaused    SessionStatus = "PAUSED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// EventKind labels a journal entry.
type EventKind string

const (
	EventKindStart  EventKind = "start"
	EventKindSync   EventKind = "sync"
	EventKindPause  EventKind = "pause"
	EventKindResume EventKind = "resume"
	EventKindStop   EventKind = "stop"
)

// Principal identifies the authenticated owner and, when known, the device
// issuing the request.
type Principal struct {
	OwnerID  string
	DeviceID string
}

// TimerSession is the mutable current-state record of one timer run.
type TimerSession struct {
	ID              string
	OwnerID         string
	SubjectID       string
	SubjectTitle    string
	Kind            SessionKind
	Status          SessionStatus
	StartTime       time.Time
	TargetSeconds   int
	ObservedSeconds int
	PausedSeconds   int
	PausedAt        *time.Time
	OriginDeviceID  string
	CreatedAt       time.Time
	LastUpdatedAt   time.Time
}

// ElapsedAt returns whole seconds of running time at now: wall-clock time
// since StartTime minus time spent paused, including an ongoing pause.
func (s TimerSession) ElapsedAt(now time.Time) int {
	paused := time.Duration(s.PausedSeconds) * time.Second
	if s.Status == SessionStatusPaused && s.PausedAt != nil && now.After(*s.PausedAt) {
		paused += now.Sub(*s.PausedAt)
	}
	elapsed := now.Sub(s.StartTime) - paused
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Second)
}

// TimerEvent is an append-only journal entry.
type TimerEvent struct {
	ID             string
	SessionID      string
	Kind           EventKind
	Payload        map[string]any
	OriginDeviceID string
	OccurredAt     time.Time
}

// ActivityLogEntry is the write-once archival record of a completed session.
type ActivityLogEntry struct {
	ID              string
	SessionID       string
	OwnerID         string
	SubjectID       string
	SubjectTitle    string
	Kind            SessionKind
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	LocalDate       string
	CreatedAt       time.Time
}

// OwnerCredential is a stored API key. Only the secret hash is kept.
type OwnerCredential struct {
	KeyID      string
	OwnerID    string
	SecretHash string
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// IssuedKey is returned once when an API key is created. Token is the value
// clients present as a bearer credential.
type IssuedKey struct {
	KeyID     string
	OwnerID   string
	Token     string
	CreatedAt time.Time
}

// StartOrSyncParams carries the snapshot posted by a client on start and on
// every heartbeat.
type StartOrSyncParams struct {
	Principal       Principal
	SubjectID       string
	SubjectTitle    string
	Kind            SessionKind
	StartTime       time.Time
	TargetSeconds   int
	ObservedSeconds int
	PausedSeconds   int
	DeviceID        string
}

// CompleteParams identifies the session to finalize. ObservedSeconds, when
// set, replaces the last synced elapsed time before archival.
type CompleteParams struct {
	Principal       Principal
	SessionID       string
	ObservedSeconds *int
}

// ListActivityParams bounds an activity log query by inclusive local dates
// (YYYY-MM-DD). Empty bounds are open.
type ListActivityParams struct {
	Principal Principal
	From      string
	To        string
}
