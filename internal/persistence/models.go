package persistence

import "time"

// TimerSession is the mutable "current state" row of one timer run.
type TimerSession struct {
	ID              string
	OwnerID         string
	SubjectID       string
	SubjectTitle    string
	Kind            string
	Status          string
	StartTime       time.Time
	TargetSeconds   int
	ObservedSeconds int
	PausedSeconds   int
	PausedAt        *time.Time
	OriginDeviceID  string
	CreatedAt       time.Time
	LastUpdatedAt   time.Time
}

// TimerEvent is an append-only journal row describing a state transition.
type TimerEvent struct {
	ID             string
	SessionID      string
	Kind           string
	Payload        map[string]any
	OriginDeviceID string
	OccurredAt     time.Time
}

// ActivityLogEntry is the immutable archival record of a completed session.
type ActivityLogEntry struct {
	ID              string
	SessionID       string
	OwnerID         string
	SubjectID       string
	SubjectTitle    string
	Kind            string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	LocalDate       string
	CreatedAt       time.Time
}

// OwnerCredential is an API key issued to an owner. Only the hash of the
// secret is stored.
type OwnerCredential struct {
	KeyID      string
	OwnerID    string
	SecretHash string
	CreatedAt  time.Time
	RevokedAt  *time.Time
}
