package persistence

import (
	"context"
	"time"
)

// SessionRepository stores the mutable timer session rows.
type SessionRepository interface {
	FindActiveRunning(ctx context.Context, ownerID, subjectID string) (TimerSession, error)
	FindLatestRunning(ctx context.Context, ownerID string) (TimerSession, error)
	InsertSession(ctx context.Context, session TimerSession) error
	UpdateSession(ctx context.Context, session TimerSession) error
	GetSession(ctx context.Context, id string) (TimerSession, error)
}

// EventRepository appends to and reads the timer event journal.
type EventRepository interface {
	AppendEvent(ctx context.Context, event TimerEvent) error
	ListEvents(ctx context.Context, sessionID string) ([]TimerEvent, error)
}

// ActivityFilter narrows activity log queries. Dates are inclusive and use
// the YYYY-MM-DD layout.
type ActivityFilter struct {
	OwnerID  string
	FromDate string
	ToDate   string
}

// ActivityRepository appends to and reads the archival activity log.
type ActivityRepository interface {
	AppendActivity(ctx context.Context, entry ActivityLogEntry) error
	GetActivityBySession(ctx context.Context, sessionID string) (ActivityLogEntry, error)
	ListActivity(ctx context.Context, filter ActivityFilter) ([]ActivityLogEntry, error)
}

// CredentialRepository stores owner API keys.
type CredentialRepository interface {
	CreateCredential(ctx context.Context, credential OwnerCredential) error
	GetCredential(ctx context.Context, keyID string) (OwnerCredential, error)
	RevokeCredential(ctx context.Context, keyID string, revokedAt time.Time) error
}
