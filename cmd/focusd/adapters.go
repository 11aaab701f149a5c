package main

import (
	"context"
	"time"

	"github.com/example/focus-timer/internal/application"
	"github.com/example/focus-timer/internal/persistence"
)

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) FindActiveRunning(ctx context.Context, ownerID, subjectID string) (application.TimerSession, error) {
	stored, err := a.repo.FindActiveRunning(ctx, ownerID, subjectID)
	if err != nil {
		return application.TimerSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) FindLatestRunning(ctx context.Context, ownerID string) (application.TimerSession, error) {
	stored, err := a.repo.FindLatestRunning(ctx, ownerID)
	if err != nil {
		return application.TimerSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) InsertSession(ctx context.Context, session application.TimerSession) error {
	return a.repo.InsertSession(ctx, toPersistenceSession(session))
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.TimerSession) error {
	return a.repo.UpdateSession(ctx, toPersistenceSession(session))
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, id string) (application.TimerSession, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.TimerSession{}, err
	}
	return toApplicationSession(stored), nil
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) AppendEvent(ctx context.Context, event application.TimerEvent) error {
	return a.repo.AppendEvent(ctx, persistence.TimerEvent{
		ID:             event.ID,
		SessionID:      event.SessionID,
		Kind:           string(event.Kind),
		Payload:        event.Payload,
		OriginDeviceID: event.OriginDeviceID,
		OccurredAt:     event.OccurredAt,
	})
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, sessionID string) ([]application.TimerEvent, error) {
	stored, err := a.repo.ListEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	events := make([]application.TimerEvent, 0, len(stored))
	for _, model := range stored {
		events = append(events, application.TimerEvent{
			ID:             model.ID,
			SessionID:      model.SessionID,
			Kind:           application.EventKind(model.Kind),
			Payload:        model.Payload,
			OriginDeviceID: model.OriginDeviceID,
			OccurredAt:     model.OccurredAt,
		})
	}
	return events, nil
}

type activityRepositoryAdapter struct {
	repo persistence.ActivityRepository
}

func newActivityRepositoryAdapter(repo persistence.ActivityRepository) *activityRepositoryAdapter {
	return &activityRepositoryAdapter{repo: repo}
}

func (a *activityRepositoryAdapter) AppendActivity(ctx context.Context, entry application.ActivityLogEntry) error {
	return a.repo.AppendActivity(ctx, persistence.ActivityLogEntry{
		ID:              entry.ID,
		SessionID:       entry.SessionID,
		OwnerID:         entry.OwnerID,
		SubjectID:       entry.SubjectID,
		SubjectTitle:    entry.SubjectTitle,
		Kind:            string(entry.Kind),
		StartTime:       entry.StartTime,
		EndTime:         entry.EndTime,
		DurationMinutes: entry.DurationMinutes,
		LocalDate:       entry.LocalDate,
		CreatedAt:       entry.CreatedAt,
	})
}

func (a *activityRepositoryAdapter) GetActivityBySession(ctx context.Context, sessionID string) (application.ActivityLogEntry, error) {
	stored, err := a.repo.GetActivityBySession(ctx, sessionID)
	if err != nil {
		return application.ActivityLogEntry{}, err
	}
	return toApplicationActivity(stored), nil
}

func (a *activityRepositoryAdapter) ListActivity(ctx context.Context, ownerID, fromDate, toDate string) ([]application.ActivityLogEntry, error) {
	stored, err := a.repo.ListActivity(ctx, persistence.ActivityFilter{OwnerID: ownerID, FromDate: fromDate, ToDate: toDate})
	if err != nil {
		return nil, err
	}
	entries := make([]application.ActivityLogEntry, 0, len(stored))
	for _, model := range stored {
		entries = append(entries, toApplicationActivity(model))
	}
	return entries, nil
}

type credentialRepositoryAdapter struct {
	repo persistence.CredentialRepository
}

func newCredentialRepositoryAdapter(repo persistence.CredentialRepository) *credentialRepositoryAdapter {
	return &credentialRepositoryAdapter{repo: repo}
}

func (a *credentialRepositoryAdapter) CreateCredential(ctx context.Context, credential application.OwnerCredential) error {
	return a.repo.CreateCredential(ctx, persistence.OwnerCredential{
		KeyID:      credential.KeyID,
		OwnerID:    credential.OwnerID,
		SecretHash: credential.SecretHash,
		CreatedAt:  credential.CreatedAt,
		RevokedAt:  cloneTime(credential.RevokedAt),
	})
}

func (a *credentialRepositoryAdapter) GetCredential(ctx context.Context, keyID string) (application.OwnerCredential, error) {
	stored, err := a.repo.GetCredential(ctx, keyID)
	if err != nil {
		return application.OwnerCredential{}, err
	}
	return application.OwnerCredential{
		KeyID:      stored.KeyID,
		OwnerID:    stored.OwnerID,
		SecretHash: stored.SecretHash,
		CreatedAt:  stored.CreatedAt,
		RevokedAt:  cloneTime(stored.RevokedAt),
	}, nil
}

func (a *credentialRepositoryAdapter) RevokeCredential(ctx context.Context, keyID string, revokedAt time.Time) error {
	return a.repo.RevokeCredential(ctx, keyID, revokedAt)
}

func toApplicationSession(model persistence.TimerSession) application.TimerSession {
	return application.TimerSession{
		ID:              model.ID,
		OwnerID:         model.OwnerID,
		SubjectID:       model.SubjectID,
		SubjectTitle:    model.SubjectTitle,
		Kind:            application.SessionKind(model.Kind),
		Status:          application.SessionStatus(model.Status),
		StartTime:       model.StartTime,
		TargetSeconds:   model.TargetSeconds,
		ObservedSeconds: model.ObservedSeconds,
		PausedSeconds:   model.PausedSeconds,
		PausedAt:        cloneTime(model.PausedAt),
		OriginDeviceID:  model.OriginDeviceID,
		CreatedAt:       model.CreatedAt,
		LastUpdatedAt:   model.LastUpdatedAt,
	}
}

func toPersistenceSession(session application.TimerSession) persistence.TimerSession {
	return persistence.TimerSession{
		ID:              session.ID,
		OwnerID:         session.OwnerID,
		SubjectID:       session.SubjectID,
		SubjectTitle:    session.SubjectTitle,
		Kind:            string(session.Kind),
		Status:          string(session.Status),
		StartTime:       session.StartTime,
		TargetSeconds:   session.TargetSeconds,
		ObservedSeconds: session.ObservedSeconds,
		PausedSeconds:   session.PausedSeconds,
		PausedAt:        cloneTime(session.PausedAt),
		OriginDeviceID:  session.OriginDeviceID,
		CreatedAt:       session.CreatedAt,
		LastUpdatedAt:   session.LastUpdatedAt,
	}
}

func toApplicationActivity(model persistence.ActivityLogEntry) application.ActivityLogEntry {
	return application.ActivityLogEntry{
		ID:              model.ID,
		SessionID:       model.SessionID,
		OwnerID:         model.OwnerID,
		SubjectID:       model.SubjectID,
		SubjectTitle:    model.SubjectTitle,
		Kind:            application.SessionKind(model.Kind),
		StartTime:       model.StartTime,
		EndTime:         model.EndTime,
		DurationMinutes: model.DurationMinutes,
		LocalDate:       model.LocalDate,
		CreatedAt:       model.CreatedAt,
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
