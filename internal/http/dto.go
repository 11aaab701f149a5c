package http

import (
	"time"

	"github.com/example/focus-timer/internal/application"
	"github.com/example/focus-timer/internal/timerapi"
)

func toSessionDTO(session application.TimerSession) timerapi.Session {
	dto := timerapi.Session{
		ID:                      session.ID,
		OwnerID:                 session.OwnerID,
		SubjectID:               session.SubjectID,
		SubjectTitle:            session.SubjectTitle,
		Kind:                    string(session.Kind),
		Status:                  string(session.Status),
		StartTime:               utcSeconds(session.StartTime),
		TargetDurationSeconds:   session.TargetSeconds,
		ObservedDurationSeconds: session.ObservedSeconds,
		PausedDurationSeconds:   session.PausedSeconds,
		OriginDeviceID:          session.OriginDeviceID,
		LastUpdatedAt:           utcSeconds(session.LastUpdatedAt),
	}
	if session.PausedAt != nil {
		pausedAt := utcSeconds(*session.PausedAt)
		dto.PausedAt = &pausedAt
	}
	return dto
}

func toEventDTOs(events []application.TimerEvent) []timerapi.Event {
	dtos := make([]timerapi.Event, 0, len(events))
	for _, event := range events {
		payload := event.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		dtos = append(dtos, timerapi.Event{
			ID:             event.ID,
			SessionID:      event.SessionID,
			Kind:           string(event.Kind),
			Payload:        payload,
			OriginDeviceID: event.OriginDeviceID,
			OccurredAt:     utcSeconds(event.OccurredAt),
		})
	}
	return dtos
}

func toActivityDTOs(entries []application.ActivityLogEntry) []timerapi.ActivityEntry {
	dtos := make([]timerapi.ActivityEntry, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, timerapi.ActivityEntry{
			ID:              entry.ID,
			SessionID:       entry.SessionID,
			SubjectID:       entry.SubjectID,
			SubjectTitle:    entry.SubjectTitle,
			Kind:            string(entry.Kind),
			StartTime:       utcSeconds(entry.StartTime),
			EndTime:         utcSeconds(entry.EndTime),
			DurationMinutes: entry.DurationMinutes,
			LocalDate:       entry.LocalDate,
		})
	}
	return dtos
}

func utcSeconds(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}
