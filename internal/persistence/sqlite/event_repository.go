package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/focus-timer/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite. The
// journal has no update or delete path; triggers reject both at the storage
// level as well.
type EventRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewEventRepository creates a new SQLite timer event repository
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// AppendEvent adds an event to the journal.
func (r *EventRepository) AppendEvent(ctx context.Context, event persistence.TimerEvent) error {
	if event.ID == "" || event.SessionID == "" || event.Kind == "" {
		return persistence.ErrConstraintViolation
	}

	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}

	query := `
		INSERT INTO timer_events (id, session_id, kind, payload, origin_device_id, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.helper.Exec(ctx, query,
		event.ID,
		event.SessionID,
		event.Kind,
		string(encoded),
		event.OriginDeviceID,
		formatTime(event.OccurredAt),
	)
	return err
}

// ListEvents returns the journal of a session ordered by occurred_at, then
// insertion order.
func (r *EventRepository) ListEvents(ctx context.Context, sessionID string) ([]persistence.TimerEvent, error) {
	query := `
		SELECT id, session_id, kind, payload, origin_device_id, occurred_at
		FROM timer_events
		WHERE session_id = ?
		ORDER BY occurred_at ASC, rowid ASC`

	rows, err := r.helper.Query(ctx, query, sessionID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	events := make([]persistence.TimerEvent, 0)
	for rows.Next() {
		var (
			event               persistence.TimerEvent
			payload, occurredAt string
		)
		if err := rows.Scan(&event.ID, &event.SessionID, &event.Kind, &payload, &event.OriginDeviceID, &occurredAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if err := json.Unmarshal([]byte(payload), &event.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of event %s: %w", event.ID, err)
		}
		if event.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("failed to parse occurred_at: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return events, nil
}
