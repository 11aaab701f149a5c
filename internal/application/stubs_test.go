package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/focus-timer/internal/persistence"
)

// memoryStore is an in-memory stand-in for the SQLite repositories with
// per-operation failure injection.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]TimerSession
	events   []TimerEvent
	activity []ActivityLogEntry

	appendActivityErr error
	updateSessionErr  error
	appendEventErr    error
	lookupErr         error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]TimerSession)}
}

func (m *memoryStore) FindActiveRunning(ctx context.Context, ownerID, subjectID string) (TimerSession, error) {
	return m.latestRunning(func(s TimerSession) bool {
		return s.OwnerID == ownerID && s.SubjectID == subjectID
	})
}

func (m *memoryStore) FindLatestRunning(ctx context.Context, ownerID string) (TimerSession, error) {
	return m.latestRunning(func(s TimerSession) bool { return s.OwnerID == ownerID })
}

func (m *memoryStore) latestRunning(match func(TimerSession) bool) (TimerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return TimerSession{}, m.lookupErr
	}

	var candidates []TimerSession
	for _, s := range m.sessions {
		if s.Status == SessionStatusRunning && match(s) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return TimerSession{}, persistence.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastUpdatedAt.After(candidates[j].LastUpdatedAt)
	})
	return candidates[0], nil
}

func (m *memoryStore) InsertSession(ctx context.Context, session TimerSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.ID]; exists {
		return persistence.ErrDuplicate
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *memoryStore) UpdateSession(ctx context.Context, session TimerSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateSessionErr != nil {
		return m.updateSessionErr
	}
	if _, exists := m.sessions[session.ID]; !exists {
		return persistence.ErrNotFound
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *memoryStore) GetSession(ctx context.Context, id string) (TimerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return TimerSession{}, persistence.ErrNotFound
	}
	return session, nil
}

func (m *memoryStore) AppendEvent(ctx context.Context, event TimerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendEventErr != nil {
		return m.appendEventErr
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryStore) ListEvents(ctx context.Context, sessionID string) ([]TimerEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TimerEvent
	for _, e := range m.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (m *memoryStore) AppendActivity(ctx context.Context, entry ActivityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendActivityErr != nil {
		return m.appendActivityErr
	}
	for _, existing := range m.activity {
		if existing.SessionID == entry.SessionID {
			return persistence.ErrDuplicate
		}
	}
	m.activity = append(m.activity, entry)
	return nil
}

func (m *memoryStore) GetActivityBySession(ctx context.Context, sessionID string) (ActivityLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.activity {
		if entry.SessionID == sessionID {
			return entry, nil
		}
	}
	return ActivityLogEntry{}, persistence.ErrNotFound
}

func (m *memoryStore) ListActivity(ctx context.Context, ownerID, fromDate, toDate string) ([]ActivityLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ActivityLogEntry
	for _, entry := range m.activity {
		if entry.OwnerID != ownerID {
			continue
		}
		if fromDate != "" && strings.Compare(entry.LocalDate, fromDate) < 0 {
			continue
		}
		if toDate != "" && strings.Compare(entry.LocalDate, toDate) > 0 {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *memoryStore) eventKinds(sessionID string) []EventKind {
	events, _ := m.ListEvents(context.Background(), sessionID)
	kinds := make([]EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (m *memoryStore) runningCount(ownerID, subjectID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.sessions {
		if s.OwnerID == ownerID && s.SubjectID == subjectID && s.Status == SessionStatusRunning {
			count++
		}
	}
	return count
}

type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{current: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
