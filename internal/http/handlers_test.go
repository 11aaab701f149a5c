package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/focus-timer/internal/application"
	"github.com/example/focus-timer/internal/timerapi"
)

type timerServiceStub struct {
	syncParams     application.StartOrSyncParams
	completeParams application.CompleteParams
	activityParams application.ListActivityParams
	paused         []string
	resumed        []string

	session  application.TimerSession
	active   *application.TimerSession
	events   []application.TimerEvent
	activity []application.ActivityLogEntry
	err      error
}

func (s *timerServiceStub) StartOrSync(_ context.Context, params application.StartOrSyncParams) (application.TimerSession, error) {
	s.syncParams = params
	return s.session, s.err
}

func (s *timerServiceStub) Pause(_ context.Context, _ application.Principal, sessionID string) error {
	s.paused = append(s.paused, sessionID)
	return s.err
}

func (s *timerServiceStub) Resume(_ context.Context, _ application.Principal, sessionID string) error {
	s.resumed = append(s.resumed, sessionID)
	return s.err
}

func (s *timerServiceStub) Complete(_ context.Context, params application.CompleteParams) error {
	s.completeParams = params
	return s.err
}

func (s *timerServiceStub) GetActive(context.Context, application.Principal) (*application.TimerSession, error) {
	return s.active, s.err
}

func (s *timerServiceStub) GetSession(context.Context, application.Principal, string) (application.TimerSession, error) {
	return s.session, s.err
}

func (s *timerServiceStub) ListEvents(context.Context, application.Principal, string) ([]application.TimerEvent, error) {
	return s.events, s.err
}

func (s *timerServiceStub) ListActivity(_ context.Context, params application.ListActivityParams) ([]application.ActivityLogEntry, error) {
	s.activityParams = params
	return s.activity, s.err
}

func newTestRouter(service *timerServiceStub) http.Handler {
	principal := application.Principal{OwnerID: "owner-1", DeviceID: "device-1"}
	inject := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
	return NewRouter(RouterConfig{
		Timer:      NewTimerHandler(service, nil),
		Activity:   NewActivityHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{inject},
	})
}

func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) timerapi.ErrorResponse {
	t.Helper()
	var payload timerapi.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestTimerHandlerStartOrSync(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	service := &timerServiceStub{session: application.TimerSession{
		ID:              "session-1",
		OwnerID:         "owner-1",
		SubjectID:       "math",
		SubjectTitle:    "Math",
		Kind:            application.SessionKindFocus,
		Status:          application.SessionStatusRunning,
		StartTime:       start,
		TargetSeconds:   1500,
		ObservedSeconds: 120,
		OriginDeviceID:  "device-1",
		LastUpdatedAt:   start.Add(2 * time.Minute),
	}}
	router := newTestRouter(service)

	body := `{"subject_id":"math","subject_title":"Math","kind":"FOCUS","start_time":"2024-03-05T09:00:00Z","target_duration_seconds":1500,"observed_duration_seconds":120,"paused_duration_seconds":45,"device_id":"device-1"}`
	rec := serve(t, router, http.MethodPost, "/timer/sessions", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", service.syncParams.Principal.OwnerID)
	assert.Equal(t, application.SessionKindFocus, service.syncParams.Kind)
	assert.Equal(t, 1500, service.syncParams.TargetSeconds)
	assert.Equal(t, 120, service.syncParams.ObservedSeconds)
	assert.Equal(t, 45, service.syncParams.PausedSeconds)
	assert.True(t, service.syncParams.StartTime.Equal(start))

	var resp timerapi.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "session-1", resp.Session.ID)
	assert.Equal(t, timerapi.StatusRunning, resp.Session.Status)
	assert.Equal(t, 120, resp.Session.ObservedDurationSeconds)
	assert.Contains(t, rec.Body.String(), `"start_time":"2024-03-05T09:00:00Z"`)
}

func TestTimerHandlerRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestRouter(&timerServiceStub{}), http.MethodPost, "/timer/sessions", "{")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errBadRequestBody.Error(), decodeError(t, rec).Message)
}

func TestTimerHandlerErrorMapping(t *testing.T) {
	t.Parallel()

	vErr := &application.ValidationError{FieldErrors: map[string]string{"subject_id": "subject id is required"}}

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: vErr, status: http.StatusUnprocessableEntity, code: timerapi.CodeValidation},
		{name: "not found", err: application.ErrNotFound, status: http.StatusNotFound, code: timerapi.CodeSessionNotFound},
		{name: "completed", err: application.ErrSessionCompleted, status: http.StatusConflict, code: timerapi.CodeSessionCompleted},
		{name: "not authenticated", err: application.ErrNotAuthenticated, status: http.StatusUnauthorized, code: timerapi.CodeNotAuthenticated},
		{name: "unexpected", err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: timerapi.CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(t, newTestRouter(&timerServiceStub{err: tc.err}), http.MethodPost, "/timer/sessions/session-1/pause", "")

			require.Equal(t, tc.status, rec.Code)
			payload := decodeError(t, rec)
			assert.Equal(t, tc.code, payload.ErrorCode)
			assert.NotContains(t, payload.Message, "disk on fire")
		})
	}
}

func TestTimerHandlerValidationMessagesAreLocalized(t *testing.T) {
	t.Parallel()

	vErr := &application.ValidationError{FieldErrors: map[string]string{
		"subject_id":              "subject id is required",
		"target_duration_seconds": "target duration must be positive",
	}}
	rec := serve(t, newTestRouter(&timerServiceStub{err: vErr}), http.MethodPost, "/timer/sessions", `{}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "科目 ID は必須です。", payload.Errors["subject_id"])
	assert.Equal(t, "目標時間は正の秒数で指定してください。", payload.Errors["target_duration_seconds"])
}

func TestTimerHandlerTransitions(t *testing.T) {
	t.Parallel()

	service := &timerServiceStub{}
	router := newTestRouter(service)

	rec := serve(t, router, http.MethodPost, "/timer/sessions/session-1/pause", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(t, router, http.MethodPost, "/timer/sessions/session-1/resume", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, []string{"session-1"}, service.paused)
	assert.Equal(t, []string{"session-1"}, service.resumed)
}

func TestTimerHandlerComplete(t *testing.T) {
	t.Parallel()

	t.Run("without body keeps last synced duration", func(t *testing.T) {
		t.Parallel()

		service := &timerServiceStub{}
		rec := serve(t, newTestRouter(service), http.MethodPost, "/timer/sessions/session-1/complete", "")

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "session-1", service.completeParams.SessionID)
		assert.Nil(t, service.completeParams.ObservedSeconds)
	})

	t.Run("with observed duration", func(t *testing.T) {
		t.Parallel()

		service := &timerServiceStub{}
		rec := serve(t, newTestRouter(service), http.MethodPost, "/timer/sessions/session-1/complete", `{"observed_duration_seconds":1500}`)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, service.completeParams.ObservedSeconds)
		assert.Equal(t, 1500, *service.completeParams.ObservedSeconds)
		assert.Equal(t, "device-1", service.completeParams.Principal.DeviceID)
	})
}

func TestTimerHandlerGetActive(t *testing.T) {
	t.Parallel()

	t.Run("none", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, newTestRouter(&timerServiceStub{}), http.MethodGet, "/timer/sessions/active", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"session":null}`, rec.Body.String())
	})

	t.Run("running", func(t *testing.T) {
		t.Parallel()

		active := &application.TimerSession{ID: "session-9", Status: application.SessionStatusRunning}
		rec := serve(t, newTestRouter(&timerServiceStub{active: active}), http.MethodGet, "/timer/sessions/active", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp timerapi.ActiveSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Session)
		assert.Equal(t, "session-9", resp.Session.ID)
	})
}

func TestTimerHandlerListEvents(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	service := &timerServiceStub{events: []application.TimerEvent{
		{ID: "e1", SessionID: "session-1", Kind: application.EventKindStart, OccurredAt: at},
		{ID: "e2", SessionID: "session-1", Kind: application.EventKindSync, Payload: map[string]any{"observed_duration_seconds": 30}, OccurredAt: at.Add(30 * time.Second)},
	}}

	rec := serve(t, newTestRouter(service), http.MethodGet, "/timer/sessions/session-1/events", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp timerapi.EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "start", resp.Events[0].Kind)
	assert.NotNil(t, resp.Events[0].Payload)
	assert.EqualValues(t, 30, resp.Events[1].Payload["observed_duration_seconds"])
}

func TestActivityHandlerList(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 4, 23, 50, 0, 0, time.UTC)
	service := &timerServiceStub{activity: []application.ActivityLogEntry{{
		ID:              "a1",
		SessionID:       "session-1",
		SubjectID:       "math",
		SubjectTitle:    "Math",
		Kind:            application.SessionKindFocus,
		StartTime:       start,
		EndTime:         start.Add(25 * time.Minute),
		DurationMinutes: 25,
		LocalDate:       "2024-03-05",
	}}}

	rec := serve(t, newTestRouter(service), http.MethodGet, "/activity?from=2024-03-01&to=2024-03-31", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03-01", service.activityParams.From)
	assert.Equal(t, "2024-03-31", service.activityParams.To)
	var resp timerapi.ActivityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, 25, resp.Entries[0].DurationMinutes)
	assert.Equal(t, "2024-03-05", resp.Entries[0].LocalDate)
}

func TestRouterMethodAndPathHandling(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&timerServiceStub{})

	tests := []struct {
		method string
		target string
		status int
	}{
		{http.MethodGet, "/timer/sessions", http.StatusMethodNotAllowed},
		{http.MethodPost, "/timer/sessions/active", http.StatusMethodNotAllowed},
		{http.MethodGet, "/timer/sessions/session-1/pause", http.StatusMethodNotAllowed},
		{http.MethodPost, "/timer/sessions/session-1/explode", http.StatusNotFound},
		{http.MethodGet, "/timer/sessions/", http.StatusNotFound},
		{http.MethodPost, "/activity", http.StatusMethodNotAllowed},
		{http.MethodGet, HealthPath, http.StatusOK},
	}

	for _, tc := range tests {
		rec := serve(t, router, tc.method, tc.target, "")
		assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.target)
	}
}
