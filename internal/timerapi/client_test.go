package timerapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient("ftp://example.com", "token")
	assert.Error(t, err)

	_, err = NewClient("http://example.com/", "token")
	assert.NoError(t, err)
}

func TestClientStartOrSync(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	var got StartOrSyncRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/timer/sessions", r.URL.Path)
		assert.Equal(t, "Bearer key.secret", r.Header.Get("Authorization"))
		assert.Equal(t, "device-1", r.Header.Get(DeviceIDHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SessionResponse{Session: Session{ID: "session-1", Status: StatusRunning, StartTime: start}})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/api", "key.secret", WithDeviceID("device-1"), WithHTTPClient(server.Client()))
	require.NoError(t, err)

	session, err := client.StartOrSync(context.Background(), StartOrSyncRequest{
		SubjectID:               "math",
		SubjectTitle:            "Math",
		Kind:                    KindFocus,
		StartTime:               start,
		TargetDurationSeconds:   1500,
		ObservedDurationSeconds: 60,
	})
	require.NoError(t, err)

	assert.Equal(t, "session-1", session.ID)
	assert.Equal(t, "device-1", got.DeviceID)
	assert.Equal(t, 60, got.ObservedDurationSeconds)
}

func TestClientMapsErrorResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		sentinel  error
		transient bool
	}{
		{status: http.StatusUnauthorized, sentinel: ErrNotAuthenticated},
		{status: http.StatusNotFound, sentinel: ErrSessionNotFound},
		{status: http.StatusConflict, sentinel: ErrSessionCompleted},
		{status: http.StatusUnprocessableEntity, sentinel: ErrValidation},
		{status: http.StatusInternalServerError, transient: true},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(ErrorResponse{ErrorCode: "CODE", Message: "failed", Errors: map[string]string{"kind": "bad"}})
			}))
			t.Cleanup(server.Close)

			client, err := NewClient(server.URL, "key.secret")
			require.NoError(t, err)

			err = client.Pause(context.Background(), "session-1")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, "CODE", apiErr.Code)
			assert.Equal(t, "bad", apiErr.FieldErrors["kind"])
			if tc.sentinel != nil {
				assert.ErrorIs(t, err, tc.sentinel)
			}
			assert.Equal(t, tc.transient, IsTransient(err))
		})
	}
}

func TestClientTransportFailureIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(url, "key.secret")
	require.NoError(t, err)

	_, err = client.GetActive(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(nil))
}

func TestClientGetActiveNull(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/timer/sessions/active", r.URL.Path)
		_, _ = w.Write([]byte(`{"session":null}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "key.secret")
	require.NoError(t, err)

	session, err := client.GetActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestClientCompleteAndActivity(t *testing.T) {
	t.Parallel()

	var completeBody CompleteRequest
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/timer/sessions/session-1/complete":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&completeBody))
			w.WriteHeader(http.StatusNoContent)
		case "/activity":
			query = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"entries":[{"id":"a1","duration_minutes":25,"local_date":"2024-03-05"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "key.secret")
	require.NoError(t, err)

	observed := 1500
	require.NoError(t, client.Complete(context.Background(), "session-1", &observed))
	require.NotNil(t, completeBody.ObservedDurationSeconds)
	assert.Equal(t, 1500, *completeBody.ObservedDurationSeconds)

	entries, err := client.ListActivity(context.Background(), "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 25, entries[0].DurationMinutes)
	assert.Equal(t, "from=2024-03-01&to=2024-03-31", query)
}
