package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/focus-timer/internal/testfixtures"
	"github.com/example/focus-timer/internal/timerapi"
)

type completeCall struct {
	SessionID string
	Observed  int
}

type fakeAPI struct {
	mu        sync.Mutex
	syncs     []timerapi.StartOrSyncRequest
	pauses    []string
	resumes   []string
	completes []completeCall
	getActive int

	active     *timerapi.Session
	sessions   map[string]timerapi.Session
	syncErr    error
	pauseErr   error
	resumeErr  error
	activeErr  error
	sessionID  string
	syncGate   chan struct{}
	activeGate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{sessionID: "session-1", sessions: map[string]timerapi.Session{}}
}

func (f *fakeAPI) StartOrSync(ctx context.Context, req timerapi.StartOrSyncRequest) (timerapi.Session, error) {
	f.mu.Lock()
	f.syncs = append(f.syncs, req)
	gate := f.syncGate
	err := f.syncErr
	id := f.sessionID
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return timerapi.Session{}, ctx.Err()
		}
	}
	if err != nil {
		return timerapi.Session{}, err
	}
	return timerapi.Session{ID: id, Status: timerapi.StatusRunning, StartTime: req.StartTime}, nil
}

func (f *fakeAPI) Pause(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, sessionID)
	return f.pauseErr
}

func (f *fakeAPI) Resume(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes = append(f.resumes, sessionID)
	return f.resumeErr
}

func (f *fakeAPI) Complete(_ context.Context, sessionID string, observed *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := completeCall{SessionID: sessionID}
	if observed != nil {
		call.Observed = *observed
	}
	f.completes = append(f.completes, call)
	return nil
}

func (f *fakeAPI) GetActive(ctx context.Context) (*timerapi.Session, error) {
	f.mu.Lock()
	f.getActive++
	gate := f.activeGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	if f.active == nil {
		return nil, nil
	}
	copied := *f.active
	return &copied, nil
}

func (f *fakeAPI) GetSession(_ context.Context, sessionID string) (timerapi.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return timerapi.Session{}, &timerapi.APIError{StatusCode: 404}
	}
	return session, nil
}

func (f *fakeAPI) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.syncs)
}

func (f *fakeAPI) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getActive
}

func (f *fakeAPI) transitions() (pauses, resumes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pauses...), append([]string(nil), f.resumes...)
}

func (f *fakeAPI) lastSync() timerapi.StartOrSyncRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs[len(f.syncs)-1]
}

func (f *fakeAPI) completed() []completeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completeCall(nil), f.completes...)
}

// manualTicker only fires when a test sends on it.
type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() { t.once.Do(func() { close(t.stopped) }) }

type tickerSet struct {
	mu      sync.Mutex
	tickers map[time.Duration][]*manualTicker
}

func newTickerSet() *tickerSet {
	return &tickerSet{tickers: map[time.Duration][]*manualTicker{}}
}

func (s *tickerSet) factory(d time.Duration) Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	s.tickers[d] = append(s.tickers[d], t)
	return t
}

func (s *tickerSet) latest(d time.Duration) *manualTicker {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.tickers[d]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

var focusSubject = Subject{ID: "math", Title: "Math", Kind: timerapi.KindFocus, TargetSeconds: 1500}

func newTestAgent(t *testing.T, api API, clock *testfixtures.Clock, tickers *tickerSet) *Agent {
	t.Helper()
	if tickers == nil {
		tickers = newTickerSet()
	}
	a := New(api, Options{
		DeviceID:  "device-1",
		Now:       clock.NowFunc(),
		NewTicker: tickers.factory,
	})
	t.Cleanup(a.Close)
	return a
}

func TestAgentStartSavesAndTracksSession(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	a := newTestAgent(t, api, clock, nil)

	require.NoError(t, a.Start(context.Background(), focusSubject))

	state := a.State()
	assert.Equal(t, StatusRunning, state.Status)
	assert.Equal(t, "session-1", state.SessionID)
	require.Equal(t, 1, api.syncCount())
	assert.Equal(t, "device-1", api.syncs[0].DeviceID)
	assert.Equal(t, 0, api.syncs[0].ObservedDurationSeconds)
	assert.Equal(t, 1500, api.syncs[0].TargetDurationSeconds)

	assert.ErrorIs(t, a.Start(context.Background(), focusSubject), ErrAlreadyActive)
}

func TestAgentStartRejectsInvalidSubject(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, newFakeAPI(), testfixtures.NewClock(time.Time{}), nil)

	err := a.Start(context.Background(), Subject{Kind: "NAP"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject id is required")
	assert.Equal(t, StatusIdle, a.State().Status)
}

func TestAgentSaveDebounce(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	a := newTestAgent(t, api, clock, nil)
	require.NoError(t, a.Start(context.Background(), focusSubject))
	require.Equal(t, 1, api.syncCount())

	clock.Advance(30 * time.Second)
	assert.True(t, a.Save(context.Background(), TriggerInterval))
	clock.Advance(300 * time.Millisecond)
	assert.False(t, a.VisibilityLost(context.Background()), "second trigger within the floor must be coalesced")
	assert.Equal(t, 2, api.syncCount())

	clock.Advance(5 * time.Second)
	assert.True(t, a.VisibilityLost(context.Background()))
	assert.Equal(t, 3, api.syncCount())
}

func TestAgentSaveInFlightBlocksOverlap(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	a := newTestAgent(t, api, clock, nil)
	require.NoError(t, a.Start(context.Background(), focusSubject))

	gate := make(chan struct{})
	api.mu.Lock()
	api.syncGate = gate
	api.mu.Unlock()

	clock.Advance(time.Minute)
	done := make(chan bool)
	go func() { done <- a.Save(context.Background(), TriggerInterval) }()

	require.Eventually(t, func() bool { return api.syncCount() == 2 }, time.Second, time.Millisecond)
	assert.False(t, a.VisibilityLost(context.Background()))

	close(gate)
	assert.True(t, <-done)
	assert.Equal(t, 2, api.syncCount())
}

func TestAgentSaveFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	api.syncErr = errors.New("connection refused")
	a := newTestAgent(t, api, clock, nil)

	require.NoError(t, a.Start(context.Background(), focusSubject))
	assert.Equal(t, StatusRunning, a.State().Status)
	assert.Empty(t, a.State().SessionID)

	// A failed save does not arm the debounce floor.
	clock.Advance(time.Second)
	assert.True(t, a.Save(context.Background(), TriggerInterval))
}

func TestAgentDiscardsLateSaveResponse(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	a := newTestAgent(t, api, clock, nil)
	require.NoError(t, a.Start(context.Background(), focusSubject))

	gate := make(chan struct{})
	api.mu.Lock()
	api.syncGate = gate
	api.sessionID = "late-session"
	api.mu.Unlock()

	clock.Advance(time.Minute)
	done := make(chan bool)
	go func() { done <- a.Save(context.Background(), TriggerInterval) }()
	require.Eventually(t, func() bool { return api.syncCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, a.Stop(context.Background()))

	api.mu.Lock()
	api.syncGate = nil
	api.sessionID = "art-session"
	api.mu.Unlock()
	require.NoError(t, a.Start(context.Background(), Subject{ID: "art", Title: "Art", Kind: timerapi.KindFocus, TargetSeconds: 600}))
	require.Equal(t, "art-session", a.State().SessionID)

	close(gate)
	assert.True(t, <-done)

	state := a.State()
	assert.Equal(t, "art", state.Subject.ID)
	assert.Equal(t, "art-session", state.SessionID, "a response for the previous run must not be applied")
}

func TestAgentStopAfterStartIgnoresStaleResponse(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	a := newTestAgent(t, api, clock, nil)
	require.NoError(t, a.Start(context.Background(), focusSubject))

	gate := make(chan struct{})
	api.mu.Lock()
	api.syncGate = gate
	api.mu.Unlock()

	clock.Advance(time.Minute)
	done := make(chan bool)
	go func() { done <- a.Save(context.Background(), TriggerInterval) }()
	require.Eventually(t, func() bool { return api.syncCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, a.Stop(context.Background()))
	close(gate)
	<-done

	state := a.State()
	assert.Equal(t, StatusIdle, state.Status)
	assert.Empty(t, state.SessionID)
	assert.True(t, state.LastSavedAt.IsZero())
}

func TestAgentPauseResumeStop(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	a := newTestAgent(t, api, clock, nil)

	assert.ErrorIs(t, a.Pause(context.Background()), ErrNotActive)
	require.NoError(t, a.Start(context.Background(), focusSubject))

	clock.Advance(100 * time.Second)
	require.NoError(t, a.Pause(context.Background()))
	require.NoError(t, a.Pause(context.Background()))
	assert.Equal(t, StatusPaused, a.State().Status)
	assert.False(t, a.Save(context.Background(), TriggerVisibility), "no saves while paused")

	clock.Advance(50 * time.Second)
	assert.Equal(t, 100, a.State().ElapsedSeconds, "paused time is excluded")

	require.NoError(t, a.Resume(context.Background()))
	require.NoError(t, a.Resume(context.Background()))
	clock.Advance(20 * time.Second)
	assert.Equal(t, 120, a.State().ElapsedSeconds)

	require.NoError(t, a.Stop(context.Background()))
	assert.Equal(t, StatusIdle, a.State().Status)

	assert.Equal(t, []string{"session-1"}, api.pauses)
	assert.Equal(t, []string{"session-1"}, api.resumes)
	assert.Equal(t, []completeCall{{SessionID: "session-1", Observed: 120}}, api.completed())
	assert.ErrorIs(t, a.Stop(context.Background()), ErrNotActive)
}

func TestAgentPauseOnFinishedSessionStopsLocally(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	api.pauseErr = &timerapi.APIError{StatusCode: 409}
	a := newTestAgent(t, api, clock, nil)
	require.NoError(t, a.Start(context.Background(), focusSubject))

	require.NoError(t, a.Pause(context.Background()))
	assert.Equal(t, StatusIdle, a.State().Status)
}

func TestAgentTickFinishesAtTarget(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	var ticks []State
	a := New(api, Options{
		DeviceID:  "device-1",
		Now:       clock.NowFunc(),
		NewTicker: newTickerSet().factory,
		OnTick:    func(s State) { ticks = append(ticks, s) },
	})
	t.Cleanup(a.Close)
	require.NoError(t, a.Start(context.Background(), focusSubject))

	clock.Advance(1499 * time.Second)
	state := a.Tick(context.Background())
	assert.Equal(t, 1, state.RemainingSeconds())
	assert.Empty(t, api.completed())

	clock.Advance(3 * time.Second)
	a.Tick(context.Background())
	assert.Equal(t, []completeCall{{SessionID: "session-1", Observed: 1500}}, api.completed())
	assert.Equal(t, StatusIdle, a.State().Status)
	assert.Len(t, ticks, 2)
}

func TestAgentRecoverReconcilesWallClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	t.Run("in range resumes with actual elapsed", func(t *testing.T) {
		t.Parallel()

		clock := testfixtures.NewClock(start.Add(600 * time.Second))
		api := newFakeAPI()
		api.active = &timerapi.Session{
			ID:                      "session-7",
			SubjectID:               "math",
			SubjectTitle:            "Math",
			Kind:                    timerapi.KindFocus,
			Status:                  timerapi.StatusRunning,
			StartTime:               start,
			TargetDurationSeconds:   1500,
			ObservedDurationSeconds: 400,
		}
		a := newTestAgent(t, api, clock, nil)

		require.NoError(t, a.Recover(context.Background()))

		state := a.State()
		assert.Equal(t, StatusRunning, state.Status)
		assert.Equal(t, "session-7", state.SessionID)
		assert.Equal(t, 600, state.ElapsedSeconds)
		assert.True(t, state.RecoveryCompleted)
		assert.Empty(t, api.completed())
	})

	t.Run("expired completes capped at target", func(t *testing.T) {
		t.Parallel()

		clock := testfixtures.NewClock(start.Add(1600 * time.Second))
		api := newFakeAPI()
		api.active = &timerapi.Session{
			ID:                      "session-8",
			Status:                  timerapi.StatusRunning,
			StartTime:               start,
			TargetDurationSeconds:   1500,
			ObservedDurationSeconds: 400,
		}
		a := newTestAgent(t, api, clock, nil)

		require.NoError(t, a.Recover(context.Background()))

		assert.Equal(t, StatusIdle, a.State().Status)
		assert.Equal(t, []completeCall{{SessionID: "session-8", Observed: 1500}}, api.completed())
	})

	t.Run("paused time is excluded", func(t *testing.T) {
		t.Parallel()

		clock := testfixtures.NewClock(start.Add(1600 * time.Second))
		api := newFakeAPI()
		api.active = &timerapi.Session{
			ID:                    "session-9",
			Status:                timerapi.StatusRunning,
			StartTime:             start,
			TargetDurationSeconds: 1500,
			PausedDurationSeconds: 400,
		}
		a := newTestAgent(t, api, clock, nil)

		require.NoError(t, a.Recover(context.Background()))

		assert.Equal(t, 1200, a.State().ElapsedSeconds)
		assert.Empty(t, api.completed())
	})
}

func TestAgentRecoverRunsOnce(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	gate := make(chan struct{})
	api.activeGate = gate
	a := newTestAgent(t, api, clock, nil)

	first := make(chan error)
	go func() { first <- a.Recover(context.Background()) }()
	require.Eventually(t, func() bool { return api.activeCount() == 1 }, time.Second, time.Millisecond)

	// A duplicate initialization observes the guard and returns at once.
	require.NoError(t, a.Recover(context.Background()))
	assert.False(t, a.State().RecoveryCompleted)

	close(gate)
	require.NoError(t, <-first)
	assert.True(t, a.State().RecoveryCompleted)

	require.NoError(t, a.Recover(context.Background()))
	assert.Equal(t, 1, api.activeCount())
}

func TestAgentRecoverFailures(t *testing.T) {
	t.Parallel()

	t.Run("transient errors are swallowed", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI()
		api.activeErr = errors.New("dial tcp: connection refused")
		a := newTestAgent(t, api, testfixtures.NewClock(time.Time{}), nil)

		assert.NoError(t, a.Recover(context.Background()))
		assert.True(t, a.State().RecoveryCompleted)
	})

	t.Run("authentication errors surface", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI()
		api.activeErr = &timerapi.APIError{StatusCode: 401}
		a := newTestAgent(t, api, testfixtures.NewClock(time.Time{}), nil)

		err := a.Recover(context.Background())
		assert.ErrorIs(t, err, timerapi.ErrNotAuthenticated)
		assert.True(t, a.State().RecoveryCompleted)
	})
}

func TestAgentCheckLiveness(t *testing.T) {
	t.Parallel()

	t.Run("still active", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI()
		a := newTestAgent(t, api, testfixtures.NewClock(time.Time{}), nil)
		require.NoError(t, a.Start(context.Background(), focusSubject))
		api.active = &timerapi.Session{ID: "session-1", Status: timerapi.StatusRunning}

		a.CheckLiveness(context.Background())
		assert.Equal(t, StatusRunning, a.State().Status)
	})

	t.Run("gone force-stops without completing", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI()
		a := newTestAgent(t, api, testfixtures.NewClock(time.Time{}), nil)
		require.NoError(t, a.Start(context.Background(), focusSubject))

		a.CheckLiveness(context.Background())
		assert.Equal(t, StatusIdle, a.State().Status)
		assert.Empty(t, api.completed())
	})

	t.Run("other subject more recent", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI()
		a := newTestAgent(t, api, testfixtures.NewClock(time.Time{}), nil)
		require.NoError(t, a.Start(context.Background(), focusSubject))
		api.active = &timerapi.Session{ID: "session-2", Status: timerapi.StatusRunning}
		api.sessions["session-1"] = timerapi.Session{ID: "session-1", Status: timerapi.StatusRunning}

		a.CheckLiveness(context.Background())
		assert.Equal(t, StatusRunning, a.State().Status)

		api.sessions["session-1"] = timerapi.Session{ID: "session-1", Status: timerapi.StatusCompleted}
		a.CheckLiveness(context.Background())
		assert.Equal(t, StatusIdle, a.State().Status)
	})

	t.Run("network failure keeps running", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI()
		a := newTestAgent(t, api, testfixtures.NewClock(time.Time{}), nil)
		require.NoError(t, a.Start(context.Background(), focusSubject))
		api.mu.Lock()
		api.activeErr = errors.New("timeout")
		api.mu.Unlock()

		a.CheckLiveness(context.Background())
		assert.Equal(t, StatusRunning, a.State().Status)
	})
}

func TestAgentBackgroundLoops(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	tickers := newTickerSet()
	a := newTestAgent(t, api, clock, tickers)
	require.NoError(t, a.Start(context.Background(), focusSubject))

	syncTicker := tickers.latest(DefaultSyncInterval)
	require.NotNil(t, syncTicker)
	require.NotNil(t, tickers.latest(DefaultTickInterval))
	require.NotNil(t, tickers.latest(DefaultLivenessInterval))

	clock.Advance(30 * time.Second)
	syncTicker.ch <- clock.Now()
	require.Eventually(t, func() bool { return api.syncCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, a.Pause(context.Background()))
	select {
	case <-syncTicker.stopped:
	case <-time.After(time.Second):
		t.Fatal("pause must cancel the background loops")
	}

	require.NoError(t, a.Resume(context.Background()))
	assert.NotSame(t, syncTicker, tickers.latest(DefaultSyncInterval))
}

func TestReconcileElapsed(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	pausedAt := start.Add(10 * time.Minute)

	tests := []struct {
		name    string
		session timerapi.Session
		now     time.Time
		want    int
	}{
		{name: "ignores cached observed", session: timerapi.Session{StartTime: start, ObservedDurationSeconds: 400}, now: start.Add(600 * time.Second), want: 600},
		{name: "clock skew clamps to zero", session: timerapi.Session{StartTime: start}, now: start.Add(-time.Minute), want: 0},
		{name: "subtracts accumulated pause", session: timerapi.Session{StartTime: start, PausedDurationSeconds: 60}, now: start.Add(600 * time.Second), want: 540},
		{name: "subtracts ongoing pause", session: timerapi.Session{StartTime: start, Status: timerapi.StatusPaused, PausedAt: &pausedAt}, now: start.Add(15 * time.Minute), want: 600},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ReconcileElapsed(tc.session, tc.now), tc.name)
	}
}

func TestAgentResumeFailureIsReplayedBeforeNextSave(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	a := newTestAgent(t, api, clock, nil)
	require.NoError(t, a.Start(context.Background(), focusSubject))

	clock.Advance(60 * time.Second)
	require.NoError(t, a.Pause(context.Background()))
	clock.Advance(120 * time.Second)
	api.mu.Lock()
	api.resumeErr = errors.New("dial tcp: connection refused")
	api.mu.Unlock()
	require.NoError(t, a.Resume(context.Background()))
	assert.Equal(t, StatusRunning, a.State().Status)

	// The server row is still PAUSED, so a heartbeat would insert a new one.
	clock.Advance(30 * time.Second)
	assert.True(t, a.Save(context.Background(), TriggerInterval))
	assert.Equal(t, 1, api.syncCount(), "the snapshot waits for the resume")
	_, resumes := api.transitions()
	assert.Equal(t, []string{"session-1", "session-1"}, resumes)

	api.mu.Lock()
	api.resumeErr = nil
	api.mu.Unlock()
	clock.Advance(time.Second)
	assert.True(t, a.Save(context.Background(), TriggerInterval))
	_, resumes = api.transitions()
	assert.Len(t, resumes, 3)
	require.Equal(t, 2, api.syncCount())
	assert.Equal(t, 120, api.lastSync().PausedDurationSeconds)
	assert.Equal(t, 91, api.lastSync().ObservedDurationSeconds)

	clock.Advance(10 * time.Second)
	assert.True(t, a.Save(context.Background(), TriggerInterval))
	_, resumes = api.transitions()
	assert.Len(t, resumes, 3, "a confirmed resume is not replayed again")
	assert.Equal(t, 3, api.syncCount())
}

func TestAgentPauseDuringFirstSaveIsReplayed(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	gate := make(chan struct{})
	api.syncGate = gate
	a := newTestAgent(t, api, clock, nil)

	started := make(chan error)
	go func() { started <- a.Start(context.Background(), focusSubject) }()
	require.Eventually(t, func() bool { return api.syncCount() == 1 }, time.Second, time.Millisecond)

	clock.Advance(10 * time.Second)
	require.NoError(t, a.Pause(context.Background()))
	pauses, _ := api.transitions()
	assert.Empty(t, pauses, "no session id yet")

	close(gate)
	require.NoError(t, <-started)

	pauses, _ = api.transitions()
	assert.Equal(t, []string{"session-1"}, pauses)
	state := a.State()
	assert.Equal(t, StatusPaused, state.Status)
	assert.Equal(t, "session-1", state.SessionID)
}

func TestAgentStopDuringFirstSaveCompletesOnceSaved(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	api := newFakeAPI()
	gate := make(chan struct{})
	api.syncGate = gate
	a := newTestAgent(t, api, clock, nil)

	started := make(chan error)
	go func() { started <- a.Start(context.Background(), focusSubject) }()
	require.Eventually(t, func() bool { return api.syncCount() == 1 }, time.Second, time.Millisecond)

	clock.Advance(45 * time.Second)
	require.NoError(t, a.Stop(context.Background()))
	assert.Equal(t, StatusIdle, a.State().Status)
	assert.Empty(t, api.completed())

	close(gate)
	require.NoError(t, <-started)
	assert.Equal(t, []completeCall{{SessionID: "session-1", Observed: 45}}, api.completed())
	assert.Empty(t, a.State().SessionID)
}

func TestAgentStopAfterLostFirstSave(t *testing.T) {
	t.Parallel()

	t.Run("completes the matching server session", func(t *testing.T) {
		t.Parallel()

		clock := testfixtures.NewClock(time.Time{})
		api := newFakeAPI()
		api.syncErr = context.DeadlineExceeded
		a := newTestAgent(t, api, clock, nil)
		start := clock.Now().UTC()
		require.NoError(t, a.Start(context.Background(), focusSubject))
		require.Empty(t, a.State().SessionID)

		api.mu.Lock()
		api.active = &timerapi.Session{ID: "session-1", SubjectID: "math", Status: timerapi.StatusRunning, StartTime: start}
		api.mu.Unlock()
		clock.Advance(30 * time.Second)
		require.NoError(t, a.Stop(context.Background()))

		assert.Equal(t, []completeCall{{SessionID: "session-1", Observed: 30}}, api.completed())
	})

	t.Run("leaves other sessions alone", func(t *testing.T) {
		t.Parallel()

		clock := testfixtures.NewClock(time.Time{})
		api := newFakeAPI()
		api.syncErr = context.DeadlineExceeded
		a := newTestAgent(t, api, clock, nil)
		require.NoError(t, a.Start(context.Background(), focusSubject))

		api.mu.Lock()
		api.active = &timerapi.Session{ID: "session-0", SubjectID: "math", Status: timerapi.StatusRunning, StartTime: clock.Now().Add(-time.Hour)}
		api.mu.Unlock()
		clock.Advance(30 * time.Second)
		require.NoError(t, a.Stop(context.Background()))

		assert.Empty(t, api.completed())
	})
}
