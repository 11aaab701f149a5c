package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/focus-timer/internal/timerapi"
)

var (
	// ErrAlreadyActive is returned by Start while a run is RUNNING or PAUSED.
	ErrAlreadyActive = errors.New("agent: a session is already active")
	// ErrNotActive is returned by Pause, Resume and Stop while IDLE.
	ErrNotActive = errors.New("agent: no active session")
)

// Status is the local state of the timer.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusRunning Status = "RUNNING"
	StatusPaused  Status = "PAUSED"
)

// Trigger names what caused a save attempt.
type Trigger string

const (
	TriggerStart      Trigger = "start"
	TriggerInterval   Trigger = "interval"
	TriggerVisibility Trigger = "visibility"
)

// API is the subset of the timer API the agent calls.
type API interface {
	StartOrSync(ctx context.Context, req timerapi.StartOrSyncRequest) (timerapi.Session, error)
	Pause(ctx context.Context, sessionID string) error
	Resume(ctx context.Context, sessionID string) error
	Complete(ctx context.Context, sessionID string, observedSeconds *int) error
	GetActive(ctx context.Context) (*timerapi.Session, error)
	GetSession(ctx context.Context, sessionID string) (timerapi.Session, error)
}

const (
	transitionPause  = "pause"
	transitionResume = "resume"
)

// endedRun is what completing a finished run on the server needs. sessionID
// is empty when the run ended before its first save returned.
type endedRun struct {
	token     uint64
	sessionID string
	subjectID string
	startTime time.Time
	observed  int
	reason    string
}

// Subject describes what a run is for.
type Subject struct {
	ID            string
	Title         string
	Kind          string
	TargetSeconds int
}

func (s Subject) validate() error {
	var problems []string
	if strings.TrimSpace(s.ID) == "" {
		problems = append(problems, "subject id is required")
	}
	if strings.TrimSpace(s.Title) == "" {
		problems = append(problems, "subject title is required")
	}
	switch s.Kind {
	case timerapi.KindFocus, timerapi.KindShortBreak, timerapi.KindLongBreak:
	default:
		problems = append(problems, "kind must be one of FOCUS, SHORT_BREAK, LONG_BREAK")
	}
	if s.TargetSeconds <= 0 {
		problems = append(problems, "target duration must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("agent: invalid subject: %s", strings.Join(problems, "; "))
	}
	return nil
}

// State is a snapshot of the agent.
type State struct {
	Status            Status
	RunToken          uint64
	SessionID         string
	Subject           Subject
	StartTime         time.Time
	ElapsedSeconds    int
	PausedSeconds     int
	LastSavedAt       time.Time
	RecoveryCompleted bool
}

// RemainingSeconds is the time left until the target, never negative.
func (s State) RemainingSeconds() int {
	if remaining := s.Subject.TargetSeconds - s.ElapsedSeconds; remaining > 0 {
		return remaining
	}
	return 0
}

// Options tunes an Agent. Zero values select the defaults.
type Options struct {
	DeviceID         string
	TickInterval     time.Duration
	SyncInterval     time.Duration
	LivenessInterval time.Duration
	SaveTimeout      time.Duration
	DebounceFloor    time.Duration
	Now              func() time.Time
	NewTicker        TickerFactory
	OnTick           func(State)
	Logger           *slog.Logger
}

const (
	DefaultTickInterval     = time.Second
	DefaultSyncInterval     = 30 * time.Second
	DefaultLivenessInterval = 60 * time.Second
	DefaultSaveTimeout      = 10 * time.Second
	DefaultDebounceFloor    = 5 * time.Second
)

// Agent synchronizes one local timer with the server.
type Agent struct {
	api              API
	deviceID         string
	tickInterval     time.Duration
	syncInterval     time.Duration
	livenessInterval time.Duration
	saveTimeout      time.Duration
	debounceFloor    time.Duration
	now              func() time.Time
	newTicker        TickerFactory
	onTick           func(State)
	logger           *slog.Logger

	mu            sync.Mutex
	status        Status
	runToken      uint64
	sessionID     string
	subject       Subject
	startTime     time.Time
	pausedSeconds int
	pausedAt      time.Time
	pending       string
	unsaved       *endedRun
	saving        bool
	savingToken   uint64
	lastSaveAt    time.Time
	recovering    bool
	recovered     bool
	baseCtx       context.Context
	cancelLoops   context.CancelFunc

	loops sync.WaitGroup
}

// New builds an idle agent.
func New(api API, opts Options) *Agent {
	a := &Agent{
		api:              api,
		deviceID:         opts.DeviceID,
		tickInterval:     orDefault(opts.TickInterval, DefaultTickInterval),
		syncInterval:     orDefault(opts.SyncInterval, DefaultSyncInterval),
		livenessInterval: orDefault(opts.LivenessInterval, DefaultLivenessInterval),
		saveTimeout:      orDefault(opts.SaveTimeout, DefaultSaveTimeout),
		debounceFloor:    opts.DebounceFloor,
		now:              opts.Now,
		newTicker:        opts.NewTicker,
		onTick:           opts.OnTick,
		status:           StatusIdle,
		baseCtx:          context.Background(),
	}
	if a.debounceFloor <= 0 {
		a.debounceFloor = DefaultDebounceFloor
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.newTicker == nil {
		a.newTicker = NewSystemTicker
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a.logger = logger.With("component", "agent", "device_id", opts.DeviceID)
	return a
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Run recovers any active session, then keeps the background loops alive
// until ctx is cancelled. The server-side session is left as is on return so
// that the next process can recover it.
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	a.baseCtx = ctx
	a.mu.Unlock()

	if err := a.Recover(ctx); err != nil {
		a.Close()
		return err
	}

	<-ctx.Done()
	a.Close()
	return nil
}

// Close stops the background loops and waits for them to exit.
func (a *Agent) Close() {
	a.mu.Lock()
	a.stopLoopsLocked()
	a.mu.Unlock()
	a.loops.Wait()
}

// State returns a snapshot of the agent.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked(a.now())
}

// Start begins a new local run and issues the first save.
func (a *Agent) Start(ctx context.Context, subject Subject) error {
	if err := subject.validate(); err != nil {
		return err
	}

	a.mu.Lock()
	if a.status != StatusIdle {
		a.mu.Unlock()
		return ErrAlreadyActive
	}
	a.runToken++
	a.status = StatusRunning
	a.sessionID = ""
	a.subject = subject
	a.startTime = a.now().UTC()
	a.pausedSeconds = 0
	a.pausedAt = time.Time{}
	a.pending = ""
	a.lastSaveAt = time.Time{}
	a.startLoopsLocked()
	token := a.runToken
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "run started", "run_token", token, "subject_id", subject.ID, "target_seconds", subject.TargetSeconds)
	a.Save(ctx, TriggerStart)
	return nil
}

// Save posts the current snapshot. It reports whether a network write was
// issued: a save is skipped unless RUNNING, while another save is in flight,
// or within the debounce floor of the last successful save. A resume the
// server has not confirmed is replayed first; the snapshot is held back until
// it succeeds so that a paused row is never duplicated.
func (a *Agent) Save(ctx context.Context, trigger Trigger) bool {
	a.mu.Lock()
	now := a.now()
	if a.status != StatusRunning {
		a.mu.Unlock()
		return false
	}
	if a.saving && a.savingToken == a.runToken {
		a.mu.Unlock()
		a.logger.DebugContext(ctx, "save skipped", "trigger", trigger, "reason", "in_flight")
		return false
	}
	if !a.lastSaveAt.IsZero() && now.Sub(a.lastSaveAt) < a.debounceFloor {
		a.mu.Unlock()
		a.logger.DebugContext(ctx, "save skipped", "trigger", trigger, "reason", "debounced")
		return false
	}
	token, sessionID := a.runToken, a.sessionID
	replayResume := a.pending == transitionResume && sessionID != ""
	a.saving = true
	a.savingToken = token
	req := timerapi.StartOrSyncRequest{
		SubjectID:               a.subject.ID,
		SubjectTitle:            a.subject.Title,
		Kind:                    a.subject.Kind,
		StartTime:               a.startTime,
		TargetDurationSeconds:   a.subject.TargetSeconds,
		ObservedDurationSeconds: a.elapsedLocked(now),
		PausedDurationSeconds:   a.pausedSeconds,
		DeviceID:                a.deviceID,
	}
	a.mu.Unlock()

	logger := a.logger.With("trigger", trigger, "run_token", token)
	if replayResume && !a.remote(ctx, token, transitionResume, sessionID) {
		a.mu.Lock()
		if a.savingToken == token {
			a.saving = false
		}
		a.mu.Unlock()
		logger.WarnContext(ctx, "save held back until resume is confirmed", "session_id", sessionID)
		return true
	}

	callCtx, cancel := a.callContext(ctx)
	session, err := a.api.StartOrSync(callCtx, req)
	cancel()

	a.mu.Lock()
	if a.savingToken == token {
		a.saving = false
	}
	if a.unsaved != nil && a.unsaved.token == token {
		run := *a.unsaved
		a.unsaved = nil
		a.mu.Unlock()
		if err == nil {
			run.sessionID = session.ID
		}
		a.completeRun(ctx, run)
		return true
	}
	if err != nil {
		a.mu.Unlock()
		logger.WarnContext(ctx, "save failed", "error", err)
		return true
	}
	if token != a.runToken {
		a.mu.Unlock()
		logger.InfoContext(ctx, "discarded save response for a finished run", "session_id", session.ID)
		return true
	}
	a.sessionID = session.ID
	a.lastSaveAt = a.now()
	if sessionID == "" && a.pending == transitionResume {
		// Nothing was paused on the server before its first save.
		a.pending = ""
	}
	replayPause := a.status == StatusPaused && a.pending == transitionPause
	a.mu.Unlock()

	logger.DebugContext(ctx, "saved", "session_id", session.ID, "observed_seconds", req.ObservedDurationSeconds)
	if replayPause {
		a.remote(ctx, token, transitionPause, session.ID)
	}
	return true
}

// VisibilityLost saves opportunistically when the client is backgrounded.
func (a *Agent) VisibilityLost(ctx context.Context) bool {
	return a.Save(ctx, TriggerVisibility)
}

// Pause stops the local loops and pauses the server session. Pausing an
// already paused run is a no-op.
func (a *Agent) Pause(ctx context.Context) error {
	a.mu.Lock()
	switch a.status {
	case StatusIdle:
		a.mu.Unlock()
		return ErrNotActive
	case StatusPaused:
		a.mu.Unlock()
		return nil
	}
	a.status = StatusPaused
	a.pausedAt = a.now()
	a.pending = ""
	a.stopLoopsLocked()
	token, sessionID := a.runToken, a.sessionID
	a.mu.Unlock()

	a.remote(ctx, token, transitionPause, sessionID)
	return nil
}

// Resume restarts the local loops and resumes the server session. Resuming
// a running run is a no-op.
func (a *Agent) Resume(ctx context.Context) error {
	a.mu.Lock()
	switch a.status {
	case StatusIdle:
		a.mu.Unlock()
		return ErrNotActive
	case StatusRunning:
		a.mu.Unlock()
		return nil
	}
	now := a.now()
	if now.After(a.pausedAt) {
		a.pausedSeconds += int(now.Sub(a.pausedAt) / time.Second)
	}
	a.pausedAt = time.Time{}
	a.status = StatusRunning
	a.pending = ""
	a.startLoopsLocked()
	token, sessionID := a.runToken, a.sessionID
	a.mu.Unlock()

	a.remote(ctx, token, transitionResume, sessionID)
	return nil
}

// Stop ends the run and completes the server session with the elapsed time.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.status == StatusIdle {
		a.mu.Unlock()
		return ErrNotActive
	}
	run, deferred := a.endLocked(a.elapsedLocked(a.now()), "stopped")
	a.mu.Unlock()

	if !deferred {
		a.completeRun(ctx, run)
	}
	return nil
}

// Tick refreshes the display and finishes the run once the target is reached.
func (a *Agent) Tick(ctx context.Context) State {
	a.mu.Lock()
	state := a.stateLocked(a.now())
	a.mu.Unlock()

	if a.onTick != nil {
		a.onTick(state)
	}
	if state.Status == StatusRunning && state.ElapsedSeconds >= state.Subject.TargetSeconds {
		a.finish(ctx, state.RunToken)
	}
	return state
}

// CheckLiveness re-queries the server and force-stops the local run when its
// session was completed or stopped elsewhere.
func (a *Agent) CheckLiveness(ctx context.Context) {
	a.mu.Lock()
	if a.status != StatusRunning || a.sessionID == "" {
		a.mu.Unlock()
		return
	}
	token, sessionID := a.runToken, a.sessionID
	a.mu.Unlock()

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	active, err := a.api.GetActive(callCtx)
	if err != nil {
		a.logger.WarnContext(ctx, "liveness check failed", "session_id", sessionID, "error", err)
		return
	}
	if active != nil && active.ID == sessionID {
		return
	}
	if active != nil {
		// Another subject is more recent; ask about ours directly.
		session, err := a.api.GetSession(callCtx, sessionID)
		switch {
		case err == nil && session.Status != timerapi.StatusCompleted:
			return
		case err != nil && !errors.Is(err, timerapi.ErrSessionNotFound):
			a.logger.WarnContext(ctx, "liveness check failed", "session_id", sessionID, "error", err)
			return
		}
	}

	a.forceStop(ctx, token, "session no longer active on server")
}

// Recover reconciles local state with the server's active session. It runs
// once per agent: concurrent and later callers return immediately. The
// elapsed time is recomputed from the session's start time; a session past
// its target is completed with the target as its duration instead of being
// resumed. Only non-transient failures are returned.
func (a *Agent) Recover(ctx context.Context) error {
	a.mu.Lock()
	if a.recovered || a.recovering {
		a.mu.Unlock()
		return nil
	}
	a.recovering = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.recovering = false
		a.recovered = true
		a.mu.Unlock()
	}()

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	active, err := a.api.GetActive(callCtx)
	if err != nil {
		if timerapi.IsTransient(err) {
			a.logger.WarnContext(ctx, "recovery lookup failed", "error", err)
			return nil
		}
		return fmt.Errorf("recover active session: %w", err)
	}
	if active == nil {
		a.logger.InfoContext(ctx, "recovery found no active session")
		return nil
	}

	now := a.now()
	elapsed := ReconcileElapsed(*active, now)
	logger := a.logger.With("session_id", active.ID, "elapsed_seconds", elapsed, "target_seconds", active.TargetDurationSeconds)

	if elapsed >= active.TargetDurationSeconds {
		logger.InfoContext(ctx, "recovered session expired while unattended")
		a.complete(ctx, active.ID, active.TargetDurationSeconds, "expired")
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusIdle {
		logger.InfoContext(ctx, "local run already active, recovered session not adopted")
		return nil
	}
	a.runToken++
	a.status = StatusRunning
	a.sessionID = active.ID
	a.subject = Subject{
		ID:            active.SubjectID,
		Title:         active.SubjectTitle,
		Kind:          active.Kind,
		TargetSeconds: active.TargetDurationSeconds,
	}
	a.startTime = active.StartTime
	a.pausedSeconds = active.PausedDurationSeconds
	a.pausedAt = time.Time{}
	a.pending = ""
	a.lastSaveAt = time.Time{}
	a.startLoopsLocked()
	logger.InfoContext(ctx, "recovered running session")
	return nil
}

// ReconcileElapsed computes a session's running time at now from its
// absolute start time, ignoring the cached observed duration. Time spent
// paused is excluded.
func ReconcileElapsed(session timerapi.Session, now time.Time) int {
	paused := time.Duration(session.PausedDurationSeconds) * time.Second
	if session.Status == timerapi.StatusPaused && session.PausedAt != nil && now.After(*session.PausedAt) {
		paused += now.Sub(*session.PausedAt)
	}
	elapsed := now.Sub(session.StartTime) - paused
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Second)
}

func (a *Agent) finish(ctx context.Context, token uint64) {
	a.mu.Lock()
	if token != a.runToken || a.status == StatusIdle {
		a.mu.Unlock()
		return
	}
	observed := a.elapsedLocked(a.now())
	if observed > a.subject.TargetSeconds {
		observed = a.subject.TargetSeconds
	}
	run, deferred := a.endLocked(observed, "target reached")
	a.mu.Unlock()

	if !deferred {
		a.completeRun(ctx, run)
	}
}

// endLocked returns to IDLE and captures the finished run. A run whose first
// save is still in flight is handed to that save, which completes it once the
// session id is known; deferred reports that case.
func (a *Agent) endLocked(observed int, reason string) (run endedRun, deferred bool) {
	run = endedRun{
		token:     a.runToken,
		sessionID: a.sessionID,
		subjectID: a.subject.ID,
		startTime: a.startTime,
		observed:  observed,
		reason:    reason,
	}
	if run.sessionID == "" && a.saving && a.savingToken == a.runToken {
		pending := run
		a.unsaved = &pending
		deferred = true
		a.logger.Info("completion deferred until the first save returns", "run_token", run.token, "reason", reason)
	}
	a.resetLocked()
	return run, deferred
}

// completeRun completes a finished run. Without a session id the server is
// asked for a RUNNING session with the run's subject and start time, which
// exists when a save landed but its response was lost.
func (a *Agent) completeRun(ctx context.Context, run endedRun) {
	if run.sessionID == "" {
		callCtx, cancel := a.callContext(ctx)
		active, err := a.api.GetActive(callCtx)
		cancel()
		switch {
		case err != nil:
			a.logger.WarnContext(ctx, "lookup of unsaved run failed", "subject_id", run.subjectID, "error", err)
		case active != nil && active.SubjectID == run.subjectID && active.StartTime.Equal(run.startTime):
			run.sessionID = active.ID
		}
	}
	a.complete(ctx, run.sessionID, run.observed, run.reason)
}

func (a *Agent) forceStop(ctx context.Context, token uint64, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if token != a.runToken || a.status == StatusIdle {
		return
	}
	sessionID := a.sessionID
	a.resetLocked()
	a.logger.InfoContext(ctx, "run force-stopped", "session_id", sessionID, "reason", reason)
}

func (a *Agent) complete(ctx context.Context, sessionID string, observed int, reason string) {
	logger := a.logger.With("session_id", sessionID, "observed_seconds", observed, "reason", reason)
	if sessionID == "" {
		logger.WarnContext(ctx, "run ended before its session was saved")
		return
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	if err := a.api.Complete(callCtx, sessionID, &observed); err != nil {
		if errors.Is(err, timerapi.ErrSessionCompleted) || errors.Is(err, timerapi.ErrSessionNotFound) {
			logger.InfoContext(ctx, "session already finished on server", "error", err)
			return
		}
		logger.WarnContext(ctx, "complete failed", "error", err)
		return
	}
	logger.InfoContext(ctx, "session completed")
}

// remote performs a best-effort transition call and reports whether the
// server confirmed it. A transition that could not be delivered is kept
// pending for the next save. A session that is gone on the server ends the
// local run.
func (a *Agent) remote(ctx context.Context, token uint64, operation, sessionID string) bool {
	logger := a.logger.With("operation", operation, "session_id", sessionID)
	if sessionID == "" {
		a.setPending(token, operation)
		logger.InfoContext(ctx, "session not saved yet, transition deferred")
		return false
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	var err error
	if operation == transitionPause {
		err = a.api.Pause(callCtx, sessionID)
	} else {
		err = a.api.Resume(callCtx, sessionID)
	}
	switch {
	case err == nil:
		a.mu.Lock()
		if token == a.runToken && a.pending == operation {
			a.pending = ""
		}
		a.mu.Unlock()
		logger.DebugContext(ctx, "transition synced")
		return true
	case errors.Is(err, timerapi.ErrSessionCompleted) || errors.Is(err, timerapi.ErrSessionNotFound):
		a.forceStop(ctx, token, operation+" rejected: "+err.Error())
	default:
		a.setPending(token, operation)
		logger.WarnContext(ctx, "transition sync failed", "error", err)
	}
	return false
}

func (a *Agent) setPending(token uint64, operation string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if token == a.runToken {
		a.pending = operation
	}
}

// callContext bounds a network call. In-flight calls survive cancellation of
// the loop that issued them.
func (a *Agent) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), a.saveTimeout)
}

func (a *Agent) elapsedLocked(now time.Time) int {
	if a.status == StatusIdle {
		return 0
	}
	paused := time.Duration(a.pausedSeconds) * time.Second
	if a.status == StatusPaused && now.After(a.pausedAt) {
		paused += now.Sub(a.pausedAt)
	}
	elapsed := now.Sub(a.startTime) - paused
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Second)
}

func (a *Agent) stateLocked(now time.Time) State {
	return State{
		Status:            a.status,
		RunToken:          a.runToken,
		SessionID:         a.sessionID,
		Subject:           a.subject,
		StartTime:         a.startTime,
		ElapsedSeconds:    a.elapsedLocked(now),
		PausedSeconds:     a.pausedSeconds,
		LastSavedAt:       a.lastSaveAt,
		RecoveryCompleted: a.recovered,
	}
}

// resetLocked returns to IDLE and invalidates the current run token.
func (a *Agent) resetLocked() {
	a.stopLoopsLocked()
	a.runToken++
	a.status = StatusIdle
	a.sessionID = ""
	a.subject = Subject{}
	a.startTime = time.Time{}
	a.pausedSeconds = 0
	a.pausedAt = time.Time{}
	a.pending = ""
	a.lastSaveAt = time.Time{}
}

func (a *Agent) startLoopsLocked() {
	a.stopLoopsLocked()

	ctx, cancel := context.WithCancel(a.baseCtx)
	a.cancelLoops = cancel
	group, groupCtx := errgroup.WithContext(ctx)

	display := a.newTicker(a.tickInterval)
	syncTicker := a.newTicker(a.syncInterval)
	liveness := a.newTicker(a.livenessInterval)

	group.Go(func() error {
		return runLoop(groupCtx, display, func(ctx context.Context) { a.Tick(ctx) })
	})
	group.Go(func() error {
		return runLoop(groupCtx, syncTicker, func(ctx context.Context) { a.Save(ctx, TriggerInterval) })
	})
	group.Go(func() error {
		return runLoop(groupCtx, liveness, a.CheckLiveness)
	})

	a.loops.Add(1)
	go func() {
		defer a.loops.Done()
		defer cancel()
		if err := group.Wait(); err != nil {
			a.logger.Error("background loop failed", "error", err)
		}
	}()
}

func (a *Agent) stopLoopsLocked() {
	if a.cancelLoops != nil {
		a.cancelLoops()
		a.cancelLoops = nil
	}
}

func runLoop(ctx context.Context, ticker Ticker, fn func(context.Context)) error {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if ctx.Err() != nil {
				return nil
			}
			fn(ctx)
		}
	}
}
