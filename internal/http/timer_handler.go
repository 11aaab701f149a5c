package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/focus-timer/internal/application"
	"github.com/example/focus-timer/internal/timerapi"
)

type timerService interface {
	StartOrSync(ctx context.Context, params application.StartOrSyncParams) (application.TimerSession, error)
	Pause(ctx context.Context, principal application.Principal, sessionID string) error
	Resume(ctx context.Context, principal application.Principal, sessionID string) error
	Complete(ctx context.Context, params application.CompleteParams) error
	GetActive(ctx context.Context, principal application.Principal) (*application.TimerSession, error)
	GetSession(ctx context.Context, principal application.Principal, sessionID string) (application.TimerSession, error)
	ListEvents(ctx context.Context, principal application.Principal, sessionID string) ([]application.TimerEvent, error)
}

// TimerHandler serves the session lifecycle endpoints.
type TimerHandler struct {
	service   timerService
	responder responder
	logger    *slog.Logger
}

func NewTimerHandler(service timerService, logger *slog.Logger) *TimerHandler {
	base := defaultLogger(logger)
	return &TimerHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TimerHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TimerHandler", operation, attrs...)
}

func (h *TimerHandler) StartOrSync(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req timerapi.StartOrSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "StartOrSync", "owner_id", principal.OwnerID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode sync request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "StartOrSync", "owner_id", principal.OwnerID, "subject_id", req.SubjectID)

	session, err := h.service.StartOrSync(r.Context(), application.StartOrSyncParams{
		Principal:       principal,
		SubjectID:       req.SubjectID,
		SubjectTitle:    req.SubjectTitle,
		Kind:            application.SessionKind(req.Kind),
		StartTime:       req.StartTime,
		TargetSeconds:   req.TargetDurationSeconds,
		ObservedSeconds: req.ObservedDurationSeconds,
		PausedSeconds:   req.PausedDurationSeconds,
		DeviceID:        req.DeviceID,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session sync failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", session.ID).InfoContext(r.Context(), "session synced")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, timerapi.SessionResponse{Session: toSessionDTO(session)})
}

func (h *TimerHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "GetActive", "owner_id", principal.OwnerID)

	session, err := h.service.GetActive(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "active session lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := timerapi.ActiveSessionResponse{}
	if session != nil {
		dto := toSessionDTO(*session)
		resp.Session = &dto
	}
	logger.InfoContext(r.Context(), "active session resolved", "found", session != nil)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *TimerHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, principal, logger, ok := h.sessionRequest(w, r, "GetSession")
	if !ok {
		return
	}

	session, err := h.service.GetSession(r.Context(), principal, sessionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "session lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session retrieved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, timerapi.SessionResponse{Session: toSessionDTO(session)})
}

func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	sessionID, principal, logger, ok := h.sessionRequest(w, r, "Pause")
	if !ok {
		return
	}

	if err := h.service.Pause(r.Context(), principal, sessionID); err != nil {
		logger.ErrorContext(r.Context(), "session pause failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session paused")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *TimerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	sessionID, principal, logger, ok := h.sessionRequest(w, r, "Resume")
	if !ok {
		return
	}

	if err := h.service.Resume(r.Context(), principal, sessionID); err != nil {
		logger.ErrorContext(r.Context(), "session resume failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session resumed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *TimerHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sessionID, principal, logger, ok := h.sessionRequest(w, r, "Complete")
	if !ok {
		return
	}

	// The body is optional; an empty one keeps the last synced duration.
	var req timerapi.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.With("error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode complete request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	err := h.service.Complete(r.Context(), application.CompleteParams{
		Principal:       principal,
		SessionID:       sessionID,
		ObservedSeconds: req.ObservedDurationSeconds,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session completion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session completed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *TimerHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, principal, logger, ok := h.sessionRequest(w, r, "ListEvents")
	if !ok {
		return
	}

	events, err := h.service.ListEvents(r.Context(), principal, sessionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "event listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "events listed", "count", len(events))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, timerapi.EventsResponse{Events: toEventDTOs(events)})
}

func (h *TimerHandler) sessionRequest(w http.ResponseWriter, r *http.Request, operation string) (string, application.Principal, *slog.Logger, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", application.Principal{}, nil, false
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.log(r.Context(), operation, "owner_id", principal.OwnerID, "error_kind", "bad_request").ErrorContext(r.Context(), "missing session id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return "", principal, nil, false
	}

	return sessionID, principal, h.log(r.Context(), operation, "owner_id", principal.OwnerID, "session_id", sessionID), true
}
