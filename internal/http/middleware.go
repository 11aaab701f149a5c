package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/focus-timer/internal/application"
	"github.com/example/focus-timer/internal/timerapi"
)

// OwnerAuthenticator resolves a bearer token to the owning principal.
type OwnerAuthenticator interface {
	Authenticate(ctx context.Context, token string) (application.Principal, error)
}

// RequireOwner rejects requests without a valid API key and stores the
// resolved principal, including the caller's device id header, in the
// request context. Paths listed in public skip authentication.
func RequireOwner(authenticator OwnerAuthenticator, logger *slog.Logger, public ...string) func(http.Handler) http.Handler {
	responder := newResponder(logger)
	open := make(map[string]struct{}, len(public))
	for _, path := range public {
		open[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearerToken(r)
			if token == "" {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: timerapi.CodeNotAuthenticated,
					Message:   errMissingAPIKey.Error(),
				})
				return
			}

			principal, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, application.ErrNotAuthenticated) {
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
						ErrorCode: timerapi.CodeNotAuthenticated,
						Message:   "API キーが無効です。",
					})
					return
				}
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "api key verification failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{
					ErrorCode: timerapi.CodeInternal,
					Message:   "API キーの検証中にエラーが発生しました。",
				})
				return
			}

			principal.DeviceID = strings.TrimSpace(r.Header.Get(timerapi.DeviceIDHeader))
			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a logger carrying a request id to every request and
// logs its start and completion.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func extractBearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
