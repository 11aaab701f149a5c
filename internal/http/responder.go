package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/focus-timer/internal/application"
	"github.com/example/focus-timer/internal/timerapi"
)

var (
	errBadRequestBody   = errors.New("無効なリクエスト形式です。")
	errInvalidSessionID = errors.New("無効なセッション ID です。")
	errMissingAPIKey    = errors.New("API キーを指定してください。")
)

type errorResponse = timerapi.ErrorResponse

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusErrorCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrNotAuthenticated):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: timerapi.CodeNotAuthenticated,
			Message:   "認証が必要です。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: timerapi.CodeSessionNotFound,
			Message:   "指定されたセッションが見つかりません。",
		})
	case errors.Is(err, application.ErrSessionCompleted):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: timerapi.CodeSessionCompleted,
			Message:   "セッションはすでに完了しています。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				ErrorCode: timerapi.CodeValidation,
				Message:   "入力内容に誤りがあります。",
				Errors:    localizeValidationErrors(vErr),
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: timerapi.CodeInternal,
			Message:   "サーバー内部でエラーが発生しました。",
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return timerapi.CodeValidation
	case http.StatusUnauthorized:
		return timerapi.CodeNotAuthenticated
	case http.StatusNotFound:
		return timerapi.CodeSessionNotFound
	case http.StatusConflict:
		return timerapi.CodeSessionCompleted
	default:
		return timerapi.CodeInternal
	}
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusNotFound:
		return "指定されたセッションが見つかりません。"
	case http.StatusConflict:
		return "セッションはすでに完了しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "subject id is required":
		return "科目 ID は必須です。"
	case "subject title is required":
		return "科目名は必須です。"
	case "kind must be one of FOCUS, SHORT_BREAK, LONG_BREAK":
		return "種別は FOCUS、SHORT_BREAK、LONG_BREAK のいずれかを指定してください。"
	case "start time is required":
		return "開始日時は必須です。"
	case "target duration must be positive":
		return "目標時間は正の秒数で指定してください。"
	case "observed duration must not be negative":
		return "経過時間は 0 以上の秒数で指定してください。"
	case "device id is required":
		return "デバイス ID は必須です。"
	case "from must be a date in YYYY-MM-DD format":
		return "開始日は YYYY-MM-DD 形式で指定してください。"
	case "to must be a date in YYYY-MM-DD format":
		return "終了日は YYYY-MM-DD 形式で指定してください。"
	case "to must not be before from":
		return "終了日は開始日以降である必要があります。"
	case "session violates a storage constraint":
		return "セッションの内容が保存条件を満たしていません。"
	default:
		return message
	}
}
