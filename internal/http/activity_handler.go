package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/focus-timer/internal/application"
	"github.com/example/focus-timer/internal/timerapi"
)

type activityService interface {
	ListActivity(ctx context.Context, params application.ListActivityParams) ([]application.ActivityLogEntry, error)
}

// ActivityHandler serves the archival log to reporting readers.
type ActivityHandler struct {
	service   activityService
	responder responder
	logger    *slog.Logger
}

func NewActivityHandler(service activityService, logger *slog.Logger) *ActivityHandler {
	base := defaultLogger(logger)
	return &ActivityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	from := strings.TrimSpace(query.Get("from"))
	to := strings.TrimSpace(query.Get("to"))

	logger := handlerLogger(r.Context(), h.logger, "ActivityHandler", "List", "owner_id", principal.OwnerID, "from", from, "to", to)

	entries, err := h.service.ListActivity(r.Context(), application.ListActivityParams{
		Principal: principal,
		From:      from,
		To:        to,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "activity listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "activity listed", "count", len(entries))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, timerapi.ActivityResponse{Entries: toActivityDTOs(entries)})
}
