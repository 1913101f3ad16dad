package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/platform/httpx"
	"github.com/dulcepan/api/internal/services"
)

// InternalJobHandlers exposes scheduler-invoked endpoints. They are mounted
// behind the internal middlewares so only Cloud Scheduler's OIDC identity can
// reach them.
type InternalJobHandlers struct {
	reminders services.ReminderService
}

// NewInternalJobHandlers constructs a new InternalJobHandlers instance.
func NewInternalJobHandlers(reminders services.ReminderService) *InternalJobHandlers {
	return &InternalJobHandlers{reminders: reminders}
}

// Routes registers the /internal endpoints.
func (h *InternalJobHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/reminders/{window}", h.dispatchReminders)
}

type reminderDispatchResponse struct {
	Window       string   `json:"window"`
	Orders       int      `json:"orders"`
	Devices      int      `json:"devices"`
	Sent         int      `json:"sent"`
	Failed       int      `json:"failed"`
	StaleTokens  []string `json:"stale_tokens,omitempty"`
	DispatchedAt string   `json:"dispatched_at"`
}

func (h *InternalJobHandlers) dispatchReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reminders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reminder_service_unavailable", "reminder service unavailable", http.StatusServiceUnavailable))
		return
	}

	window := domain.ReminderWindow(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "window"))))
	if !window.IsValid() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "window must be today or tomorrow", http.StatusBadRequest).
			WithDetails(map[string]any{"window": "unknown value"}))
		return
	}

	result, err := h.reminders.Dispatch(ctx, window)
	if err != nil {
		if errors.Is(err, services.ErrReminderInvalidWindow) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("reminder_error", "failed to dispatch reminders", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, reminderDispatchResponse{
		Window:       string(result.Window),
		Orders:       result.Orders,
		Devices:      result.Devices,
		Sent:         result.Sent,
		Failed:       result.Failed,
		StaleTokens:  result.StaleTokens,
		DispatchedAt: result.DispatchedAt.Format(time.RFC3339),
	})
}
