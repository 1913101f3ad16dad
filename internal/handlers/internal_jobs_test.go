package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/services"
)

type stubReminderService struct {
	dispatchFunc func(ctx context.Context, window services.ReminderWindow) (services.ReminderDispatchResult, error)
}

func (s *stubReminderService) Dispatch(ctx context.Context, window services.ReminderWindow) (services.ReminderDispatchResult, error) {
	if s.dispatchFunc != nil {
		return s.dispatchFunc(ctx, window)
	}
	return services.ReminderDispatchResult{}, nil
}

var _ services.ReminderService = (*stubReminderService)(nil)

func TestInternalJobHandlersDispatchReminders(t *testing.T) {
	now := time.Date(2026, 9, 12, 9, 0, 0, 0, time.UTC)

	var captured services.ReminderWindow
	service := &stubReminderService{
		dispatchFunc: func(ctx context.Context, window services.ReminderWindow) (services.ReminderDispatchResult, error) {
			captured = window
			return services.ReminderDispatchResult{
				Window:       window,
				Orders:       3,
				Devices:      2,
				Sent:         2,
				StaleTokens:  []string{"tok_old"},
				DispatchedAt: now,
			}, nil
		},
	}

	handler := NewInternalJobHandlers(service)
	router := NewRouter(WithInternalRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/reminders/tomorrow", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured != domain.ReminderWindowTomorrow {
		t.Fatalf("expected tomorrow window, got %s", captured)
	}

	var payload reminderDispatchResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Orders != 3 || payload.Sent != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(payload.StaleTokens) != 1 || payload.StaleTokens[0] != "tok_old" {
		t.Fatalf("expected stale tokens reported, got %v", payload.StaleTokens)
	}
}

func TestInternalJobHandlersDispatchRejectsUnknownWindow(t *testing.T) {
	handler := NewInternalJobHandlers(&stubReminderService{})
	router := NewRouter(WithInternalRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/reminders/nextweek", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestInternalJobHandlersDispatchError(t *testing.T) {
	service := &stubReminderService{
		dispatchFunc: func(ctx context.Context, window services.ReminderWindow) (services.ReminderDispatchResult, error) {
			return services.ReminderDispatchResult{}, errors.New("push backend down")
		},
	}
	handler := NewInternalJobHandlers(service)
	router := NewRouter(WithInternalRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/reminders/today", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
}
