package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dulcepan/api/internal/services"
)

type stubDeviceService struct {
	registerFunc   func(ctx context.Context, cmd services.RegisterDeviceCommand) (services.Device, error)
	unregisterFunc func(ctx context.Context, token string) error
}

func (s *stubDeviceService) Register(ctx context.Context, cmd services.RegisterDeviceCommand) (services.Device, error) {
	if s.registerFunc != nil {
		return s.registerFunc(ctx, cmd)
	}
	return services.Device{}, nil
}

func (s *stubDeviceService) Unregister(ctx context.Context, token string) error {
	if s.unregisterFunc != nil {
		return s.unregisterFunc(ctx, token)
	}
	return nil
}

var _ services.DeviceService = (*stubDeviceService)(nil)

func TestDeviceHandlersRegister(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	var captured services.RegisterDeviceCommand
	service := &stubDeviceService{
		registerFunc: func(ctx context.Context, cmd services.RegisterDeviceCommand) (services.Device, error) {
			captured = cmd
			return services.Device{Token: "tok_abc", Platform: "android", RegisteredAt: now}, nil
		},
	}

	handler := NewDeviceHandlers(nil, service)
	router := NewRouter(WithDeviceRoutes(handler.Routes))

	body := strings.NewReader(`{"token":"tok_abc","platform":"android"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Token != "tok_abc" || captured.Platform != "android" {
		t.Fatalf("unexpected command: %+v", captured)
	}

	var payload deviceResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Device.Token != "tok_abc" || payload.Device.RegisteredAt == "" {
		t.Fatalf("unexpected payload: %+v", payload.Device)
	}
}

func TestDeviceHandlersRegisterInvalid(t *testing.T) {
	service := &stubDeviceService{
		registerFunc: func(ctx context.Context, cmd services.RegisterDeviceCommand) (services.Device, error) {
			return services.Device{}, services.ErrDeviceInvalidInput
		},
	}
	handler := NewDeviceHandlers(nil, service)
	router := NewRouter(WithDeviceRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", strings.NewReader(`{"platform":"android"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestDeviceHandlersRegisterRateLimited(t *testing.T) {
	handler := NewDeviceHandlers(nil, &stubDeviceService{})
	handler.limiter = newSimpleRateLimiter(1, time.Minute, nil)
	router := NewRouter(WithDeviceRoutes(handler.Routes))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", strings.NewReader(`{"token":"tok_abc","platform":"android"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		resp := httptest.NewRecorder()

		router.ServeHTTP(resp, req)

		switch i {
		case 0:
			if resp.Code != http.StatusCreated {
				t.Fatalf("expected first request to pass, got %d", resp.Code)
			}
		case 1:
			if resp.Code != http.StatusTooManyRequests {
				t.Fatalf("expected status 429, got %d", resp.Code)
			}
		}
	}
}

func TestDeviceHandlersUnregister(t *testing.T) {
	var captured string
	service := &stubDeviceService{
		unregisterFunc: func(ctx context.Context, token string) error {
			captured = token
			return nil
		},
	}
	handler := NewDeviceHandlers(nil, service)
	router := NewRouter(WithDeviceRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/devices/tok_abc", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
	if captured != "tok_abc" {
		t.Fatalf("expected token tok_abc, got %s", captured)
	}
}
