package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dulcepan/api/internal/platform/auth"
	"github.com/dulcepan/api/internal/platform/httpx"
	"github.com/dulcepan/api/internal/services"
)

const (
	maxDeviceBodySize    = 8 * 1024
	deviceRegisterLimit  = 30
	deviceRegisterWindow = time.Minute
)

// DeviceHandlers registers and removes staff device tokens for push reminders.
type DeviceHandlers struct {
	authn   *auth.Authenticator
	devices services.DeviceService
	limiter rateLimiter
}

// DeviceOption customises DeviceHandlers construction.
type DeviceOption func(*DeviceHandlers)

// WithDeviceRateLimit overrides the per-address registration limit per minute.
// Zero or negative disables throttling.
func WithDeviceRateLimit(perMinute int) DeviceOption {
	return func(h *DeviceHandlers) {
		if perMinute <= 0 {
			h.limiter = nil
			return
		}
		h.limiter = newSimpleRateLimiter(perMinute, deviceRegisterWindow, nil)
	}
}

// NewDeviceHandlers constructs a new DeviceHandlers instance. Registration is
// rate limited per caller address to absorb retry loops in the mobile app.
func NewDeviceHandlers(authn *auth.Authenticator, devices services.DeviceService, opts ...DeviceOption) *DeviceHandlers {
	h := &DeviceHandlers{
		authn:   authn,
		devices: devices,
		limiter: newSimpleRateLimiter(deviceRegisterLimit, deviceRegisterWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /devices endpoints.
func (h *DeviceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.registerDevice)
	r.Delete("/{token}", h.unregisterDevice)
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type deviceResponse struct {
	Device devicePayload `json:"device"`
}

type devicePayload struct {
	Token        string `json:"token"`
	Platform     string `json:"platform"`
	RegisteredAt string `json:"registered_at"`
}

func (h *DeviceHandlers) registerDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.devices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("device_service_unavailable", "device service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many registration attempts", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxDeviceBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req registerDeviceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	device, err := h.devices.Register(ctx, services.RegisterDeviceCommand{
		Token:    req.Token,
		Platform: req.Platform,
	})
	if err != nil {
		if errors.Is(err, services.ErrDeviceInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("device_error", "failed to register device", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusCreated, deviceResponse{
		Device: devicePayload{
			Token:        device.Token,
			Platform:     device.Platform,
			RegisteredAt: device.RegisteredAt.Format(time.RFC3339),
		},
	})
}

func (h *DeviceHandlers) unregisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.devices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("device_service_unavailable", "device service unavailable", http.StatusServiceUnavailable))
		return
	}

	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "device token is required", http.StatusBadRequest))
		return
	}

	if err := h.devices.Unregister(ctx, token); err != nil {
		if errors.Is(err, services.ErrDeviceInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("device_error", "failed to unregister device", http.StatusInternalServerError))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
