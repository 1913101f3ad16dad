package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dulcepan/api/internal/repositories"
)

var (
	// ErrDeviceInvalidInput signals a missing or malformed device token.
	ErrDeviceInvalidInput = errors.New("device: invalid input")
)

var knownDevicePlatforms = map[string]bool{
	"android": true,
	"ios":     true,
	"web":     true,
}

// DeviceServiceDeps bundles constructor inputs for the device service.
type DeviceServiceDeps struct {
	Devices repositories.DeviceRepository
	Clock   func() time.Time
}

type deviceService struct {
	devices repositories.DeviceRepository
	clock   func() time.Time
}

// NewDeviceService constructs the device registration service.
func NewDeviceService(deps DeviceServiceDeps) (DeviceService, error) {
	if deps.Devices == nil {
		return nil, errors.New("device service: device repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &deviceService{
		devices: deps.Devices,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Register stores the token. Registration is idempotent: re-registering an
// existing token refreshes its metadata.
func (s *deviceService) Register(ctx context.Context, cmd RegisterDeviceCommand) (Device, error) {
	token := strings.TrimSpace(cmd.Token)
	if token == "" {
		return Device{}, fmt.Errorf("%w: token is required", ErrDeviceInvalidInput)
	}
	platform := strings.ToLower(strings.TrimSpace(cmd.Platform))
	if platform != "" && !knownDevicePlatforms[platform] {
		return Device{}, fmt.Errorf("%w: unknown platform %q", ErrDeviceInvalidInput, cmd.Platform)
	}

	device := Device{
		Token:        token,
		Platform:     platform,
		RegisteredAt: s.clock(),
	}
	if err := s.devices.Upsert(ctx, device); err != nil {
		return Device{}, err
	}
	return device, nil
}

// Unregister drops the token. Removing an unknown token is not an error.
func (s *deviceService) Unregister(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrDeviceInvalidInput)
	}
	return s.devices.Delete(ctx, token)
}
