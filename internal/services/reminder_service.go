package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/repositories"
)

const orderEventReminder = "order.reminder"

// ErrReminderInvalidWindow rejects windows other than today and tomorrow.
var ErrReminderInvalidWindow = errors.New("reminder: invalid window")

// ReminderServiceDeps bundles constructor inputs for the reminder service.
type ReminderServiceDeps struct {
	Orders   repositories.OrderRepository
	Devices  repositories.DeviceRepository
	Push     PushSender
	Events   OrderEventPublisher
	Timezone string
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type reminderService struct {
	orders   repositories.OrderRepository
	devices  repositories.DeviceRepository
	push     PushSender
	events   OrderEventPublisher
	location *time.Location
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewReminderService constructs the reminder dispatch service.
func NewReminderService(deps ReminderServiceDeps) (ReminderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("reminder service: order repository is required")
	}
	if deps.Devices == nil {
		return nil, errors.New("reminder service: device repository is required")
	}
	if deps.Push == nil {
		return nil, errors.New("reminder service: push sender is required")
	}

	tzName := strings.TrimSpace(deps.Timezone)
	if tzName == "" {
		tzName = "America/Argentina/Buenos_Aires"
	}
	location, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("reminder service: load timezone %q: %w", tzName, err)
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reminderService{
		orders:   deps.Orders,
		devices:  deps.Devices,
		push:     deps.Push,
		events:   deps.Events,
		location: location,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Dispatch pushes one reminder per run to every registered device covering
// the orders scheduled on the target local date. Stale tokens reported by the
// push transport are dropped from the registry.
func (s *reminderService) Dispatch(ctx context.Context, window ReminderWindow) (ReminderDispatchResult, error) {
	if !window.IsValid() {
		return ReminderDispatchResult{}, fmt.Errorf("%w: %q", ErrReminderInvalidWindow, window)
	}

	now := s.clock().In(s.location)
	result := ReminderDispatchResult{Window: window, DispatchedAt: now.UTC()}

	targetDate := now
	if window == domain.ReminderWindowTomorrow {
		targetDate = now.AddDate(0, 0, 1)
	}

	orders, err := s.orders.ListScheduledOn(ctx, time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, time.UTC))
	if err != nil {
		return result, err
	}
	result.Orders = len(orders)
	if len(orders) == 0 {
		return result, nil
	}

	devices, err := s.devices.ListAll(ctx)
	if err != nil {
		return result, err
	}
	result.Devices = len(devices)
	if len(devices) == 0 {
		s.logger(ctx, "reminders.no_devices", map[string]any{"window": string(window)})
		return result, nil
	}

	tokens := make([]string, 0, len(devices))
	for _, device := range devices {
		tokens = append(tokens, device.Token)
	}

	report, err := s.push.SendToTokens(ctx, tokens, s.buildPush(window, orders))
	if err != nil {
		return result, fmt.Errorf("reminder: push dispatch: %w", err)
	}
	result.Sent = report.Sent
	result.Failed = report.Failed
	result.StaleTokens = report.StaleTokens

	for _, token := range report.StaleTokens {
		if err := s.devices.Delete(ctx, token); err != nil {
			s.logger(ctx, "reminders.stale_token_cleanup_failed", map[string]any{"error": err.Error()})
		}
	}

	s.publishReminderEvents(ctx, orders, result.DispatchedAt)
	return result, nil
}

func (s *reminderService) buildPush(window ReminderWindow, orders []domain.Order) PushMessage {
	day := "hoy"
	if window == domain.ReminderWindowTomorrow {
		day = "mañana"
	}
	body := fmt.Sprintf("%d pedidos programados para %s", len(orders), day)
	if len(orders) == 1 {
		body = fmt.Sprintf("1 pedido programado para %s: %s", day, orders[0].ClientName)
	}
	return PushMessage{
		Title: "Pedidos " + day,
		Body:  body,
		Data: map[string]string{
			"window": string(window),
			"count":  fmt.Sprintf("%d", len(orders)),
		},
	}
}

func (s *reminderService) publishReminderEvents(ctx context.Context, orders []domain.Order, occurredAt time.Time) {
	if s.events == nil {
		return
	}
	for _, order := range orders {
		if _, err := s.events.PublishOrderEvent(ctx, OrderEventMessage{
			Event:      orderEventReminder,
			OrderID:    order.ID,
			ClientID:   order.ClientID,
			Status:     string(order.Status),
			OccurredAt: occurredAt,
		}); err != nil {
			s.logger(ctx, "reminders.event_publish_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}
}
