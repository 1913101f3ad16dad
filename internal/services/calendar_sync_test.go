package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/dulcepan/api/internal/platform/calendar"
)

type stubCalendarEvents struct {
	insertFn func(ctx context.Context, event *gcal.Event) (*gcal.Event, error)
	updateFn func(ctx context.Context, eventID string, event *gcal.Event) (*gcal.Event, error)
	deleteFn func(ctx context.Context, eventID string) error
}

func (s *stubCalendarEvents) InsertEvent(ctx context.Context, event *gcal.Event) (*gcal.Event, error) {
	if s.insertFn != nil {
		return s.insertFn(ctx, event)
	}
	event.Id = "evt_created"
	return event, nil
}

func (s *stubCalendarEvents) UpdateEvent(ctx context.Context, eventID string, event *gcal.Event) (*gcal.Event, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, eventID, event)
	}
	event.Id = eventID
	return event, nil
}

func (s *stubCalendarEvents) DeleteEvent(ctx context.Context, eventID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, eventID)
	}
	return nil
}

func newTestCalendarSync(t *testing.T, events CalendarEvents) *CalendarSync {
	t.Helper()
	sync, err := NewCalendarSync(CalendarSyncDeps{Events: events})
	if err != nil {
		t.Fatalf("NewCalendarSync: %v", err)
	}
	return sync
}

func calendarTestOrder() Order {
	start := "14:00"
	end := "15:30"
	return Order{
		ID:            "ord_01",
		ClientName:    "Marta Lopez",
		ScheduledDate: time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		StartTime:     &start,
		EndTime:       &end,
		Total:         325_00,
		Deposit:       100_00,
		Notes:         "Retira la hermana",
		Items: []OrderItem{
			{ProductName: "Torta de chocolate", Quantity: 1, BasePrice: 250_00, UnitPrice: 250_00},
			{ProductName: "Cupcakes", Quantity: 6, BasePrice: 12_50, UnitPrice: 12_50},
		},
	}
}

func calendarTestContact() CalendarContact {
	return CalendarContact{
		Name:    "Marta Lopez",
		Phone:   "+54 11 5555-0000",
		Address: "Av. Rivadavia 1234",
	}
}

func TestCalendarSyncUpsertCreatesEvent(t *testing.T) {
	var captured *gcal.Event
	events := &stubCalendarEvents{
		insertFn: func(ctx context.Context, event *gcal.Event) (*gcal.Event, error) {
			captured = event
			return &gcal.Event{Id: "evt_new"}, nil
		},
	}
	sync := newTestCalendarSync(t, events)

	eventID, ok := sync.Upsert(context.Background(), calendarTestOrder(), calendarTestContact())
	if !ok || eventID != "evt_new" {
		t.Fatalf("expected created event id, got %q ok=%v", eventID, ok)
	}
	if captured == nil {
		t.Fatalf("expected insert to be called")
	}
	if captured.Summary != "Pedido Marta Lopez" {
		t.Fatalf("unexpected summary %q", captured.Summary)
	}
	if captured.Start.TimeZone != "America/Argentina/Buenos_Aires" {
		t.Fatalf("expected explicit timezone, got %q", captured.Start.TimeZone)
	}
	if !strings.HasPrefix(captured.Start.DateTime, "2026-09-12T14:00:00") {
		t.Fatalf("unexpected start %q", captured.Start.DateTime)
	}
	if !strings.HasPrefix(captured.End.DateTime, "2026-09-12T15:30:00") {
		t.Fatalf("unexpected end %q", captured.End.DateTime)
	}
	if captured.Reminders.UseDefault {
		t.Fatalf("expected default reminders disabled")
	}
	if len(captured.Reminders.Overrides) != 2 ||
		captured.Reminders.Overrides[0].Minutes != 1440 ||
		captured.Reminders.Overrides[1].Minutes != 180 {
		t.Fatalf("unexpected reminder overrides %+v", captured.Reminders.Overrides)
	}
	for _, line := range []string{
		"Cliente: Marta Lopez",
		"Tel: +54 11 5555-0000",
		"Dirección: Av. Rivadavia 1234",
		"Notas: Retira la hermana",
		"Total: $325,00",
		"Seña: $100,00",
	} {
		if !strings.Contains(captured.Description, line) {
			t.Fatalf("description missing %q: %q", line, captured.Description)
		}
	}
}

func TestCalendarSyncDescriptionDashesBlankContact(t *testing.T) {
	var captured *gcal.Event
	events := &stubCalendarEvents{
		insertFn: func(ctx context.Context, event *gcal.Event) (*gcal.Event, error) {
			captured = event
			return &gcal.Event{Id: "evt_new"}, nil
		},
	}
	sync := newTestCalendarSync(t, events)

	order := calendarTestOrder()
	order.Notes = ""

	if _, ok := sync.Upsert(context.Background(), order, CalendarContact{}); !ok {
		t.Fatalf("expected upsert to succeed")
	}
	if !strings.Contains(captured.Description, "Tel: -") || !strings.Contains(captured.Description, "Dirección: -") {
		t.Fatalf("expected dashes for missing contact fields, got %q", captured.Description)
	}
	if !strings.Contains(captured.Description, "Notas: -") {
		t.Fatalf("expected dash for empty notes, got %q", captured.Description)
	}
	if !strings.Contains(captured.Description, "Cliente: Marta Lopez") {
		t.Fatalf("expected fallback to denormalized client name, got %q", captured.Description)
	}
}

func TestCalendarSyncUpsertDefaultsMorningWindow(t *testing.T) {
	var captured *gcal.Event
	events := &stubCalendarEvents{
		insertFn: func(ctx context.Context, event *gcal.Event) (*gcal.Event, error) {
			captured = event
			return &gcal.Event{Id: "evt_new"}, nil
		},
	}
	sync := newTestCalendarSync(t, events)

	order := calendarTestOrder()
	order.StartTime = nil
	order.EndTime = nil

	if _, ok := sync.Upsert(context.Background(), order, calendarTestContact()); !ok {
		t.Fatalf("expected upsert to succeed")
	}
	if !strings.HasPrefix(captured.Start.DateTime, "2026-09-12T10:00:00") {
		t.Fatalf("expected default start, got %q", captured.Start.DateTime)
	}
	if !strings.HasPrefix(captured.End.DateTime, "2026-09-12T10:30:00") {
		t.Fatalf("expected default half-hour window, got %q", captured.End.DateTime)
	}
}

func TestCalendarSyncUpsertUpdatesExistingEvent(t *testing.T) {
	updated := false
	events := &stubCalendarEvents{
		updateFn: func(ctx context.Context, eventID string, event *gcal.Event) (*gcal.Event, error) {
			updated = true
			if eventID != "evt_existing" {
				t.Fatalf("unexpected event id %q", eventID)
			}
			return &gcal.Event{Id: eventID}, nil
		},
		insertFn: func(ctx context.Context, event *gcal.Event) (*gcal.Event, error) {
			t.Fatalf("insert must not be called when update succeeds")
			return nil, nil
		},
	}
	sync := newTestCalendarSync(t, events)

	order := calendarTestOrder()
	existing := "evt_existing"
	order.CalendarEventID = &existing

	eventID, ok := sync.Upsert(context.Background(), order, calendarTestContact())
	if !ok || eventID != "evt_existing" || !updated {
		t.Fatalf("expected in-place update, got %q ok=%v updated=%v", eventID, ok, updated)
	}
}

func TestCalendarSyncUpdateFallsBackToCreate(t *testing.T) {
	events := &stubCalendarEvents{
		updateFn: func(ctx context.Context, eventID string, event *gcal.Event) (*gcal.Event, error) {
			return nil, calendar.ErrEventNotFound
		},
		insertFn: func(ctx context.Context, event *gcal.Event) (*gcal.Event, error) {
			return &gcal.Event{Id: "evt_recreated"}, nil
		},
	}
	sync := newTestCalendarSync(t, events)

	order := calendarTestOrder()
	existing := "evt_gone"
	order.CalendarEventID = &existing

	eventID, ok := sync.Upsert(context.Background(), order, calendarTestContact())
	if !ok || eventID != "evt_recreated" {
		t.Fatalf("expected fallback create, got %q ok=%v", eventID, ok)
	}
}

func TestCalendarSyncUpsertSwallowsFailures(t *testing.T) {
	events := &stubCalendarEvents{
		insertFn: func(ctx context.Context, event *gcal.Event) (*gcal.Event, error) {
			return nil, errors.New("calendar down")
		},
	}
	sync := newTestCalendarSync(t, events)

	if eventID, ok := sync.Upsert(context.Background(), calendarTestOrder(), calendarTestContact()); ok || eventID != "" {
		t.Fatalf("expected swallowed failure, got %q ok=%v", eventID, ok)
	}
}

func TestCalendarSyncRemoveToleratesMissingEvent(t *testing.T) {
	calls := 0
	events := &stubCalendarEvents{
		deleteFn: func(ctx context.Context, eventID string) error {
			calls++
			return calendar.ErrEventNotFound
		},
	}
	sync := newTestCalendarSync(t, events)

	sync.Remove(context.Background(), "ord_01", "evt_gone")
	if calls != 1 {
		t.Fatalf("expected one delete call, got %d", calls)
	}

	sync.Remove(context.Background(), "ord_01", "  ")
	if calls != 1 {
		t.Fatalf("blank event id must not call the calendar")
	}
}
