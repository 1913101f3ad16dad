package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/dulcepan/api/internal/platform/calendar"
)

const (
	defaultEventStartHour   = 10
	defaultEventStartMinute = 0
	defaultEventDuration    = 30 * time.Minute
)

// CalendarContact carries the client details rendered into the event
// description. Blank fields render as a dash.
type CalendarContact struct {
	Name    string
	Phone   string
	Address string
}

// CalendarEvents is the calendar surface the sync adapter consumes.
type CalendarEvents interface {
	InsertEvent(ctx context.Context, event *gcal.Event) (*gcal.Event, error)
	UpdateEvent(ctx context.Context, eventID string, event *gcal.Event) (*gcal.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// CalendarSync mirrors orders into a shared Google Calendar. Sync is strictly
// best-effort: every failure is logged and swallowed so calendar availability
// never blocks an order operation.
type CalendarSync struct {
	events   CalendarEvents
	location *time.Location
	tzName   string
	printer  *message.Printer
	logger   func(context.Context, string, map[string]any)
}

type CalendarSyncDeps struct {
	Events   CalendarEvents
	Timezone string
	Logger   func(context.Context, string, map[string]any)
}

func NewCalendarSync(deps CalendarSyncDeps) (*CalendarSync, error) {
	if deps.Events == nil {
		return nil, errors.New("calendar sync: events client is required")
	}
	tzName := strings.TrimSpace(deps.Timezone)
	if tzName == "" {
		tzName = "America/Argentina/Buenos_Aires"
	}
	location, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("calendar sync: load timezone %q: %w", tzName, err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CalendarSync{
		events:   deps.Events,
		location: location,
		tzName:   tzName,
		printer:  message.NewPrinter(language.MustParse("es-AR")),
		logger:   logger,
	}, nil
}

// Upsert mirrors the order into the calendar and returns the event id to
// store on the order. When the order already carries an event id the event is
// updated in place; a failed update falls back to creating a fresh event so a
// manually deleted event heals itself. The boolean reports whether an event
// id is available.
func (s *CalendarSync) Upsert(ctx context.Context, order Order, contact CalendarContact) (string, bool) {
	event := s.buildEvent(order, contact)

	if order.CalendarEventID != nil && strings.TrimSpace(*order.CalendarEventID) != "" {
		eventID := strings.TrimSpace(*order.CalendarEventID)
		if _, err := s.events.UpdateEvent(ctx, eventID, event); err == nil {
			return eventID, true
		} else {
			s.logger(ctx, "calendar.update_failed", map[string]any{
				"orderId": order.ID,
				"eventId": eventID,
				"error":   err.Error(),
			})
		}
	}

	created, err := s.events.InsertEvent(ctx, event)
	if err != nil {
		s.logger(ctx, "calendar.insert_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return "", false
	}
	return created.Id, true
}

// Remove deletes the order's calendar event. Events already gone are fine;
// any other failure is logged and swallowed.
func (s *CalendarSync) Remove(ctx context.Context, orderID string, eventID string) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return
	}
	err := s.events.DeleteEvent(ctx, eventID)
	if err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
		s.logger(ctx, "calendar.delete_failed", map[string]any{
			"orderId": orderID,
			"eventId": eventID,
			"error":   err.Error(),
		})
	}
}

func (s *CalendarSync) buildEvent(order Order, contact CalendarContact) *gcal.Event {
	start, end := s.eventWindow(order)

	name := strings.TrimSpace(contact.Name)
	if name == "" {
		name = order.ClientName
	}

	return &gcal.Event{
		Summary:     "Pedido " + name,
		Description: s.buildDescription(order, contact),
		Start: &gcal.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: s.tzName,
		},
		End: &gcal.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: s.tzName,
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "popup", Minutes: 24 * 60},
				{Method: "popup", Minutes: 3 * 60},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

// eventWindow places the event on the scheduled date in the configured zone.
// Orders without explicit times get the default morning window.
func (s *CalendarSync) eventWindow(order Order) (time.Time, time.Time) {
	date := order.ScheduledDate
	startHour, startMinute := defaultEventStartHour, defaultEventStartMinute
	if order.StartTime != nil {
		if h, m, ok := parseClock(*order.StartTime); ok {
			startHour, startMinute = h, m
		}
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), startHour, startMinute, 0, 0, s.location)

	end := start.Add(defaultEventDuration)
	if order.EndTime != nil {
		if h, m, ok := parseClock(*order.EndTime); ok {
			candidate := time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, s.location)
			if candidate.After(start) {
				end = candidate
			}
		}
	}
	return start, end
}

// buildDescription renders the contact and order summary the staff reads
// straight from the calendar entry.
func (s *CalendarSync) buildDescription(order Order, contact CalendarContact) string {
	name := strings.TrimSpace(contact.Name)
	if name == "" {
		name = order.ClientName
	}

	var b strings.Builder
	b.WriteString("Cliente: " + orDash(name) + "\n")
	b.WriteString("Tel: " + orDash(contact.Phone) + "\n")
	b.WriteString("Dirección: " + orDash(contact.Address) + "\n")
	b.WriteString("Notas: " + orDash(order.Notes) + "\n")
	b.WriteString("Total: " + s.formatMoney(order.Total))
	if order.Deposit > 0 {
		b.WriteString("\nSeña: " + s.formatMoney(order.Deposit))
	}
	return b.String()
}

func orDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

func (s *CalendarSync) formatMoney(minor int64) string {
	return s.printer.Sprintf("$%.2f", float64(minor)/100)
}

func parseClock(value string) (int, int, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
