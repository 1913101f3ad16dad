package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dulcepan/api/internal/platform/config"
)

// ErrEventNotFound is returned when the calendar no longer knows the event.
var ErrEventNotFound = errors.New("calendar: event not found")

// Client wraps the Google Calendar API scoped to a single calendar.
type Client struct {
	service    *gcal.Service
	calendarID string
}

// NewClient builds a Calendar client from configuration. Credentials JSON is
// used when present; otherwise application default credentials apply.
func NewClient(ctx context.Context, cfg config.CalendarConfig, opts ...option.ClientOption) (*Client, error) {
	calendarID := strings.TrimSpace(cfg.CalendarID)
	if calendarID == "" {
		return nil, errors.New("calendar: calendar id is required")
	}

	clientOpts := []option.ClientOption{option.WithScopes(gcal.CalendarEventsScope)}
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(creds)))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	return &Client{service: service, calendarID: calendarID}, nil
}

// InsertEvent creates the event and returns the stored representation.
func (c *Client) InsertEvent(ctx context.Context, event *gcal.Event) (*gcal.Event, error) {
	if c == nil || c.service == nil {
		return nil, errors.New("calendar: client not initialised")
	}
	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, wrapCalendarError("insert", err)
	}
	return created, nil
}

// UpdateEvent replaces the event with the given id.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, event *gcal.Event) (*gcal.Event, error) {
	if c == nil || c.service == nil {
		return nil, errors.New("calendar: client not initialised")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, errors.New("calendar: event id is required")
	}
	updated, err := c.service.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, wrapCalendarError("update", err)
	}
	return updated, nil
}

// DeleteEvent removes the event. Events already gone are reported as ErrEventNotFound.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if c == nil || c.service == nil {
		return errors.New("calendar: client not initialised")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return errors.New("calendar: event id is required")
	}
	if err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return wrapCalendarError("delete", err)
	}
	return nil
}

func wrapCalendarError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		// 410 means the event was previously deleted.
		if apiErr.Code == 404 || apiErr.Code == 410 {
			return fmt.Errorf("%w: %s", ErrEventNotFound, op)
		}
	}
	return fmt.Errorf("calendar: %s: %w", op, err)
}
