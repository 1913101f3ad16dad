package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusConfirmed indicates the order has been taken and is scheduled.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusReady indicates the order is baked and waiting for pickup or delivery.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusDelivered indicates the order was handed over to the client.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled indicates the order was called off.
	OrderStatusCanceled OrderStatus = "canceled"
)

// KnownOrderStatuses lists every status accepted by the API.
var KnownOrderStatuses = []OrderStatus{
	OrderStatusConfirmed,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCanceled,
}

// IsValid reports whether the status is one of the known lifecycle states.
func (s OrderStatus) IsValid() bool {
	for _, known := range KnownOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Order is the aggregate root for a bakery order: header fields plus its line items.
// Monetary amounts are expressed in minor units (centavos).
type Order struct {
	ID              string
	ClientID        string
	ClientName      string
	ClientAddressID *string
	Status          OrderStatus
	ScheduledDate   time.Time
	StartTime       *string
	EndTime         *string
	DeliveryCost    int64
	Total           int64
	Deposit         int64
	IsPaid          bool
	Notes           string
	CalendarEventID *string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem stores one priced line of an order along with its customization
// payload (variant, filling, extras, photo URLs and free-form options).
// UnitPrice is the effective price per unit, BasePrice plus Adjustments, and
// is always derived server-side. Adjustments may be negative but can never
// push the effective price below zero.
type OrderItem struct {
	ID                 string
	ProductID          string
	ProductName        string
	Quantity           int
	BasePrice          int64
	Adjustments        int64
	UnitPrice          int64
	CustomizationNotes string
	Customization      map[string]any
	CreatedAt          time.Time
	UpdatedAt          *time.Time
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status   *OrderStatus
	ClientID string
	Date     RangeQuery[time.Time]
	IsPaid   *bool
}

// Client represents a bakery customer. Soft deletion is modelled through
// DeletedAt; trashed clients stay queryable for restore.
type Client struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsTrashed reports whether the client has been soft deleted.
func (c Client) IsTrashed() bool {
	return c.DeletedAt != nil
}

// ClientAddress stores a delivery destination nested under a client.
type ClientAddress struct {
	ID            string
	ClientID      string
	Label         string
	AddressLine1  string
	Latitude      *float64
	Longitude     *float64
	GoogleMapsURL string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Product is a catalog entry orderable as a line item.
type Product struct {
	ID        string
	Name      string
	BasePrice int64
	Active    bool
	Variants  []ProductVariant
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductVariant is a named size or presentation with a price adjustment
// relative to the product base price.
type ProductVariant struct {
	ID              string
	Name            string
	PriceAdjustment int64
}

// Filling is a cake filling option offered across products.
type Filling struct {
	ID              string
	Name            string
	PriceAdjustment int64
	Active          bool
}

// Extra is an add-on (toppers, candles, dedications) priced per unit.
type Extra struct {
	ID     string
	Name   string
	Price  int64
	Active bool
}

// Catalog bundles the read model served to the order form.
type Catalog struct {
	Products []Product
	Fillings []Filling
	Extras   []Extra
}

// Health status values reported by dependency probes.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// Device stores a staff device token registered for push reminders.
type Device struct {
	Token        string
	Platform     string
	RegisteredAt time.Time
}

// ReminderWindow selects which day's orders a reminder run targets.
type ReminderWindow string

const (
	// ReminderWindowToday targets orders scheduled for the current local date.
	ReminderWindowToday ReminderWindow = "today"
	// ReminderWindowTomorrow targets orders scheduled for the next local date.
	ReminderWindowTomorrow ReminderWindow = "tomorrow"
)

// IsValid reports whether the window is a supported reminder target.
func (w ReminderWindow) IsValid() bool {
	return w == ReminderWindowToday || w == ReminderWindowTomorrow
}
