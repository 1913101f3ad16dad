package services

import (
	"context"
	"time"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	Client             = domain.Client
	ClientAddress      = domain.ClientAddress
	Product            = domain.Product
	ProductVariant     = domain.ProductVariant
	Filling            = domain.Filling
	Extra              = domain.Extra
	Catalog            = domain.Catalog
	Device             = domain.Device
	ReminderWindow     = domain.ReminderWindow
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService encapsulates order lifecycle flows: creation, full edits,
// header patches, payment marking, and deletion with resource cleanup.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	MarkAsPaid(ctx context.Context, orderID string) (Order, error)
	MarkAsUnpaid(ctx context.Context, orderID string) (Order, error)
	Delete(ctx context.Context, orderID string) error
}

// ClientService manages bakery clients and their nested delivery addresses.
type ClientService interface {
	Create(ctx context.Context, cmd UpsertClientCommand) (Client, error)
	GetClient(ctx context.Context, clientID string) (Client, error)
	ListClients(ctx context.Context, filter ClientListFilter) (domain.CursorPage[Client], error)
	Update(ctx context.Context, cmd UpsertClientCommand) (Client, error)
	Delete(ctx context.Context, clientID string) error
	Restore(ctx context.Context, clientID string) (Client, error)
	ForceDelete(ctx context.Context, clientID string) error

	ListAddresses(ctx context.Context, clientID string) ([]ClientAddress, error)
	CreateAddress(ctx context.Context, cmd UpsertAddressCommand) (ClientAddress, error)
	UpdateAddress(ctx context.Context, cmd UpsertAddressCommand) (ClientAddress, error)
	DeleteAddress(ctx context.Context, clientID string, addressID string) error
}

// CatalogService serves the read model backing the order form.
type CatalogService interface {
	GetCatalog(ctx context.Context) (Catalog, error)
}

// DeviceService registers and removes staff device tokens for push reminders.
type DeviceService interface {
	Register(ctx context.Context, cmd RegisterDeviceCommand) (Device, error)
	Unregister(ctx context.Context, token string) error
}

// ReminderService dispatches scheduled-order reminders to registered devices.
type ReminderService interface {
	Dispatch(ctx context.Context, window ReminderWindow) (ReminderDispatchResult, error)
}

// SystemService aggregates utility surfaces such as dependency health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventPublisher emits order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// PushSender delivers a notification to a batch of device tokens and reports
// which tokens are no longer valid.
type PushSender interface {
	SendToTokens(ctx context.Context, tokens []string, push PushMessage) (PushReport, error)
}

// Command and DTO definitions ------------------------------------------------

// OrderItemInput describes one order line as submitted by the API surface.
// Monetary amounts are minor units. Adjustments is a signed delta over
// BasePrice; the effective unit price is derived during pricing, never taken
// from the client.
type OrderItemInput struct {
	ID                 *string
	ProductID          string
	ProductName        string
	Quantity           int
	BasePrice          int64
	Adjustments        int64
	CustomizationNotes string
	Customization      map[string]any
}

type CreateOrderCommand struct {
	ClientID        string
	ClientAddressID *string
	ScheduledDate   time.Time
	StartTime       *string
	EndTime         *string
	DeliveryCost    int64
	Deposit         int64
	Notes           string
	// Status and IsPaid are optional on write payloads. A create without
	// them lands as confirmed and unpaid.
	Status *OrderStatus
	IsPaid *bool
	Items  []OrderItemInput
	// UploadedPhotos maps placeholder tokens from the request payload to the
	// raw bytes and content type of the uploaded file.
	UploadedPhotos map[string]UploadedPhoto
}

type UpdateOrderCommand struct {
	OrderID string
	CreateOrderCommand
}

// UpdateOrderStatusCommand patches any subset of status, paid flag, and the
// fully-paid shortcut in a single call. Nil fields are left untouched.
type UpdateOrderStatusCommand struct {
	OrderID   string
	Status    *OrderStatus
	IsPaid    *bool
	FullyPaid *bool
}

type OrderListFilter = repositories.OrderListFilter

// UploadedPhoto carries one uploaded photo received alongside an order payload.
type UploadedPhoto struct {
	FileName    string
	ContentType string
	Data        []byte
}

type UpsertClientCommand struct {
	ClientID string
	Name     string
	Phone    string
	Email    string
	Notes    string
}

type ClientListFilter = repositories.ClientListFilter

type UpsertAddressCommand struct {
	ClientID      string
	AddressID     string
	Label         string
	AddressLine1  string
	Latitude      *float64
	Longitude     *float64
	GoogleMapsURL string
	Notes         string
}

type RegisterDeviceCommand struct {
	Token    string
	Platform string
}

// ReminderDispatchResult summarises one reminder run.
type ReminderDispatchResult struct {
	Window       ReminderWindow
	Orders       int
	Devices      int
	Sent         int
	Failed       int
	StaleTokens  []string
	DispatchedAt time.Time
}

// PushMessage is the notification payload sent to staff devices.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushReport aggregates the outcome of a multicast push.
type PushReport struct {
	Sent        int
	Failed      int
	StaleTokens []string
}

// OrderEventMessage is the Pub/Sub payload emitted after order mutations and
// reminder runs.
type OrderEventMessage struct {
	Event      string    `json:"event"`
	OrderID    string    `json:"orderId,omitempty"`
	ClientID   string    `json:"clientId,omitempty"`
	Status     string    `json:"status,omitempty"`
	Total      int64     `json:"total,omitempty"`
	Deposit    int64     `json:"deposit,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
