package repositories

import (
	"context"
	"time"

	domain "github.com/dulcepan/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository owns order header + item persistence. Create, Replace and
// Delete each run as a single transaction so the header and its items never
// diverge; the deposit never exceeds the stored total at this boundary.
type OrderRepository interface {
	// Create writes the header and every item atomically. The stored deposit
	// is clamped into [0, total] regardless of the value on the aggregate.
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	// Replace updates the header and swaps the full item set: existing item
	// documents are deleted and the new set recreated in the same transaction.
	Replace(ctx context.Context, order domain.Order) (domain.Order, error)
	// UpdateHeader patches header-only fields (status, deposit, paid flag,
	// calendar event id) without touching items.
	UpdateHeader(ctx context.Context, orderID string, update OrderHeaderUpdate) (domain.Order, error)
	// Delete removes the header and items atomically and returns the deleted
	// aggregate so callers can release photos and calendar events afterwards.
	Delete(ctx context.Context, orderID string) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// ListScheduledOn returns every non-canceled order whose scheduled date
	// matches the provided local date. Used by reminder dispatch.
	ListScheduledOn(ctx context.Context, date time.Time) ([]domain.Order, error)
}

// OrderHeaderUpdate carries the optional header fields a patch may touch.
// Nil pointers leave the stored value untouched.
type OrderHeaderUpdate struct {
	Status          *domain.OrderStatus
	Deposit         *int64
	IsPaid          *bool
	CalendarEventID *string
	UpdatedAt       time.Time
}

// OrderListFilter narrows and paginates order listings.
type OrderListFilter struct {
	Status     []domain.OrderStatus
	ClientID   string
	IsPaid     *bool
	DateRange  domain.RangeQuery[time.Time]
	Sort       domain.SortOrder
	Pagination domain.Pagination
}

// ClientRepository persists bakery clients with soft-delete semantics.
type ClientRepository interface {
	Insert(ctx context.Context, client domain.Client) error
	Update(ctx context.Context, client domain.Client) error
	FindByID(ctx context.Context, clientID string) (domain.Client, error)
	List(ctx context.Context, filter ClientListFilter) (domain.CursorPage[domain.Client], error)
	SoftDelete(ctx context.Context, clientID string, deletedAt time.Time) error
	Restore(ctx context.Context, clientID string) (domain.Client, error)
	ForceDelete(ctx context.Context, clientID string) error
}

// ClientListFilter selects live or trashed clients and paginates results.
type ClientListFilter struct {
	Trashed    bool
	Search     string
	Pagination domain.Pagination
}

// ClientAddressRepository manages delivery addresses nested under a client.
type ClientAddressRepository interface {
	Insert(ctx context.Context, address domain.ClientAddress) error
	Update(ctx context.Context, address domain.ClientAddress) error
	Delete(ctx context.Context, clientID string, addressID string) error
	FindByID(ctx context.Context, clientID string, addressID string) (domain.ClientAddress, error)
	ListByClient(ctx context.Context, clientID string) ([]domain.ClientAddress, error)
}

// CatalogRepository serves the read model backing the order form.
type CatalogRepository interface {
	// ListActiveProducts returns active products with variants, sorted by name.
	ListActiveProducts(ctx context.Context) ([]domain.Product, error)
	ListActiveFillings(ctx context.Context) ([]domain.Filling, error)
	ListActiveExtras(ctx context.Context) ([]domain.Extra, error)
}

// DeviceRepository stores staff device tokens for push reminders.
type DeviceRepository interface {
	// Upsert registers a token, replacing any previous registration for it.
	Upsert(ctx context.Context, device domain.Device) error
	Delete(ctx context.Context, token string) error
	ListAll(ctx context.Context) ([]domain.Device, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
