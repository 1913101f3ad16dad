package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventUpdated       = "order.updated"
	orderEventStatusChanged = "order.status.changed"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix     = "ord_"
	orderItemIDPrefix = "itm_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates a concurrent write collided with this one.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderClientNotFound indicates the referenced client does not exist.
	ErrOrderClientNotFound = errors.New("order: client not found")
	// ErrAddressMismatch indicates the delivery address does not belong to the order's client.
	ErrAddressMismatch = errors.New("order: address does not belong to client")
	// ErrAlreadyPaidOrInvalidTotal rejects marking paid an order that is
	// already covered or has nothing to pay.
	ErrAlreadyPaidOrInvalidTotal = errors.New("order: already paid or total not positive")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders    repositories.OrderRepository
	Clients   repositories.ClientRepository
	Addresses repositories.ClientAddressRepository
	Pricing   *PricingEngine
	Photos    *PhotoReconciler
	Calendar  *CalendarSync
	Events    OrderEventPublisher
	Clock     func() time.Time
	NewID     func() string
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	clients   repositories.ClientRepository
	addresses repositories.ClientAddressRepository
	pricing   *PricingEngine
	photos    *PhotoReconciler
	calendar  *CalendarSync
	events    OrderEventPublisher
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Clients == nil {
		return nil, errors.New("order service: client repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}
	if deps.Photos == nil {
		return nil, errors.New("order service: photo reconciler is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.NewID
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:    deps.Orders,
		clients:   deps.Clients,
		addresses: deps.Addresses,
		pricing:   deps.Pricing,
		photos:    deps.Photos,
		calendar:  deps.Calendar,
		events:    deps.Events,
		sanitizer: bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	client, err := s.validateCommand(ctx, cmd)
	if err != nil {
		return Order{}, err
	}

	items, err := s.photos.ResolvePlaceholders(ctx, cmd.Items, cmd.UploadedPhotos)
	if err != nil {
		return Order{}, err
	}

	total, deposit, err := s.price(items, cmd.DeliveryCost, cmd.Deposit)
	if err != nil {
		return Order{}, err
	}

	status := domain.OrderStatusConfirmed
	if cmd.Status != nil {
		status = *cmd.Status
	}
	isPaid := false
	if cmd.IsPaid != nil {
		isPaid = *cmd.IsPaid
	}

	now := s.clock()
	order := Order{
		ID:              orderIDPrefix + s.newID(),
		ClientID:        client.ID,
		ClientName:      client.Name,
		ClientAddressID: cloneStringPtr(cmd.ClientAddressID),
		Status:          status,
		ScheduledDate:   cmd.ScheduledDate,
		StartTime:       cloneStringPtr(cmd.StartTime),
		EndTime:         cloneStringPtr(cmd.EndTime),
		DeliveryCost:    cmd.DeliveryCost,
		Total:           total,
		Deposit:         deposit,
		IsPaid:          isPaid,
		Notes:           s.sanitizer.Sanitize(strings.TrimSpace(cmd.Notes)),
		Items:           s.buildItems(items, now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err := s.orders.Create(ctx, domain.Order(order))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	created = s.syncCalendar(ctx, created)
	s.publishEvent(ctx, OrderEventMessage{
		Event:      orderEventCreated,
		OrderID:    created.ID,
		ClientID:   created.ClientID,
		Status:     string(created.Status),
		Total:      created.Total,
		Deposit:    created.Deposit,
		OccurredAt: now,
	})

	return created, nil
}

func (s *orderService) Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	existing, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	beforeURLs := s.photos.CollectPhotoURLs(existing.Items)

	client, err := s.validateCommand(ctx, cmd.CreateOrderCommand)
	if err != nil {
		return Order{}, err
	}

	items, err := s.photos.ResolvePlaceholders(ctx, cmd.Items, cmd.UploadedPhotos)
	if err != nil {
		return Order{}, err
	}

	total, deposit, err := s.price(items, cmd.DeliveryCost, cmd.Deposit)
	if err != nil {
		return Order{}, err
	}

	status := existing.Status
	if cmd.Status != nil {
		status = *cmd.Status
	}
	isPaid := existing.IsPaid
	if cmd.IsPaid != nil {
		isPaid = *cmd.IsPaid
	}

	now := s.clock()
	order := Order{
		ID:              existing.ID,
		ClientID:        client.ID,
		ClientName:      client.Name,
		ClientAddressID: cloneStringPtr(cmd.ClientAddressID),
		Status:          status,
		ScheduledDate:   cmd.ScheduledDate,
		StartTime:       cloneStringPtr(cmd.StartTime),
		EndTime:         cloneStringPtr(cmd.EndTime),
		DeliveryCost:    cmd.DeliveryCost,
		Total:           total,
		Deposit:         deposit,
		IsPaid:          isPaid,
		Notes:           s.sanitizer.Sanitize(strings.TrimSpace(cmd.Notes)),
		CalendarEventID: existing.CalendarEventID,
		Items:           s.buildItems(items, now),
		CreatedAt:       existing.CreatedAt,
		UpdatedAt:       now,
	}

	updated, err := s.orders.Replace(ctx, domain.Order(order))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	updated = s.syncCalendar(ctx, updated)

	afterURLs := s.photos.CollectPhotoURLs(updated.Items)
	if orphans := s.photos.DiffOrphans(beforeURLs, afterURLs); len(orphans) > 0 {
		s.photos.DeleteOrphans(ctx, orphans)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Event:      orderEventUpdated,
		OrderID:    updated.ID,
		ClientID:   updated.ClientID,
		Status:     string(updated.Status),
		Total:      updated.Total,
		Deposit:    updated.Deposit,
		OccurredAt: now,
	})

	return updated, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// UpdateStatus patches any subset of status, paid flag, and the fully-paid
// shortcut in one call. Transitions between known statuses are unrestricted.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Status == nil && cmd.IsPaid == nil && cmd.FullyPaid == nil {
		return Order{}, fmt.Errorf("%w: nothing to update", ErrOrderInvalidInput)
	}
	if cmd.Status != nil && !cmd.Status.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, *cmd.Status)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	update := repositories.OrderHeaderUpdate{UpdatedAt: s.clock()}
	update.Status = cmd.Status
	if cmd.FullyPaid != nil {
		if *cmd.FullyPaid {
			deposit, err := s.fullyPaidDeposit(order)
			if err != nil {
				return Order{}, err
			}
			update.Deposit = &deposit
			update.IsPaid = boolPtr(true)
		} else {
			update.Deposit = unpaidDeposit(order)
			update.IsPaid = boolPtr(false)
		}
	}
	if cmd.IsPaid != nil {
		update.IsPaid = cmd.IsPaid
	}

	previous := order.Status
	updated, err := s.orders.UpdateHeader(ctx, orderID, update)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if cmd.Status != nil && *cmd.Status != previous {
		updated = s.syncCalendar(ctx, updated)
		s.publishEvent(ctx, OrderEventMessage{
			Event:      orderEventStatusChanged,
			OrderID:    updated.ID,
			ClientID:   updated.ClientID,
			Status:     string(updated.Status),
			Total:      updated.Total,
			Deposit:    updated.Deposit,
			OccurredAt: update.UpdatedAt,
		})
	}

	return updated, nil
}

// MarkAsPaid covers the full total: deposit becomes the total and the paid
// flag is set. Orders with nothing left to pay are rejected.
func (s *orderService) MarkAsPaid(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	deposit, err := s.fullyPaidDeposit(order)
	if err != nil {
		return Order{}, err
	}

	updated, err := s.orders.UpdateHeader(ctx, orderID, repositories.OrderHeaderUpdate{
		Deposit:   &deposit,
		IsPaid:    boolPtr(true),
		UpdatedAt: s.clock(),
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	updated = s.syncCalendar(ctx, updated)
	return updated, nil
}

// MarkAsUnpaid clears the paid flag. The deposit resets to zero only when it
// covered the full total, so a real partial deposit survives the toggle.
func (s *orderService) MarkAsUnpaid(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	updated, err := s.orders.UpdateHeader(ctx, orderID, repositories.OrderHeaderUpdate{
		Deposit:   unpaidDeposit(order),
		IsPaid:    boolPtr(false),
		UpdatedAt: s.clock(),
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	updated = s.syncCalendar(ctx, updated)
	return updated, nil
}

func (s *orderService) Delete(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	deleted, err := s.orders.Delete(ctx, orderID)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	if s.calendar != nil && deleted.CalendarEventID != nil {
		s.calendar.Remove(ctx, deleted.ID, *deleted.CalendarEventID)
	}
	if urls := s.photos.CollectPhotoURLs(deleted.Items); len(urls) > 0 {
		s.photos.DeleteOrphans(ctx, urls)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Event:      orderEventDeleted,
		OrderID:    deleted.ID,
		ClientID:   deleted.ClientID,
		Status:     string(deleted.Status),
		OccurredAt: s.clock(),
	})

	return nil
}

// validateCommand checks the shared create/update payload and resolves the
// client for name denormalization. A delivery address must belong to the
// order's client.
func (s *orderService) validateCommand(ctx context.Context, cmd CreateOrderCommand) (Client, error) {
	clientID := strings.TrimSpace(cmd.ClientID)
	if clientID == "" {
		return Client{}, fmt.Errorf("%w: client id is required", ErrOrderInvalidInput)
	}
	if cmd.ScheduledDate.IsZero() {
		return Client{}, fmt.Errorf("%w: scheduled date is required", ErrOrderInvalidInput)
	}
	if cmd.DeliveryCost < 0 {
		return Client{}, fmt.Errorf("%w: delivery cost must not be negative", ErrOrderInvalidInput)
	}
	if cmd.DeliveryCost > 0 && (cmd.ClientAddressID == nil || strings.TrimSpace(*cmd.ClientAddressID) == "") {
		return Client{}, fmt.Errorf("%w: delivery requires a client address", ErrOrderInvalidInput)
	}
	if cmd.StartTime != nil && cmd.EndTime != nil {
		if !clockBefore(*cmd.StartTime, *cmd.EndTime) {
			return Client{}, fmt.Errorf("%w: end time must be after start time", ErrOrderInvalidInput)
		}
	}
	if cmd.Status != nil && !cmd.Status.IsValid() {
		return Client{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, *cmd.Status)
	}

	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Client{}, fmt.Errorf("%w: %s", ErrOrderClientNotFound, clientID)
		}
		return Client{}, s.mapRepositoryError(err)
	}

	if cmd.ClientAddressID != nil && strings.TrimSpace(*cmd.ClientAddressID) != "" {
		if s.addresses == nil {
			return Client{}, errors.New("order service: address repository not configured")
		}
		if _, err := s.addresses.FindByID(ctx, client.ID, strings.TrimSpace(*cmd.ClientAddressID)); err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return Client{}, fmt.Errorf("%w: %s", ErrAddressMismatch, *cmd.ClientAddressID)
			}
			return Client{}, s.mapRepositoryError(err)
		}
	}

	return client, nil
}

func (s *orderService) price(items []OrderItemInput, deliveryCost int64, deposit int64) (int64, int64, error) {
	total, err := s.pricing.Total(items, deliveryCost)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	if err := s.pricing.ValidateDeposit(deposit, total, len(items) > 0); err != nil {
		return 0, 0, err
	}
	return total, s.pricing.ClampDeposit(deposit, total), nil
}

func (s *orderService) buildItems(inputs []OrderItemInput, now time.Time) []OrderItem {
	items := make([]OrderItem, 0, len(inputs))
	for _, input := range inputs {
		item := OrderItem{
			ID:                 orderItemIDPrefix + s.newID(),
			ProductID:          input.ProductID,
			ProductName:        input.ProductName,
			Quantity:           input.Quantity,
			BasePrice:          input.BasePrice,
			Adjustments:        input.Adjustments,
			UnitPrice:          s.pricing.UnitTotal(input.BasePrice, input.Adjustments),
			CustomizationNotes: s.sanitizer.Sanitize(strings.TrimSpace(input.CustomizationNotes)),
			Customization:      maps.Clone(input.Customization),
			CreatedAt:          now,
		}
		if input.ID != nil && strings.TrimSpace(*input.ID) != "" {
			item.ID = strings.TrimSpace(*input.ID)
			updated := now
			item.UpdatedAt = &updated
		}
		items = append(items, item)
	}
	return items
}

// syncCalendar mirrors the order into the calendar and stores a fresh event
// id when one is produced. Both steps are best-effort.
func (s *orderService) syncCalendar(ctx context.Context, order Order) Order {
	if s.calendar == nil {
		return order
	}
	eventID, ok := s.calendar.Upsert(ctx, order, s.calendarContact(ctx, order))
	if !ok {
		return order
	}
	if order.CalendarEventID != nil && *order.CalendarEventID == eventID {
		return order
	}

	updated, err := s.orders.UpdateHeader(ctx, order.ID, repositories.OrderHeaderUpdate{
		CalendarEventID: &eventID,
		UpdatedAt:       s.clock(),
	})
	if err != nil {
		s.logger(ctx, "order.calendar_id_store_failed", map[string]any{
			"orderId": order.ID,
			"eventId": eventID,
			"error":   err.Error(),
		})
		order.CalendarEventID = &eventID
		return order
	}
	return updated
}

// calendarContact resolves the client details mirrored into the calendar
// event description. Lookups are best-effort: a failed read falls back to the
// denormalized client name so the event still syncs.
func (s *orderService) calendarContact(ctx context.Context, order Order) CalendarContact {
	contact := CalendarContact{Name: order.ClientName}
	client, err := s.clients.FindByID(ctx, order.ClientID)
	if err != nil {
		s.logger(ctx, "order.calendar_contact_load_failed", map[string]any{
			"orderId":  order.ID,
			"clientId": order.ClientID,
			"error":    err.Error(),
		})
		return contact
	}
	contact.Name = client.Name
	contact.Phone = client.Phone
	if order.ClientAddressID != nil && strings.TrimSpace(*order.ClientAddressID) != "" && s.addresses != nil {
		if address, err := s.addresses.FindByID(ctx, order.ClientID, strings.TrimSpace(*order.ClientAddressID)); err == nil {
			contact.Address = address.AddressLine1
		}
	}
	return contact
}

func (s *orderService) fullyPaidDeposit(order Order) (int64, error) {
	if order.Total <= 0 || order.Deposit >= order.Total {
		return 0, ErrAlreadyPaidOrInvalidTotal
	}
	return order.Total, nil
}

func unpaidDeposit(order Order) *int64 {
	if order.Deposit >= order.Total {
		zero := int64(0)
		return &zero
	}
	return nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrDepositInvariant) {
		return fmt.Errorf("%w: %v", ErrDepositExceedsTotal, err)
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"event":   message.Event,
			"orderId": message.OrderID,
			"error":   err.Error(),
		})
	}
}

func clockBefore(start, end string) bool {
	sh, sm, ok := parseClock(start)
	if !ok {
		return false
	}
	eh, em, ok := parseClock(end)
	if !ok {
		return false
	}
	return eh*60+em > sh*60+sm
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func boolPtr(value bool) *bool {
	return &value
}
