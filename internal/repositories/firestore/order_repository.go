package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/dulcepan/api/internal/domain"
	pfirestore "github.com/dulcepan/api/internal/platform/firestore"
	"github.com/dulcepan/api/internal/repositories"
)

const (
	orderCollection      = "orders"
	orderItemsCollection = "items"
)

// OrderRepository persists order headers with their item subcollection in Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// Create writes the header and every item in one transaction. The deposit is
// clamped into [0, total] before the header is stored.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc := encodeOrderDocument(order)
	doc.Deposit = clampDeposit(order.Deposit, doc.Total)

	var saved domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		headerRef := coll.Doc(id)
		if err := tx.Create(headerRef, doc); err != nil {
			return err
		}
		for index, item := range order.Items {
			itemID := strings.TrimSpace(item.ID)
			if itemID == "" {
				return fmt.Errorf("order repository: item %d is missing an id", index)
			}
			if err := tx.Create(headerRef.Collection(orderItemsCollection).Doc(itemID), encodeOrderItemDocument(item)); err != nil {
				return err
			}
		}
		saved = doc.toDomain(id)
		saved.Items = cloneOrderItems(order.Items)
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.create", err)
	}
	return saved, nil
}

// Replace swaps the full item set and updates the header atomically: every
// stored item document is deleted and the incoming set recreated in the same
// transaction. The created timestamp and calendar event id survive unless the
// caller supplies replacements.
func (r *OrderRepository) Replace(ctx context.Context, order domain.Order) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	if order.Deposit > order.Total {
		return domain.Order{}, repositories.ErrDepositInvariant
	}

	var saved domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		headerRef := coll.Doc(id)
		snap, err := tx.Get(headerRef)
		if err != nil {
			return err
		}
		var existing orderDocument
		if err := snap.DataTo(&existing); err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}

		itemSnaps, err := tx.Documents(headerRef.Collection(orderItemsCollection)).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		doc := encodeOrderDocument(order)
		doc.Deposit = clampDeposit(order.Deposit, doc.Total)
		doc.CreatedAt = existing.CreatedAt
		if doc.CalendarEventID == nil {
			doc.CalendarEventID = existing.CalendarEventID
		}

		for _, itemSnap := range itemSnaps {
			if err := tx.Delete(itemSnap.Ref); err != nil {
				return err
			}
		}
		if err := tx.Set(headerRef, doc); err != nil {
			return err
		}
		for index, item := range order.Items {
			itemID := strings.TrimSpace(item.ID)
			if itemID == "" {
				return fmt.Errorf("order repository: item %d is missing an id", index)
			}
			if err := tx.Set(headerRef.Collection(orderItemsCollection).Doc(itemID), encodeOrderItemDocument(item)); err != nil {
				return err
			}
		}
		saved = doc.toDomain(id)
		saved.Items = cloneOrderItems(order.Items)
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.replace", err)
	}
	return saved, nil
}

// UpdateHeader patches header-only fields without touching the item set.
func (r *OrderRepository) UpdateHeader(ctx context.Context, orderID string, update repositories.OrderHeaderUpdate) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	var saved domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		headerRef := coll.Doc(id)
		snap, err := tx.Get(headerRef)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}

		if update.Status != nil {
			doc.Status = string(*update.Status)
		}
		if update.Deposit != nil {
			if *update.Deposit > doc.Total {
				return repositories.ErrDepositInvariant
			}
			doc.Deposit = clampDeposit(*update.Deposit, doc.Total)
		}
		if update.IsPaid != nil {
			doc.IsPaid = *update.IsPaid
		}
		if update.CalendarEventID != nil {
			eventID := strings.TrimSpace(*update.CalendarEventID)
			if eventID == "" {
				doc.CalendarEventID = nil
			} else {
				doc.CalendarEventID = &eventID
			}
		}
		if update.UpdatedAt.IsZero() {
			doc.UpdatedAt = time.Now().UTC()
		} else {
			doc.UpdatedAt = update.UpdatedAt.UTC()
		}

		if err := tx.Set(headerRef, doc); err != nil {
			return err
		}
		saved = doc.toDomain(id)
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDepositInvariant) {
			return domain.Order{}, repositories.ErrDepositInvariant
		}
		return domain.Order{}, pfirestore.WrapError("orders.updateHeader", err)
	}

	items, err := r.loadItems(ctx, coll.Doc(id))
	if err != nil {
		return domain.Order{}, err
	}
	saved.Items = items
	return saved, nil
}

// Delete removes the header and every item atomically, returning the deleted
// aggregate so the caller can release photos and the calendar event.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	var deleted domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		headerRef := coll.Doc(id)
		snap, err := tx.Get(headerRef)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}

		itemSnaps, err := tx.Documents(headerRef.Collection(orderItemsCollection)).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		deleted = doc.toDomain(id)
		for _, itemSnap := range itemSnaps {
			item, err := decodeOrderItemDocument(itemSnap)
			if err != nil {
				return err
			}
			deleted.Items = append(deleted.Items, item)
			if err := tx.Delete(itemSnap.Ref); err != nil {
				return err
			}
		}
		sortItemsByCreation(deleted.Items)
		return tx.Delete(headerRef)
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.delete", err)
	}
	return deleted, nil
}

// FindByID loads the header and its items.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", id, err)
	}
	order := doc.toDomain(id)
	items, err := r.loadItems(ctx, snap.Ref)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

// List returns orders matching the filter ordered by scheduled date.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	direction := firestore.Asc
	if filter.Sort == domain.SortDesc {
		direction = firestore.Desc
	}

	query := coll.Query
	statuses := normaliseOrderStatuses(filter.Status)
	if len(statuses) == 1 {
		query = query.Where("status", "==", statuses[0])
	} else if len(statuses) > 1 {
		query = query.Where("status", "in", statuses)
	}
	if clientID := strings.TrimSpace(filter.ClientID); clientID != "" {
		query = query.Where("clientId", "==", clientID)
	}
	if filter.IsPaid != nil {
		query = query.Where("isPaid", "==", *filter.IsPaid)
	}
	if filter.DateRange.From != nil {
		query = query.Where("scheduledDate", ">=", truncateToDate(*filter.DateRange.From))
	}
	if filter.DateRange.To != nil {
		query = query.Where("scheduledDate", "<=", truncateToDate(*filter.DateRange.To))
	}
	query = query.OrderBy("scheduledDate", direction).OrderBy(firestore.DocumentID, firestore.Asc)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenDate, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenDate, tokenID)
	}
	if fetchLimit > 0 {
		query = query.Limit(fetchLimit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	type orderRow struct {
		id  string
		doc orderDocument
	}
	var rows []orderRow
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		rows = append(rows, orderRow{id: snap.Ref.ID, doc: doc})
	}

	nextToken := ""
	if limit > 0 && len(rows) == fetchLimit {
		last := rows[len(rows)-1]
		nextToken = encodeOrderListToken(last.doc.ScheduledDate, last.id)
		rows = rows[:len(rows)-1]
	}

	items := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		order := row.doc.toDomain(row.id)
		orderItems, err := r.loadItems(ctx, coll.Doc(row.id))
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		order.Items = orderItems
		items = append(items, order)
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// ListScheduledOn returns every non-canceled order scheduled for the provided
// calendar date.
func (r *OrderRepository) ListScheduledOn(ctx context.Context, date time.Time) ([]domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}

	day := truncateToDate(date)
	iter := coll.Where("scheduledDate", "==", day).Documents(ctx)
	defer iter.Stop()

	var results []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.listScheduledOn", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		if doc.Status == string(domain.OrderStatusCanceled) {
			continue
		}
		order := doc.toDomain(snap.Ref.ID)
		items, err := r.loadItems(ctx, snap.Ref)
		if err != nil {
			return nil, err
		}
		order.Items = items
		results = append(results, order)
	}
	return results, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, headerRef *firestore.DocumentRef) ([]domain.OrderItem, error) {
	iter := headerRef.Collection(orderItemsCollection).Documents(ctx)
	defer iter.Stop()

	var items []domain.OrderItem
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, nil
			}
			return nil, pfirestore.WrapError("orders.items", err)
		}
		item, err := decodeOrderItemDocument(snap)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	sortItemsByCreation(items)
	return items, nil
}

func (r *OrderRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(orderCollection), nil
}

type orderDocument struct {
	ClientID        string    `firestore:"clientId"`
	ClientName      string    `firestore:"clientName"`
	ClientAddressID *string   `firestore:"clientAddressId,omitempty"`
	Status          string    `firestore:"status"`
	ScheduledDate   time.Time `firestore:"scheduledDate"`
	StartTime       *string   `firestore:"startTime,omitempty"`
	EndTime         *string   `firestore:"endTime,omitempty"`
	DeliveryCost    int64     `firestore:"deliveryCost"`
	Total           int64     `firestore:"total"`
	Deposit         int64     `firestore:"deposit"`
	IsPaid          bool      `firestore:"isPaid"`
	Notes           string    `firestore:"notes,omitempty"`
	CalendarEventID *string   `firestore:"calendarEventId,omitempty"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		ClientID:        strings.TrimSpace(order.ClientID),
		ClientName:      strings.TrimSpace(order.ClientName),
		ClientAddressID: cloneOptionalString(order.ClientAddressID),
		Status:          string(order.Status),
		ScheduledDate:   truncateToDate(order.ScheduledDate),
		StartTime:       cloneOptionalString(order.StartTime),
		EndTime:         cloneOptionalString(order.EndTime),
		DeliveryCost:    order.DeliveryCost,
		Total:           order.Total,
		Deposit:         order.Deposit,
		IsPaid:          order.IsPaid,
		Notes:           strings.TrimSpace(order.Notes),
		CalendarEventID: cloneOptionalString(order.CalendarEventID),
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	return domain.Order{
		ID:              id,
		ClientID:        d.ClientID,
		ClientName:      d.ClientName,
		ClientAddressID: cloneOptionalString(d.ClientAddressID),
		Status:          domain.OrderStatus(d.Status),
		ScheduledDate:   d.ScheduledDate,
		StartTime:       cloneOptionalString(d.StartTime),
		EndTime:         cloneOptionalString(d.EndTime),
		DeliveryCost:    d.DeliveryCost,
		Total:           d.Total,
		Deposit:         d.Deposit,
		IsPaid:          d.IsPaid,
		Notes:           d.Notes,
		CalendarEventID: cloneOptionalString(d.CalendarEventID),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type orderItemDocument struct {
	ProductID          string         `firestore:"productId"`
	ProductName        string         `firestore:"productName"`
	Quantity           int            `firestore:"quantity"`
	BasePrice          int64          `firestore:"basePrice"`
	Adjustments        int64          `firestore:"adjustments"`
	UnitPrice          int64          `firestore:"unitPrice"`
	CustomizationNotes string         `firestore:"customizationNotes,omitempty"`
	Customization      map[string]any `firestore:"customization,omitempty"`
	CreatedAt          time.Time      `firestore:"createdAt"`
	UpdatedAt          *time.Time     `firestore:"updatedAt,omitempty"`
}

func encodeOrderItemDocument(item domain.OrderItem) orderItemDocument {
	doc := orderItemDocument{
		ProductID:          strings.TrimSpace(item.ProductID),
		ProductName:        strings.TrimSpace(item.ProductName),
		Quantity:           item.Quantity,
		BasePrice:          item.BasePrice,
		Adjustments:        item.Adjustments,
		UnitPrice:          item.UnitPrice,
		CustomizationNotes: item.CustomizationNotes,
		Customization:      item.Customization,
		CreatedAt:          item.CreatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if item.UpdatedAt != nil {
		updated := item.UpdatedAt.UTC()
		doc.UpdatedAt = &updated
	}
	return doc
}

func decodeOrderItemDocument(snap *firestore.DocumentSnapshot) (domain.OrderItem, error) {
	var doc orderItemDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.OrderItem{}, fmt.Errorf("decode order item %s: %w", snap.Ref.ID, err)
	}
	item := domain.OrderItem{
		ID:                 snap.Ref.ID,
		ProductID:          doc.ProductID,
		ProductName:        doc.ProductName,
		Quantity:           doc.Quantity,
		BasePrice:          doc.BasePrice,
		Adjustments:        doc.Adjustments,
		UnitPrice:          doc.UnitPrice,
		CustomizationNotes: doc.CustomizationNotes,
		Customization:      doc.Customization,
		CreatedAt:          doc.CreatedAt,
	}
	if doc.UpdatedAt != nil {
		updated := *doc.UpdatedAt
		item.UpdatedAt = &updated
	}
	return item, nil
}

func cloneOrderItems(items []domain.OrderItem) []domain.OrderItem {
	if len(items) == 0 {
		return nil
	}
	cloned := make([]domain.OrderItem, len(items))
	copy(cloned, items)
	return cloned
}

func sortItemsByCreation(items []domain.OrderItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func clampDeposit(deposit, total int64) int64 {
	if deposit < 0 {
		return 0
	}
	if deposit > total {
		return total
	}
	return deposit
}

func truncateToDate(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func normaliseOrderStatuses(statuses []domain.OrderStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(statuses))
	result := make([]string, 0, len(statuses))
	for _, s := range statuses {
		value := strings.ToLower(strings.TrimSpace(string(s)))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func encodeOrderListToken(scheduledDate time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", scheduledDate.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeOrderListToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}
