package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/platform/auth"
	"github.com/dulcepan/api/internal/platform/httpx"
	"github.com/dulcepan/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
	maxOrderUploadSize   = 20 << 20
	maxPhotoUploadSize   = 5 << 20

	placeholderFieldPrefix = "placeholder_"
)

// OrderHandlers exposes the order management endpoints.
type OrderHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	location *time.Location
}

// OrderOption customises the order handlers.
type OrderOption func(*OrderHandlers)

// WithOrderLocation sets the timezone used to render created/updated
// timestamps, so responses carry the bakery's local offset.
func WithOrderLocation(location *time.Location) OrderOption {
	return func(h *OrderHandlers) {
		if location != nil {
			h.location = location
		}
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:    authn,
		orders:   orders,
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}", h.updateOrder)
	r.Patch("/{orderID}/status", h.updateStatus)
	r.Post("/{orderID}/mark-as-paid", h.markAsPaid)
	r.Post("/{orderID}/mark-as-unpaid", h.markAsUnpaid)
	r.Delete("/{orderID}", h.deleteOrder)
}

type orderItemRequest struct {
	ID                 *string        `json:"id,omitempty"`
	ProductID          string         `json:"product_id"`
	ProductName        string         `json:"product_name"`
	Quantity           int            `json:"quantity"`
	BasePrice          moneyAmount    `json:"base_price"`
	Adjustments        *moneyAmount   `json:"adjustments,omitempty"`
	CustomizationNotes string         `json:"customization_notes,omitempty"`
	Customization      map[string]any `json:"customization,omitempty"`
}

func (r orderItemRequest) adjustments() int64 {
	if r.Adjustments == nil {
		return 0
	}
	return int64(*r.Adjustments)
}

type orderWriteRequest struct {
	ClientID        string             `json:"client_id"`
	ClientAddressID *string            `json:"client_address_id,omitempty"`
	ScheduledDate   string             `json:"scheduled_date"`
	StartTime       *string            `json:"start_time,omitempty"`
	EndTime         *string            `json:"end_time,omitempty"`
	DeliveryCost    moneyAmount        `json:"delivery_cost"`
	Deposit         moneyAmount        `json:"deposit"`
	Status          *string            `json:"status,omitempty"`
	IsPaid          *bool              `json:"is_paid,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	Items           []orderItemRequest `json:"items"`
}

type updateStatusRequest struct {
	Status    *string `json:"status,omitempty"`
	IsPaid    *bool   `json:"is_paid,omitempty"`
	FullyPaid *bool   `json:"fully_paid,omitempty"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	var statuses []domain.OrderStatus
	for _, raw := range parseFilterValues(query["status"]) {
		status := domain.OrderStatus(strings.ToLower(raw))
		if !status.IsValid() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("unknown status %q", raw), http.StatusBadRequest).
				WithDetails(map[string]any{"status": "unknown value"}))
			return
		}
		statuses = append(statuses, status)
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("date_from")); raw != "" {
		ts, err := parseDateParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date_from must be a date", http.StatusBadRequest).
				WithDetails(map[string]any{"date_from": "invalid date"}))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("date_to")); raw != "" {
		ts, err := parseDateParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date_to must be a date", http.StatusBadRequest).
				WithDetails(map[string]any{"date_to": "invalid date"}))
			return
		}
		dateRange.To = &ts
	}

	var isPaid *bool
	if raw := strings.TrimSpace(query.Get("is_paid")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "is_paid must be a boolean", http.StatusBadRequest).
				WithDetails(map[string]any{"is_paid": "invalid boolean"}))
			return
		}
		isPaid = &parsed
	}

	pageSize := defaultOrderPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultOrderPageSize
		case size > maxOrderPageSize:
			pageSize = maxOrderPageSize
		default:
			pageSize = size
		}
	}

	sort := domain.SortAsc
	if strings.EqualFold(strings.TrimSpace(query.Get("sort")), string(domain.SortDesc)) {
		sort = domain.SortDesc
	}

	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		Status:    statuses,
		ClientID:  strings.TrimSpace(query.Get("client_id")),
		IsPaid:    isPaid,
		DateRange: dateRange,
		Sort:      sort,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, h.buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	cmd, ok := h.decodeWritePayload(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Create(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: h.buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: h.buildOrderPayload(order)})
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	cmd, ok := h.decodeWritePayload(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Update(ctx, services.UpdateOrderCommand{
		OrderID:            orderID,
		CreateOrderCommand: cmd,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: h.buildOrderPayload(order)})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updateStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.UpdateOrderStatusCommand{
		OrderID:   orderID,
		IsPaid:    req.IsPaid,
		FullyPaid: req.FullyPaid,
	}
	if req.Status != nil {
		status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		if !status.IsValid() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("unknown status %q", *req.Status), http.StatusBadRequest).
				WithDetails(map[string]any{"status": "unknown value"}))
			return
		}
		cmd.Status = &status
	}

	order, err := h.orders.UpdateStatus(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: h.buildOrderPayload(order)})
}

func (h *OrderHandlers) markAsPaid(w http.ResponseWriter, r *http.Request) {
	h.applyPaymentToggle(w, r, h.orders.MarkAsPaid)
}

func (h *OrderHandlers) markAsUnpaid(w http.ResponseWriter, r *http.Request) {
	h.applyPaymentToggle(w, r, h.orders.MarkAsUnpaid)
}

func (h *OrderHandlers) applyPaymentToggle(w http.ResponseWriter, r *http.Request, toggle func(context.Context, string) (services.Order, error)) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := toggle(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: h.buildOrderPayload(order)})
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	if err := h.orders.Delete(ctx, orderID); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeWritePayload reads a create/update payload. Plain JSON bodies carry
// the order alone; multipart bodies carry the order under the "payload" field
// plus uploaded photos keyed by their placeholder tokens.
func (h *OrderHandlers) decodeWritePayload(w http.ResponseWriter, r *http.Request) (services.CreateOrderCommand, bool) {
	ctx := r.Context()

	var (
		req     orderWriteRequest
		uploads map[string]services.UploadedPhoto
	)

	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxOrderUploadSize); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid multipart body", http.StatusBadRequest))
			return services.CreateOrderCommand{}, false
		}
		payload := r.FormValue("payload")
		if strings.TrimSpace(payload) == "" {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payload field is required", http.StatusBadRequest).
				WithDetails(map[string]any{"payload": "required"}))
			return services.CreateOrderCommand{}, false
		}
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payload must be valid JSON", http.StatusBadRequest).
				WithDetails(map[string]any{"payload": "invalid JSON"}))
			return services.CreateOrderCommand{}, false
		}

		var err error
		uploads, err = readPhotoUploads(r.MultipartForm)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return services.CreateOrderCommand{}, false
		}
	} else {
		body, err := readLimitedBody(r, maxOrderBodySize)
		if err != nil {
			writeBodyError(ctx, w, err)
			return services.CreateOrderCommand{}, false
		}
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return services.CreateOrderCommand{}, false
		}
	}

	if details := validateOrderWrite(req); len(details) > 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order payload failed validation", http.StatusBadRequest).
			WithDetails(details))
		return services.CreateOrderCommand{}, false
	}

	scheduled, err := parseDateParam(req.ScheduledDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "scheduled_date must be a date", http.StatusBadRequest).
			WithDetails(map[string]any{"scheduled_date": "invalid date"}))
		return services.CreateOrderCommand{}, false
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ID:                 item.ID,
			ProductID:          strings.TrimSpace(item.ProductID),
			ProductName:        strings.TrimSpace(item.ProductName),
			Quantity:           item.Quantity,
			BasePrice:          int64(item.BasePrice),
			Adjustments:        item.adjustments(),
			CustomizationNotes: item.CustomizationNotes,
			Customization:      item.Customization,
		})
	}

	cmd := services.CreateOrderCommand{
		ClientID:        strings.TrimSpace(req.ClientID),
		ClientAddressID: req.ClientAddressID,
		ScheduledDate:   scheduled,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DeliveryCost:    int64(req.DeliveryCost),
		Deposit:         int64(req.Deposit),
		IsPaid:          req.IsPaid,
		Notes:           req.Notes,
		Items:           items,
		UploadedPhotos:  uploads,
	}
	if req.Status != nil {
		status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		cmd.Status = &status
	}
	return cmd, true
}

// validateOrderWrite returns field-keyed problems for the write payload.
func validateOrderWrite(req orderWriteRequest) map[string]any {
	details := make(map[string]any)
	if strings.TrimSpace(req.ClientID) == "" {
		details["client_id"] = "required"
	}
	if strings.TrimSpace(req.ScheduledDate) == "" {
		details["scheduled_date"] = "required"
	}
	if len(req.Items) == 0 {
		details["items"] = "at least one item is required"
	}
	for idx, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			details[fmt.Sprintf("items.%d.product_id", idx)] = "required"
		}
		if item.Quantity <= 0 {
			details[fmt.Sprintf("items.%d.quantity", idx)] = "must be positive"
		}
		if item.BasePrice < 0 {
			details[fmt.Sprintf("items.%d.base_price", idx)] = "must not be negative"
		} else if int64(item.BasePrice)+item.adjustments() < 0 {
			details[fmt.Sprintf("items.%d.adjustments", idx)] = "base price plus adjustments must not be negative"
		}
	}
	if req.Status != nil {
		status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		if !status.IsValid() {
			details["status"] = "unknown value"
		}
	}
	if req.StartTime != nil && req.EndTime != nil {
		if !wallClockAfter(*req.StartTime, *req.EndTime) {
			details["end_time"] = "must be after start_time"
		}
	}
	if req.DeliveryCost < 0 {
		details["delivery_cost"] = "must not be negative"
	}
	if req.DeliveryCost > 0 && (req.ClientAddressID == nil || strings.TrimSpace(*req.ClientAddressID) == "") {
		details["client_address_id"] = "required when delivery_cost is set"
	}
	if req.Deposit < 0 {
		details["deposit"] = "must not be negative"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// wallClockAfter reports whether end is strictly after start, both HH:MM
// wall-clock values. Unparseable values count as not-after.
func wallClockAfter(start, end string) bool {
	startMinutes, ok := clockMinutes(start)
	if !ok {
		return false
	}
	endMinutes, ok := clockMinutes(end)
	if !ok {
		return false
	}
	return endMinutes > startMinutes
}

func clockMinutes(value string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 3)
	if len(parts) < 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

func readPhotoUploads(form *multipart.Form) (map[string]services.UploadedPhoto, error) {
	if form == nil || len(form.File) == 0 {
		return nil, nil
	}

	uploads := make(map[string]services.UploadedPhoto)
	for field, headers := range form.File {
		if !strings.HasPrefix(field, placeholderFieldPrefix) || len(headers) == 0 {
			continue
		}
		header := headers[0]
		if header.Size > maxPhotoUploadSize {
			return nil, fmt.Errorf("photo %s exceeds the allowed size", field)
		}
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("photo %s could not be read", field)
		}
		data, err := io.ReadAll(io.LimitReader(file, maxPhotoUploadSize+1))
		_ = file.Close()
		if err != nil || int64(len(data)) > maxPhotoUploadSize {
			return nil, fmt.Errorf("photo %s could not be read", field)
		}
		uploads[field] = services.UploadedPhoto{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	if len(uploads) == 0 {
		return nil, nil
	}
	return uploads, nil
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	ClientID        string             `json:"client_id"`
	ClientName      string             `json:"client_name"`
	ClientAddressID *string            `json:"client_address_id,omitempty"`
	Status          string             `json:"status"`
	ScheduledDate   string             `json:"scheduled_date"`
	StartTime       *string            `json:"start_time,omitempty"`
	EndTime         *string            `json:"end_time,omitempty"`
	DeliveryCost    moneyAmount        `json:"delivery_cost"`
	Total           moneyAmount        `json:"total"`
	Deposit         moneyAmount        `json:"deposit"`
	Balance         moneyAmount        `json:"balance"`
	IsPaid          bool               `json:"is_paid"`
	Notes           string             `json:"notes,omitempty"`
	CalendarEventID *string            `json:"calendar_event_id,omitempty"`
	Items           []orderItemPayload `json:"items"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ID                 string         `json:"id"`
	ProductID          string         `json:"product_id"`
	ProductName        string         `json:"product_name"`
	Quantity           int            `json:"quantity"`
	BasePrice          moneyAmount    `json:"base_price"`
	Adjustments        moneyAmount    `json:"adjustments"`
	UnitPrice          moneyAmount    `json:"unit_price"`
	LineTotal          moneyAmount    `json:"line_total"`
	CustomizationNotes string         `json:"customization_notes,omitempty"`
	Customization      map[string]any `json:"customization,omitempty"`
}

func (h *OrderHandlers) buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ID:                 item.ID,
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			Quantity:           item.Quantity,
			BasePrice:          moneyAmount(item.BasePrice),
			Adjustments:        moneyAmount(item.Adjustments),
			UnitPrice:          moneyAmount(item.UnitPrice),
			LineTotal:          moneyAmount(int64(item.Quantity) * item.UnitPrice),
			CustomizationNotes: item.CustomizationNotes,
			Customization:      item.Customization,
		})
	}

	payload := orderPayload{
		ID:              order.ID,
		ClientID:        order.ClientID,
		ClientName:      order.ClientName,
		ClientAddressID: order.ClientAddressID,
		Status:          string(order.Status),
		ScheduledDate:   order.ScheduledDate.Format("2006-01-02"),
		StartTime:       order.StartTime,
		EndTime:         order.EndTime,
		DeliveryCost:    moneyAmount(order.DeliveryCost),
		Total:           moneyAmount(order.Total),
		Deposit:         moneyAmount(order.Deposit),
		Balance:         moneyAmount(order.Total - order.Deposit),
		IsPaid:          order.IsPaid,
		Notes:           order.Notes,
		CalendarEventID: order.CalendarEventID,
		Items:           items,
		CreatedAt:       order.CreatedAt.In(h.location).Format(time.RFC3339),
	}
	if !order.UpdatedAt.IsZero() {
		payload.UpdatedAt = order.UpdatedAt.In(h.location).Format(time.RFC3339)
	}
	return payload
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrAddressMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("address_mismatch", "address does not belong to the client", http.StatusConflict).
			WithDetails(map[string]any{"client_address_id": "address_mismatch"}))
	case errors.Is(err, services.ErrOrderClientNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "client not found", http.StatusBadRequest).
			WithDetails(map[string]any{"client_id": "unknown client"}))
	case errors.Is(err, services.ErrDepositExceedsTotal):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "deposit exceeds order total", http.StatusBadRequest).
			WithDetails(map[string]any{"deposit": "exceeds total"}))
	case errors.Is(err, services.ErrDepositWithoutItems):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "deposit requires items or delivery", http.StatusBadRequest).
			WithDetails(map[string]any{"deposit": "order is empty"}))
	case errors.Is(err, services.ErrInvalidItem), errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAlreadyPaidOrInvalidTotal):
		httpx.WriteError(ctx, w, httpx.NewError("order_payment_state", "order is already covered or has no payable total", http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
