package handlers

import (
	"context"
	"encoding/json"
	"errors"
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
	defaultClientPageSize = 20
	maxClientPageSize     = 100
	maxClientBodySize     = 32 * 1024
)

// ClientHandlers exposes the client directory endpoints, including the
// nested address book.
type ClientHandlers struct {
	authn   *auth.Authenticator
	clients services.ClientService
}

// NewClientHandlers constructs a new ClientHandlers instance.
func NewClientHandlers(authn *auth.Authenticator, clients services.ClientService) *ClientHandlers {
	return &ClientHandlers{
		authn:   authn,
		clients: clients,
	}
}

// Routes registers the /clients endpoints.
func (h *ClientHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listClients)
	r.Post("/", h.createClient)
	r.Get("/{clientID}", h.getClient)
	r.Put("/{clientID}", h.updateClient)
	r.Delete("/{clientID}", h.deleteClient)
	r.Post("/{clientID}/restore", h.restoreClient)
	r.Delete("/{clientID}/force", h.forceDeleteClient)

	r.Route("/{clientID}/addresses", func(ar chi.Router) {
		ar.Get("/", h.listAddresses)
		ar.Post("/", h.createAddress)
		ar.Put("/{addressID}", h.updateAddress)
		ar.Delete("/{addressID}", h.deleteAddress)
	})
}

type clientWriteRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type addressWriteRequest struct {
	Label         string   `json:"label,omitempty"`
	AddressLine1  string   `json:"address_line1"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	GoogleMapsURL string   `json:"google_maps_url,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

type clientListResponse struct {
	Items         []clientPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type clientResponse struct {
	Client clientPayload `json:"client"`
}

type clientPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
	DeletedAt string `json:"deleted_at,omitempty"`
}

type addressListResponse struct {
	Items []addressPayload `json:"items"`
}

type addressResponse struct {
	Address addressPayload `json:"address"`
}

type addressPayload struct {
	ID            string   `json:"id"`
	ClientID      string   `json:"client_id"`
	Label         string   `json:"label,omitempty"`
	AddressLine1  string   `json:"address_line1"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	GoogleMapsURL string   `json:"google_maps_url,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

func (h *ClientHandlers) listClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	query := r.URL.Query()

	trashed := false
	if raw := strings.TrimSpace(query.Get("trashed")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "trashed must be a boolean", http.StatusBadRequest).
				WithDetails(map[string]any{"trashed": "invalid boolean"}))
			return
		}
		trashed = parsed
	}

	pageSize := defaultClientPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultClientPageSize
		case size > maxClientPageSize:
			pageSize = maxClientPageSize
		default:
			pageSize = size
		}
	}

	page, err := h.clients.ListClients(ctx, services.ClientListFilter{
		Trashed: trashed,
		Search:  strings.TrimSpace(query.Get("search")),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeClientError(ctx, w, err)
		return
	}

	items := make([]clientPayload, 0, len(page.Items))
	for _, client := range page.Items {
		items = append(items, buildClientPayload(client))
	}
	writeJSONResponse(w, http.StatusOK, clientListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *ClientHandlers) createClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	req, ok := h.decodeClientWrite(w, r)
	if !ok {
		return
	}

	client, err := h.clients.Create(ctx, services.UpsertClientCommand{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
		Notes: req.Notes,
	})
	if err != nil {
		writeClientError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, clientResponse{Client: buildClientPayload(client)})
}

func (h *ClientHandlers) getClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	clientID, ok := requireClientID(ctx, w, r)
	if !ok {
		return
	}

	client, err := h.clients.GetClient(ctx, clientID)
	if err != nil {
		writeClientError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, clientResponse{Client: buildClientPayload(client)})
}

func (h *ClientHandlers) updateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	clientID, ok := requireClientID(ctx, w, r)
	if !ok {
		return
	}

	req, ok := h.decodeClientWrite(w, r)
	if !ok {
		return
	}

	client, err := h.clients.Update(ctx, services.UpsertClientCommand{
		ClientID: clientID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Notes:    req.Notes,
	})
	if err != nil {
		writeClientError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, clientResponse{Client: buildClientPayload(client)})
}

func (h *ClientHandlers) deleteClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	clientID, ok := requireClientID(ctx, w, r)
	if !ok {
		return
	}

	if err := h.clients.Delete(ctx, clientID); err != nil {
		writeClientError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientHandlers) restoreClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	clientID, ok := requireClientID(ctx, w, r)
	if !ok {
		return
	}

	client, err := h.clients.Restore(ctx, clientID)
	if err != nil {
		writeClientError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, clientResponse{Client: buildClientPayload(client)})
}

func (h *ClientHandlers) forceDeleteClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	clientID, ok := requireClientID(ctx, w, r)
	if !ok {
		return
	}

	if err := h.clients.ForceDelete(ctx, clientID); err != nil {
		writeClientError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	clientID, ok := requireClientID(ctx, w, r)
	if !ok {
		return
	}

	addresses, err := h.clients.ListAddresses(ctx, clientID)
	if err != nil {
		writeClientError(ctx, w, err)
		return
	}

	items := make([]addressPayload, 0, len(addresses))
	for _, address := range addresses {
		items = append(items, buildAddressPayload(address))
	}
	writeJSONResponse(w, http.StatusOK, addressListResponse{Items: items})
}

func (h *ClientHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	clientID, ok := requireClientID(ctx, w, r)
	if !ok {
		return
	}

	req, ok := h.decodeAddressWrite(w, r)
	if !ok {
		return
	}

	address, err := h.clients.CreateAddress(ctx, services.UpsertAddressCommand{
		ClientID:      clientID,
		Label:         req.Label,
		AddressLine1:  req.AddressLine1,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		GoogleMapsURL: req.GoogleMapsURL,
		Notes:         req.Notes,
	})
	if err != nil {
		writeClientError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, addressResponse{Address: buildAddressPayload(address)})
}

func (h *ClientHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	clientID, ok := requireClientID(ctx, w, r)
	if !ok {
		return
	}
	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	req, ok := h.decodeAddressWrite(w, r)
	if !ok {
		return
	}

	address, err := h.clients.UpdateAddress(ctx, services.UpsertAddressCommand{
		ClientID:      clientID,
		AddressID:     addressID,
		Label:         req.Label,
		AddressLine1:  req.AddressLine1,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		GoogleMapsURL: req.GoogleMapsURL,
		Notes:         req.Notes,
	})
	if err != nil {
		writeClientError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, addressResponse{Address: buildAddressPayload(address)})
}

func (h *ClientHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.clients == nil {
		writeClientServiceUnavailable(ctx, w)
		return
	}

	clientID, ok := requireClientID(ctx, w, r)
	if !ok {
		return
	}
	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}

	if err := h.clients.DeleteAddress(ctx, clientID, addressID); err != nil {
		writeClientError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientHandlers) decodeClientWrite(w http.ResponseWriter, r *http.Request) (clientWriteRequest, bool) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxClientBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return clientWriteRequest{}, false
	}
	var req clientWriteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return clientWriteRequest{}, false
	}
	if strings.TrimSpace(req.Name) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "client name is required", http.StatusBadRequest).
			WithDetails(map[string]any{"name": "required"}))
		return clientWriteRequest{}, false
	}
	return req, true
}

func (h *ClientHandlers) decodeAddressWrite(w http.ResponseWriter, r *http.Request) (addressWriteRequest, bool) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxClientBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return addressWriteRequest{}, false
	}
	var req addressWriteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return addressWriteRequest{}, false
	}
	if strings.TrimSpace(req.AddressLine1) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address line is required", http.StatusBadRequest).
			WithDetails(map[string]any{"address_line1": "required"}))
		return addressWriteRequest{}, false
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "latitude and longitude must be provided together", http.StatusBadRequest).
			WithDetails(map[string]any{"latitude": "requires longitude"}))
		return addressWriteRequest{}, false
	}
	return req, true
}

func requireClientID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	clientID := strings.TrimSpace(chi.URLParam(r, "clientID"))
	if clientID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "client id is required", http.StatusBadRequest))
		return "", false
	}
	return clientID, true
}

func buildClientPayload(client domain.Client) clientPayload {
	payload := clientPayload{
		ID:        client.ID,
		Name:      client.Name,
		Phone:     client.Phone,
		Email:     client.Email,
		Notes:     client.Notes,
		CreatedAt: client.CreatedAt.Format(time.RFC3339),
	}
	if !client.UpdatedAt.IsZero() {
		payload.UpdatedAt = client.UpdatedAt.Format(time.RFC3339)
	}
	if client.DeletedAt != nil {
		payload.DeletedAt = client.DeletedAt.Format(time.RFC3339)
	}
	return payload
}

func buildAddressPayload(address domain.ClientAddress) addressPayload {
	payload := addressPayload{
		ID:            address.ID,
		ClientID:      address.ClientID,
		Label:         address.Label,
		AddressLine1:  address.AddressLine1,
		Latitude:      address.Latitude,
		Longitude:     address.Longitude,
		GoogleMapsURL: address.GoogleMapsURL,
		Notes:         address.Notes,
		CreatedAt:     address.CreatedAt.Format(time.RFC3339),
	}
	if !address.UpdatedAt.IsZero() {
		payload.UpdatedAt = address.UpdatedAt.Format(time.RFC3339)
	}
	return payload
}

func writeClientServiceUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("client_service_unavailable", "client service unavailable", http.StatusServiceUnavailable))
}

func writeClientError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrClientInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrClientNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("client_not_found", "client not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "address not found", http.StatusNotFound))
	case errors.Is(err, services.ErrClientConflict):
		httpx.WriteError(ctx, w, httpx.NewError("client_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("client_error", "failed to process client request", http.StatusInternalServerError))
	}
}
