package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/services"
)

type stubClientService struct {
	createFunc        func(ctx context.Context, cmd services.UpsertClientCommand) (services.Client, error)
	getFunc           func(ctx context.Context, clientID string) (services.Client, error)
	listFunc          func(ctx context.Context, filter services.ClientListFilter) (domain.CursorPage[domain.Client], error)
	updateFunc        func(ctx context.Context, cmd services.UpsertClientCommand) (services.Client, error)
	deleteFunc        func(ctx context.Context, clientID string) error
	restoreFunc       func(ctx context.Context, clientID string) (services.Client, error)
	forceDeleteFunc   func(ctx context.Context, clientID string) error
	listAddressesFunc func(ctx context.Context, clientID string) ([]services.ClientAddress, error)
	createAddressFunc func(ctx context.Context, cmd services.UpsertAddressCommand) (services.ClientAddress, error)
	updateAddressFunc func(ctx context.Context, cmd services.UpsertAddressCommand) (services.ClientAddress, error)
	deleteAddressFunc func(ctx context.Context, clientID, addressID string) error
}

func (s *stubClientService) Create(ctx context.Context, cmd services.UpsertClientCommand) (services.Client, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Client{}, nil
}

func (s *stubClientService) GetClient(ctx context.Context, clientID string) (services.Client, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, clientID)
	}
	return services.Client{}, nil
}

func (s *stubClientService) ListClients(ctx context.Context, filter services.ClientListFilter) (domain.CursorPage[domain.Client], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[domain.Client]{}, nil
}

func (s *stubClientService) Update(ctx context.Context, cmd services.UpsertClientCommand) (services.Client, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Client{}, nil
}

func (s *stubClientService) Delete(ctx context.Context, clientID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, clientID)
	}
	return nil
}

func (s *stubClientService) Restore(ctx context.Context, clientID string) (services.Client, error) {
	if s.restoreFunc != nil {
		return s.restoreFunc(ctx, clientID)
	}
	return services.Client{}, nil
}

func (s *stubClientService) ForceDelete(ctx context.Context, clientID string) error {
	if s.forceDeleteFunc != nil {
		return s.forceDeleteFunc(ctx, clientID)
	}
	return nil
}

func (s *stubClientService) ListAddresses(ctx context.Context, clientID string) ([]services.ClientAddress, error) {
	if s.listAddressesFunc != nil {
		return s.listAddressesFunc(ctx, clientID)
	}
	return nil, nil
}

func (s *stubClientService) CreateAddress(ctx context.Context, cmd services.UpsertAddressCommand) (services.ClientAddress, error) {
	if s.createAddressFunc != nil {
		return s.createAddressFunc(ctx, cmd)
	}
	return services.ClientAddress{}, nil
}

func (s *stubClientService) UpdateAddress(ctx context.Context, cmd services.UpsertAddressCommand) (services.ClientAddress, error) {
	if s.updateAddressFunc != nil {
		return s.updateAddressFunc(ctx, cmd)
	}
	return services.ClientAddress{}, nil
}

func (s *stubClientService) DeleteAddress(ctx context.Context, clientID, addressID string) error {
	if s.deleteAddressFunc != nil {
		return s.deleteAddressFunc(ctx, clientID, addressID)
	}
	return nil
}

var _ services.ClientService = (*stubClientService)(nil)

func TestClientHandlersCreateSuccess(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	var captured services.UpsertClientCommand
	service := &stubClientService{
		createFunc: func(ctx context.Context, cmd services.UpsertClientCommand) (services.Client, error) {
			captured = cmd
			return services.Client{
				ID:        "cli_1",
				Name:      "Marta",
				Phone:     "+54 11 5555-0101",
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		},
	}

	handler := NewClientHandlers(nil, service)
	router := NewRouter(WithClientRoutes(handler.Routes))

	body := strings.NewReader(`{"name":"Marta","phone":"+54 11 5555-0101"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Name != "Marta" {
		t.Fatalf("expected name propagated, got %q", captured.Name)
	}

	var payload clientResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Client.ID != "cli_1" || payload.Client.Phone != "+54 11 5555-0101" {
		t.Fatalf("unexpected payload: %+v", payload.Client)
	}
}

func TestClientHandlersCreateRequiresName(t *testing.T) {
	handler := NewClientHandlers(nil, &stubClientService{})
	router := NewRouter(WithClientRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients", strings.NewReader(`{"phone":"123"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestClientHandlersListTrashedFilter(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	deleted := now.Add(-time.Hour)

	var captured services.ClientListFilter
	service := &stubClientService{
		listFunc: func(ctx context.Context, filter services.ClientListFilter) (domain.CursorPage[domain.Client], error) {
			captured = filter
			return domain.CursorPage[domain.Client]{
				Items: []domain.Client{
					{ID: "cli_1", Name: "Marta", CreatedAt: now, DeletedAt: &deleted},
				},
			}, nil
		},
	}

	handler := NewClientHandlers(nil, service)
	router := NewRouter(WithClientRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clients?trashed=true&search=mar&page_size=5", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if !captured.Trashed || captured.Search != "mar" || captured.Pagination.PageSize != 5 {
		t.Fatalf("unexpected filter: %+v", captured)
	}

	var payload clientListResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].DeletedAt == "" {
		t.Fatalf("expected trashed client payload, got %+v", payload.Items)
	}
}

func TestClientHandlersGetNotFound(t *testing.T) {
	service := &stubClientService{
		getFunc: func(ctx context.Context, clientID string) (services.Client, error) {
			return services.Client{}, services.ErrClientNotFound
		},
	}
	handler := NewClientHandlers(nil, service)
	router := NewRouter(WithClientRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clients/cli_missing", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestClientHandlersRestore(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	var captured string
	service := &stubClientService{
		restoreFunc: func(ctx context.Context, clientID string) (services.Client, error) {
			captured = clientID
			return services.Client{ID: clientID, Name: "Marta", CreatedAt: now}, nil
		},
	}
	handler := NewClientHandlers(nil, service)
	router := NewRouter(WithClientRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/cli_1/restore", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if captured != "cli_1" {
		t.Fatalf("expected client id cli_1, got %s", captured)
	}
}

func TestClientHandlersForceDelete(t *testing.T) {
	var captured string
	service := &stubClientService{
		forceDeleteFunc: func(ctx context.Context, clientID string) error {
			captured = clientID
			return nil
		},
	}
	handler := NewClientHandlers(nil, service)
	router := NewRouter(WithClientRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/clients/cli_1/force", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
	if captured != "cli_1" {
		t.Fatalf("expected client id cli_1, got %s", captured)
	}
}

func TestClientHandlersCreateAddress(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	lat, lng := -34.6037, -58.3816

	var captured services.UpsertAddressCommand
	service := &stubClientService{
		createAddressFunc: func(ctx context.Context, cmd services.UpsertAddressCommand) (services.ClientAddress, error) {
			captured = cmd
			return services.ClientAddress{
				ID:           "adr_1",
				ClientID:     cmd.ClientID,
				AddressLine1: cmd.AddressLine1,
				Latitude:     cmd.Latitude,
				Longitude:    cmd.Longitude,
				CreatedAt:    now,
			}, nil
		},
	}
	handler := NewClientHandlers(nil, service)
	router := NewRouter(WithClientRoutes(handler.Routes))

	body := strings.NewReader(`{"label":"Casa","address_line1":"Av. Corrientes 1234","latitude":-34.6037,"longitude":-58.3816}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/cli_1/addresses", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.ClientID != "cli_1" || captured.AddressLine1 != "Av. Corrientes 1234" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if captured.Latitude == nil || *captured.Latitude != lat || captured.Longitude == nil || *captured.Longitude != lng {
		t.Fatalf("expected coordinates propagated, got %+v", captured)
	}
}

func TestClientHandlersCreateAddressRejectsLoneLatitude(t *testing.T) {
	handler := NewClientHandlers(nil, &stubClientService{})
	router := NewRouter(WithClientRoutes(handler.Routes))

	body := strings.NewReader(`{"address_line1":"Av. Corrientes 1234","latitude":-34.6}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/cli_1/addresses", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestClientHandlersUpdateAddressNotFound(t *testing.T) {
	service := &stubClientService{
		updateAddressFunc: func(ctx context.Context, cmd services.UpsertAddressCommand) (services.ClientAddress, error) {
			return services.ClientAddress{}, services.ErrAddressNotFound
		},
	}
	handler := NewClientHandlers(nil, service)
	router := NewRouter(WithClientRoutes(handler.Routes))

	body := strings.NewReader(`{"address_line1":"Av. Corrientes 1234"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/clients/cli_1/addresses/adr_missing", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestClientHandlersDeleteAddress(t *testing.T) {
	var capturedClient, capturedAddress string
	service := &stubClientService{
		deleteAddressFunc: func(ctx context.Context, clientID, addressID string) error {
			capturedClient = clientID
			capturedAddress = addressID
			return nil
		},
	}
	handler := NewClientHandlers(nil, service)
	router := NewRouter(WithClientRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/clients/cli_1/addresses/adr_1", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
	if capturedClient != "cli_1" || capturedAddress != "adr_1" {
		t.Fatalf("expected ids propagated, got %s/%s", capturedClient, capturedAddress)
	}
}
