package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dulcepan/api/internal/services"
)

type stubCatalogService struct {
	getFunc func(ctx context.Context) (services.Catalog, error)
}

func (s *stubCatalogService) GetCatalog(ctx context.Context) (services.Catalog, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx)
	}
	return services.Catalog{}, nil
}

var _ services.CatalogService = (*stubCatalogService)(nil)

func TestCatalogHandlersGetCatalog(t *testing.T) {
	service := &stubCatalogService{
		getFunc: func(ctx context.Context) (services.Catalog, error) {
			return services.Catalog{
				Products: []services.Product{
					{
						ID:        "prod_torta",
						Name:      "Torta de chocolate",
						BasePrice: 150_00,
						Active:    true,
						Variants: []services.ProductVariant{
							{ID: "var_grande", Name: "Grande", PriceAdjustment: 50_00},
						},
					},
				},
				Fillings: []services.Filling{
					{ID: "fil_ddl", Name: "Dulce de leche", PriceAdjustment: 20_00, Active: true},
				},
				Extras: []services.Extra{
					{ID: "ext_velas", Name: "Velas", Price: 5_00, Active: true},
				},
			}, nil
		},
	}

	handler := NewCatalogHandlers(nil, service)
	router := NewRouter(WithCatalogRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload catalogResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Products) != 1 || payload.Products[0].ID != "prod_torta" {
		t.Fatalf("unexpected products: %+v", payload.Products)
	}
	if payload.Products[0].BasePrice != 150_00 {
		t.Fatalf("expected base price 15000, got %d", payload.Products[0].BasePrice)
	}
	if len(payload.Products[0].Variants) != 1 || payload.Products[0].Variants[0].PriceAdjustment != 50_00 {
		t.Fatalf("unexpected variants: %+v", payload.Products[0].Variants)
	}
	if len(payload.Fillings) != 1 || payload.Fillings[0].Name != "Dulce de leche" {
		t.Fatalf("unexpected fillings: %+v", payload.Fillings)
	}
	if len(payload.Extras) != 1 || payload.Extras[0].Price != 5_00 {
		t.Fatalf("unexpected extras: %+v", payload.Extras)
	}
}

func TestCatalogHandlersGetCatalogError(t *testing.T) {
	service := &stubCatalogService{
		getFunc: func(ctx context.Context) (services.Catalog, error) {
			return services.Catalog{}, errors.New("firestore down")
		},
	}

	handler := NewCatalogHandlers(nil, service)
	router := NewRouter(WithCatalogRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
}

func TestCatalogHandlersEmptyCatalogRendersEmptyArrays(t *testing.T) {
	handler := NewCatalogHandlers(nil, &stubCatalogService{})
	router := NewRouter(WithCatalogRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, key := range []string{"products", "fillings", "extras"} {
		if _, ok := payload[key].([]any); !ok {
			t.Fatalf("expected %s to be an array, got %T", key, payload[key])
		}
	}
}
