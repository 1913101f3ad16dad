package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/platform/auth"
	"github.com/dulcepan/api/internal/platform/httpx"
	"github.com/dulcepan/api/internal/services"
)

// CatalogHandlers serves the catalog read model backing the order form.
type CatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the /catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCatalog)
}

type catalogResponse struct {
	Products []productPayload `json:"products"`
	Fillings []fillingPayload `json:"fillings"`
	Extras   []extraPayload   `json:"extras"`
}

type productPayload struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	BasePrice moneyAmount      `json:"base_price"`
	Active    bool             `json:"active"`
	Variants  []variantPayload `json:"variants"`
}

type variantPayload struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	PriceAdjustment moneyAmount `json:"price_adjustment"`
}

type fillingPayload struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	PriceAdjustment moneyAmount `json:"price_adjustment"`
	Active          bool        `json:"active"`
}

type extraPayload struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Price  moneyAmount `json:"price"`
	Active bool        `json:"active"`
}

func (h *CatalogHandlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	catalog, err := h.catalog.GetCatalog(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load catalog", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, buildCatalogResponse(catalog))
}

func buildCatalogResponse(catalog domain.Catalog) catalogResponse {
	products := make([]productPayload, 0, len(catalog.Products))
	for _, product := range catalog.Products {
		variants := make([]variantPayload, 0, len(product.Variants))
		for _, variant := range product.Variants {
			variants = append(variants, variantPayload{
				ID:              variant.ID,
				Name:            variant.Name,
				PriceAdjustment: moneyAmount(variant.PriceAdjustment),
			})
		}
		products = append(products, productPayload{
			ID:        product.ID,
			Name:      product.Name,
			BasePrice: moneyAmount(product.BasePrice),
			Active:    product.Active,
			Variants:  variants,
		})
	}

	fillings := make([]fillingPayload, 0, len(catalog.Fillings))
	for _, filling := range catalog.Fillings {
		fillings = append(fillings, fillingPayload{
			ID:              filling.ID,
			Name:            filling.Name,
			PriceAdjustment: moneyAmount(filling.PriceAdjustment),
			Active:          filling.Active,
		})
	}

	extras := make([]extraPayload, 0, len(catalog.Extras))
	for _, extra := range catalog.Extras {
		extras = append(extras, extraPayload{
			ID:     extra.ID,
			Name:   extra.Name,
			Price:  moneyAmount(extra.Price),
			Active: extra.Active,
		})
	}

	return catalogResponse{
		Products: products,
		Fillings: fillings,
		Extras:   extras,
	}
}
