package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/dulcepan/api/internal/domain"
	pfirestore "github.com/dulcepan/api/internal/platform/firestore"
)

const (
	productCollection = "products"
	fillingCollection = "fillings"
	extraCollection   = "extras"
)

// CatalogRepository serves the read model backing the order form: active
// products with their variants, fillings, and extras.
type CatalogRepository struct {
	provider *pfirestore.Provider
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{provider: provider}, nil
}

// ListActiveProducts returns active products with variants, sorted by name.
func (r *CatalogRepository) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(productCollection).
		Where("active", "==", true).
		OrderBy("name", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var results []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("catalog.products", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		results = append(results, doc.toDomain(snap.Ref.ID))
	}
	return results, nil
}

// ListActiveFillings returns active fillings sorted by name.
func (r *CatalogRepository) ListActiveFillings(ctx context.Context) ([]domain.Filling, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(fillingCollection).
		Where("active", "==", true).
		OrderBy("name", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var results []domain.Filling
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("catalog.fillings", err)
		}
		var doc fillingDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode filling %s: %w", snap.Ref.ID, err)
		}
		results = append(results, domain.Filling{
			ID:              snap.Ref.ID,
			Name:            doc.Name,
			PriceAdjustment: doc.PriceAdjustment,
			Active:          doc.Active,
		})
	}
	return results, nil
}

// ListActiveExtras returns active extras sorted by name.
func (r *CatalogRepository) ListActiveExtras(ctx context.Context) ([]domain.Extra, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(extraCollection).
		Where("active", "==", true).
		OrderBy("name", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var results []domain.Extra
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("catalog.extras", err)
		}
		var doc extraDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode extra %s: %w", snap.Ref.ID, err)
		}
		results = append(results, domain.Extra{
			ID:     snap.Ref.ID,
			Name:   doc.Name,
			Price:  doc.Price,
			Active: doc.Active,
		})
	}
	return results, nil
}

func (r *CatalogRepository) client(ctx context.Context) (*firestore.Client, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	return r.provider.Client(ctx)
}

type productDocument struct {
	Name      string                   `firestore:"name"`
	BasePrice int64                    `firestore:"basePrice"`
	Active    bool                     `firestore:"active"`
	Variants  []productVariantDocument `firestore:"variants,omitempty"`
	CreatedAt time.Time                `firestore:"createdAt"`
	UpdatedAt time.Time                `firestore:"updatedAt"`
}

type productVariantDocument struct {
	ID              string `firestore:"id"`
	Name            string `firestore:"name"`
	PriceAdjustment int64  `firestore:"priceAdjustment"`
}

func (d productDocument) toDomain(id string) domain.Product {
	product := domain.Product{
		ID:        id,
		Name:      d.Name,
		BasePrice: d.BasePrice,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, variant := range d.Variants {
		product.Variants = append(product.Variants, domain.ProductVariant{
			ID:              variant.ID,
			Name:            variant.Name,
			PriceAdjustment: variant.PriceAdjustment,
		})
	}
	return product
}

type fillingDocument struct {
	Name            string `firestore:"name"`
	PriceAdjustment int64  `firestore:"priceAdjustment"`
	Active          bool   `firestore:"active"`
}

type extraDocument struct {
	Name   string `firestore:"name"`
	Price  int64  `firestore:"price"`
	Active bool   `firestore:"active"`
}
