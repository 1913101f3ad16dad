package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/dulcepan/api/internal/domain"
)

type stubCatalogRepo struct {
	productsFn func(ctx context.Context) ([]domain.Product, error)
	fillingsFn func(ctx context.Context) ([]domain.Filling, error)
	extrasFn   func(ctx context.Context) ([]domain.Extra, error)
}

func (s *stubCatalogRepo) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	if s.productsFn == nil {
		return nil, nil
	}
	return s.productsFn(ctx)
}

func (s *stubCatalogRepo) ListActiveFillings(ctx context.Context) ([]domain.Filling, error) {
	if s.fillingsFn == nil {
		return nil, nil
	}
	return s.fillingsFn(ctx)
}

func (s *stubCatalogRepo) ListActiveExtras(ctx context.Context) ([]domain.Extra, error) {
	if s.extrasFn == nil {
		return nil, nil
	}
	return s.extrasFn(ctx)
}

func TestCatalogServiceGetCatalog(t *testing.T) {
	repo := &stubCatalogRepo{
		productsFn: func(ctx context.Context) ([]domain.Product, error) {
			return []domain.Product{{ID: "prd_1", Name: "Torta", BasePrice: 150_00}}, nil
		},
		fillingsFn: func(ctx context.Context) ([]domain.Filling, error) {
			return []domain.Filling{{ID: "fil_1", Name: "Dulce de leche"}}, nil
		},
	}
	service, err := NewCatalogService(CatalogServiceDeps{Catalog: repo})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	catalog, err := service.GetCatalog(context.Background())
	if err != nil {
		t.Fatalf("GetCatalog: %v", err)
	}
	if len(catalog.Products) != 1 || catalog.Products[0].Name != "Torta" {
		t.Fatalf("unexpected products %+v", catalog.Products)
	}
	if len(catalog.Fillings) != 1 {
		t.Fatalf("unexpected fillings %+v", catalog.Fillings)
	}
	if catalog.Extras == nil || len(catalog.Extras) != 0 {
		t.Fatalf("expected empty extras slice, got %#v", catalog.Extras)
	}
}

func TestCatalogServiceGetCatalogPropagatesErrors(t *testing.T) {
	repoErr := errors.New("firestore unavailable")
	repo := &stubCatalogRepo{
		extrasFn: func(ctx context.Context) ([]domain.Extra, error) {
			return nil, repoErr
		},
	}
	service, err := NewCatalogService(CatalogServiceDeps{Catalog: repo})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	if _, err := service.GetCatalog(context.Background()); !errors.Is(err, repoErr) {
		t.Fatalf("expected repository error, got %v", err)
	}
}

func TestCatalogServiceRequiresRepository(t *testing.T) {
	if _, err := NewCatalogService(CatalogServiceDeps{}); !errors.Is(err, ErrCatalogRepositoryMissing) {
		t.Fatalf("expected ErrCatalogRepositoryMissing, got %v", err)
	}
}
