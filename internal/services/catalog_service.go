package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/repositories"
)

// ErrCatalogRepositoryMissing indicates the repository dependency is absent.
var ErrCatalogRepositoryMissing = errors.New("catalog service: repository is not configured")

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type catalogService struct {
	repo repositories.CatalogRepository
}

// NewCatalogService constructs the catalog read model service.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, ErrCatalogRepositoryMissing
	}
	return &catalogService{repo: deps.Catalog}, nil
}

// GetCatalog loads the three active option lists the order form needs. The
// lists are independent, so they fetch concurrently.
func (s *catalogService) GetCatalog(ctx context.Context) (Catalog, error) {
	var catalog Catalog

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		products, err := s.repo.ListActiveProducts(groupCtx)
		if err != nil {
			return err
		}
		catalog.Products = products
		return nil
	})
	group.Go(func() error {
		fillings, err := s.repo.ListActiveFillings(groupCtx)
		if err != nil {
			return err
		}
		catalog.Fillings = fillings
		return nil
	})
	group.Go(func() error {
		extras, err := s.repo.ListActiveExtras(groupCtx)
		if err != nil {
			return err
		}
		catalog.Extras = extras
		return nil
	})

	if err := group.Wait(); err != nil {
		return Catalog{}, err
	}

	if catalog.Products == nil {
		catalog.Products = []domain.Product{}
	}
	if catalog.Fillings == nil {
		catalog.Fillings = []domain.Filling{}
	}
	if catalog.Extras == nil {
		catalog.Extras = []domain.Extra{}
	}
	return catalog, nil
}
