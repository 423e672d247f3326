package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zenshop/orderengine/internal/domain/catalog"
)

// CatalogRepository keeps products in memory. DecrementStock checks every
// demand before touching any row, all under one lock, which is what makes
// concurrent order creation against the same product safe.
type CatalogRepository struct {
	mu       sync.RWMutex
	products map[string]*catalog.Product
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{products: make(map[string]*catalog.Product)}
}

func (r *CatalogRepository) Get(ctx context.Context, id string) (*catalog.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return product.Clone(), nil
}

func (r *CatalogRepository) List(ctx context.Context) ([]*catalog.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*catalog.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CatalogRepository) Save(ctx context.Context, product *catalog.Product) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[product.ID] = product.Clone()
	return nil
}

func (r *CatalogRepository) DecrementStock(ctx context.Context, demands []catalog.StockDemand) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check everything first; no row changes until every demand fits.
	for _, d := range demands {
		product, ok := r.products[d.ProductID]
		if !ok {
			return catalog.ErrNotFound
		}
		if d.Quantity > product.Stock {
			return &catalog.InsufficientStockError{
				ProductID: d.ProductID,
				Available: product.Stock,
				Requested: d.Quantity,
			}
		}
	}

	now := time.Now().UTC()
	for _, d := range demands {
		product := r.products[d.ProductID]
		product.Stock -= d.Quantity
		product.UpdatedAt = now
	}
	return nil
}

func (r *CatalogRepository) RestoreStock(ctx context.Context, demands []catalog.StockDemand) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, d := range demands {
		product, ok := r.products[d.ProductID]
		if !ok {
			// Deleted by the catalog collaborator since the order was placed.
			continue
		}
		product.Stock += d.Quantity
		product.UpdatedAt = now
	}
	return nil
}
