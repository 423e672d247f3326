package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zenshop/orderengine/internal/domain/fault"
)

var (
	ErrNotFound     = fault.NotFoundf("catalog: product not found")
	ErrInvalidPrice = fault.Validationf("catalog: price must be greater than zero")
	ErrInvalidStock = fault.Validationf("catalog: stock must be zero or greater")
)

// Product is a catalog entry. The core only reads price/stock/active and
// adjusts the stock count; creation and editing belong to the catalog
// management collaborator.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewProduct(id, name string, price decimal.Decimal, stock int, active bool) (*Product, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidPrice
	}
	if stock < 0 {
		return nil, ErrInvalidStock
	}
	now := time.Now().UTC()
	return &Product{
		ID:        id,
		Name:      name,
		Price:     price.Round(2),
		Stock:     stock,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// InsufficientStockError reports available versus requested quantity for the
// offending product.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("catalog: insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Kind() fault.Kind { return fault.KindConflict }
