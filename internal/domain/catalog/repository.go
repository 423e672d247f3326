package catalog

import "context"

// StockDemand names a quantity to remove from (or return to) a product's stock.
type StockDemand struct {
	ProductID string
	Quantity  int
}

// Repository is the catalog store port. DecrementStock is the critical
// operation: it must check every demand and commit all decrements as one
// atomic unit, so concurrent order creation against the same product can
// never oversell.
type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Save(ctx context.Context, product *Product) error

	// DecrementStock atomically verifies and applies every demand, or applies
	// none and returns *InsufficientStockError (or ErrNotFound) for the first
	// offending demand.
	DecrementStock(ctx context.Context, demands []StockDemand) error

	// RestoreStock returns previously decremented quantities. Products deleted
	// by the catalog collaborator in the meantime are skipped.
	RestoreStock(ctx context.Context, demands []StockDemand) error
}
