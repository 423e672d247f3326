package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zenshop/orderengine/internal/domain/fault"
)

var (
	ErrNotFound        = fault.NotFoundf("order: not found")
	ErrEmptyOrder      = fault.Validationf("order: at least one item is required")
	ErrInvalidQuantity = fault.Validationf("order: quantity must be at least one")
	ErrVersionConflict = fault.Conflictf("order: concurrent modification")
)

// OrderItem is one line of an order. UnitPrice is a snapshot of the product
// price at order time and is never re-read from the catalog.
type OrderItem struct {
	ID        string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

// Order owns its item list. Total is derived once at creation and never
// recalculated, even if product prices change afterwards.
type Order struct {
	ID      string
	UserID  string
	Status  Status
	Total   decimal.Decimal
	Items   []OrderItem
	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New builds a pending order from snapshotted items. Items must be non-empty,
// carry positive quantities, and reference each product at most once.
func New(id, userID string, items []OrderItem) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	seen := make(map[string]struct{}, len(items))
	total := decimal.Zero
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, fault.Validationf("order: duplicate product %s", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
		total = total.Add(item.Subtotal())
	}

	now := time.Now().UTC()
	return &Order{
		ID:        id,
		UserID:    userID,
		Status:    StatusPending,
		Total:     total.Round(2),
		Items:     append([]OrderItem(nil), items...),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo moves the order along the state machine, failing on any
// non-adjacent target.
func (o *Order) TransitionTo(target Status) error {
	if !o.Status.CanTransitionTo(target) {
		return fault.Conflictf("order %s: cannot transition from %s to %s", o.ID, o.Status, target)
	}
	o.Status = target
	o.touch()
	return nil
}

func (o *Order) OwnedBy(userID string) bool { return o.UserID == userID }

// StockHolds lists the quantities this order holds against the catalog,
// used when restoring stock on cancellation.
func (o *Order) StockHolds() []StockHold {
	holds := make([]StockHold, 0, len(o.Items))
	for _, item := range o.Items {
		holds = append(holds, StockHold{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return holds
}

// StockHold mirrors catalog.StockDemand without coupling the order domain to
// the catalog package.
type StockHold struct {
	ProductID string
	Quantity  int
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]OrderItem(nil), o.Items...)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
