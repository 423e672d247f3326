package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger is the payment store port. All application rows flow through Apply,
// which enforces both caps under one lock:
//
//	sum(amount applied) per payment <= payment.Amount
//	sum(amount applied) per order   <= order total
//
// Order totals are immutable after creation, so passing them in by value is
// race-free.
type Ledger interface {
	InsertPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context) ([]*Payment, error)

	// Apply atomically validates and inserts the given application rows for
	// one payment. Either every row commits or none does. A second
	// application of the same payment to the same order is rejected.
	Apply(ctx context.Context, paymentID string, apps []Application, orderTotals map[string]decimal.Decimal) error

	// RemoveApplications deletes previously inserted rows; used to unwind an
	// apply operation whose follow-up order transition lost a race.
	RemoveApplications(ctx context.Context, ids []string) error

	ApplicationsByPayment(ctx context.Context, paymentID string) ([]*Application, error)
	ApplicationsByOrder(ctx context.Context, orderID string) ([]*Application, error)

	// AppliedToOrder is the sum already applied to the order across all
	// payments; the order's outstanding balance is total minus this.
	AppliedToOrder(ctx context.Context, orderID string) (decimal.Decimal, error)

	// AppliedByPayment is the sum the payment has contributed so far; its
	// remaining amount is Amount minus this.
	AppliedByPayment(ctx context.Context, paymentID string) (decimal.Decimal, error)

	// PaymentIDsForOrders lists payments linked to any of the given orders,
	// used to scope non-admin payment listings.
	PaymentIDsForOrders(ctx context.Context, orderIDs []string) ([]string, error)
}
