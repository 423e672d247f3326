package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/zenshop/orderengine/internal/domain/fault"
	"github.com/zenshop/orderengine/internal/domain/payment"
)

// LedgerRepository keeps payments and their order applications in memory.
// Every application row is written through Apply under the repository lock,
// so the per-payment and per-order caps hold even under concurrent
// reconciliation against the same payment or order.
type LedgerRepository struct {
	mu           sync.RWMutex
	payments     map[string]*payment.Payment
	applications []*payment.Application
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{payments: make(map[string]*payment.Payment)}
}

func (r *LedgerRepository) InsertPayment(ctx context.Context, p *payment.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fault.Validationf("ledger: payment id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[p.ID]; exists {
		return fault.Conflictf("ledger: payment %s already exists", p.ID)
	}
	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *LedgerRepository) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return p.Clone(), nil
}

// UpdatePayment transitions the stored payment through the supplied entity
// method under the repository lock, so two concurrent complete/fail calls
// cannot both succeed.
func (r *LedgerRepository) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fault.Validationf("ledger: payment id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.payments[p.ID]
	if !ok {
		return payment.ErrNotFound
	}
	if stored.Status != payment.StatusPending {
		// Payments are immutable once settled; of two racing complete/fail
		// calls only the first commits.
		return fault.Conflictf("payment %s: already %s", stored.ID, stored.Status)
	}
	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *LedgerRepository) ListPayments(ctx context.Context) ([]*payment.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*payment.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *LedgerRepository) Apply(ctx context.Context, paymentID string, apps []payment.Application, orderTotals map[string]decimal.Decimal) error {
	_ = ctx
	if len(apps) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[paymentID]
	if !ok {
		return payment.ErrNotFound
	}
	if p.Status != payment.StatusPending {
		return payment.ErrNotPending
	}

	// Validate both caps against current rows before inserting anything.
	newTotal := decimal.Zero
	for _, app := range apps {
		if app.PaymentID != paymentID {
			return fault.Validationf("ledger: application names payment %s, expected %s", app.PaymentID, paymentID)
		}
		if app.Amount.LessThanOrEqual(decimal.Zero) {
			return fault.Validationf("ledger: applied amount must be greater than zero")
		}
		newTotal = newTotal.Add(app.Amount)

		total, ok := orderTotals[app.OrderID]
		if !ok {
			return fault.Validationf("ledger: missing total for order %s", app.OrderID)
		}
		if r.appliedToOrderLocked(app.OrderID).Add(app.Amount).GreaterThan(total) {
			return fault.Conflictf("ledger: amount %s exceeds outstanding balance of order %s", app.Amount.StringFixed(2), app.OrderID)
		}
		for _, existing := range r.applications {
			if existing.PaymentID == paymentID && existing.OrderID == app.OrderID {
				return fault.Conflictf("ledger: payment %s already applied to order %s", paymentID, app.OrderID)
			}
		}
	}
	if r.appliedByPaymentLocked(paymentID).Add(newTotal).GreaterThan(p.Amount) {
		return fault.Conflictf("ledger: applications exceed remaining amount of payment %s", paymentID)
	}

	for _, app := range apps {
		clone := app
		r.applications = append(r.applications, &clone)
	}
	return nil
}

func (r *LedgerRepository) RemoveApplications(ctx context.Context, ids []string) error {
	_ = ctx
	if len(ids) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := r.applications[:0]
	for _, app := range r.applications {
		if _, gone := drop[app.ID]; !gone {
			kept = append(kept, app)
		}
	}
	r.applications = kept
	return nil
}

func (r *LedgerRepository) ApplicationsByPayment(ctx context.Context, paymentID string) ([]*payment.Application, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*payment.Application, 0)
	for _, app := range r.applications {
		if app.PaymentID == paymentID {
			clone := *app
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *LedgerRepository) ApplicationsByOrder(ctx context.Context, orderID string) ([]*payment.Application, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*payment.Application, 0)
	for _, app := range r.applications {
		if app.OrderID == orderID {
			clone := *app
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *LedgerRepository) AppliedToOrder(ctx context.Context, orderID string) (decimal.Decimal, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.appliedToOrderLocked(orderID), nil
}

func (r *LedgerRepository) AppliedByPayment(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.appliedByPaymentLocked(paymentID), nil
}

func (r *LedgerRepository) PaymentIDsForOrders(ctx context.Context, orderIDs []string) ([]string, error) {
	_ = ctx

	want := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, app := range r.applications {
		if _, ok := want[app.OrderID]; !ok {
			continue
		}
		if _, dup := seen[app.PaymentID]; dup {
			continue
		}
		seen[app.PaymentID] = struct{}{}
		out = append(out, app.PaymentID)
	}
	return out, nil
}

func (r *LedgerRepository) appliedToOrderLocked(orderID string) decimal.Decimal {
	sum := decimal.Zero
	for _, app := range r.applications {
		if app.OrderID == orderID {
			sum = sum.Add(app.Amount)
		}
	}
	return sum
}

func (r *LedgerRepository) appliedByPaymentLocked(paymentID string) decimal.Decimal {
	sum := decimal.Zero
	for _, app := range r.applications {
		if app.PaymentID == paymentID {
			sum = sum.Add(app.Amount)
		}
	}
	return sum
}
