package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zenshop/orderengine/internal/domain/fault"
)

var (
	ErrNotFound      = fault.NotFoundf("payment: not found")
	ErrInvalidAmount = fault.Validationf("payment: amount must be greater than zero")
	ErrNotPending    = fault.Conflictf("payment: not in pending status")
)

// Method is the payment instrument. Purely bookkeeping; no gateway is called.
type Method string

const (
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
	MethodCash     Method = "cash"
)

func ParseMethod(s string) (Method, bool) {
	switch m := Method(s); m {
	case MethodCard, MethodTransfer, MethodCash:
		return m, true
	}
	return "", false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payment is an independent funds record; it is linked to orders only through
// Application rows and is not owned by any single order.
type Payment struct {
	ID        string
	Amount    decimal.Decimal
	Method    Method
	Status    Status
	CreatedAt time.Time
}

func New(id string, amount decimal.Decimal, method Method) (*Payment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if _, ok := ParseMethod(string(method)); !ok {
		return nil, fault.Validationf("payment: unknown method %q", method)
	}
	return &Payment{
		ID:        id,
		Amount:    amount.Round(2),
		Method:    method,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Complete marks the instrument settled. It is a bookkeeping signal only and
// never touches applications or order status.
func (p *Payment) Complete() error {
	if p.Status != StatusPending {
		return fault.Conflictf("payment %s: only pending payments can be completed", p.ID)
	}
	p.Status = StatusCompleted
	return nil
}

// Fail marks the instrument failed. Applications already made are kept and
// must be reconciled out of band.
func (p *Payment) Fail() error {
	if p.Status != StatusPending {
		return fault.Conflictf("payment %s: only pending payments can be marked as failed", p.ID)
	}
	p.Status = StatusFailed
	return nil
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Application is the order/payment junction: how much of which payment was
// applied to which order. Its lifetime equals the shorter of the two parents'.
type Application struct {
	ID        string
	OrderID   string
	PaymentID string
	Amount    decimal.Decimal
	CreatedAt time.Time
}
