package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenshop/orderengine/internal/domain/fault"
	"github.com/zenshop/orderengine/internal/domain/payment"
)

func insertPayment(t *testing.T, repo *LedgerRepository, id, amount string) *payment.Payment {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	p, err := payment.New(id, amt, payment.MethodCard)
	require.NoError(t, err)
	require.NoError(t, repo.InsertPayment(context.Background(), p))
	return p
}

func app(id, orderID, paymentID, amount string) payment.Application {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	return payment.Application{
		ID: id, OrderID: orderID, PaymentID: paymentID,
		Amount: amt, CreatedAt: time.Now().UTC(),
	}
}

func totals(pairs ...any) map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		d, err := decimal.NewFromString(pairs[i+1].(string))
		if err != nil {
			panic(err)
		}
		m[pairs[i].(string)] = d
	}
	return m
}

func TestApplyEnforcesPaymentCap(t *testing.T) {
	repo := NewLedgerRepository()
	insertPayment(t, repo, "pay1", "100.00")
	ctx := context.Background()

	require.NoError(t, repo.Apply(ctx, "pay1",
		[]payment.Application{app("a1", "o1", "pay1", "60.00")},
		totals("o1", "500.00"),
	))

	err := repo.Apply(ctx, "pay1",
		[]payment.Application{app("a2", "o2", "pay1", "50.00")},
		totals("o2", "500.00"),
	)
	assert.True(t, fault.IsKind(err, fault.KindConflict), "60 + 50 exceeds the payment's 100")

	applied, err := repo.AppliedByPayment(ctx, "pay1")
	require.NoError(t, err)
	assert.True(t, applied.Equal(decimal.NewFromInt(60)))
}

func TestApplyEnforcesOrderCap(t *testing.T) {
	repo := NewLedgerRepository()
	insertPayment(t, repo, "pay1", "500.00")
	insertPayment(t, repo, "pay2", "500.00")
	ctx := context.Background()

	require.NoError(t, repo.Apply(ctx, "pay1",
		[]payment.Application{app("a1", "o1", "pay1", "80.00")},
		totals("o1", "100.00"),
	))

	err := repo.Apply(ctx, "pay2",
		[]payment.Application{app("a2", "o1", "pay2", "30.00")},
		totals("o1", "100.00"),
	)
	assert.True(t, fault.IsKind(err, fault.KindConflict), "80 + 30 exceeds the order's 100")
}

func TestApplyAllOrNothing(t *testing.T) {
	repo := NewLedgerRepository()
	insertPayment(t, repo, "pay1", "100.00")
	ctx := context.Background()

	err := repo.Apply(ctx, "pay1",
		[]payment.Application{
			app("a1", "o1", "pay1", "40.00"),
			app("a2", "o2", "pay1", "70.00"),
		},
		totals("o1", "500.00", "o2", "500.00"),
	)
	assert.True(t, fault.IsKind(err, fault.KindConflict))

	apps, err := repo.ApplicationsByPayment(ctx, "pay1")
	require.NoError(t, err)
	assert.Empty(t, apps, "the valid first row must not survive the failing batch")
}

func TestApplyRejectsDuplicatePair(t *testing.T) {
	repo := NewLedgerRepository()
	insertPayment(t, repo, "pay1", "100.00")
	ctx := context.Background()

	require.NoError(t, repo.Apply(ctx, "pay1",
		[]payment.Application{app("a1", "o1", "pay1", "20.00")},
		totals("o1", "500.00"),
	))
	err := repo.Apply(ctx, "pay1",
		[]payment.Application{app("a2", "o1", "pay1", "20.00")},
		totals("o1", "500.00"),
	)
	assert.True(t, fault.IsKind(err, fault.KindConflict))
}

func TestApplyRequiresPendingPayment(t *testing.T) {
	repo := NewLedgerRepository()
	p := insertPayment(t, repo, "pay1", "100.00")
	ctx := context.Background()

	require.NoError(t, p.Complete())
	require.NoError(t, repo.UpdatePayment(ctx, p))

	err := repo.Apply(ctx, "pay1",
		[]payment.Application{app("a1", "o1", "pay1", "20.00")},
		totals("o1", "500.00"),
	)
	assert.ErrorIs(t, err, payment.ErrNotPending)
}

func TestUpdatePaymentSettlesOnlyOnce(t *testing.T) {
	repo := NewLedgerRepository()
	p := insertPayment(t, repo, "pay1", "100.00")
	ctx := context.Background()

	completed := p.Clone()
	require.NoError(t, completed.Complete())
	require.NoError(t, repo.UpdatePayment(ctx, completed))

	failed := p.Clone()
	require.NoError(t, failed.Fail())
	err := repo.UpdatePayment(ctx, failed)
	assert.True(t, fault.IsKind(err, fault.KindConflict), "second settle loses the race")
}

func TestRemoveApplications(t *testing.T) {
	repo := NewLedgerRepository()
	insertPayment(t, repo, "pay1", "100.00")
	ctx := context.Background()

	require.NoError(t, repo.Apply(ctx, "pay1",
		[]payment.Application{
			app("a1", "o1", "pay1", "20.00"),
			app("a2", "o2", "pay1", "30.00"),
		},
		totals("o1", "500.00", "o2", "500.00"),
	))
	require.NoError(t, repo.RemoveApplications(ctx, []string{"a1"}))

	apps, err := repo.ApplicationsByPayment(ctx, "pay1")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "a2", apps[0].ID)

	applied, err := repo.AppliedToOrder(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, applied.IsZero())
}

func TestPaymentIDsForOrders(t *testing.T) {
	repo := NewLedgerRepository()
	insertPayment(t, repo, "pay1", "100.00")
	insertPayment(t, repo, "pay2", "100.00")
	ctx := context.Background()

	require.NoError(t, repo.Apply(ctx, "pay1",
		[]payment.Application{
			app("a1", "o1", "pay1", "20.00"),
			app("a2", "o2", "pay1", "30.00"),
		},
		totals("o1", "500.00", "o2", "500.00"),
	))
	require.NoError(t, repo.Apply(ctx, "pay2",
		[]payment.Application{app("a3", "o3", "pay2", "10.00")},
		totals("o3", "500.00"),
	))

	ids, err := repo.PaymentIDsForOrders(ctx, []string{"o1", "o2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pay1"}, ids)
}
