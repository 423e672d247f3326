package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenshop/orderengine/internal/domain/fault"
)

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewOrderTotal(t *testing.T) {
	o, err := New("o1", "u1", []OrderItem{
		{ID: "i1", ProductID: "p1", Quantity: 2, UnitPrice: money("19.99")},
		{ID: "i2", ProductID: "p2", Quantity: 1, UnitPrice: money("1839.99")},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, o.Total.Equal(money("1879.97")), "total is %s", o.Total)
}

func TestNewOrderValidation(t *testing.T) {
	_, err := New("o1", "u1", nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = New("o1", "u1", []OrderItem{
		{ID: "i1", ProductID: "p1", Quantity: 0, UnitPrice: money("10")},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New("o1", "u1", []OrderItem{
		{ID: "i1", ProductID: "p1", Quantity: 1, UnitPrice: money("10")},
		{ID: "i2", ProductID: "p1", Quantity: 2, UnitPrice: money("10")},
	})
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestTransitionToRejectsNonAdjacent(t *testing.T) {
	o, err := New("o1", "u1", []OrderItem{
		{ID: "i1", ProductID: "p1", Quantity: 1, UnitPrice: money("10")},
	})
	require.NoError(t, err)

	err = o.TransitionTo(StatusDelivered)
	assert.True(t, fault.IsKind(err, fault.KindConflict))
	assert.Equal(t, StatusPending, o.Status)

	require.NoError(t, o.TransitionTo(StatusPaid))
	assert.Equal(t, StatusPaid, o.Status)
}

func TestSubtotalRounds(t *testing.T) {
	item := OrderItem{ProductID: "p1", Quantity: 3, UnitPrice: money("0.335")}
	assert.True(t, item.Subtotal().Equal(money("1.01")), "subtotal is %s", item.Subtotal())
}

func TestCloneIsolation(t *testing.T) {
	o, err := New("o1", "u1", []OrderItem{
		{ID: "i1", ProductID: "p1", Quantity: 1, UnitPrice: money("10")},
	})
	require.NoError(t, err)

	clone := o.Clone()
	clone.Items[0].Quantity = 99
	clone.Status = StatusPaid

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, StatusPending, o.Status)
}
