package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenshop/orderengine/internal/domain/fault"
)

func TestNewPayment(t *testing.T) {
	p, err := New("pay1", decimal.NewFromFloat(100.456), MethodCard)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, p.Status)
	assert.True(t, p.Amount.Equal(decimal.NewFromFloat(100.46)), "amount rounds to minor unit, got %s", p.Amount)
}

func TestNewPaymentRejectsNonPositiveAmount(t *testing.T) {
	_, err := New("pay1", decimal.Zero, MethodCash)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = New("pay1", decimal.NewFromInt(-5), MethodCash)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"card", "transfer", "cash"} {
		m, ok := ParseMethod(s)
		assert.True(t, ok)
		assert.Equal(t, Method(s), m)
	}
	_, ok := ParseMethod("crypto")
	assert.False(t, ok)
}

func TestCompleteOnlyFromPending(t *testing.T) {
	p, err := New("pay1", decimal.NewFromInt(10), MethodCard)
	require.NoError(t, err)

	require.NoError(t, p.Complete())
	assert.Equal(t, StatusCompleted, p.Status)

	err = p.Complete()
	assert.True(t, fault.IsKind(err, fault.KindConflict))
}

func TestFailOnlyFromPending(t *testing.T) {
	p, err := New("pay1", decimal.NewFromInt(10), MethodCard)
	require.NoError(t, err)

	require.NoError(t, p.Fail())
	assert.Equal(t, StatusFailed, p.Status)

	assert.True(t, fault.IsKind(p.Fail(), fault.KindConflict))
	assert.True(t, fault.IsKind(p.Complete(), fault.KindConflict))
}
