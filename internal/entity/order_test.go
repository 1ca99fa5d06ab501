package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Amounts{SubtotalCents: 1080, DeliveryFeeCents: 100, TotalCents: 1180}.Validate())
	assert.ErrorIs(t, Amounts{SubtotalCents: 1080, DeliveryFeeCents: 100, TotalCents: 1200}.Validate(), ErrInvalidAmounts)
	assert.ErrorIs(t, Amounts{SubtotalCents: -1, DeliveryFeeCents: 1, TotalCents: 0}.Validate(), ErrInvalidAmounts)
}

func TestOrderStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, OrderAwaitingPayment.Valid())
	assert.True(t, OrderCancelled.Valid())
	assert.False(t, OrderStatus("shipped").Valid())

	assert.True(t, OrderCompleted.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderDelivered.Terminal())
}

func TestPaymentReference(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CHOW42", PaymentReference(42))
	assert.Equal(t, "CHOW1000001", PaymentReference(1000001))
}

func TestPaymentStatusValid(t *testing.T) {
	t.Parallel()

	assert.True(t, PaymentPendingRefund.Valid())
	assert.False(t, PaymentStatus("settled").Valid())
}
