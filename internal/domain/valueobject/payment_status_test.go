package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatus_TerminalStatesDoNotTransition(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled} {
		assert.True(t, s.IsTerminal(), s)
		for _, to := range []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing, PaymentStatusSuccess} {
			assert.False(t, s.CanTransitionTo(to), "%s -> %s", s, to)
		}
	}
}

func TestPaymentStatus_NonTerminal(t *testing.T) {
	assert.False(t, PaymentStatusPending.IsTerminal())
	assert.False(t, PaymentStatusProcessing.IsTerminal())
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusSuccess))
	assert.True(t, PaymentStatusProcessing.CanTransitionTo(PaymentStatusCancelled))
	assert.False(t, PaymentStatusProcessing.CanTransitionTo(PaymentStatusPending))
	assert.False(t, PaymentStatus("bogus").IsTerminal())
}

func TestGatewayStatusToPayment(t *testing.T) {
	assert.Equal(t, PaymentStatusSuccess, GatewayStatusToPayment("success"))
	assert.Equal(t, PaymentStatusFailed, GatewayStatusToPayment("failed"))
	assert.Equal(t, PaymentStatusFailed, GatewayStatusToPayment("abandoned"))
	assert.Equal(t, PaymentStatusFailed, GatewayStatusToPayment("reversed"))
	assert.Equal(t, PaymentStatusProcessing, GatewayStatusToPayment("ongoing"))
	assert.Equal(t, PaymentStatusProcessing, GatewayStatusToPayment(""))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(100000), ToMinorUnits(1000))
	assert.Equal(t, int64(1999), ToMinorUnits(19.99))
	assert.Equal(t, 19.99, FromMinorUnits(1999))

	m, err := NewMoney(250.5, "")
	assert.NoError(t, err)
	assert.Equal(t, int64(25050), m.MinorUnits())
	assert.Equal(t, "NGN 250.50", m.String())

	_, err = NewMoney(0, "NGN")
	assert.Error(t, err)
}
