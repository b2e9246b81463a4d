package valueobject

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusSuccess:    {},
	PaymentStatusFailed:     {},
	PaymentStatusCancelled:  {},
}

func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) IsTerminal() bool {
	return s.IsValid() && len(paymentTransitions[s]) == 0
}

func (s PaymentStatus) CanTransitionTo(newStatus PaymentStatus) bool {
	for _, status := range paymentTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// NonTerminalPaymentStatuses: статусы, из которых возможна запись итогового статуса.
func NonTerminalPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing}
}

type PaymentType string

const (
	PaymentTypeEscrow PaymentType = "escrow"
	PaymentTypePayout PaymentType = "payout"
	PaymentTypeRefund PaymentType = "refund"
)

// GatewayStatusToPayment переводит статус транзакции шлюза в статус платежа.
// Неизвестные и промежуточные статусы считаются незавершёнными.
func GatewayStatusToPayment(gatewayStatus string) PaymentStatus {
	switch gatewayStatus {
	case "success":
		return PaymentStatusSuccess
	case "failed", "abandoned", "reversed":
		return PaymentStatusFailed
	default:
		return PaymentStatusProcessing
	}
}
