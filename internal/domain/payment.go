package domain

// PaymentStatus tracks the charge attached to a ride. Settlement itself happens elsewhere.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// PaymentMethod is how the rider intends to pay.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodUPI    PaymentMethod = "upi"
)

// ParsePaymentMethod validates a payment method string. Empty defaults to cash.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(s); m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodWallet, PaymentMethodUPI:
		return m, true
	case "":
		return PaymentMethodCash, true
	default:
		return "", false
	}
}
