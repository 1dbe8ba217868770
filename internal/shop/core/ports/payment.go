package ports

import "context"

// ChargeRequest asks the payment provider to capture an amount.
type ChargeRequest struct {
	// Reference identifies the checkout attempt; it doubles as the idempotency key.
	Reference string
	Amount    float64
	Email     string
}

// PaymentReceipt is the provider's answer to a charge.
type PaymentReceipt struct {
	Approved      bool
	TransactionID string
	Reason        string
	// Replayed is set when the reference was already charged and the
	// provider returned the earlier receipt instead of capturing again.
	Replayed bool
}

// PaymentGateway captures and refunds checkout payments.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (PaymentReceipt, error)
	Refund(ctx context.Context, reference string) error
}
