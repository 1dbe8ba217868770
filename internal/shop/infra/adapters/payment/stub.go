// Package payment holds the payment provider adapters used by checkout.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jcmexdev/campify/internal/shop/core/ports"
)

// Stub approves charges locally without a real provider. Charges above the
// configured limit are declined so the compensation path can be exercised.
type Stub struct {
	mu       sync.Mutex
	limit    float64
	payments map[string]charge
	logger   *slog.Logger
}

type charge struct {
	amount        float64
	transactionID string
}

// NewStub returns a stub provider. A limit <= 0 approves every amount.
func NewStub(limit float64, logger *slog.Logger) *Stub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stub{limit: limit, payments: make(map[string]charge), logger: logger}
}

// Charge approves req unless it exceeds the limit. Charging the same
// reference twice returns the first receipt marked Replayed.
func (s *Stub) Charge(ctx context.Context, req ports.ChargeRequest) (ports.PaymentReceipt, error) {
	if req.Reference == "" {
		return ports.PaymentReceipt{}, fmt.Errorf("payment: charge without reference")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.payments[req.Reference]; ok {
		s.logger.InfoContext(ctx, "replaying charge", "reference", req.Reference)
		return ports.PaymentReceipt{Approved: true, TransactionID: c.transactionID, Replayed: true}, nil
	}

	s.logger.InfoContext(ctx, "processing charge", "reference", req.Reference, "amount", req.Amount)
	if s.limit > 0 && req.Amount > s.limit {
		s.logger.WarnContext(ctx, "charge declined", "reference", req.Reference, "amount", req.Amount, "limit", s.limit)
		return ports.PaymentReceipt{
			Approved: false,
			Reason:   fmt.Sprintf("amount %.2f exceeds limit %.2f", req.Amount, s.limit),
		}, nil
	}

	c := charge{amount: req.Amount, transactionID: uuid.NewString()}
	s.payments[req.Reference] = c
	return ports.PaymentReceipt{Approved: true, TransactionID: c.transactionID}, nil
}

// Refund releases the charge recorded under reference. Unknown references
// are treated as already refunded.
func (s *Stub) Refund(ctx context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.payments[reference]
	if !ok {
		s.logger.WarnContext(ctx, "no payment to refund", "reference", reference)
		return nil
	}
	s.logger.InfoContext(ctx, "refunding charge", "reference", reference, "amount", c.amount)
	delete(s.payments, reference)
	return nil
}

// Charged reports whether reference currently holds a captured payment.
func (s *Stub) Charged(reference string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.payments[reference]
	return ok
}
