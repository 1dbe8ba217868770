package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/pkg/interceptors"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/core/ports"
)

// ErrPaymentDeclined is returned when the payment provider refuses a charge.
var ErrPaymentDeclined = errors.New("payment declined")

// --- PaymentStep ---

// PaymentStep charges the order amount and refunds it on compensation.
type PaymentStep struct {
	gateway ports.PaymentGateway
	request ports.ChargeRequest
	receipt ports.PaymentReceipt
}

func NewPaymentStep(gateway ports.PaymentGateway, request ports.ChargeRequest) *PaymentStep {
	return &PaymentStep{gateway: gateway, request: request}
}

func (s *PaymentStep) Name() string { return "Payment_Charge_Step" }

func (s *PaymentStep) Execute(ctx context.Context) error {
	receipt, err := s.gateway.Charge(ctx, s.request)
	if err != nil {
		return fmt.Errorf("payment provider error: %w", err)
	}
	if !receipt.Approved {
		return fmt.Errorf("%w for checkout %s: %s", ErrPaymentDeclined, s.request.Reference, receipt.Reason)
	}
	s.receipt = receipt
	return nil
}

// Compensate refunds the charge captured by this run. A replayed receipt
// belongs to an earlier checkout under the same reference and is left alone.
func (s *PaymentStep) Compensate(ctx context.Context) error {
	if !s.receipt.Approved || s.receipt.Replayed {
		return nil
	}
	return s.gateway.Refund(ctx, s.request.Reference)
}

// Receipt is the approved charge, valid after a successful Execute.
func (s *PaymentStep) Receipt() ports.PaymentReceipt { return s.receipt }

// --- SubmitOrderStep ---

// CheckoutPayload is the body of POST /api/orders/checkout/{uid}/.
type CheckoutPayload struct {
	Items   []entity.OrderItem `json:"items"`
	Amount  float64            `json:"amount"`
	Address entity.Address     `json:"address"`
	Status  entity.OrderStatus `json:"status"`
	Payment bool               `json:"payment"`
}

// CheckoutResponse is the backend's answer to a checkout.
type CheckoutResponse struct {
	Message string `json:"message"`
	OrderID string `json:"order_id"`
}

// SubmitOrderStep persists the order on the backend under an idempotency key.
type SubmitOrderStep struct {
	backend ports.Backend
	userID  string
	token   string
	key     string
	payload CheckoutPayload
	result  CheckoutResponse
}

func NewSubmitOrderStep(backend ports.Backend, userID, token, idempotencyKey string, payload CheckoutPayload) *SubmitOrderStep {
	return &SubmitOrderStep{
		backend: backend,
		userID:  userID,
		token:   token,
		key:     idempotencyKey,
		payload: payload,
	}
}

func (s *SubmitOrderStep) Name() string { return "Submit_Order_Step" }

func (s *SubmitOrderStep) Execute(ctx context.Context) error {
	ctx = interceptors.WithIdempotencyKey(ctx, s.key)
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/api/orders/checkout/" + s.userID + "/",
		Token:  s.token,
		Body:   s.payload,
	}, &s.result)
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	return nil
}

// Compensate has nothing to undo: the backend exposes no customer-side cancel.
func (s *SubmitOrderStep) Compensate(context.Context) error { return nil }

// Result is the backend response, valid after a successful Execute.
func (s *SubmitOrderStep) Result() CheckoutResponse { return s.result }
