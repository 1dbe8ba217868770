// Package order lists a customer's orders, runs checkout and backs the
// admin order screens.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jcmexdev/campify/internal/coordinator"
	"github.com/jcmexdev/campify/internal/coordinator/checkoutlog"
	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/pkg/interceptors"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/core/ports"
)

// FeaturedCount is how many recent orders the dashboard shows.
const FeaturedCount = 4

var ErrNotLoggedIn = errors.New("order: not logged in")

const (
	MsgFetchFailed     = "Oops! Something went wrong while loading your orders."
	MsgNoOrders        = "You have no orders yet."
	MsgHistoryLoaded   = "Your order history is now available."
	MsgCheckoutFailed  = "Failed to place your order. Please try again."
	MsgPaymentDeclined = "Your payment was declined."
	MsgOrderPlaced     = "Order placed successfully!"
	MsgAllFetchFailed  = "Unable to load all orders."
	MsgDeleted         = "Order deleted successfully."
	MsgDeleteFailed    = "Unable to delete order."
	MsgLoadFailed      = "Failed to load order details."
)

// CheckoutResult describes a placed order.
type CheckoutResult struct {
	OrderID       string       `json:"order_id"`
	Message       string       `json:"message"`
	Quote         entity.Quote `json:"quote"`
	TransactionID string       `json:"transaction_id,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithCheckoutLog records every checkout in repo.
func WithCheckoutLog(repo checkoutlog.Repository) Option {
	return func(s *Service) { s.checkoutLog = repo }
}

// Service is the order provider.
type Service struct {
	backend     ports.Backend
	session     ports.SessionReader
	payments    ports.PaymentGateway
	notifier    ports.Notifier
	checkoutLog checkoutlog.Repository
	logger      *slog.Logger

	mu         sync.RWMutex
	orders     []entity.Order
	all        []entity.Order
	loading    bool
	generation uint64
}

// New returns a service with empty lists. payments may be nil, in which
// case checkout submits without charging.
func New(backend ports.Backend, session ports.SessionReader, payments ports.PaymentGateway, notifier ports.Notifier, opts ...Option) *Service {
	s := &Service{
		backend:  backend,
		session:  session,
		payments: payments,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Orders returns the signed-in user's orders.
func (s *Service) Orders() []entity.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.orders)
}

// AllOrders returns the admin listing.
func (s *Service) AllOrders() []entity.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.all)
}

// Featured returns the first FeaturedCount orders of the admin listing.
func (s *Service) Featured() []entity.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.all[:min(FeaturedCount, len(s.all))])
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// FetchByUser loads the signed-in user's orders. A 404 or an empty list
// means no orders; any other failure clears the list and notifies once.
// notify adds the informational messages of the orders page.
func (s *Service) FetchByUser(ctx context.Context, notify bool) error {
	sess, ok := s.session.Current()
	if !ok {
		return ErrNotLoggedIn
	}

	s.mu.Lock()
	gen := s.generation
	s.loading = true
	s.mu.Unlock()

	var orders []entity.Order
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/api/orders/" + sess.Identity.ID + "/",
		Token:  sess.Token,
	}, &orders)
	if apiclient.IsNotFound(err) {
		orders, err = nil, nil
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.loading = false
	s.orders = orders
	s.mu.Unlock()

	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "fetching orders failed", "user_id", sess.Identity.ID, "error", err)
		s.notifier.Error(MsgFetchFailed)
		return fmt.Errorf("fetch orders: %w", err)
	case !notify:
	case len(orders) == 0:
		s.notifier.Info(MsgNoOrders)
	default:
		s.notifier.Success(MsgHistoryLoaded)
	}
	return nil
}

// SubmitCheckout charges and places an order for lines. Shipping is free
// from entity.FreeShippingThreshold. Clearing the cart is left to the caller.
func (s *Service) SubmitCheckout(ctx context.Context, lines []entity.CartLine, address entity.Address, cartTotal float64) (CheckoutResult, error) {
	sess, ok := s.session.Current()
	if !ok {
		return CheckoutResult{}, ErrNotLoggedIn
	}
	if len(lines) == 0 {
		s.notifier.Error(entity.ErrEmptyOrder.Error())
		return CheckoutResult{}, entity.ErrEmptyOrder
	}
	if err := address.Validate(); err != nil {
		s.notifier.Error(err.Error())
		return CheckoutResult{}, err
	}

	quote := entity.NewQuote(cartTotal)
	// a caller retrying with the same idempotency key reuses the checkout
	key := interceptors.CallerIdempotencyKey(ctx)
	if key == "" {
		key = uuid.NewString()
	}
	payload := coordinator.CheckoutPayload{
		Items:   entity.ItemsFromCart(lines),
		Amount:  quote.Amount,
		Address: address,
		Status:  entity.OrderPaid,
		Payment: true,
	}

	var steps []coordinator.Step
	var pay *coordinator.PaymentStep
	if s.payments != nil {
		pay = coordinator.NewPaymentStep(s.payments, ports.ChargeRequest{Reference: key, Amount: quote.Amount, Email: address.Email})
		steps = append(steps, pay)
	}
	submit := coordinator.NewSubmitOrderStep(s.backend, sess.Identity.ID, sess.Token, key, payload)
	steps = append(steps, submit)

	opts := []coordinator.Option{coordinator.WithLogger(s.logger)}
	if s.checkoutLog != nil {
		opts = append(opts, coordinator.WithLog(s.checkoutLog))
	}
	if raw, err := json.Marshal(payload); err == nil {
		opts = append(opts, coordinator.WithPayload(string(raw)))
	}

	if err := coordinator.NewOrchestrator(key, steps, opts...).Start(ctx); err != nil {
		msg := apiclient.Message(err, MsgCheckoutFailed)
		if errors.Is(err, coordinator.ErrPaymentDeclined) {
			msg = MsgPaymentDeclined
		}
		s.notifier.Error(msg)
		return CheckoutResult{}, fmt.Errorf("checkout: %w", err)
	}

	res := CheckoutResult{
		OrderID: submit.Result().OrderID,
		Message: submit.Result().Message,
		Quote:   quote,
	}
	if pay != nil {
		res.TransactionID = pay.Receipt().TransactionID
	}
	s.notifier.Success(MsgOrderPlaced)
	return res, nil
}

// FetchAll loads every order for the admin listing.
func (s *Service) FetchAll(ctx context.Context, notify bool) error {
	s.mu.Lock()
	gen := s.generation
	s.loading = true
	s.mu.Unlock()

	var all []entity.Order
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/api/orders/",
		Token:  s.token(),
	}, &all)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.loading = false
	s.all = all
	s.mu.Unlock()

	if err != nil {
		s.logger.WarnContext(ctx, "fetching all orders failed", "error", err)
		s.notifier.Error(MsgAllFetchFailed)
		return fmt.Errorf("fetch all orders: %w", err)
	}
	if notify && len(all) == 0 {
		s.notifier.Info(MsgNoOrders)
	}
	return nil
}

// Get loads one order for the admin detail view.
func (s *Service) Get(ctx context.Context, id string) (entity.Order, error) {
	var o entity.Order
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/api/orders/order/" + id + "/",
		Token:  s.token(),
	}, &o)
	if err != nil {
		s.notifier.Error(MsgLoadFailed)
		return entity.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// Delete removes an order from the backend and from both lists.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodDelete,
		Path:   "/api/orders/" + id + "/delete/",
		Token:  s.token(),
	}, nil)
	if err != nil {
		s.notifier.Error(MsgDeleteFailed)
		return fmt.Errorf("delete order %s: %w", id, err)
	}

	match := func(o entity.Order) bool { return o.ID == id }
	s.mu.Lock()
	s.all = slices.DeleteFunc(s.all, match)
	s.orders = slices.DeleteFunc(s.orders, match)
	s.mu.Unlock()

	s.notifier.Success(MsgDeleted)
	return nil
}

// HandleLogin loads the new user's orders quietly.
func (s *Service) HandleLogin(ctx context.Context, _ entity.Session) {
	_ = s.FetchByUser(ctx, false)
}

// HandleLogout forgets every order and ignores responses still in flight.
func (s *Service) HandleLogout(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.orders = nil
	s.all = nil
	s.loading = false
}

func (s *Service) token() string {
	cur, _ := s.session.Current()
	return cur.Token
}
