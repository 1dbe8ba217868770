// Package cart keeps the signed-in user's cart in sync with the backend.
//
// The backend is authoritative: every response replaces membership, order
// and quantities, and entity.ReconcileLines decides which display fields
// survive. Responses that started before a logout are discarded.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/pkg/storage"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/core/ports"
)

// State is the cart lifecycle.
type State string

const (
	StateEmpty    State = "empty"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
	StateMutating State = "mutating"
)

var (
	ErrNotLoggedIn = errors.New("cart: not logged in")
	// ErrStale is returned when a response arrived after the session it
	// belonged to ended.
	ErrStale = errors.New("cart: session changed while the request was in flight")
)

const (
	MsgLoginRequired = "Please log in to add items to your cart."
	MsgAdded         = "%s has been added to your cart"
	MsgIncreased     = "Increased quantity of %s"
	MsgRemoved       = "Item has been removed from your cart"
	MsgCleared       = "All items have been removed from your cart"
	MsgFetchFailed   = "Failed to load your cart."
	MsgUpdateFailed  = "Failed to update your cart."
)

// serverLine is a cart line as the backend returns it. Older responses
// identify the product with _id, newer ones with product_id.
type serverLine struct {
	ID        string  `json:"_id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image"`
}

type cartResponse struct {
	Items []serverLine `json:"items"`
}

func (r cartResponse) lines() []entity.CartLine {
	out := make([]entity.CartLine, 0, len(r.Items))
	for _, it := range r.Items {
		id := it.ProductID
		if id == "" {
			id = it.ID
		}
		out = append(out, entity.CartLine{
			ProductID: id,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			ImageRef:  it.Image,
		})
	}
	return out
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service is the cart provider.
type Service struct {
	backend  ports.Backend
	session  ports.SessionReader
	store    storage.Store
	notifier ports.Notifier
	logger   *slog.Logger

	mu         sync.RWMutex
	lines      []entity.CartLine
	state      State
	loading    bool
	inflight   int
	generation uint64

	// cacheMu orders cache writes against the purge done by HandleLogout.
	cacheMu sync.Mutex
}

// New returns an empty cart.
func New(backend ports.Backend, session ports.SessionReader, store storage.Store, notifier ports.Notifier, opts ...Option) *Service {
	s := &Service{
		backend:  backend,
		session:  session,
		store:    store,
		notifier: notifier,
		logger:   slog.Default(),
		state:    StateEmpty,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lines returns a copy of the current lines.
func (s *Service) Lines() []entity.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines)
}

// Total is Σ price × quantity.
func (s *Service) Total() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entity.CartTotal(s.lines)
}

// Count is Σ quantity.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entity.CartCount(s.lines)
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading is raised only while Fetch runs.
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Prime shows the cached cart until the first fetch answers. The cache is
// best effort: a missing or unreadable entry leaves the cart empty.
func (s *Service) Prime(ctx context.Context) {
	raw, err := s.store.Get(ctx, storage.KeyCart)
	if err != nil || raw == "" {
		return
	}
	var cached []entity.CartLine
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		s.logger.DebugContext(ctx, "ignoring unreadable cart cache", "error", err)
		return
	}
	cached = slices.DeleteFunc(cached, func(l entity.CartLine) bool { return l.Quantity < 1 })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEmpty || len(cached) == 0 {
		return
	}
	s.lines = cached
	s.state = StateLoaded
}

// Fetch replaces the cart with the backend's.
func (s *Service) Fetch(ctx context.Context) error {
	sess, ok := s.session.Current()
	if !ok {
		return ErrNotLoggedIn
	}

	s.mu.Lock()
	gen := s.generation
	s.loading = true
	if s.inflight == 0 {
		s.state = StateLoading
	}
	s.mu.Unlock()

	var res cartResponse
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   cartPath(sess, ""),
		Token:  sess.Token,
	}, &res)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrStale
	}
	s.loading = false
	if err != nil {
		s.settleLocked()
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "fetching cart failed", "user_id", sess.Identity.ID, "error", err)
		s.notifier.Error(MsgFetchFailed)
		return fmt.Errorf("fetch cart: %w", err)
	}
	s.lines = entity.ReconcileLines(res.lines())
	s.settleLocked()
	lines := slices.Clone(s.lines)
	s.mu.Unlock()

	s.cache(ctx, gen, lines)
	return nil
}

// HandleLogin fetches the cart of a newly signed-in user.
func (s *Service) HandleLogin(ctx context.Context, _ entity.Session) {
	_ = s.Fetch(ctx)
}

// HandleLogout empties the cart, drops the cache and invalidates every
// request still in flight.
func (s *Service) HandleLogout(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.lines = nil
	s.state = StateEmpty
	s.loading = false
	s.inflight = 0
	s.mu.Unlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if err := s.store.Delete(ctx, storage.KeyCart); err != nil {
		s.logger.WarnContext(ctx, "purging cart cache failed", "error", err)
	}
}

// Add puts one unit of product in the cart.
func (s *Service) Add(ctx context.Context, product entity.ProductSnapshot) error {
	sess, ok := s.session.Current()
	if !ok {
		s.notifier.Info(MsgLoginRequired)
		return ErrNotLoggedIn
	}

	s.mu.RLock()
	existed := entity.FindLine(s.lines, product.ID) >= 0
	known := append(slices.Clone(s.lines), entity.LineFromSnapshot(product))
	s.mu.RUnlock()

	err := s.mutate(ctx, sess, apiclient.Request{
		Method: http.MethodPost,
		Path:   cartPath(sess, "add/"),
		Body:   map[string]string{"product_id": product.ID},
	}, known)
	if err != nil {
		return err
	}

	if existed {
		s.notifier.Success(fmt.Sprintf(MsgIncreased, product.Name))
	} else {
		s.notifier.Success(fmt.Sprintf(MsgAdded, product.Name))
	}
	return nil
}

// Remove drops a product from the cart. The id travels in the body.
func (s *Service) Remove(ctx context.Context, productID string) error {
	sess, ok := s.session.Current()
	if !ok {
		return ErrNotLoggedIn
	}
	err := s.mutate(ctx, sess, apiclient.Request{
		Method: http.MethodDelete,
		Path:   cartPath(sess, "remove/"),
		Body:   map[string]string{"product_id": productID},
	}, s.Lines())
	if err != nil {
		return err
	}
	s.notifier.Success(MsgRemoved)
	return nil
}

// UpdateQuantity sets the quantity of a line; below 1 it removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return s.Remove(ctx, productID)
	}
	sess, ok := s.session.Current()
	if !ok {
		return ErrNotLoggedIn
	}
	return s.mutate(ctx, sess, apiclient.Request{
		Method: http.MethodPut,
		Path:   cartPath(sess, "update/"),
		Body:   map[string]any{"product_id": productID, "quantity": qty},
	}, s.Lines())
}

// Clear empties the cart. Local state is reset whether or not the backend
// call succeeds.
func (s *Service) Clear(ctx context.Context) error {
	sess, ok := s.session.Current()
	if !ok {
		return ErrNotLoggedIn
	}

	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodDelete,
		Path:   cartPath(sess, "clear/"),
		Token:  sess.Token,
	}, nil)

	s.mu.Lock()
	s.lines = nil
	if s.state != StateEmpty {
		s.state = StateLoaded
	}
	gen := s.generation
	s.mu.Unlock()
	s.cache(ctx, gen, nil)

	if err != nil {
		s.logger.WarnContext(ctx, "clearing cart failed", "user_id", sess.Identity.ID, "error", err)
		return fmt.Errorf("clear cart: %w", err)
	}
	s.notifier.Success(MsgCleared)
	return nil
}

// mutate sends a cart change and reconciles the returned collection with
// the display data in known.
func (s *Service) mutate(ctx context.Context, sess entity.Session, req apiclient.Request, known []entity.CartLine) error {
	req.Token = sess.Token

	s.mu.Lock()
	gen := s.generation
	s.inflight++
	s.state = StateMutating
	s.mu.Unlock()

	var res cartResponse
	err := s.backend.Do(ctx, req, &res)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrStale
	}
	s.inflight--
	if err != nil {
		s.settleLocked()
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "cart update failed", "path", req.Path, "error", err)
		s.notifier.Error(apiclient.Message(err, MsgUpdateFailed))
		return fmt.Errorf("cart %s: %w", req.Method, err)
	}
	s.lines = entity.ReconcileLines(res.lines(), known...)
	s.settleLocked()
	lines := slices.Clone(s.lines)
	s.mu.Unlock()

	s.cache(ctx, gen, lines)
	return nil
}

// settleLocked leaves the transient states once nothing is in flight.
func (s *Service) settleLocked() {
	switch {
	case s.inflight > 0:
		s.state = StateMutating
	case s.loading:
		s.state = StateLoading
	default:
		s.state = StateLoaded
	}
}

// cache writes non-empty carts; an empty cart removes the entry so a stale
// cart is not shown on the next start. Writes belonging to a generation
// that a logout already ended are dropped.
func (s *Service) cache(ctx context.Context, gen uint64, lines []entity.CartLine) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.mu.RLock()
	stale := gen != s.generation
	s.mu.RUnlock()
	if stale {
		return
	}

	var err error
	if len(lines) == 0 {
		err = s.store.Delete(ctx, storage.KeyCart)
	} else {
		var raw []byte
		if raw, err = json.Marshal(lines); err == nil {
			err = s.store.Set(ctx, storage.KeyCart, string(raw))
		}
	}
	if err != nil {
		s.logger.WarnContext(ctx, "writing cart cache failed", "error", err)
	}
}

func cartPath(sess entity.Session, op string) string {
	return "/api/users/cart/" + sess.Identity.ID + "/" + op
}
