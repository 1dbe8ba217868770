// Package fakeapi is an in-memory stand-in for the campify REST backend.
// It speaks the same routes and payload shapes so the shop services and the
// gateway can be exercised end to end without the real backend.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
)

// SigningKey signs the tokens handed out by the fake.
var SigningKey = []byte("campify-fake-backend")

// RecordedRequest is one request the fake received.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   string
	Header  http.Header
	Body    string
	Pattern string
}

type account struct {
	entity.Identity
	Password string
}

type cartEntry struct {
	ProductID string
	Quantity  int
}

type storedOrder struct {
	UserID string
	Order  entity.Order
}

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	mu          sync.Mutex
	accounts    map[string]*account // by id
	tokens      map[string]string   // token -> account id
	resetTokens map[string]string   // reset token -> account id
	products    []entity.Product
	carts       map[string][]cartEntry
	orders      []storedOrder
	invites     map[string]entity.Role
	stats       entity.DashboardStats
	failures    map[string]int
	requests    []RecordedRequest
	tokenTTL    time.Duration

	router chi.Router
}

// New returns a fake with an empty catalog and no accounts.
func New() *Server {
	s := &Server{
		accounts:    make(map[string]*account),
		tokens:      make(map[string]string),
		resetTokens: make(map[string]string),
		carts:       make(map[string][]cartEntry),
		invites:     make(map[string]entity.Role),
		failures:    make(map[string]int),
		tokenTTL:    time.Hour,
	}
	s.router = s.routes()
	return s
}

// Start serves the fake on a random local port until the returned server is closed.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s)
}

// ServeHTTP records the request, applies injected failures and routes it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	status, fail := s.failures[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if fail {
		writeJSON(w, status, map[string]any{"success": false, "message": http.StatusText(status)})
		return
	}
	s.router.ServeHTTP(w, r)
}

// AddAccount registers a user and returns its identity.
func (s *Server) AddAccount(name, email, password string, role entity.Role) entity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(name, email, password, role)
}

func (s *Server) addAccountLocked(name, email, password string, role entity.Role) entity.Identity {
	a := &account{
		Identity: entity.Identity{
			ID:       uuid.NewString(),
			Name:     name,
			Email:    email,
			Role:     role,
			Status:   entity.StatusActive,
			JoinDate: time.Now().UTC().Format("2006-01-02"),
		},
		Password: password,
	}
	s.accounts[a.ID] = a
	return a.Identity
}

// IssueToken returns a valid bearer token for an account, as a login would.
func (s *Server) IssueToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(userID)
}

func (s *Server) issueTokenLocked(userID string) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(SigningKey)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: sign token: %v", err))
	}
	s.tokens[token] = userID
	return token
}

// AddProduct stores p (assigning an id when empty) and returns it.
func (s *Server) AddProduct(p entity.Product) entity.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	s.products = append(s.products, p)
	return p
}

// SetCart replaces a user's server-side cart.
func (s *Server) SetCart(userID string, lines map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]cartEntry, 0, len(lines))
	for _, p := range s.products {
		if q, ok := lines[p.ID]; ok {
			entries = append(entries, cartEntry{ProductID: p.ID, Quantity: q})
		}
	}
	s.carts[userID] = entries
}

// CartQuantities returns a user's server-side cart as product id → quantity.
func (s *Server) CartQuantities(userID string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, e := range s.carts[userID] {
		out[e.ProductID] = e.Quantity
	}
	return out
}

// AddOrder stores an order for userID, assigning an id when empty.
func (s *Server) AddOrder(userID string, o entity.Order) entity.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.orders = append(s.orders, storedOrder{UserID: userID, Order: o})
	return o
}

// Orders returns every stored order.
func (s *Server) Orders() []entity.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Order
	}
	return out
}

// Products returns the stored catalog.
func (s *Server) Products() []entity.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Account returns the stored identity for id.
func (s *Server) Account(id string) (entity.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return entity.Identity{}, false
	}
	return a.Identity, true
}

// Invites returns the invitations sent so far, by email.
func (s *Server) Invites() map[string]entity.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]entity.Role, len(s.invites))
	for k, v := range s.invites {
		out[k] = v
	}
	return out
}

// ResetTokenFor returns the last reset token issued for email.
func (s *Server) ResetTokenFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, id := range s.resetTokens {
		if a, ok := s.accounts[id]; ok && a.Email == email {
			return tok
		}
	}
	return ""
}

// SetStats sets the dashboard payload.
func (s *Server) SetStats(st entity.DashboardStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = st
}

// Fail makes every request to method+path answer status until Recover.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// Recover removes an injected failure.
func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

// Requests returns the requests received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests counts received requests matching method and path.
func (s *Server) CountRequests(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": status < 300, "message": msg})
}
