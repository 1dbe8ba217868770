// Package catalog keeps the product list and the admin product operations.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/core/ports"
)

// FeaturedCount is how many products the home page features.
const FeaturedCount = 4

var ErrNameRequired = errors.New("product name is required")

const (
	MsgFetchFailed  = "We’re having trouble loading the products. Refresh or try again later."
	MsgLoadFailed   = "Failed to load product."
	MsgCreated      = "Product created successfully!"
	MsgCreateFailed = "Failed to create product."
	MsgUpdated      = "Product updated successfully!"
	MsgUpdateFailed = "Failed to update product."
	MsgDeleted      = "Product deleted successfully!"
	MsgDeleteFailed = "Failed to delete product."
)

// ImageUpload is an image file sent with a product form.
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// ProductInput is the admin product form. When Image is set the file is
// uploaded and ImageURL is ignored.
type ProductInput struct {
	Name        string       `json:"name"`
	Category    string       `json:"category"`
	Description string       `json:"description,omitempty"`
	Price       float64      `json:"price"`
	Stock       int          `json:"stock"`
	Features    []string     `json:"features,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Image       *ImageUpload `json:"-"`
}

func (in ProductInput) product() entity.Product {
	features := in.Features
	if features == nil {
		features = []string{}
	}
	return entity.Product{
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Features:    features,
		ImageRef:    in.ImageURL,
	}
}

func (in ProductInput) form() *apiclient.Form {
	f := apiclient.NewForm().
		Add("name", in.Name).
		Add("category", in.Category).
		Add("description", in.Description).
		Add("price", strconv.FormatFloat(in.Price, 'f', -1, 64)).
		Add("stock", strconv.Itoa(in.Stock))
	for _, feat := range in.Features {
		f.Add("features", feat)
	}
	f.AddFile("image", in.Image.Filename, in.Image.Content)
	return f
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service is the catalog provider.
type Service struct {
	backend  ports.Backend
	loc      apiclient.Location
	session  ports.SessionReader
	notifier ports.Notifier
	logger   *slog.Logger

	mu       sync.RWMutex
	products []entity.Product
	loading  bool
}

// New returns a service with an empty list. session supplies the token for
// the admin operations.
func New(backend ports.Backend, loc apiclient.Location, session ports.SessionReader, notifier ports.Notifier, opts ...Option) *Service {
	s := &Service{
		backend:  backend,
		loc:      loc,
		session:  session,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll replaces the list with the backend's. On failure the list is
// cleared and the user notified.
func (s *Service) FetchAll(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	var products []entity.Product
	err := s.backend.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/api/products/"}, &products)
	if err != nil {
		s.logger.WarnContext(ctx, "fetching products failed", "error", err)
		s.mu.Lock()
		s.products = nil
		s.mu.Unlock()
		s.notifier.Error(MsgFetchFailed)
		return fmt.Errorf("fetch products: %w", err)
	}

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()
	return nil
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Loading reports whether FetchAll is in flight.
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Products returns a copy of the list.
func (s *Service) Products() []entity.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products)
}

// Featured returns the first FeaturedCount products.
func (s *Service) Featured() []entity.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products[:min(FeaturedCount, len(s.products))])
}

// Lookup finds id in the local list without a network call. The result
// shares no memory with the list.
func (s *Service) Lookup(id string) (entity.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(id)
	if i < 0 {
		return entity.Product{}, false
	}
	p := s.products[i]
	p.Features = slices.Clone(p.Features)
	return p, true
}

func (s *Service) index(id string) int {
	return slices.IndexFunc(s.products, func(p entity.Product) bool { return p.ID == id })
}

// Get loads one product from the backend. The list is left alone.
func (s *Service) Get(ctx context.Context, id string) (entity.Product, error) {
	var p entity.Product
	err := s.backend.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/api/products/" + id}, &p)
	if err != nil {
		s.notifier.Error(MsgLoadFailed)
		return entity.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// ResolveImage turns an image reference into a URL.
func (s *Service) ResolveImage(ref string) string {
	return s.loc.ResolveImage(ref)
}

// Create adds a product and appends the backend's record to the list.
func (s *Service) Create(ctx context.Context, in ProductInput) (entity.Product, error) {
	if err := validate(in, true); err != nil {
		s.notifier.Error(err.Error())
		return entity.Product{}, err
	}

	// fields missing from the response keep the submitted values
	p := in.product()
	if err := s.send(ctx, http.MethodPost, "/api/products/create/", in, &p); err != nil {
		s.notifier.Error(apiclient.Message(err, MsgCreateFailed))
		return entity.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.mu.Lock()
	s.products = append(s.products, p)
	s.mu.Unlock()

	s.notifier.Success(MsgCreated)
	return p, nil
}

// Update changes a product and merges the backend's answer over the local entry.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (entity.Product, error) {
	if err := validate(in, false); err != nil {
		s.notifier.Error(err.Error())
		return entity.Product{}, err
	}

	// the response is decoded over the local entry, so fields it omits keep
	// their current value
	p, ok := s.Lookup(id)
	if !ok {
		p = in.product()
	}
	if err := s.send(ctx, http.MethodPut, "/api/products/"+id+"/update/", in, &p); err != nil {
		s.notifier.Error(apiclient.Message(err, MsgUpdateFailed))
		return entity.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}
	p.ID = id

	s.mu.Lock()
	if i := s.index(id); i >= 0 {
		s.products[i] = p
	}
	s.mu.Unlock()

	s.notifier.Success(MsgUpdated)
	return p, nil
}

// Delete removes a product once the backend confirms.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodDelete,
		Path:   "/api/products/" + id + "/delete/",
		Token:  s.token(),
	}, nil)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, MsgDeleteFailed))
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	s.mu.Lock()
	s.products = slices.DeleteFunc(s.products, func(p entity.Product) bool { return p.ID == id })
	s.mu.Unlock()

	s.notifier.Success(MsgDeleted)
	return nil
}

// send posts in as JSON, or as multipart when it carries an image file.
func (s *Service) send(ctx context.Context, method, path string, in ProductInput, out *entity.Product) error {
	req := apiclient.Request{Method: method, Path: path, Token: s.token()}
	if in.Image != nil {
		return s.backend.DoMultipart(ctx, req, in.form(), out)
	}
	req.Body = in
	return s.backend.Do(ctx, req, out)
}

func (s *Service) token() string {
	if s.session == nil {
		return ""
	}
	cur, _ := s.session.Current()
	return cur.Token
}

func validate(in ProductInput, create bool) error {
	if create && strings.TrimSpace(in.Name) == "" {
		return ErrNameRequired
	}
	return in.product().Validate()
}
