// Package stats loads the admin dashboard figures.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/core/ports"
)

const MsgFetchFailed = "Failed to load dashboard statistics."

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	backend  ports.Backend
	session  ports.SessionReader
	notifier ports.Notifier
	logger   *slog.Logger

	mu      sync.RWMutex
	stats   *entity.DashboardStats
	loading bool
}

func New(backend ports.Backend, session ports.SessionReader, notifier ports.Notifier, opts ...Option) *Service {
	s := &Service{backend: backend, session: session, notifier: notifier, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the last loaded figures.
func (s *Service) Stats() (entity.DashboardStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil {
		return entity.DashboardStats{}, false
	}
	return *s.stats, true
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Fetch reloads the dashboard. Failure clears the figures; notify controls
// whether the user is told.
func (s *Service) Fetch(ctx context.Context, notify bool) error {
	cur, _ := s.session.Current()

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	var st entity.DashboardStats
	err := s.backend.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/api/stats/dashboard/", Token: cur.Token}, &st)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.stats = nil
		s.logger.WarnContext(ctx, "fetching dashboard failed", "error", err)
		if notify {
			s.notifier.Error(MsgFetchFailed)
		}
		return fmt.Errorf("fetch dashboard: %w", err)
	}
	s.stats = &st
	return nil
}

// HandleLogout forgets the figures of the signed-out administrator.
func (s *Service) HandleLogout(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = nil
	s.loading = false
}
