// Package users backs the admin users directory.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/core/ports"
)

const (
	MsgFetchFailed   = "Unable to load users. Please try again."
	MsgDeleted       = "User deleted successfully."
	MsgDeleteFailed  = "Unable to delete user."
	MsgBanned        = "User has been banned."
	MsgUnbanned      = "User has been unbanned."
	MsgStatusFailed  = "Unable to update user status."
	MsgInvited       = "Invitation sent successfully."
	MsgInviteFailed  = "Failed to send invitation."
	MsgEmailRequired = "Email is required."
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service is the users directory provider.
type Service struct {
	backend  ports.Backend
	session  ports.SessionReader
	notifier ports.Notifier
	logger   *slog.Logger

	mu      sync.RWMutex
	users   []entity.Identity
	loading bool
}

func New(backend ports.Backend, session ports.SessionReader, notifier ports.Notifier, opts ...Option) *Service {
	s := &Service{backend: backend, session: session, notifier: notifier, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Users returns the loaded directory.
func (s *Service) Users() []entity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users)
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// HandleLogout forgets the loaded directory.
func (s *Service) HandleLogout(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = nil
	s.loading = false
}

// Fetch replaces the directory. Failure clears it and notifies.
func (s *Service) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	var users []entity.Identity
	err := s.backend.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/api/users/admin", Token: s.token()}, &users)

	s.mu.Lock()
	s.loading = false
	s.users = users
	s.mu.Unlock()

	if err != nil {
		s.logger.WarnContext(ctx, "fetching users failed", "error", err)
		s.notifier.Error(MsgFetchFailed)
		return fmt.Errorf("fetch users: %w", err)
	}
	return nil
}

// Delete removes a user account.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodDelete,
		Path:   "/api/users/admin/" + id + "/delete/",
		Token:  s.token(),
	}, nil)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, MsgDeleteFailed))
		return fmt.Errorf("delete user %s: %w", id, err)
	}

	s.mu.Lock()
	s.users = slices.DeleteFunc(s.users, func(u entity.Identity) bool { return u.ID == id })
	s.mu.Unlock()
	s.notifier.Success(MsgDeleted)
	return nil
}

// Ban marks a user Inactive.
func (s *Service) Ban(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, "ban", entity.StatusInactive, MsgBanned)
}

// Unban marks a user Active again.
func (s *Service) Unban(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, "unban", entity.StatusActive, MsgUnbanned)
}

func (s *Service) setStatus(ctx context.Context, id, op, status, okMsg string) error {
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodPut,
		Path:   "/api/users/admin/" + id + "/" + op + "/",
		Token:  s.token(),
	}, nil)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, MsgStatusFailed))
		return fmt.Errorf("%s user %s: %w", op, id, err)
	}

	s.mu.Lock()
	if i := slices.IndexFunc(s.users, func(u entity.Identity) bool { return u.ID == id }); i >= 0 {
		s.users[i].Status = status
	}
	s.mu.Unlock()
	s.notifier.Success(okMsg)
	return nil
}

// Invite emails an invitation. An empty role invites a regular user.
func (s *Service) Invite(ctx context.Context, email string, role entity.Role) error {
	email = strings.TrimSpace(email)
	if email == "" {
		s.notifier.Error(MsgEmailRequired)
		return fmt.Errorf("invite user: %s", MsgEmailRequired)
	}
	if role == "" {
		role = entity.RoleUser
	}

	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/api/users/invite-user/",
		Token:  s.token(),
		Body:   map[string]any{"email": email, "role": role},
	}, nil)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, MsgInviteFailed))
		return fmt.Errorf("invite user %s: %w", email, err)
	}
	s.notifier.Success(MsgInvited)
	return nil
}

func (s *Service) token() string {
	cur, _ := s.session.Current()
	return cur.Token
}
