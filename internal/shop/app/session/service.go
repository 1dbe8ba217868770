// Package session owns the authenticated identity and its bearer token.
//
// The session is restored from durable storage on start, established by
// login or registration and torn down by logout. Other services subscribe
// to the login and logout transitions instead of polling.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/pkg/storage"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/core/ports"
)

var (
	ErrNotLoggedIn      = errors.New("session: not logged in")
	ErrPasswordRequired = errors.New("session: current and new password are required")
	ErrPasswordMismatch = errors.New("session: new password and confirmation do not match")
)

// User-facing messages.
const (
	MsgAdminOnly         = "Access denied. Only admins can log in."
	MsgLoginFailed       = "Login failed"
	MsgLoginSuccess      = "Login successful"
	MsgRegisterFailed    = "Registration failed"
	MsgRegisterSuccess   = "Registration successful"
	MsgLoginRequired     = "Please log in to continue."
	MsgProfileUpdated    = "Profile updated successfully!"
	MsgProfileFailed     = "Failed to update profile."
	MsgPasswordUpdated   = "Password updated successfully!"
	MsgPasswordFailed    = "Failed to update password"
	MsgPasswordMismatch  = "New passwords do not match."
	MsgPasswordRequired  = "Please fill in all password fields."
	MsgResetSent         = "Password reset link sent to your email."
	MsgResetSendFailed   = "Failed to send reset link."
	MsgResetDone         = "Password has been reset successfully."
	MsgResetFailed       = "Failed to reset password."
	MsgResetTokenMissing = "Invalid or missing reset token."
)

// Result is the outcome of a non-throwing session operation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LoginResult is the outcome of Login and of a Register that signs the user in.
type LoginResult struct {
	Success  bool             `json:"success"`
	Identity *entity.Identity `json:"user,omitempty"`
	Token    string           `json:"token,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the fields to change; nil fields are left alone.
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// PasswordChange is the change-password form.
type PasswordChange struct {
	Old     string `json:"old_password"`
	New     string `json:"new_password"`
	Confirm string `json:"confirm_password"`
}

// LoginFunc observes a login transition.
type LoginFunc func(ctx context.Context, s entity.Session)

// LogoutFunc observes a logout.
type LogoutFunc func(ctx context.Context)

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to check token expiry.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// AdminOnly restricts login and restore to admin identities.
func AdminOnly() Option {
	return func(s *Service) { s.adminOnly = true }
}

// Service is the session provider.
type Service struct {
	backend   ports.Backend
	store     storage.Store
	notifier  ports.Notifier
	clock     clock.Clock
	logger    *slog.Logger
	adminOnly bool

	mu       sync.RWMutex
	current  *entity.Session
	onLogin  []LoginFunc
	onLogout []LogoutFunc
}

// New returns a logged-out session service.
func New(backend ports.Backend, store storage.Store, notifier ports.Notifier, opts ...Option) *Service {
	s := &Service{
		backend:  backend,
		store:    store,
		notifier: notifier,
		clock:    clock.WallClock,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnLogin registers fn to run whenever an identity becomes present.
func (s *Service) OnLogin(fn LoginFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogin = append(s.onLogin, fn)
}

// OnLogout registers fn to run after every logout.
func (s *Service) OnLogout(fn LogoutFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Current returns the active session.
func (s *Service) Current() (entity.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return entity.Session{}, false
	}
	return *s.current, true
}

// Token returns the bearer token, or "" when logged out.
func (s *Service) Token() string {
	cur, _ := s.Current()
	return cur.Token
}

// Restore loads a persisted session. Inconsistent, expired or (in the admin
// build) non-admin sessions are purged from storage instead of restored.
func (s *Service) Restore(ctx context.Context) error {
	rawIdentity, err := s.store.Get(ctx, storage.KeyIdentity)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	token, err := s.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	if rawIdentity == "" && token == "" {
		return nil
	}

	reason := ""
	var identity entity.Identity
	switch {
	case rawIdentity == "" || token == "":
		reason = "identity and token must both be present"
	case json.Unmarshal([]byte(rawIdentity), &identity) != nil || identity.ID == "":
		reason = "stored identity is unreadable"
	case s.expired(token):
		reason = "token expired"
	case s.adminOnly && !identity.IsAdmin():
		reason = "identity is not an admin"
	}
	if reason != "" {
		s.logger.InfoContext(ctx, "discarding stored session", "reason", reason)
		if err := s.store.Delete(ctx, storage.KeyIdentity, storage.KeyToken); err != nil {
			return fmt.Errorf("purge session: %w", err)
		}
		return nil
	}

	s.establish(ctx, entity.Session{Identity: identity, Token: token})
	return nil
}

// expired reports whether token is a JWT whose exp claim has passed. Tokens
// that are not JWTs carry no expiry the client can read.
func (s *Service) expired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !s.clock.Now().Before(claims.ExpiresAt.Time)
}

type authResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Token   string           `json:"token"`
	User    *entity.Identity `json:"user"`
}

// Login posts credentials and establishes the session on success.
func (s *Service) Login(ctx context.Context, email, password string) LoginResult {
	var res authResponse
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/api/users/login",
		Body:   map[string]string{"email": email, "password": password},
	}, &res)
	if err != nil {
		s.logger.WarnContext(ctx, "login failed", "email", email, "error", err)
		return s.loginFailure(apiclient.Message(err, MsgLoginFailed))
	}
	if !res.Success || res.User == nil || res.Token == "" {
		return s.loginFailure(orDefault(res.Message, MsgLoginFailed))
	}
	if s.adminOnly && !res.User.IsAdmin() {
		return s.loginFailure(MsgAdminOnly)
	}

	sess := entity.Session{Identity: *res.User, Token: res.Token}
	s.persist(ctx, sess)
	s.establish(ctx, sess)

	msg := orDefault(res.Message, MsgLoginSuccess)
	s.notifier.Success(msg)
	return LoginResult{Success: true, Identity: &sess.Identity, Token: sess.Token, Message: msg}
}

func (s *Service) loginFailure(msg string) LoginResult {
	s.notifier.Error(msg)
	return LoginResult{Success: false, Message: msg}
}

// Register creates an account. When the backend answers with a user and a
// token the session is established as for a login.
func (s *Service) Register(ctx context.Context, in RegisterInput) LoginResult {
	var res struct {
		authResponse
		Errors map[string]any `json:"errors"`
	}
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/api/users/register",
		Body:   in,
	}, &res)
	if err != nil {
		s.logger.WarnContext(ctx, "registration failed", "email", in.Email, "error", err)
		return s.loginFailure(apiclient.Message(err, MsgRegisterFailed))
	}
	if !res.Success {
		msg := res.Message
		if len(res.Errors) > 0 {
			msg = apiclient.FlattenFieldErrors(res.Errors)
		}
		return s.loginFailure(orDefault(msg, MsgRegisterFailed))
	}

	msg := orDefault(res.Message, MsgRegisterSuccess)
	if res.User == nil || res.Token == "" || (s.adminOnly && !res.User.IsAdmin()) {
		s.notifier.Success(msg)
		return LoginResult{Success: true, Message: msg}
	}

	sess := entity.Session{Identity: *res.User, Token: res.Token}
	s.persist(ctx, sess)
	s.establish(ctx, sess)
	s.notifier.Success(msg)
	return LoginResult{Success: true, Identity: &sess.Identity, Token: sess.Token, Message: msg}
}

// Logout clears the session, the stored identity, token and cart cache,
// then notifies the logout observers.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	observers := append([]LogoutFunc(nil), s.onLogout...)
	s.mu.Unlock()

	err := s.store.Delete(ctx, storage.SessionKeys...)
	for _, fn := range observers {
		fn(ctx)
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// UpdateProfile changes the name and/or email of the current identity.
func (s *Service) UpdateProfile(ctx context.Context, upd ProfileUpdate) Result {
	cur, ok := s.Current()
	if !ok {
		s.notifier.Error(MsgLoginRequired)
		return Result{Message: MsgLoginRequired}
	}

	var res struct {
		Success bool             `json:"success"`
		Message string           `json:"message"`
		User    *entity.Identity `json:"user"`
	}
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodPut,
		Path:   "/api/users/" + cur.Identity.ID + "/update/",
		Token:  cur.Token,
		Body:   upd,
	}, &res)
	if err != nil || !res.Success || res.User == nil {
		msg := orDefault(res.Message, MsgProfileFailed)
		if err != nil {
			s.logger.WarnContext(ctx, "profile update failed", "user_id", cur.Identity.ID, "error", err)
			msg = apiclient.Message(err, MsgProfileFailed)
		}
		s.notifier.Error(msg)
		return Result{Message: msg}
	}

	identity := *res.User
	// fields the backend leaves out of its echo keep their previous value
	if identity.Role == "" {
		identity.Role = cur.Identity.Role
	}
	if identity.Status == "" {
		identity.Status = cur.Identity.Status
	}
	if identity.JoinDate == "" {
		identity.JoinDate = cur.Identity.JoinDate
	}

	s.mu.Lock()
	if s.current != nil && s.current.Identity.ID == cur.Identity.ID {
		s.current.Identity = identity
	}
	s.mu.Unlock()
	s.persist(ctx, entity.Session{Identity: identity, Token: cur.Token})

	s.notifier.Success(MsgProfileUpdated)
	return Result{Success: true, Message: MsgProfileUpdated}
}

// ChangePassword is the one operation that returns an error, so a caller
// chaining it after a profile update can stop on failure. The confirmation
// is checked locally before anything is sent.
func (s *Service) ChangePassword(ctx context.Context, pc PasswordChange) error {
	cur, ok := s.Current()
	if !ok {
		s.notifier.Error(MsgLoginRequired)
		return ErrNotLoggedIn
	}
	if pc.Old == "" || pc.New == "" {
		s.notifier.Error(MsgPasswordRequired)
		return ErrPasswordRequired
	}
	if pc.New != pc.Confirm {
		s.notifier.Error(MsgPasswordMismatch)
		return ErrPasswordMismatch
	}

	var res Result
	err := s.backend.Do(ctx, apiclient.Request{
		Method: http.MethodPut,
		Path:   "/api/users/" + cur.Identity.ID + "/update-password/",
		Token:  cur.Token,
		Body:   pc,
	}, &res)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, MsgPasswordFailed))
		return fmt.Errorf("change password: %w", err)
	}
	if !res.Success {
		msg := orDefault(res.Message, MsgPasswordFailed)
		s.notifier.Error(msg)
		return fmt.Errorf("change password: %s", msg)
	}

	s.notifier.Success(MsgPasswordUpdated)
	return nil
}

// RequestReset asks the backend to email a password reset link.
func (s *Service) RequestReset(ctx context.Context, email string) Result {
	return s.post(ctx, "/api/users/forgot-password/", map[string]string{"email": email}, MsgResetSent, MsgResetSendFailed)
}

// CompleteReset sets a new password using the token from the reset link.
func (s *Service) CompleteReset(ctx context.Context, token, password string) Result {
	if token == "" {
		s.notifier.Error(MsgResetTokenMissing)
		return Result{Message: MsgResetTokenMissing}
	}
	if password == "" {
		s.notifier.Error(MsgPasswordRequired)
		return Result{Message: MsgPasswordRequired}
	}
	return s.post(ctx, "/api/users/reset-password/", map[string]string{"token": token, "password": password}, MsgResetDone, MsgResetFailed)
}

func (s *Service) post(ctx context.Context, path string, body any, okMsg, failMsg string) Result {
	var res Result
	err := s.backend.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: path, Body: body}, &res)
	if err != nil {
		s.logger.WarnContext(ctx, "session request failed", "path", path, "error", err)
		msg := apiclient.Message(err, failMsg)
		s.notifier.Error(msg)
		return Result{Message: msg}
	}
	msg := orDefault(res.Message, okMsg)
	s.notifier.Success(msg)
	return Result{Success: true, Message: msg}
}

// establish installs sess and fires the login observers when the identity
// was absent (or belonged to someone else).
func (s *Service) establish(ctx context.Context, sess entity.Session) {
	s.mu.Lock()
	transition := s.current == nil || s.current.Identity.ID != sess.Identity.ID
	s.current = &sess
	observers := append([]LoginFunc(nil), s.onLogin...)
	s.mu.Unlock()

	if !transition {
		return
	}
	s.logger.InfoContext(ctx, "session established", "user_id", sess.Identity.ID, "role", sess.Identity.Role)
	for _, fn := range observers {
		fn(ctx, sess)
	}
}

// persist writes the session to storage. Storage is a cache, so failures
// are logged and the in-memory session stays authoritative.
func (s *Service) persist(ctx context.Context, sess entity.Session) {
	raw, err := json.Marshal(sess.Identity)
	if err == nil {
		err = s.store.Set(ctx, storage.KeyIdentity, string(raw))
	}
	if err == nil {
		err = s.store.Set(ctx, storage.KeyToken, sess.Token)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "persisting session failed", "user_id", sess.Identity.ID, "error", err)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
