// Package ports declares what the shop services need from the outside world.
package ports

import (
	"context"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/pkg/notify"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
)

// Backend is the REST backend as seen by the services.
type Backend interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
	DoMultipart(ctx context.Context, req apiclient.Request, form *apiclient.Form, out any) error
}

// Notifier reports operation outcomes to the user.
type Notifier interface {
	Success(message string, opts ...notify.Option) string
	Error(message string, opts ...notify.Option) string
	Info(message string, opts ...notify.Option) string
}

// SessionReader exposes the current session to the other services.
type SessionReader interface {
	// Current returns the active session; ok is false when logged out.
	Current() (s entity.Session, ok bool)
}
