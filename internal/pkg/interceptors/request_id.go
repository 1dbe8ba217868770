// Package interceptors propagates correlation metadata from an incoming
// gateway request to the outgoing REST backend calls it triggers.
package interceptors

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/campify/internal/pkg/interceptors/constants"
)

// WithRequestID stores a request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyRequestID, id)
}

// WithIdempotencyKey stores an idempotency key in ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyIdempotencyKey, key)
}

// RequestIDFromContext returns the request id stored by WithRequestID, falling
// back to the one chi's RequestID middleware assigned. Empty when neither is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok && id != "" {
		return id
	}
	return middleware.GetReqID(ctx)
}

// WithCallerIdempotencyKey records the idempotency key of an incoming
// gateway request. Outgoing calls do not carry it.
func WithCallerIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyCallerIdempotencyKey, key)
}

// CallerIdempotencyKey returns the key stored by WithCallerIdempotencyKey.
func CallerIdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(constants.ContextKeyCallerIdempotencyKey).(string)
	return key
}

// IdempotencyKeyFromContext returns the key stored by WithIdempotencyKey.
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(constants.ContextKeyIdempotencyKey).(string)
	return key
}

// Transport is an http.RoundTripper that copies the correlation metadata
// found in the request context onto outgoing headers.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base. A nil base means http.DefaultTransport.
func NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base}
}

// RoundTrip implements http.RoundTripper. Headers already set by the caller win.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	requestID := RequestIDFromContext(ctx)
	idempotencyKey := IdempotencyKeyFromContext(ctx)

	if requestID == "" && idempotencyKey == "" {
		return t.Base.RoundTrip(req)
	}

	out := req.Clone(ctx)
	if requestID != "" && out.Header.Get(constants.HeaderXRequestId) == "" {
		out.Header.Set(constants.HeaderXRequestId, requestID)
	}
	if idempotencyKey != "" && out.Header.Get(constants.HeaderXIdempotencyKey) == "" {
		out.Header.Set(constants.HeaderXIdempotencyKey, idempotencyKey)
	}
	return t.Base.RoundTrip(out)
}
