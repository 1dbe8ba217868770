package constants

// contextKey is an unexported type for context keys in this package.
// Using a custom type prevents collisions with keys from other packages
// that might use the same underlying string value.
type contextKey string

const (
	HeaderXRequestId      = "X-Request-Id"
	HeaderXIdempotencyKey = "X-Idempotency-Key"

	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID contextKey = "x-request-id"
	// ContextKeyIdempotencyKey is the context key for the idempotency key.
	ContextKeyIdempotencyKey contextKey = "x-idempotency-key"
	// ContextKeyCallerIdempotencyKey holds the key a gateway caller sent. It
	// is not forwarded on its own; the checkout reuses it explicitly.
	ContextKeyCallerIdempotencyKey contextKey = "caller-idempotency-key"
)
