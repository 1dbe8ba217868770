package interceptors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/campify/internal/pkg/interceptors/constants"
)

func TestTransportCopiesContextMetadata(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(nil)}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithIdempotencyKey(ctx, "idem-1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-1", got.Get(constants.HeaderXRequestId))
	assert.Equal(t, "idem-1", got.Get(constants.HeaderXIdempotencyKey))
}

func TestTransportKeepsExplicitHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(nil)}
	req, err := http.NewRequestWithContext(WithRequestID(context.Background(), "from-ctx"), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(constants.HeaderXRequestId, "explicit")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "explicit", got.Get(constants.HeaderXRequestId))
	assert.Empty(t, got.Get(constants.HeaderXIdempotencyKey))
}

func TestTransportDoesNotForwardCallerKey(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(nil)}
	ctx := WithCallerIdempotencyKey(context.Background(), "caller-1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, got.Get(constants.HeaderXIdempotencyKey))
	assert.Equal(t, "caller-1", CallerIdempotencyKey(ctx))
	assert.Empty(t, IdempotencyKeyFromContext(ctx))
}

func TestRequestIDFallsBackToChi(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "chi-id")
	assert.Equal(t, "chi-id", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
