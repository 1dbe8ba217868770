package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/campify/internal/pkg/interceptors"
	"github.com/jcmexdev/campify/internal/pkg/interceptors/constants"
)

// AttachCorrelation copies the chi request id into the context, where the
// backend client's transport picks it up, and records the caller's
// idempotency key for the checkout to reuse.
func AttachCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := interceptors.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		if key := r.Header.Get(constants.HeaderXIdempotencyKey); key != "" {
			ctx = interceptors.WithCallerIdempotencyKey(ctx, key)
		}
		w.Header().Set(constants.HeaderXRequestId, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
