package checkoutlog

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	// TraceID is the W3C trace ID (32 lowercase hex chars).
	// Empty string if no active span is found in the context.
	TraceID string

	// SpanID is the W3C span ID (16 lowercase hex chars).
	SpanID string
}

// ExtractTraceInfo reads the active OpenTelemetry span from ctx and returns
// its trace_id and span_id as hex strings.
//
// How it works:
//  1. otelhttp.NewHandler (mounted by the gateway router) extracts the W3C
//     traceparent header from the incoming request and starts a server span.
//  2. The orchestrator starts a "checkout.saga" child span and passes its
//     context to every log write.
//  3. trace.SpanFromContext(ctx) retrieves that span and SpanContext()
//     yields the TraceID and SpanID.
//  4. IsValid() guards against the zero value (no active span).
//
// Without an active span (e.g. in unit tests) both fields are empty strings.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(), // 32 hex chars, e.g. "4bf92f3577b34da6a3ce929d0e0e4736"
		SpanID:  sc.SpanID().String(),  // 16 hex chars, e.g. "00f067aa0ba902b7"
	}
}

// NewEntry builds a log entry stamped with the trace of ctx and the current
// UTC time. errs is stored as a JSON array; nil becomes "[]".
//
// Usage in the orchestrator:
//
//	entry := checkoutlog.NewEntry(ctx, key, checkoutlog.StatusStepDone, "Payment_Charge_Step", "", nil)
//	_ = repo.Save(ctx, entry)
func NewEntry(ctx context.Context, checkoutID string, status Status, step, payload string, errs []string) *Entry {
	ti := ExtractTraceInfo(ctx)

	errJSON := "[]"
	if len(errs) > 0 {
		if b, err := json.Marshal(errs); err == nil {
			errJSON = string(b)
		}
	}

	return &Entry{
		CheckoutID:    checkoutID,
		Status:        status,
		CurrentStep:   step,
		Payload:       payload,
		ErrorMessages: errJSON,
		TraceID:       ti.TraceID,
		SpanID:        ti.SpanID,
		UpdatedAt:     time.Now().UTC(),
	}
}
