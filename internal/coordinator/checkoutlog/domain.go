// Package checkoutlog records every transition of a checkout saga.
//
// Each row is an immutable event. Reading the rows of one checkout in order
// shows how far it got, which step failed and whether the payment was
// refunded; the trace_id column links the row to the distributed trace.
package checkoutlog

import "time"

// Status is the lifecycle state of a checkout.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

// Entry is one row of the checkout log.
type Entry struct {
	// CheckoutID is the idempotency key of the checkout attempt.
	// Retries of the same checkout share it, so their rows group together.
	CheckoutID string

	// Status is the lifecycle state at the time the row was written.
	Status Status

	// CurrentStep is the step that just ran, failed or was compensated.
	CurrentStep string

	// Payload is the JSON order submitted; only written on STARTED.
	Payload string

	// ErrorMessages is a JSON array of failure details, e.g.
	// ["Order_Create_Step: backend returned 500", "compensate Payment_Charge_Step: ..."]
	ErrorMessages string

	// TraceID is the W3C trace ID of the span active when the row was written.
	// It leads from a log row to the full distributed trace.
	TraceID string

	// SpanID is the W3C span ID of that span.
	SpanID string

	// UpdatedAt is the UTC time the row was written.
	UpdatedAt time.Time
}
