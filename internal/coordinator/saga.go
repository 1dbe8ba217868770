// Package coordinator runs the checkout saga: a sequence of steps where a
// failure compensates every step that already succeeded, newest first.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jcmexdev/campify/internal/coordinator/checkoutlog"
)

// Step is a single unit of work in the saga with its compensating action.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLog records every transition in repo.
func WithLog(repo checkoutlog.Repository) Option {
	return func(o *Orchestrator) { o.log = repo }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPayload stores payload with the STARTED entry.
func WithPayload(payload string) Option {
	return func(o *Orchestrator) { o.payload = payload }
}

// Orchestrator executes the steps of one checkout.
type Orchestrator struct {
	id      string
	steps   []Step
	payload string
	log     checkoutlog.Repository
	logger  *slog.Logger
}

// NewOrchestrator prepares a saga identified by id.
func NewOrchestrator(id string, steps []Step, opts ...Option) *Orchestrator {
	o := &Orchestrator{id: id, steps: steps, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start runs the steps in order. When one fails, the steps that completed
// are compensated in reverse order and the step error is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, span := otel.Tracer("campify/coordinator").Start(ctx, "checkout.saga")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.id", o.id))

	o.record(ctx, checkoutlog.StatusStarted, "", o.payload, nil)

	var done []Step
	for _, step := range o.steps {
		o.logger.DebugContext(ctx, "executing checkout step", "checkout_id", o.id, "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			o.logger.WarnContext(ctx, "checkout step failed, compensating",
				"checkout_id", o.id, "step", step.Name(), "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			errs := []string{fmt.Sprintf("step %s failed: %v", step.Name(), err)}
			o.record(ctx, checkoutlog.StatusCompensating, step.Name(), "", errs)
			errs = append(errs, o.rollback(ctx, done)...)
			o.record(ctx, checkoutlog.StatusFailed, step.Name(), "", errs)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
		done = append(done, step)
		o.record(ctx, checkoutlog.StatusStepDone, step.Name(), "", nil)
	}

	o.record(ctx, checkoutlog.StatusCompleted, "", "", nil)
	o.logger.InfoContext(ctx, "checkout completed", "checkout_id", o.id)
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step) []string {
	var errs []string
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		o.logger.InfoContext(ctx, "compensating checkout step", "checkout_id", o.id, "step", step.Name())
		if err := step.Compensate(ctx); err != nil {
			o.logger.ErrorContext(ctx, "compensation failed",
				"checkout_id", o.id, "step", step.Name(), "error", err)
			errs = append(errs, fmt.Sprintf("compensation of %s failed: %v", step.Name(), err))
		}
	}
	return errs
}

// record writes to the checkout log. Log failures never fail the saga.
func (o *Orchestrator) record(ctx context.Context, status checkoutlog.Status, step, payload string, errs []string) {
	if o.log == nil {
		return
	}
	entry := checkoutlog.NewEntry(ctx, o.id, status, step, payload, errs)
	if err := o.log.Save(ctx, entry); err != nil {
		o.logger.WarnContext(ctx, "checkout log write failed", "checkout_id", o.id, "status", status, "error", err)
	}
}
