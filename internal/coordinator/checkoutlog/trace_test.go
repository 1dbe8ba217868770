package checkoutlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewEntryWithoutSpan(t *testing.T) {
	e := NewEntry(context.Background(), "c1", StatusStarted, "", "", nil)
	assert.Empty(t, e.TraceID)
	assert.Empty(t, e.SpanID)
	assert.Equal(t, "[]", e.ErrorMessages)
}

func TestNewEntryCarriesSpanIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "checkout")
	defer span.End()

	e := NewEntry(ctx, "c1", StatusStepDone, "pay", "", []string{"x"})
	assert.Equal(t, span.SpanContext().TraceID().String(), e.TraceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), e.SpanID)
	assert.Len(t, e.TraceID, 32)
	assert.Equal(t, `["x"]`, e.ErrorMessages)
}
