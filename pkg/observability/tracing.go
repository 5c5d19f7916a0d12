package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/trackpool"

// Tracer returns a tracer from the global provider.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationName
	}
	return otel.Tracer(name)
}

// StepTracer wraps a unit of work in a span and records its outcome.
type StepTracer struct {
	component string
	tracer    trace.Tracer
}

// NewStepTracer creates a tracer whose spans are named component.operation.
func NewStepTracer(component string, t trace.Tracer) *StepTracer {
	if t == nil {
		t = Tracer("")
	}
	return &StepTracer{component: component, tracer: t}
}

// Trace runs fn inside a span. The span is marked failed when fn returns an
// error.
func (st *StepTracer) Trace(ctx context.Context, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := st.tracer.Start(ctx, st.component+"."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}
