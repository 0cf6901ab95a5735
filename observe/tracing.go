package observe

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/haitch/go-asyncstep"
)

const tracerName = "github.com/haitch/go-asyncstep/observe"

// TracingObserver opens one span per step, nested steps are children of the step they run in.
type TracingObserver struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[uuid.UUID]trace.Span
}

var _ asyncstep.Observer = &TracingObserver{}

func NewTracingObserver(tp trace.TracerProvider) *TracingObserver {
	return &TracingObserver{
		tracer: tp.Tracer(tracerName),
		spans:  make(map[uuid.UUID]trace.Span),
	}
}

func (to *TracingObserver) OnStart(event asyncstep.StepEvent) error {
	to.mu.Lock()
	defer to.mu.Unlock()

	ctx := context.Background()
	if parent, ok := to.spans[event.ParentID]; ok {
		ctx = trace.ContextWithSpan(ctx, parent)
	}

	attrs := []attribute.KeyValue{
		attribute.String("step.id", event.ID.String()),
		attribute.String("step.description", event.Description),
		attribute.Int("step.depth", event.Depth),
		attribute.Bool("step.composite", event.Composite),
	}
	if event.Subject != nil {
		attrs = append(attrs, attribute.String("step.subject", asyncstep.DescribeValue(event.Subject)))
	}

	_, span := to.tracer.Start(ctx, event.Description, trace.WithTimestamp(event.Started), trace.WithAttributes(attrs...))
	to.spans[event.ID] = span
	return nil
}

func (to *TracingObserver) OnSuccess(event asyncstep.StepEvent, _ any) error {
	span, err := to.span(event)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("step.attempts", int(event.Attempts)))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (to *TracingObserver) OnFailure(event asyncstep.StepEvent, stepErr error) error {
	span, err := to.span(event)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.Int("step.attempts", int(event.Attempts)),
		attribute.String("step.state", string(asyncstep.StateOf(stepErr))),
	)
	span.RecordError(stepErr)
	span.SetStatus(codes.Error, stepErr.Error())
	return nil
}

func (to *TracingObserver) OnFinish(event asyncstep.StepEvent) error {
	to.mu.Lock()
	span, ok := to.spans[event.ID]
	delete(to.spans, event.ID)
	to.mu.Unlock()

	if !ok {
		return fmt.Errorf("no span for step %q (%s)", event.Description, event.ID)
	}
	span.End(trace.WithTimestamp(event.Time))
	return nil
}

func (to *TracingObserver) span(event asyncstep.StepEvent) (trace.Span, error) {
	to.mu.Lock()
	defer to.mu.Unlock()

	span, ok := to.spans[event.ID]
	if !ok {
		return nil, fmt.Errorf("no span for step %q (%s)", event.Description, event.ID)
	}
	return span, nil
}
