package cmd

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	sim "github.com/inference-sim/os-sim/sim"
)

const tracerName = "github.com/inference-sim/os-sim"

// tickTracer emits one span per simulated cycle.
type tickTracer struct {
	provider *sdktrace.TracerProvider // nil when disabled
	tracer   oteltrace.Tracer
	out      io.Closer
}

// newTickTracer writes spans as JSON to path. An empty path disables tracing.
func newTickTracer(path string) (*tickTracer, error) {
	if path == "" {
		return &tickTracer{tracer: noop.NewTracerProvider().Tracer(tracerName)}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "creating span exporter")
	}
	t := newTickTracerWithExporter(exporter)
	t.out = f
	otel.SetTracerProvider(t.provider)
	return t, nil
}

// newTickTracerWithExporter exports spans synchronously through exporter.
func newTickTracerWithExporter(exporter sdktrace.SpanExporter) *tickTracer {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "ossim"),
		)),
	)
	return &tickTracer{provider: tp, tracer: tp.Tracer(tracerName)}
}

func (t *tickTracer) begin(ctx context.Context, cycle int64) oteltrace.Span {
	_, span := t.tracer.Start(ctx, "cycle", oteltrace.WithAttributes(attribute.Int64("sim.cycle", cycle)))
	return span
}

// end records the outcome of a cycle on span and ends it.
func (t *tickTracer) end(span oteltrace.Span, s *sim.Simulation, report sim.TickReport) {
	q := s.QueueLengths()
	running := int64(sim.NoProcess)
	if pid, ok := s.Sched.Running(); ok {
		running = int64(pid)
	}
	span.SetAttributes(
		attribute.Int("queue.new", q.New),
		attribute.Int("queue.ready", q.Ready),
		attribute.Int("queue.blocked", q.Blocked),
		attribute.Int("queue.terminated", q.Terminated),
		attribute.Int64("sim.running_pid", running),
		attribute.Int64("memory.used", int64(s.Arena.UsedMemory())),
	)
	for _, pid := range report.Unblocked {
		span.AddEvent("unblock", oteltrace.WithAttributes(attribute.Int64("pid", int64(pid))))
	}
	for _, e := range []struct {
		name string
		pid  sim.PID
	}{
		{"complete", report.Completed},
		{"preempt", report.Preempted},
		{"block", report.Blocked},
		{"dispatch", report.Dispatched},
	} {
		if e.pid != sim.NoProcess {
			span.AddEvent(e.name, oteltrace.WithAttributes(attribute.Int64("pid", int64(e.pid))))
		}
	}
	span.End()
}

// Shutdown flushes pending spans and closes the output file.
func (t *tickTracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	err := t.provider.Shutdown(ctx)
	if t.out != nil {
		if cerr := t.out.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
