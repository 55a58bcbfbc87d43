package registry

import (
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/domainreg/internal/events"
	"github.com/roach88/domainreg/internal/layout"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithSink sets where committed events are published.
func WithSink(sink events.Sink) Option {
	return func(r *Registry) { r.sink = sink }
}

// WithFlowTokens sets the flow token generator. Defaults to UUIDv7.
func WithFlowTokens(gen FlowTokenGenerator) Option {
	return func(r *Registry) { r.flows = gen }
}

// WithTracer sets the tracer. Defaults to a no-op tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) { r.tracer = tracer }
}

// WithCacheTTL enables the record read cache. Zero disables it.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.cacheTTL = ttl }
}

// WithMaxNameLen lowers the name limit below layout.MaxNameLen.
// Values outside (0, layout.MaxNameLen] are ignored.
func WithMaxNameLen(n int) Option {
	return func(r *Registry) {
		if n > 0 && n <= layout.MaxNameLen {
			r.maxNameLen = n
		}
	}
}

func defaults(r *Registry) {
	r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	r.sink = events.Discard
	r.flows = UUIDv7Generator{}
	r.tracer = noop.NewTracerProvider().Tracer("domainreg")
	r.maxNameLen = layout.MaxNameLen
}
