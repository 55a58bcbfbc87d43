package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/domainreg/internal/ir"
)

// Sink receives committed events in seq order.
type Sink interface {
	Publish(ctx context.Context, ev ir.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev ir.Event) error

func (f SinkFunc) Publish(ctx context.Context, ev ir.Event) error {
	return f(ctx, ev)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, ir.Event) error { return nil })

// MultiSink publishes to every sink and joins their errors.
// Every sink is attempted even when an earlier one fails.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, ev ir.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each event to a structured logger at Info level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, ev ir.Event) error {
	s.Logger.LogAttrs(ctx, slog.LevelInfo, "event",
		slog.Int64("seq", ev.Seq),
		slog.String("kind", string(ev.Kind)),
		slog.Uint64("domain_id", ev.Payload.DomainID()),
		slog.String("flow_token", ev.FlowToken),
		slog.String("event_id", ev.ID),
	)
	return nil
}
