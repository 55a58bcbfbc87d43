// Package httpapi exposes the registry over HTTP.
//
// Responses use a fixed envelope: {"status":"success","data":...} or
// {"status":"error","code":...,"message":...}. Error codes are the registry's.
package httpapi

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/domainreg/internal/events"
	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/registry"
)

// Handler serves registry operations.
type Handler struct {
	reg    *registry.Registry
	logger *slog.Logger
	broker *events.Broker[ir.Event]
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithBroker enables GET /v1/events/stream, fed by b. The registry must
// publish to b, typically through events.BrokerSink.
func WithBroker(b *events.Broker[ir.Event]) HandlerOption {
	return func(h *Handler) { h.broker = b }
}

// NewHandler returns a handler over reg. A nil logger discards output.
func NewHandler(reg *registry.Registry, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handler{reg: reg, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter registers the HTTP routes and middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(handler.logger))
	r.Use(loggingMiddleware(handler.logger))

	r.Get("/healthz", handler.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/initialize", handler.initialize)
		r.Post("/domains", handler.createDomain)
		r.Get("/domains/{id}", handler.getDomain)
		r.Patch("/domains/{id}", handler.updateDomain)
		r.Get("/events", handler.listEvents)
		if handler.broker != nil {
			r.Get("/events/stream", handler.streamEvents)
		}
	})
	return r
}
