package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/domainreg/internal/events"
	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
	"github.com/roach88/domainreg/internal/store"
	"github.com/roach88/domainreg/internal/tracing"
)

// CreateRequest asks for a new domain owned by Owner.
// Signature is Owner's ed25519 signature over layout.CreateMessage.
type CreateRequest struct {
	Owner      ir.Pubkey
	Name       string
	DomainType uint8
	Signature  []byte
}

// Registry runs domain operations against a backend.
//
// Writers are serialized by mu so committed events reach the sink in seq
// order. The backend provides atomicity; mu provides ordering. Cache fills
// on a lookup miss also take mu, so a lookup never caches a record older
// than one a writer already cached.
type Registry struct {
	backend store.Backend

	mu         sync.Mutex
	logger     *slog.Logger
	sink       events.Sink
	flows      FlowTokenGenerator
	tracer     trace.Tracer
	cache      *recordCache
	cacheTTL   time.Duration
	maxNameLen int
}

// New returns a registry over backend. The caller keeps ownership of backend.
func New(backend store.Backend, opts ...Option) *Registry {
	r := &Registry{backend: backend}
	defaults(r)
	for _, opt := range opts {
		opt(r)
	}
	r.cache = newRecordCache(r.cacheTTL, r.logger)
	return r
}

// Initialize creates the counter with next_id 0. It is not idempotent: a
// second call fails with ALREADY_INITIALIZED and changes nothing.
func (r *Registry) Initialize(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, tracing.SpanInitialize)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.Update(ctx, func(tx store.Tx) error {
		c, ok, err := tx.Counter()
		if err != nil {
			return err
		}
		if ok && c.Initialized {
			return ErrAlreadyInitialized
		}
		return tx.PutCounter(ir.Counter{NextID: 0, Initialized: true})
	})
	if err != nil {
		return r.fail(span, "initialize", err)
	}

	r.logger.DebugContext(ctx, "counter initialized")
	return nil
}

// CreateDomain allocates the next id, stores the record at its derived key
// and emits DomainCreated. It returns the allocated id.
//
// Every call consumes one flow token, whether or not it succeeds.
func (r *Registry) CreateDomain(ctx context.Context, req CreateRequest) (uint64, error) {
	flow := r.flows.Generate()
	ctx, span := r.tracer.Start(ctx, tracing.SpanCreateDomain, trace.WithAttributes(
		attribute.String(tracing.AttrFlowToken, flow),
		attribute.Int(tracing.AttrDomainType, int(req.DomainType)),
		attribute.Int(tracing.AttrNameLen, len(req.Name)),
	))
	defer span.End()

	if err := r.validateName(req.Name); err != nil {
		return 0, r.fail(span, "create", err)
	}
	if err := verifyCreate(req); err != nil {
		return 0, r.fail(span, "create", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		rec ir.Record
		ev  ir.Event
	)
	err := r.backend.Update(ctx, func(tx store.Tx) error {
		id, err := allocateNextID(tx)
		if err != nil {
			return err
		}

		rec = ir.Record{ID: id, Owner: req.Owner, Name: req.Name, DomType: req.DomainType}
		if err := tx.InsertRecord(rec); err != nil {
			if errors.Is(err, store.ErrKeyExists) {
				return newError(CodeDuplicateRecord, "allocated key is occupied", idRef(id), err)
			}
			return err
		}

		ev, err = appendEvent(tx, flow, ir.DomainCreated{
			ID:      id,
			Owner:   req.Owner,
			Name:    req.Name,
			DomType: req.DomainType,
		})
		return err
	})
	if err != nil {
		return 0, r.fail(span, "create", err)
	}

	span.SetAttributes(attribute.Int64(tracing.AttrDomainID, int64(rec.ID)))
	r.cache.put(rec)
	r.logger.DebugContext(ctx, "domain created",
		"id", rec.ID,
		"key", layout.DeriveKey(rec.ID).String(),
		"seq", ev.Seq,
		"flow_token", flow,
	)
	r.publish(ctx, ev)
	return rec.ID, nil
}

// UpdateDomain sets dom_type of record id and emits DomainUpdated.
// Any caller may update any record; ownership is only checked at creation.
func (r *Registry) UpdateDomain(ctx context.Context, id uint64, domType uint8) error {
	flow := r.flows.Generate()
	ctx, span := r.tracer.Start(ctx, tracing.SpanUpdateDomain, trace.WithAttributes(
		attribute.String(tracing.AttrFlowToken, flow),
		attribute.Int64(tracing.AttrDomainID, int64(id)),
		attribute.Int(tracing.AttrDomainType, int(domType)),
	))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		rec ir.Record
		ev  ir.Event
	)
	err := r.backend.Update(ctx, func(tx store.Tx) error {
		var ok bool
		var err error
		rec, ok, err = tx.Record(layout.DeriveKey(id))
		if err != nil {
			return err
		}
		if !ok {
			return newError(CodeRecordNotFound, "no record at derived key", idRef(id), nil)
		}

		rec.DomType = domType
		if err := tx.PutRecord(rec); err != nil {
			return err
		}

		ev, err = appendEvent(tx, flow, ir.DomainUpdated{ID: id, DomType: domType})
		return err
	})
	if err != nil {
		return r.fail(span, "update", err)
	}

	r.cache.put(rec)
	r.logger.DebugContext(ctx, "domain updated", "id", id, "seq", ev.Seq, "flow_token", flow)
	r.publish(ctx, ev)
	return nil
}

// Record returns the record for id by point lookup of its derived key.
func (r *Registry) Record(ctx context.Context, id uint64) (ir.Record, error) {
	if rec, ok := r.cache.get(id); ok {
		return rec, nil
	}

	ctx, span := r.tracer.Start(ctx, tracing.SpanLookup, trace.WithAttributes(
		attribute.Int64(tracing.AttrDomainID, int64(id)),
	))
	defer span.End()

	// A miss fills the cache under the writer lock; otherwise a snapshot read
	// before an update could be cached after the update's own fill.
	if r.cache != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if rec, ok := r.cache.get(id); ok {
			return rec, nil
		}
	}

	var rec ir.Record
	err := r.backend.View(ctx, func(rd store.Reader) error {
		var ok bool
		var err error
		rec, ok, err = rd.Record(layout.DeriveKey(id))
		if err != nil {
			return err
		}
		if !ok {
			return newError(CodeRecordNotFound, "no record at derived key", idRef(id), nil)
		}
		return nil
	})
	if err != nil {
		return ir.Record{}, r.fail(span, "lookup", err)
	}
	r.cache.put(rec)
	return rec, nil
}

// Counter returns the counter state. ok is false before Initialize.
func (r *Registry) Counter(ctx context.Context) (c ir.Counter, ok bool, err error) {
	err = r.backend.View(ctx, func(rd store.Reader) error {
		c, ok, err = rd.Counter()
		return err
	})
	return c, ok, err
}

// Events returns up to limit committed events after seq afterSeq.
func (r *Registry) Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error) {
	return r.backend.Events(ctx, afterSeq, limit)
}

// Verify replays the event log against stored state.
func (r *Registry) Verify(ctx context.Context) (*store.ReplayReport, error) {
	return store.Verify(ctx, r.backend)
}

// InvalidateCache drops cached records, e.g. after another process wrote
// the store.
func (r *Registry) InvalidateCache() {
	r.cache.flush()
}

// allocateNextID returns the counter's next_id and stores next_id+1 in the
// same unit of work.
func allocateNextID(tx store.Tx) (uint64, error) {
	c, ok, err := tx.Counter()
	if err != nil {
		return 0, err
	}
	if !ok || !c.Initialized {
		return 0, ErrNotInitialized
	}
	if c.NextID == math.MaxUint64 {
		return 0, fmt.Errorf("id space exhausted")
	}

	id := c.NextID
	c.NextID++
	if err := tx.PutCounter(c); err != nil {
		return 0, err
	}
	return id, nil
}

// appendEvent stamps p with the next seq and appends it inside tx.
func appendEvent(tx store.Tx, flow string, p ir.Payload) (ir.Event, error) {
	last, err := tx.LastSeq()
	if err != nil {
		return ir.Event{}, err
	}
	ev, err := ir.NewEvent(last+1, flow, p)
	if err != nil {
		return ir.Event{}, err
	}
	if err := tx.AppendEvent(ev); err != nil {
		return ir.Event{}, err
	}
	return ev, nil
}

func (r *Registry) validateName(name string) error {
	if !utf8.ValidString(name) {
		return newError(CodeInvalidName, "name is not valid UTF-8", nil, nil)
	}
	if !norm.NFC.IsNormalString(name) {
		return newError(CodeInvalidName, "name is not in Unicode NFC form", nil, nil)
	}
	if len(name) > r.maxNameLen {
		return newError(CodeInvalidName, fmt.Sprintf("name is %d bytes, limit %d", len(name), r.maxNameLen), nil, nil)
	}
	return nil
}

// publish hands a committed event to the sink. Sink failures are logged and
// never surface to the caller: the mutation is already durable.
func (r *Registry) publish(ctx context.Context, ev ir.Event) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanPublish, trace.WithAttributes(
		attribute.Int64(tracing.AttrEventSeq, ev.Seq),
		attribute.String(tracing.AttrEventKind, string(ev.Kind)),
		attribute.String(tracing.AttrFlowToken, ev.FlowToken),
	))
	defer span.End()

	if err := r.sink.Publish(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.WarnContext(ctx, "event publish failed", "seq", ev.Seq, "kind", ev.Kind, "error", err)
	}
}

// fail records err on span and logs it. Duplicate records are logged at
// Error level because they mean the store is inconsistent.
func (r *Registry) fail(span trace.Span, op string, err error) error {
	code := CodeOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if code != "" {
		span.SetAttributes(attribute.String(tracing.AttrErrorCode, string(code)))
	}

	switch code {
	case CodeDuplicateRecord:
		r.logger.Error("registry invariant violated", "op", op, "error", err)
	case "":
		r.logger.Error("registry operation failed", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	default:
		r.logger.Debug("registry operation rejected", "op", op, "code", code)
	}
	return err
}
