package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/domainreg/internal/store"
	"github.com/roach88/domainreg/internal/tracing"
)

func newTracedRegistry(t *testing.T) (*Registry, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })
	return New(store.NewMemory(), WithTracer(tp.Tracer("test"))), sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_CreateSpans(t *testing.T) {
	reg, sr := newTracedRegistry(t)
	ctx := t.Context()

	require.NoError(t, reg.Initialize(ctx))
	_, err := reg.CreateDomain(ctx, NewCreateRequest(testKey(t, 1), "alpha", 3))
	require.NoError(t, err)

	spans := sr.Ended()
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{tracing.SpanInitialize, tracing.SpanPublish, tracing.SpanCreateDomain}, names)

	create := spans[2]
	v, ok := spanAttr(create, tracing.AttrDomainID)
	require.True(t, ok)
	assert.Equal(t, int64(0), v.AsInt64())
	v, ok = spanAttr(create, tracing.AttrNameLen)
	require.True(t, ok)
	assert.Equal(t, int64(5), v.AsInt64())

	publish := spans[1]
	assert.Equal(t, create.SpanContext().SpanID(), publish.Parent().SpanID(), "publish is a child of create")
}

func TestTracing_ErrorStatus(t *testing.T) {
	reg, sr := newTracedRegistry(t)

	err := reg.UpdateDomain(t.Context(), 42, 1)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	v, ok := spanAttr(spans[0], tracing.AttrErrorCode)
	require.True(t, ok)
	assert.Equal(t, string(CodeRecordNotFound), v.AsString())
}

func TestTracing_CacheHitSkipsLookupSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	reg := New(store.NewMemory(), WithTracer(tp.Tracer("test")), WithCacheTTL(time.Minute))
	ctx := t.Context()

	require.NoError(t, reg.Initialize(ctx))
	id, err := reg.CreateDomain(ctx, NewCreateRequest(testKey(t, 1), "alpha", 3))
	require.NoError(t, err)

	_, err = reg.Record(ctx, id)
	require.NoError(t, err)
	for _, s := range sr.Ended() {
		assert.NotEqual(t, tracing.SpanLookup, s.Name(), "record was cached on create")
	}

	reg.InvalidateCache()
	_, err = reg.Record(ctx, id)
	require.NoError(t, err)
	spans := sr.Ended()
	assert.Equal(t, tracing.SpanLookup, spans[len(spans)-1].Name())
}
