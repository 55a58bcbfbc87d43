// Package testutil holds fixtures shared by tests of packages built on the
// registry.
package testutil

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/registry"
	"github.com/roach88/domainreg/internal/store"
)

// NewRegistry returns a registry over a fresh in-memory backend that is
// closed when t ends. Flow tokens default to "flow-1", "flow-2", ...
func NewRegistry(t testing.TB, opts ...registry.Option) *registry.Registry {
	t.Helper()
	b := store.NewMemory()
	t.Cleanup(func() { b.Close() })

	all := append([]registry.Option{
		registry.WithFlowTokens(registry.NewSequenceGenerator("flow")),
	}, opts...)
	return registry.New(b, all...)
}

// OwnerKey returns a deterministic owner key whose seed is b repeated.
func OwnerKey(t testing.TB, b byte) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := registry.KeyFromSeed(bytes.Repeat([]byte{b}, ed25519.SeedSize))
	require.NoError(t, err)
	return priv
}

// Recorder is an events.Sink that keeps every published event.
type Recorder struct {
	mu     sync.Mutex
	events []ir.Event
}

// Publish implements events.Sink.
func (r *Recorder) Publish(_ context.Context, ev ir.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Event(nil), r.events...)
}

// Kinds returns the kind of each recorded event in order.
func (r *Recorder) Kinds() []ir.EventKind {
	evs := r.Events()
	kinds := make([]ir.EventKind, len(evs))
	for i, ev := range evs {
		kinds[i] = ev.Kind
	}
	return kinds
}
