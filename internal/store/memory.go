package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
)

// Memory is an in-process backend. Accounts are kept as layout bytes so both
// backends share one encoding.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string][]byte
	events   []eventRow
	closed   bool
}

var _ Backend = (*Memory)(nil)

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string][]byte)}
}

// Update runs fn against a staging overlay under the writer lock. The overlay
// is merged only if fn returns nil and ctx is still live.
func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}

	tx := &memTx{base: m, staged: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for addr, data := range tx.staged {
		m.accounts[addr] = data
	}
	m.events = append(m.events, tx.appended...)
	return nil
}

// View runs fn under the read lock.
func (m *Memory) View(ctx context.Context, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errClosed
	}
	return fn(&memTx{base: m})
}

// Events returns events with seq > afterSeq in seq order.
func (m *Memory) Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}

	// seq n lives at index n-1.
	start := max(afterSeq, 0)
	if start >= int64(len(m.events)) {
		return nil, nil
	}
	rows := m.events[start:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	events := make([]ir.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// Close marks the backend closed. Later calls fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var errClosed = errors.New("store: backend closed")

// memTx reads through staged writes to the committed maps.
// A nil staged map marks a read-only view.
type memTx struct {
	base     *Memory
	staged   map[string][]byte
	appended []eventRow
}

func (t *memTx) account(address []byte) ([]byte, bool) {
	if data, ok := t.staged[string(address)]; ok {
		return data, true
	}
	data, ok := t.base.accounts[string(address)]
	return data, ok
}

func (t *memTx) put(address []byte, data []byte) error {
	if t.staged == nil {
		return fmt.Errorf("store: write in read-only view")
	}
	t.staged[string(address)] = data
	return nil
}

func (t *memTx) Counter() (ir.Counter, bool, error) {
	data, ok := t.account(counterAddress)
	if !ok {
		return ir.Counter{}, false, nil
	}
	c, err := layout.DecodeCounter(data)
	if err != nil {
		return ir.Counter{}, false, err
	}
	return c, true, nil
}

func (t *memTx) Record(key layout.Key) (ir.Record, bool, error) {
	data, ok := t.account(key[:])
	if !ok {
		return ir.Record{}, false, nil
	}
	rec, err := layout.DecodeRecord(key, data)
	if err != nil {
		return ir.Record{}, false, err
	}
	return rec, true, nil
}

func (t *memTx) LastSeq() (int64, error) {
	return int64(len(t.base.events) + len(t.appended)), nil
}

func (t *memTx) PutCounter(c ir.Counter) error {
	return t.put(counterAddress, layout.EncodeCounter(c))
}

func (t *memTx) InsertRecord(rec ir.Record) error {
	data, err := layout.EncodeRecord(rec)
	if err != nil {
		return err
	}
	key := layout.DeriveKey(rec.ID)
	if _, ok := t.account(key[:]); ok {
		return fmt.Errorf("insert record %d at %s: %w", rec.ID, key, ErrKeyExists)
	}
	return t.put(key[:], data)
}

func (t *memTx) PutRecord(rec ir.Record) error {
	data, err := layout.EncodeRecord(rec)
	if err != nil {
		return err
	}
	key := layout.DeriveKey(rec.ID)
	old, ok := t.account(key[:])
	if !ok {
		return fmt.Errorf("write record %d at %s: %w", rec.ID, key, ErrKeyNotFound)
	}
	if err := checkRewrite(rec.ID, old, data, len(rec.Name)); err != nil {
		return err
	}
	return t.put(key[:], data)
}

func (t *memTx) AppendEvent(ev ir.Event) error {
	if t.staged == nil {
		return fmt.Errorf("store: write in read-only view")
	}
	last, _ := t.LastSeq()
	if ev.Seq != last+1 {
		return fmt.Errorf("append seq %d after %d: %w", ev.Seq, last, ErrSeqGap)
	}
	row, err := toEventRow(ev)
	if err != nil {
		return err
	}
	t.appended = append(t.appended, row)
	return nil
}
