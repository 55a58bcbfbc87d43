package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
)

var (
	// ErrKeyExists is returned by InsertRecord when the key is occupied.
	ErrKeyExists = errors.New("store: key already exists")

	// ErrKeyNotFound is returned by PutRecord when the key is empty.
	ErrKeyNotFound = errors.New("store: key not found")

	// ErrImmutableField is returned by PutRecord when the rewrite touches
	// anything besides dom_type.
	ErrImmutableField = errors.New("store: only dom_type may change")

	// ErrSeqGap is returned by AppendEvent when the event does not directly
	// follow the last logged seq.
	ErrSeqGap = errors.New("store: event seq does not follow log")
)

// Reader is the read side of a unit of work.
type Reader interface {
	// Counter returns the counter account and whether it exists.
	Counter() (ir.Counter, bool, error)

	// Record returns the record stored at key and whether it exists.
	Record(key layout.Key) (ir.Record, bool, error)

	// LastSeq returns the seq of the newest event, or 0 for an empty log.
	LastSeq() (int64, error)
}

// Tx is a unit of work. Writes become visible only when the enclosing
// Update returns nil.
type Tx interface {
	Reader

	// PutCounter writes the counter account.
	PutCounter(c ir.Counter) error

	// InsertRecord allocates the account at layout.DeriveKey(rec.ID).
	// Returns ErrKeyExists if it is occupied.
	InsertRecord(rec ir.Record) error

	// PutRecord rewrites an existing record in place. Its encoded size must not
	// change. Returns ErrKeyNotFound if the key is empty.
	PutRecord(rec ir.Record) error

	// AppendEvent appends ev to the log. ev.Seq must equal LastSeq()+1.
	AppendEvent(ev ir.Event) error
}

// Backend runs units of work against durable state.
type Backend interface {
	// Update runs fn as one serializable atomic unit.
	Update(ctx context.Context, fn func(Tx) error) error

	// View runs fn against a consistent snapshot.
	View(ctx context.Context, fn func(Reader) error) error

	// Events returns up to limit events with seq > afterSeq, ordered by seq.
	// A limit <= 0 means no limit.
	Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error)

	// Close releases the backend.
	Close() error
}

// checkRewrite allows old to be replaced by data only if the two encodings
// differ at most in the dom_type byte.
func checkRewrite(id uint64, old, data []byte, nameLen int) error {
	if len(old) != len(data) {
		return fmt.Errorf("write record %d: account size changed", id)
	}
	off := layout.DomTypeOffset(nameLen)
	if !bytes.Equal(old[:off], data[:off]) {
		return fmt.Errorf("write record %d: %w", id, ErrImmutableField)
	}
	return nil
}
