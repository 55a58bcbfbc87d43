package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
)

var testOwner = ir.Pubkey{0x11, 0x11, 0x11, 0x11}

// backends runs fn against every Backend implementation.
func backends(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Run("memory", func(t *testing.T) {
		m := NewMemory()
		t.Cleanup(func() { m.Close() })
		fn(t, m)
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, createTestStore(t))
	})
}

// mustSeed initializes the counter and creates record 0 named "alpha".
func mustSeed(t *testing.T, b Backend) {
	t.Helper()
	err := b.Update(context.Background(), func(tx Tx) error {
		if err := tx.PutCounter(ir.Counter{NextID: 1, Initialized: true}); err != nil {
			return err
		}
		rec := ir.Record{ID: 0, Owner: testOwner, Name: "alpha", DomType: 3}
		if err := tx.InsertRecord(rec); err != nil {
			return err
		}
		ev, err := ir.NewEvent(1, "flow-1", ir.DomainCreated{ID: 0, Owner: testOwner, Name: "alpha", DomType: 3})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ev)
	})
	require.NoError(t, err)
}

func TestBackend_EmptyState(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		err := b.View(t.Context(), func(r Reader) error {
			_, ok, err := r.Counter()
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = r.Record(layout.DeriveKey(0))
			require.NoError(t, err)
			assert.False(t, ok)

			seq, err := r.LastSeq()
			require.NoError(t, err)
			assert.Equal(t, int64(0), seq)
			return nil
		})
		require.NoError(t, err)

		events, err := b.Events(t.Context(), 0, 0)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestBackend_CommitVisible(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)

		err := b.View(t.Context(), func(r Reader) error {
			c, ok, err := r.Counter()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, ir.Counter{NextID: 1, Initialized: true}, c)

			rec, ok, err := r.Record(layout.DeriveKey(0))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, ir.Record{ID: 0, Owner: testOwner, Name: "alpha", DomType: 3}, rec)
			return nil
		})
		require.NoError(t, err)

		events, err := b.Events(t.Context(), 0, 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, int64(1), events[0].Seq)
		assert.Equal(t, "flow-1", events[0].FlowToken)
		assert.Equal(t, ir.KindDomainCreated, events[0].Kind)
		assert.Equal(t, ir.MustEventID(1, events[0].Payload), events[0].ID)
	})
}

func TestBackend_RollbackOnError(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)

		boom := assert.AnError
		err := b.Update(t.Context(), func(tx Tx) error {
			require.NoError(t, tx.PutCounter(ir.Counter{NextID: 2, Initialized: true}))
			require.NoError(t, tx.InsertRecord(ir.Record{ID: 1, Owner: testOwner, Name: "beta"}))
			ev, err := ir.NewEvent(2, "flow-2", ir.DomainCreated{ID: 1, Owner: testOwner, Name: "beta"})
			require.NoError(t, err)
			require.NoError(t, tx.AppendEvent(ev))
			return boom
		})
		require.ErrorIs(t, err, boom)

		assertUnchanged(t, b)
	})
}

func TestBackend_RollbackOnCancel(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)

		ctx, cancel := context.WithCancel(t.Context())
		err := b.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.PutCounter(ir.Counter{NextID: 2, Initialized: true}))
			cancel()
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)

		assertUnchanged(t, b)
	})
}

func assertUnchanged(t *testing.T, b Backend) {
	t.Helper()
	err := b.View(t.Context(), func(r Reader) error {
		c, _, err := r.Counter()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), c.NextID)

		_, ok, err := r.Record(layout.DeriveKey(1))
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	events, err := b.Events(t.Context(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestBackend_InsertRecordKeyExists(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)

		err := b.Update(t.Context(), func(tx Tx) error {
			return tx.InsertRecord(ir.Record{ID: 0, Owner: testOwner, Name: "other"})
		})
		require.ErrorIs(t, err, ErrKeyExists)
	})
}

func TestBackend_PutRecord(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)

		err := b.Update(t.Context(), func(tx Tx) error {
			return tx.PutRecord(ir.Record{ID: 0, Owner: testOwner, Name: "alpha", DomType: 9})
		})
		require.NoError(t, err)

		err = b.View(t.Context(), func(r Reader) error {
			rec, ok, err := r.Record(layout.DeriveKey(0))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, uint8(9), rec.DomType)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestBackend_PutRecordErrors(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)

		err := b.Update(t.Context(), func(tx Tx) error {
			return tx.PutRecord(ir.Record{ID: 7, Owner: testOwner, Name: "alpha"})
		})
		require.ErrorIs(t, err, ErrKeyNotFound)

		err = b.Update(t.Context(), func(tx Tx) error {
			return tx.PutRecord(ir.Record{ID: 0, Owner: testOwner, Name: "alphabet"})
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "size changed")

		// Same length, different name.
		err = b.Update(t.Context(), func(tx Tx) error {
			return tx.PutRecord(ir.Record{ID: 0, Owner: testOwner, Name: "alphz", DomType: 1})
		})
		require.ErrorIs(t, err, ErrImmutableField)

		var other ir.Pubkey
		other[0] = 0xff
		err = b.Update(t.Context(), func(tx Tx) error {
			return tx.PutRecord(ir.Record{ID: 0, Owner: other, Name: "alpha", DomType: 1})
		})
		require.ErrorIs(t, err, ErrImmutableField)
	})
}

func TestBackend_AppendEventSeqGap(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)

		for _, seq := range []int64{1, 3} {
			err := b.Update(t.Context(), func(tx Tx) error {
				ev, err := ir.NewEvent(seq, "flow", ir.DomainUpdated{ID: 0, DomType: 1})
				if err != nil {
					return err
				}
				return tx.AppendEvent(ev)
			})
			require.ErrorIs(t, err, ErrSeqGap, "seq %d", seq)
		}
	})
}

func TestBackend_LastSeqSeesStagedEvents(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)

		err := b.Update(t.Context(), func(tx Tx) error {
			for seq := int64(2); seq <= 3; seq++ {
				ev, err := ir.NewEvent(seq, "flow", ir.DomainUpdated{ID: 0, DomType: uint8(seq)})
				require.NoError(t, err)
				require.NoError(t, tx.AppendEvent(ev))
			}
			last, err := tx.LastSeq()
			require.NoError(t, err)
			assert.Equal(t, int64(3), last)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestBackend_EventsPaging(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)
		for seq := int64(2); seq <= 5; seq++ {
			err := b.Update(t.Context(), func(tx Tx) error {
				ev, err := ir.NewEvent(seq, "flow", ir.DomainUpdated{ID: 0, DomType: uint8(seq)})
				if err != nil {
					return err
				}
				return tx.AppendEvent(ev)
			})
			require.NoError(t, err)
		}

		page, err := b.Events(t.Context(), 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, int64(3), page[0].Seq)
		assert.Equal(t, int64(4), page[1].Seq)
		assert.Equal(t, ir.DomainUpdated{ID: 0, DomType: 3}, page[0].Payload)

		tail, err := b.Events(t.Context(), 5, 0)
		require.NoError(t, err)
		assert.Empty(t, tail)
	})
}

func TestMemory_ClosedFails(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())

	err := m.Update(t.Context(), func(Tx) error { return nil })
	require.Error(t, err)
	_, err = m.Events(t.Context(), 0, 0)
	require.Error(t, err)
}

func TestMemory_ViewIsReadOnly(t *testing.T) {
	m := NewMemory()
	err := m.View(t.Context(), func(r Reader) error {
		return r.(Tx).PutCounter(ir.Counter{Initialized: true})
	})
	require.Error(t, err)
}
