package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/domainreg/internal/ir"
)

func TestVerify_Empty(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		report, err := Verify(t.Context(), b)
		require.NoError(t, err)
		assert.True(t, report.OK(), report.Mismatches)
		assert.Equal(t, 0, report.Events)
		assert.Equal(t, uint64(0), report.NextID)
	})
}

func TestVerify_Consistent(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)
		err := b.Update(t.Context(), func(tx Tx) error {
			require.NoError(t, tx.PutRecord(ir.Record{ID: 0, Owner: testOwner, Name: "alpha", DomType: 8}))
			ev, err := ir.NewEvent(2, "flow-2", ir.DomainUpdated{ID: 0, DomType: 8})
			require.NoError(t, err)
			return tx.AppendEvent(ev)
		})
		require.NoError(t, err)

		report, err := Verify(t.Context(), b)
		require.NoError(t, err)
		assert.True(t, report.OK(), report.Mismatches)
		assert.Equal(t, 2, report.Events)
		assert.Equal(t, 1, report.Created)
		assert.Equal(t, 1, report.Updated)
		assert.Equal(t, uint64(1), report.NextID)
	})
}

func TestVerify_DetectsStateDrift(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)

		// A write that bypasses the event log.
		err := b.Update(t.Context(), func(tx Tx) error {
			return tx.PutRecord(ir.Record{ID: 0, Owner: testOwner, Name: "alpha", DomType: 99})
		})
		require.NoError(t, err)

		report, err := Verify(t.Context(), b)
		require.NoError(t, err)
		require.False(t, report.OK())
		assert.Contains(t, report.Mismatches[0], "record 0")
	})
}

func TestVerify_DetectsCounterDrift(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)
		err := b.Update(t.Context(), func(tx Tx) error {
			return tx.PutCounter(ir.Counter{NextID: 5, Initialized: true})
		})
		require.NoError(t, err)

		report, err := Verify(t.Context(), b)
		require.NoError(t, err)
		require.False(t, report.OK())
		assert.Contains(t, report.Mismatches[0], "next_id 5")
	})
}

func TestVerify_DetectsUnloggedRecord(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		mustSeed(t, b)
		err := b.Update(t.Context(), func(tx Tx) error {
			return tx.InsertRecord(ir.Record{ID: 1, Owner: testOwner, Name: "ghost"})
		})
		require.NoError(t, err)

		report, err := Verify(t.Context(), b)
		require.NoError(t, err)
		require.False(t, report.OK())
		assert.Contains(t, report.Mismatches[0], "never created")
	})
}

func TestApplyEvent_UnknownUpdate(t *testing.T) {
	report := &ReplayReport{}
	expected := map[uint64]ir.Record{}
	ev, err := ir.NewEvent(1, "flow", ir.DomainUpdated{ID: 4, DomType: 1})
	require.NoError(t, err)

	applyEvent(report, expected, ev)

	require.Len(t, report.Mismatches, 1)
	assert.Contains(t, report.Mismatches[0], "unknown id 4")
}

func TestApplyEvent_BadID(t *testing.T) {
	report := &ReplayReport{}
	ev, err := ir.NewEvent(1, "flow", ir.DomainCreated{ID: 0, Owner: testOwner, Name: "a"})
	require.NoError(t, err)
	ev.ID = "bogus"

	applyEvent(report, map[uint64]ir.Record{}, ev)

	require.Len(t, report.Mismatches, 1)
	assert.Contains(t, report.Mismatches[0], "recomputed")
}
