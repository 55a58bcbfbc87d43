package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
)

// replayBatch is the page size used when reading the log.
const replayBatch = 500

// ReplayReport describes the outcome of Verify.
type ReplayReport struct {
	Events     int      `json:"events"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	NextID     uint64   `json:"next_id"`
	Mismatches []string `json:"mismatches,omitempty"`
}

// OK reports whether the stored state matches the log.
func (r *ReplayReport) OK() bool {
	return len(r.Mismatches) == 0
}

func (r *ReplayReport) mismatch(format string, args ...any) {
	r.Mismatches = append(r.Mismatches, fmt.Sprintf(format, args...))
}

// Verify rebuilds state from the event log and compares it with the stored
// counter and records.
//
// Records are compared by point lookup at each id the log mentions, plus the
// key of the next unallocated id, which must be empty. Event ids are
// recomputed from seq and payload.
func Verify(ctx context.Context, b Backend) (*ReplayReport, error) {
	report := &ReplayReport{}
	expected := make(map[uint64]ir.Record)

	var after int64
	for {
		batch, err := b.Events(ctx, after, replayBatch)
		if err != nil {
			return nil, fmt.Errorf("verify: read events: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, ev := range batch {
			applyEvent(report, expected, ev)
			after = ev.Seq
		}
	}

	err := b.View(ctx, func(r Reader) error {
		c, ok, err := r.Counter()
		if err != nil {
			return err
		}
		switch {
		case !ok && report.Events > 0:
			report.mismatch("counter: missing but log has %d events", report.Events)
		case ok && !c.Initialized:
			report.mismatch("counter: present but not initialized")
		case ok && c.NextID != report.NextID:
			report.mismatch("counter: next_id %d, log implies %d", c.NextID, report.NextID)
		}

		ids := make([]uint64, 0, len(expected))
		for id := range expected {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			want := expected[id]
			got, ok, err := r.Record(layout.DeriveKey(id))
			if err != nil {
				return err
			}
			if !ok {
				report.mismatch("record %d: missing", id)
				continue
			}
			if got != want {
				report.mismatch("record %d: stored %+v, log implies %+v", id, got, want)
			}
		}

		if _, ok, err := r.Record(layout.DeriveKey(report.NextID)); err != nil {
			return err
		} else if ok {
			report.mismatch("record %d: present but never created", report.NextID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify: read state: %w", err)
	}
	return report, nil
}

func applyEvent(report *ReplayReport, expected map[uint64]ir.Record, ev ir.Event) {
	report.Events++
	if ev.Seq != int64(report.Events) {
		report.mismatch("event seq %d at log position %d", ev.Seq, report.Events)
	}
	if id, err := ir.EventID(ev.Seq, ev.Payload); err != nil {
		report.mismatch("event %d: %v", ev.Seq, err)
	} else if id != ev.ID {
		report.mismatch("event %d: id %s, recomputed %s", ev.Seq, ev.ID, id)
	}

	switch p := ev.Payload.(type) {
	case ir.DomainCreated:
		report.Created++
		if p.ID != report.NextID {
			report.mismatch("event %d: created id %d, expected %d", ev.Seq, p.ID, report.NextID)
		}
		if _, dup := expected[p.ID]; dup {
			report.mismatch("event %d: id %d created twice", ev.Seq, p.ID)
		}
		expected[p.ID] = ir.Record{ID: p.ID, Owner: p.Owner, Name: p.Name, DomType: p.DomType}
		report.NextID = max(report.NextID, p.ID+1)
	case ir.DomainUpdated:
		report.Updated++
		rec, ok := expected[p.ID]
		if !ok {
			report.mismatch("event %d: update of unknown id %d", ev.Seq, p.ID)
			return
		}
		rec.DomType = p.DomType
		expected[p.ID] = rec
	default:
		report.mismatch("event %d: unknown payload %T", ev.Seq, ev.Payload)
	}
}
