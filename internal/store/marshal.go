package store

import (
	"fmt"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
)

// counterAddress is the account address of the singleton counter.
var counterAddress = []byte(layout.CounterSeed)

const (
	kindCounter = "counter"
	kindRecord  = "record"
)

// eventRow is an event in its persisted form.
type eventRow struct {
	Seq       int64
	ID        string
	FlowToken string
	Kind      string
	DomainID  uint64
	Payload   string // canonical JSON of the payload fields
	Data      []byte // discriminator-prefixed borsh
}

func toEventRow(ev ir.Event) (eventRow, error) {
	if ev.Payload == nil {
		return eventRow{}, fmt.Errorf("event %d: nil payload", ev.Seq)
	}
	if ev.Kind != ev.Payload.Kind() {
		return eventRow{}, fmt.Errorf("event %d: kind %q does not match payload %q", ev.Seq, ev.Kind, ev.Payload.Kind())
	}
	payload, err := ir.MarshalCanonical(ev.Payload.Fields())
	if err != nil {
		return eventRow{}, fmt.Errorf("event %d: marshal payload: %w", ev.Seq, err)
	}
	data, err := layout.EncodeEvent(ev.Payload)
	if err != nil {
		return eventRow{}, fmt.Errorf("event %d: encode: %w", ev.Seq, err)
	}
	return eventRow{
		Seq:       ev.Seq,
		ID:        ev.ID,
		FlowToken: ev.FlowToken,
		Kind:      string(ev.Kind),
		DomainID:  ev.Payload.DomainID(),
		Payload:   string(payload),
		Data:      data,
	}, nil
}

// toEvent decodes the borsh data and cross-checks it against the JSON column.
func (r eventRow) toEvent() (ir.Event, error) {
	p, err := layout.DecodeEvent(r.Data)
	if err != nil {
		return ir.Event{}, fmt.Errorf("event %d: decode: %w", r.Seq, err)
	}
	if string(p.Kind()) != r.Kind {
		return ir.Event{}, fmt.Errorf("event %d: data kind %q, row kind %q", r.Seq, p.Kind(), r.Kind)
	}
	if p.DomainID() != r.DomainID {
		return ir.Event{}, fmt.Errorf("event %d: data id %d, row id %d", r.Seq, p.DomainID(), r.DomainID)
	}
	payload, err := ir.MarshalCanonical(p.Fields())
	if err != nil {
		return ir.Event{}, fmt.Errorf("event %d: marshal payload: %w", r.Seq, err)
	}
	if string(payload) != r.Payload {
		return ir.Event{}, fmt.Errorf("event %d: payload column does not match data", r.Seq)
	}
	return ir.Event{
		Seq:       r.Seq,
		ID:        r.ID,
		FlowToken: r.FlowToken,
		Kind:      p.Kind(),
		Payload:   p,
	}, nil
}
