package events

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
)

// Envelope is the wire form of an event, shared by the HTTP API, the CLI and
// the Kafka sink.
type Envelope struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	FlowToken string          `json:"flow_token"`
	Kind      ir.EventKind    `json:"kind"`
	Payload   json.RawMessage `json:"payload"` // canonical JSON
	Data      string          `json:"data"`    // hex of discriminator-prefixed borsh
}

// NewEnvelope renders ev for transport.
func NewEnvelope(ev ir.Event) (Envelope, error) {
	payload, err := ir.MarshalCanonical(ev.Payload.Fields())
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope %d: %w", ev.Seq, err)
	}
	data, err := layout.EncodeEvent(ev.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope %d: %w", ev.Seq, err)
	}
	return Envelope{
		Seq:       ev.Seq,
		ID:        ev.ID,
		FlowToken: ev.FlowToken,
		Kind:      ev.Kind,
		Payload:   payload,
		Data:      hex.EncodeToString(data),
	}, nil
}

// Event decodes the borsh data back into an ir.Event and checks that the JSON
// payload agrees with it.
func (e Envelope) Event() (ir.Event, error) {
	data, err := hex.DecodeString(e.Data)
	if err != nil {
		return ir.Event{}, fmt.Errorf("envelope %d: data: %w", e.Seq, err)
	}
	p, err := layout.DecodeEvent(data)
	if err != nil {
		return ir.Event{}, fmt.Errorf("envelope %d: %w", e.Seq, err)
	}
	if p.Kind() != e.Kind {
		return ir.Event{}, fmt.Errorf("envelope %d: kind %q, data is %q", e.Seq, e.Kind, p.Kind())
	}
	if err := checkPayload(e.Payload, p); err != nil {
		return ir.Event{}, fmt.Errorf("envelope %d: %w", e.Seq, err)
	}
	return ir.Event{Seq: e.Seq, ID: e.ID, FlowToken: e.FlowToken, Kind: p.Kind(), Payload: p}, nil
}

// checkPayload requires the JSON payload to carry the same fields as the
// borsh data. Both sides are compared in canonical form, so escaping applied
// in transit does not matter.
func checkPayload(raw json.RawMessage, p ir.Payload) error {
	var fields ir.IRObject
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	got, err := ir.MarshalCanonical(fields)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	want, err := ir.MarshalCanonical(p.Fields())
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("payload does not match data")
	}
	return nil
}
