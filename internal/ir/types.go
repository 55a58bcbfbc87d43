package ir

import (
	"encoding/hex"
	"fmt"
)

// PubkeySize is the length of an owner identity (an ed25519 public key).
const PubkeySize = 32

// Pubkey identifies the owner of a domain record.
// Text form is lowercase hex.
type Pubkey [PubkeySize]byte

// ParsePubkey decodes a 64-character hex string.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("parse pubkey: %w", err)
	}
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("parse pubkey: got %d bytes, want %d", len(b), PubkeySize)
	}
	copy(pk[:], b)
	return pk, nil
}

func (pk Pubkey) String() string {
	return hex.EncodeToString(pk[:])
}

// MarshalText implements encoding.TextMarshaler.
func (pk Pubkey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// Counter is the singleton id allocator state.
type Counter struct {
	NextID      uint64 `json:"next_id"`
	Initialized bool   `json:"initialized"`
	Bump        uint8  `json:"bump"`
}

// Record is a single domain entry.
// ID, Owner and Name are fixed at creation; only DomType changes afterwards.
type Record struct {
	ID      uint64 `json:"id"`
	Owner   Pubkey `json:"owner"`
	Name    string `json:"name"`
	DomType uint8  `json:"dom_type"`
}

// EventKind names an event variant.
type EventKind string

const (
	KindDomainCreated EventKind = "DomainCreated"
	KindDomainUpdated EventKind = "DomainUpdated"
)

// Payload is the body of an event. Implemented by DomainCreated and DomainUpdated.
type Payload interface {
	Kind() EventKind
	DomainID() uint64
	Fields() IRObject
}

// DomainCreated is emitted once per successful creation.
type DomainCreated struct {
	ID      uint64 `json:"id"`
	Owner   Pubkey `json:"owner"`
	Name    string `json:"name"`
	DomType uint8  `json:"dom_type"`
}

func (DomainCreated) Kind() EventKind    { return KindDomainCreated }
func (e DomainCreated) DomainID() uint64 { return e.ID }

// Fields returns the payload as an IRObject for canonical encoding.
func (e DomainCreated) Fields() IRObject {
	return IRObject{
		"id":       IRUint(e.ID),
		"owner":    IRString(e.Owner.String()),
		"name":     IRString(e.Name),
		"dom_type": IRInt(e.DomType),
	}
}

// DomainUpdated is emitted once per successful update.
type DomainUpdated struct {
	ID      uint64 `json:"id"`
	DomType uint8  `json:"dom_type"`
}

func (DomainUpdated) Kind() EventKind    { return KindDomainUpdated }
func (e DomainUpdated) DomainID() uint64 { return e.ID }

// Fields returns the payload as an IRObject for canonical encoding.
func (e DomainUpdated) Fields() IRObject {
	return IRObject{
		"id":       IRUint(e.ID),
		"dom_type": IRInt(e.DomType),
	}
}

// Event is one entry of the append-only log.
type Event struct {
	Seq       int64     `json:"seq"`        // log position, starts at 1
	ID        string    `json:"id"`         // content-addressed, see EventID
	FlowToken string    `json:"flow_token"` // correlates the event with the operation that emitted it
	Kind      EventKind `json:"kind"`
	Payload   Payload   `json:"payload"`
}

// NewEvent builds an event at seq and computes its content-addressed id.
func NewEvent(seq int64, flowToken string, p Payload) (Event, error) {
	id, err := EventID(seq, p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Seq:       seq,
		ID:        id,
		FlowToken: flowToken,
		Kind:      p.Kind(),
		Payload:   p,
	}, nil
}
