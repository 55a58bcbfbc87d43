package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for changing the algorithm later.
const (
	DomainEvent = "domainreg/event/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null separator keeps domain and data from running together.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed id of an event.
//
// The flow token is excluded: the id names what happened, not which request
// carried it, so replaying a log under new tokens yields the same ids.
func EventID(seq int64, p Payload) (string, error) {
	obj := IRObject{
		"kind":    IRString(p.Kind()),
		"payload": p.Fields(),
		"seq":     IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when the payload is known to be valid.
func MustEventID(seq int64, p Payload) string {
	id, err := EventID(seq, p)
	if err != nil {
		panic(err)
	}
	return id
}
