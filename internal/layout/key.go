package layout

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// KeySize is the length of a derived record key.
const KeySize = 8

// Key is the storage location of a record. It is a pure function of the
// record's id: the id's 8-byte little-endian encoding, the same seed the
// original program used for its record addresses.
type Key [KeySize]byte

// DeriveKey returns the storage key for id.
func DeriveKey(id uint64) Key {
	var k Key
	binary.LittleEndian.PutUint64(k[:], id)
	return k
}

// ID recovers the id a key was derived from.
func (k Key) ID() uint64 {
	return binary.LittleEndian.Uint64(k[:])
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// ParseKey decodes the hex form produced by Key.String.
func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("parse key: %w", err)
	}
	if len(b) != KeySize {
		return k, fmt.Errorf("parse key: got %d bytes, want %d", len(b), KeySize)
	}
	copy(k[:], b)
	return k, nil
}

// CounterSeed names the singleton counter account.
const CounterSeed = "program_info"
