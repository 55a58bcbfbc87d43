package layout

import (
	"fmt"
	"unicode/utf8"

	"github.com/roach88/domainreg/internal/ir"
)

// CounterSize is the exact size of the counter account:
// discriminator + next_id + initialized + bump.
const CounterSize = DiscriminatorSize + 8 + 1 + 1

// MaxAccountSize is the largest account the registry will allocate.
const MaxAccountSize = 10240

// MaxNameLen is the longest name whose record still fits MaxAccountSize.
const MaxNameLen = MaxAccountSize - (DiscriminatorSize + ir.PubkeySize + 4 + 1)

// RecordSize returns the exact number of bytes a record with a name of
// nameLen bytes occupies: discriminator + owner + (4 + nameLen) + dom_type.
func RecordSize(nameLen int) int {
	return DiscriminatorSize + ir.PubkeySize + (4 + nameLen) + 1
}

// EncodeCounter serializes the counter account.
func EncodeCounter(c ir.Counter) []byte {
	e := newEncoder(CounterSize)
	e.discriminator(CounterDiscriminator)
	e.u64(c.NextID)
	e.bool(c.Initialized)
	e.u8(c.Bump)
	return e.buf
}

// DecodeCounter parses a counter account.
func DecodeCounter(data []byte) (ir.Counter, error) {
	d := newDecoder(data)
	d.expect(CounterDiscriminator)
	c := ir.Counter{
		NextID:      d.u64(),
		Initialized: d.bool(),
		Bump:        d.u8(),
	}
	if err := d.finish(true); err != nil {
		return ir.Counter{}, fmt.Errorf("decode counter: %w", err)
	}
	return c, nil
}

// EncodeRecord serializes a record into a buffer of exactly
// RecordSize(len(rec.Name)) bytes. The id is not stored: it is implied by the
// key the record lives at.
func EncodeRecord(rec ir.Record) ([]byte, error) {
	if !utf8.ValidString(rec.Name) {
		return nil, fmt.Errorf("encode record: name is not valid UTF-8")
	}
	size := RecordSize(len(rec.Name))
	if size > MaxAccountSize {
		return nil, fmt.Errorf("encode record: %d bytes exceeds account limit %d", size, MaxAccountSize)
	}
	e := newEncoder(size)
	e.discriminator(RecordDiscriminator)
	e.fixed(rec.Owner[:])
	e.string(rec.Name)
	e.u8(rec.DomType)
	return e.buf, nil
}

// DecodeRecord parses the record stored at key.
func DecodeRecord(key Key, data []byte) (ir.Record, error) {
	d := newDecoder(data)
	d.expect(RecordDiscriminator)
	rec := ir.Record{ID: key.ID()}
	copy(rec.Owner[:], d.take(ir.PubkeySize))
	rec.Name = d.string()
	rec.DomType = d.u8()
	if err := d.finish(true); err != nil {
		return ir.Record{}, fmt.Errorf("decode record %s: %w", key, err)
	}
	return rec, nil
}

// DomTypeOffset returns the byte offset of dom_type inside an encoded record,
// which is the only field an update rewrites.
func DomTypeOffset(nameLen int) int {
	return RecordSize(nameLen) - 1
}
