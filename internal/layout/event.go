package layout

import (
	"fmt"

	"github.com/roach88/domainreg/internal/ir"
)

// EncodeEvent serializes a payload as [disc 8][borsh fields].
func EncodeEvent(p ir.Payload) ([]byte, error) {
	switch ev := p.(type) {
	case ir.DomainCreated:
		e := newEncoder(DiscriminatorSize + 8 + ir.PubkeySize + 4 + len(ev.Name) + 1)
		e.discriminator(DomainCreatedDiscriminator)
		e.u64(ev.ID)
		e.fixed(ev.Owner[:])
		e.string(ev.Name)
		e.u8(ev.DomType)
		return e.buf, nil
	case ir.DomainUpdated:
		e := newEncoder(DiscriminatorSize + 8 + 1)
		e.discriminator(DomainUpdatedDiscriminator)
		e.u64(ev.ID)
		e.u8(ev.DomType)
		return e.buf, nil
	default:
		return nil, fmt.Errorf("encode event: unsupported payload %T", p)
	}
}

// DecodeEvent parses event bytes, selecting the variant by discriminator.
func DecodeEvent(data []byte) (ir.Payload, error) {
	if len(data) < DiscriminatorSize {
		return nil, fmt.Errorf("decode event: %w", ErrShortBuffer)
	}

	d := newDecoder(data)
	switch Discriminator(data[:DiscriminatorSize]) {
	case DomainCreatedDiscriminator:
		d.expect(DomainCreatedDiscriminator)
		var ev ir.DomainCreated
		ev.ID = d.u64()
		copy(ev.Owner[:], d.take(ir.PubkeySize))
		ev.Name = d.string()
		ev.DomType = d.u8()
		if err := d.finish(true); err != nil {
			return nil, fmt.Errorf("decode DomainCreated: %w", err)
		}
		return ev, nil
	case DomainUpdatedDiscriminator:
		d.expect(DomainUpdatedDiscriminator)
		ev := ir.DomainUpdated{ID: d.u64(), DomType: d.u8()}
		if err := d.finish(true); err != nil {
			return nil, fmt.Errorf("decode DomainUpdated: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("decode event: unknown discriminator %x", data[:DiscriminatorSize])
	}
}
