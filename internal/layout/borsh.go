package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrShortBuffer is returned when decoding runs past the end of the input.
var ErrShortBuffer = errors.New("layout: short buffer")

// encoder appends Borsh primitives to a pre-sized buffer.
type encoder struct {
	buf []byte
}

func newEncoder(size int) *encoder {
	return &encoder{buf: make([]byte, 0, size)}
}

func (e *encoder) discriminator(d Discriminator) { e.buf = append(e.buf, d[:]...) }
func (e *encoder) u8(v uint8)                    { e.buf = append(e.buf, v) }
func (e *encoder) u64(v uint64)                  { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) fixed(b []byte)                { e.buf = append(e.buf, b...) }

func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *encoder) string(s string) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// decoder consumes Borsh primitives, recording the first error.
type decoder struct {
	buf []byte
	off int
	err error
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, d.off, len(d.buf)-d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) expect(want Discriminator) {
	got := d.take(DiscriminatorSize)
	if d.err != nil {
		return
	}
	if Discriminator(got) != want {
		d.err = fmt.Errorf("layout: discriminator %x, want %s", got, want)
	}
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) bool() bool {
	v := d.u8()
	if d.err == nil && v > 1 {
		d.err = fmt.Errorf("layout: invalid bool byte %d", v)
	}
	return v == 1
}

func (d *decoder) string() string {
	lb := d.take(4)
	if lb == nil {
		return ""
	}
	n := binary.LittleEndian.Uint32(lb)
	b := d.take(int(n))
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		d.err = fmt.Errorf("layout: string is not valid UTF-8")
		return ""
	}
	return string(b)
}

// finish reports the first error, or trailing bytes if strict.
func (d *decoder) finish(strict bool) error {
	if d.err != nil {
		return d.err
	}
	if strict && d.off != len(d.buf) {
		return fmt.Errorf("layout: %d trailing bytes", len(d.buf)-d.off)
	}
	return nil
}
