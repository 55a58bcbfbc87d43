package layout

import (
	"github.com/roach88/domainreg/internal/ir"
)

// CreateMessagePrefix separates create authorizations from any other signed data.
const CreateMessagePrefix = "domainreg/create/v1"

// CreateMessage is the byte string an owner signs to authorize creating a
// domain: prefix || 0x00 || dom_type || u32le(len(name)) || name || owner.
func CreateMessage(domType uint8, name string, owner ir.Pubkey) []byte {
	e := newEncoder(len(CreateMessagePrefix) + 1 + 1 + 4 + len(name) + ir.PubkeySize)
	e.fixed([]byte(CreateMessagePrefix))
	e.u8(0)
	e.u8(domType)
	e.string(name)
	e.fixed(owner[:])
	return e.buf
}
