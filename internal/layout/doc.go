// Package layout defines the byte-exact persisted form of registry accounts
// and events, and the derivation of storage keys from domain ids.
//
// Layouts follow the Anchor/Borsh conventions the registry was first deployed
// with, so storage footprints match byte for byte:
//
//	Counter: [disc 8][next_id u64 LE][initialized 1][bump 1]
//	Record:  [disc 8][owner 32][name: u32 LE len + UTF-8][dom_type 1]
//	Event:   [disc 8][borsh-encoded fields]
//
// Discriminators are the first 8 bytes of sha256("<namespace>:<Name>").
// All integers are little-endian.
package layout
