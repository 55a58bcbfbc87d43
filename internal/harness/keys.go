package harness

import (
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/registry"
)

// keySeedDomain separates harness key seeds from any other sha256 use.
const keySeedDomain = "domainreg/harness-key/v1"

// OwnerKey returns the fixed key pair for a scenario owner alias.
// The seed is sha256(keySeedDomain || 0x00 || alias).
func OwnerKey(alias string) (ir.Pubkey, ed25519.PrivateKey) {
	h := sha256.New()
	h.Write([]byte(keySeedDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(alias))
	pk, priv, err := registry.KeyFromSeed(h.Sum(nil))
	if err != nil {
		panic(err) // sha256 output is always a valid seed
	}
	return pk, priv
}
