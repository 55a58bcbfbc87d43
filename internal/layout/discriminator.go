package layout

import (
	"crypto/sha256"
	"encoding/hex"
)

// DiscriminatorSize is the length of the type tag that prefixes every account
// and event.
const DiscriminatorSize = 8

// Discriminator tags a persisted value with its type.
type Discriminator [DiscriminatorSize]byte

func (d Discriminator) String() string {
	return hex.EncodeToString(d[:])
}

// NewDiscriminator returns sha256(namespace + ":" + name)[:8].
func NewDiscriminator(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

var (
	CounterDiscriminator       = NewDiscriminator("account", "ProgramInfo")
	RecordDiscriminator        = NewDiscriminator("account", "Domain")
	DomainCreatedDiscriminator = NewDiscriminator("event", "DomainCreated")
	DomainUpdatedDiscriminator = NewDiscriminator("event", "DomainUpdated")
)
