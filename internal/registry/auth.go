package registry

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"github.com/roach88/domainreg/internal/ir"
	"github.com/roach88/domainreg/internal/layout"
)

// SignatureSize is the length of an owner signature.
const SignatureSize = ed25519.SignatureSize

// GenerateKey creates an owner key pair. A nil rand uses crypto/rand.
func GenerateKey(rand io.Reader) (ir.Pubkey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return ir.Pubkey{}, nil, fmt.Errorf("generate key: %w", err)
	}
	var pk ir.Pubkey
	copy(pk[:], pub)
	return pk, priv, nil
}

// KeyFromSeed derives an owner key pair from a 32-byte seed.
func KeyFromSeed(seed []byte) (ir.Pubkey, ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return ir.Pubkey{}, nil, fmt.Errorf("seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return PubkeyOf(priv), priv, nil
}

// PubkeyOf returns the owner identity for priv.
func PubkeyOf(priv ed25519.PrivateKey) ir.Pubkey {
	var pk ir.Pubkey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return pk
}

// SignCreate signs a creation request for the owner of priv.
func SignCreate(priv ed25519.PrivateKey, domType uint8, name string) []byte {
	return ed25519.Sign(priv, layout.CreateMessage(domType, name, PubkeyOf(priv)))
}

// NewCreateRequest builds a signed request owned by priv.
func NewCreateRequest(priv ed25519.PrivateKey, name string, domType uint8) CreateRequest {
	return CreateRequest{
		Owner:      PubkeyOf(priv),
		Name:       name,
		DomainType: domType,
		Signature:  SignCreate(priv, domType, name),
	}
}

func verifyCreate(req CreateRequest) error {
	if len(req.Signature) != SignatureSize {
		return newError(CodeUnauthorized, fmt.Sprintf("signature is %d bytes, want %d", len(req.Signature), SignatureSize), nil, nil)
	}
	msg := layout.CreateMessage(req.DomainType, req.Name, req.Owner)
	if !ed25519.Verify(ed25519.PublicKey(req.Owner[:]), msg, req.Signature) {
		return newError(CodeUnauthorized, "signature does not match owner", nil, nil)
	}
	return nil
}
