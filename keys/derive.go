package keys

import (
	"crypto/ed25519"
	"fmt"

	"github.com/zeebo/blake3"
)

// SeedSize is the length of every stored seed.
const SeedSize = ed25519.SeedSize

const roleKDFContext = "besedarium.dev/mpst 2024 role signing key v1"

// DeriveRoleSeed derives the seed a certifier uses when signing on behalf of
// a protocol role. The derivation is deterministic.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if err := CheckName(role); err != nil {
		return nil, fmt.Errorf("role: %w", err)
	}
	material := make([]byte, 0, len(rootSeed)+1+len(role))
	material = append(material, rootSeed...)
	material = append(material, 0)
	material = append(material, role...)
	out := make([]byte, SeedSize)
	blake3.DeriveKey(roleKDFContext, material, out)
	return out, nil
}

// PublicKeyFromSeed returns the public key string for alg derived from seed.
func PublicKeyFromSeed(alg string, seed []byte) (string, error) {
	s, err := NewSigner(alg, "", seed)
	if err != nil {
		return "", err
	}
	return s.PublicKey(), nil
}
