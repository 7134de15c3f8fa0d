package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Signature algorithms.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

// Hash algorithms accepted for the signed digest.
var HashAlgs = []string{"blake3", "sha256", "sha3-256", "sha512"}

// ErrBadSignature is returned when a well-formed signature does not verify.
var ErrBadSignature = errors.New("signature did not verify")

// Digest hashes message with hashAlg.
func Digest(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	case "blake3":
		s := blake3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// Signer signs digests with a key derived from a seed.
type Signer struct {
	Alg     string
	HashAlg string

	ed  ed25519.PrivateKey
	dil *mode3.PrivateKey
	pub string
}

// NewSigner derives a signing key for alg from seed. An empty hashAlg means
// sha256.
func NewSigner(alg, hashAlg string, seed []byte) (*Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	if hashAlg == "" {
		hashAlg = "sha256"
	}
	if _, err := Digest(hashAlg, nil); err != nil {
		return nil, err
	}
	s := &Signer{Alg: alg, HashAlg: hashAlg}
	switch alg {
	case AlgEd25519, "":
		s.Alg = AlgEd25519
		s.ed = ed25519.NewKeyFromSeed(seed)
		s.pub = PublicKeyString(AlgEd25519, s.ed.Public().(ed25519.PublicKey))
	case AlgDilithium3:
		var fixed [mode3.SeedSize]byte
		copy(fixed[:], seed)
		pk, sk := mode3.NewKeyFromSeed(&fixed)
		s.dil = sk
		s.pub = PublicKeyString(AlgDilithium3, pk.Bytes())
	default:
		return nil, fmt.Errorf("unsupported signature algorithm: %q", alg)
	}
	return s, nil
}

// PublicKey returns the "<alg>:<base64>" form of the public key.
func (s *Signer) PublicKey() string { return s.pub }

// Sign returns a base64 signature over hash(message).
func (s *Signer) Sign(message []byte) (string, error) {
	digest, err := Digest(s.HashAlg, message)
	if err != nil {
		return "", err
	}
	switch s.Alg {
	case AlgEd25519:
		return base64.StdEncoding.EncodeToString(ed25519.Sign(s.ed, digest)), nil
	case AlgDilithium3:
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(s.dil, digest, sig)
		return base64.StdEncoding.EncodeToString(sig), nil
	default:
		return "", fmt.Errorf("unsupported signature algorithm: %q", s.Alg)
	}
}

// PublicKeyString formats raw public key bytes.
func PublicKeyString(alg string, pub []byte) string {
	return alg + ":" + base64.StdEncoding.EncodeToString(pub)
}

// ParsePublicKey splits "<alg>:<base64>" and checks the key length.
func ParsePublicKey(s string) (alg string, pub []byte, err error) {
	alg, b64, ok := strings.Cut(s, ":")
	if !ok || alg == "" {
		return "", nil, fmt.Errorf("malformed public key %q", s)
	}
	pub, err = base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	switch alg {
	case AlgEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return "", nil, errors.New("invalid ed25519 public key length")
		}
	case AlgDilithium3:
		if len(pub) != mode3.PublicKeySize {
			return "", nil, errors.New("invalid dilithium3 public key length")
		}
	default:
		return "", nil, fmt.Errorf("unsupported public key algorithm %q", alg)
	}
	return alg, pub, nil
}

// Verify checks a base64 signature over hash(message) against publicKey.
func Verify(publicKey, hashAlg string, message []byte, sigB64 string) error {
	alg, pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	digest, err := Digest(hashAlg, message)
	if err != nil {
		return err
	}
	switch alg {
	case AlgEd25519:
		if len(sig) != ed25519.SignatureSize {
			return errors.New("invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return ErrBadSignature
		}
	case AlgDilithium3:
		if len(sig) != mode3.SignatureSize {
			return errors.New("invalid dilithium3 signature length")
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
		if !mode3.Verify(&pk, digest, sig) {
			return ErrBadSignature
		}
	}
	return nil
}
