// Package cidutil derives content identifiers for canonical protocol bytes.
package cidutil

import (
	"encoding/hex"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/zeebo/blake3"
)

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	id, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Parse decodes s and requires a defined CIDv1 raw sha2-256 identifier.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	if id.Version() != 1 || id.Type() != cid.Raw {
		return cid.Undef, errNotRaw
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return cid.Undef, err
	}
	if dec.Code != multihash.SHA2_256 {
		return cid.Undef, errNotRaw
	}
	return id, nil
}

type cidError string

func (e cidError) Error() string { return string(e) }

const errNotRaw = cidError("cidutil: expected CIDv1 raw sha2-256")

// fingerprintKey separates protocol fingerprints from any other BLAKE3 use.
var fingerprintKey = [32]byte{
	'b', 'e', 's', 'e', 'd', 'a', 'r', 'i', 'u', 'm', '.', 'm', 'p', 's', 't', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0,
}

// Fingerprint returns a short, domain-separated BLAKE3 digest of canonical
// protocol bytes, hex encoded. It is a display aid; CIDs remain the identity.
func Fingerprint(data []byte) string {
	h, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic("cidutil: " + err.Error())
	}
	_, _ = h.Write(data)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
