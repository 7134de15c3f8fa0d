// Package storage keeps protocol artifacts in content-addressed storage:
// canonical protocol trees, canonical local types and projection
// certificates, each addressed by its CIDv1 (raw, sha2-256).
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable store.
//
// Put is idempotent and stored objects are immutable. The CID is derived
// from the bytes written, so callers supply canonical bytes. Get returns
// ErrNotFound for an absent CID.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// Lister is implemented by backends that can enumerate their objects.
type Lister interface {
	List() ([]cid.Cid, error)
}
