package storage

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"besedarium.dev/mpst/cidutil"
)

// MemCAS is an in-memory CAS. It is safe for concurrent use.
type MemCAS struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
}

var _ CAS = (*MemCAS)(nil)

// NewMemCAS returns an empty MemCAS.
func NewMemCAS() *MemCAS {
	return &MemCAS{objects: make(map[cid.Cid][]byte)}
}

func (m *MemCAS) Put(b []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.objects[id]; ok {
		if !bytes.Equal(existing, b) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.objects[id] = append([]byte(nil), b...)
	return id, nil
}

func (m *MemCAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemCAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok
}

// List returns every stored CID in string order.
func (m *MemCAS) List() ([]cid.Cid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]cid.Cid, 0, len(m.objects))
	for id := range m.objects {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
