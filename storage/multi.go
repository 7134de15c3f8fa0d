package storage

import (
	"errors"
	"sort"

	"github.com/ipfs/go-cid"
)

// MultiCAS reads from several adapters in slice order and writes to the
// first one only. Callers fix the order; it is never derived from a map.
type MultiCAS struct {
	Adapters []CAS
}

func (m MultiCAS) Put(bytes []byte) (cid.Cid, error) {
	if len(m.Adapters) == 0 {
		return cid.Undef, errors.New("storage: MultiCAS has no adapters")
	}
	return m.Adapters[0].Put(bytes)
}

func (m MultiCAS) Get(id cid.Cid) ([]byte, error) {
	return getInOrder(id, m.Adapters)
}

func (m MultiCAS) Has(id cid.Cid) bool {
	for _, cas := range m.Adapters {
		if cas.Has(id) {
			return true
		}
	}
	return false
}

// List merges the listings of every adapter that supports it.
func (m MultiCAS) List() ([]cid.Cid, error) {
	return listAll(m.Adapters)
}

// getInOrder returns the first successful read. Not-found moves on to the
// next adapter; any other error stops the search.
func getInOrder(id cid.Cid, adapters []CAS) ([]byte, error) {
	for _, cas := range adapters {
		if cas == nil {
			continue
		}
		b, err := cas.Get(id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func listAll(adapters []CAS) ([]cid.Cid, error) {
	seen := map[cid.Cid]bool{}
	var out []cid.Cid
	for _, cas := range adapters {
		l, ok := cas.(Lister)
		if !ok {
			continue
		}
		ids, err := l.List()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
