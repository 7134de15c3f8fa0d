// Package casregistry links storage backends into binaries. A backend
// registers itself in init(); a binary enables it with a blank import.
package casregistry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/pflag"

	"besedarium.dev/mpst/storage"
)

// Closer releases a backend. It may be nil.
type Closer func() error

// Backend is one registered storage backend.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds the backend's flags to fs. Called at most once per
	// flag set.
	RegisterFlags func(fs *pflag.FlagSet)

	// Open builds the CAS from the values parsed into those flags.
	Open func() (storage.CAS, Closer, error)

	// OpenConfig builds the CAS from a key/value map whose keys mirror the
	// flag names (see casconfig).
	OpenConfig func(cfg map[string]string) (storage.CAS, Closer, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register adds b to the registry.
func Register(b Backend) error {
	switch {
	case b.Name == "":
		return fmt.Errorf("casregistry: backend name is required")
	case b.RegisterFlags == nil:
		return fmt.Errorf("casregistry: backend %q missing RegisterFlags", b.Name)
	case b.Open == nil:
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	case b.OpenConfig == nil:
		return fmt.Errorf("casregistry: backend %q missing OpenConfig", b.Name)
	case b.Usage == 0:
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is Register that panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns the backends allowed for usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the names of List(usage).
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// RegisterFlags registers every matching backend's flags on fs so a single
// parse accepts all of them.
func RegisterFlags(fs *pflag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

func lookup(name string, usage Usage) (Backend, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return Backend{}, fmt.Errorf("unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return Backend{}, fmt.Errorf("backend %q not supported in this binary", name)
	}
	return b, nil
}

// Open opens the named backend from its parsed flags.
func Open(name string, usage Usage) (storage.CAS, Closer, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	return b.Open()
}

// OpenWithConfig opens the named backend from a key/value map.
func OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.CAS, Closer, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	return b.OpenConfig(cfg)
}
