// Package casconfig opens one or more CAS backends from a config file.
//
// Example (TOML):
//
//	write_policy = "all"
//
//	[[backends]]
//	name = "localfs"
//	[backends.config]
//	localfs-dir = "/var/lib/mpst/cas"
//
//	[[backends]]
//	name = "grpc"
//	id = "replica"
//	[backends.config]
//	grpc-target = "cas.internal:7070"
//
// WritePolicy "first" (the default) writes to the first backend and reads
// from all of them in order. "all" writes everywhere and requires every
// backend to agree on the CID. Config keys mirror each backend's flag names.
// Backends still have to be linked into the binary with blank imports.
package casconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/casregistry"
)

type Config struct {
	WritePolicy string          `json:"write_policy,omitempty" toml:"write_policy" yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends" toml:"backends" yaml:"backends"`
}

type BackendConfig struct {
	// Name is the registered backend to open.
	Name string `json:"name" toml:"name" yaml:"name"`
	// ID is an optional alias, used when the same backend appears twice.
	ID     string            `json:"id,omitempty" toml:"id" yaml:"id,omitempty"`
	Config map[string]string `json:"config,omitempty" toml:"config" yaml:"config,omitempty"`
}

// LoadFile reads a config, choosing the syntax from the extension: .toml,
// .yaml/.yml, or JSON with comments for anything else.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("casconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = ParseTOML(b)
	case ".yaml", ".yml":
		cfg, err = ParseYAML(b)
	default:
		cfg, err = ParseJSONC(b)
	}
	if err != nil {
		return cfg, fmt.Errorf("casconfig: %s: %w", path, err)
	}
	return cfg, nil
}

// ParseTOML decodes and validates a TOML config. Unknown keys are errors.
func ParseTOML(b []byte) (Config, error) {
	var cfg Config
	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return cfg, err
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return cfg, fmt.Errorf("unknown key %q", undec[0].String())
	}
	return cfg, cfg.Validate()
}

// ParseJSONC decodes and validates a JSON config; comments and trailing
// commas are allowed.
func ParseJSONC(b []byte) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(b)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ParseYAML decodes and validates a YAML config.
func ParseYAML(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		id := b.id()
		if _, ok := seen[id]; ok {
			return fmt.Errorf("casconfig: duplicate backend id %q", id)
		}
		seen[id] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// Open opens every configured backend and combines them per WritePolicy.
// A non-empty preferred backend (by name or id) is moved to the front, which
// makes it the write target under "first".
func (c Config) Open(usage casregistry.Usage, preferred string) (storage.CAS, casregistry.Closer, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	ordered := append([]BackendConfig(nil), c.Backends...)
	if preferred != "" {
		idx := -1
		for i := range ordered {
			if ordered[i].Name == preferred || ordered[i].ID == preferred {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
		}
		b := ordered[idx]
		copy(ordered[1:idx+1], ordered[0:idx])
		ordered[0] = b
	}

	named := make([]storage.NamedCAS, 0, len(ordered))
	var closers []casregistry.Closer
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	for _, b := range ordered {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("casconfig: opening %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedCAS{Name: b.id(), CAS: cas})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}
	if c.WritePolicy == "all" {
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	}
	adapters := make([]storage.CAS, 0, len(named))
	for _, n := range named {
		adapters = append(adapters, n.CAS)
	}
	return storage.MultiCAS{Adapters: adapters}, closeAll, nil
}
