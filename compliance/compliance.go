package compliance

import (
	"fmt"
	"strings"
)

// Mode selects how aggressively verification rejects ambiguity.
//
// Permissive certifies any Par whose branches are role-disjoint, whatever
// witness the builder recorded. Strict requires the builder to have
// certified every Par and reports uncertified ones as violations.
type Mode int

const (
	Permissive Mode = iota
	Strict
)

func (m Mode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Parse accepts "permissive" or "strict" (case-insensitive). The empty
// string selects Permissive.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("invalid compliance mode %q (want permissive or strict)", s)
	}
}

// MarshalText implements encoding.TextMarshaler so modes read naturally in
// JSON, YAML and TOML.
func (m Mode) MarshalText() ([]byte, error) {
	if m != Permissive && m != Strict {
		return nil, fmt.Errorf("invalid compliance mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
