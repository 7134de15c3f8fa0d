package session

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
type Kind string

const (
	KindStructure  Kind = "Structure"
	KindLabel      Kind = "Label"
	KindDisjoint   Kind = "Disjoint"
	KindWitness    Kind = "Witness"
	KindInvariant  Kind = "Invariant"
	KindProjection Kind = "Projection"
)

// Rule IDs.
const (
	RuleNilSubtree          = "MPST-STR-001"
	RuleEmptyRole           = "MPST-STR-002"
	RuleDuplicateLabel      = "MPST-LBL-001"
	RuleNonDisjointPar      = "MPST-PAR-001"
	RuleUncertifiedPar      = "MPST-PAR-002"
	RuleParBothRolesPresent = "MPST-INV-001"
)

// Error is the package's structured error type.
//
// Path locates the offending subtree. Label and Role name the offending
// label or role when the rule has one. LeftRoles and RightRoles are set for
// Par rules.
type Error struct {
	Kind       Kind
	RuleID     string
	Message    string
	Path       Path
	Label      Label
	Role       Role
	LeftRoles  []Role
	RightRoles []Role
	Paths      []Path
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s at %s: %s", e.RuleID, e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

// AsError extracts the *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func structureError(p Path, label Label, ruleID, msg string) error {
	return &Error{Kind: KindStructure, RuleID: ruleID, Message: msg, Path: p, Label: label}
}

// DuplicateLabelError reports a label that occurs more than once.
func DuplicateLabelError(d Duplicate) error {
	var at Path
	if len(d.Paths) > 1 {
		at = d.Paths[1]
	}
	locs := make([]string, 0, len(d.Paths))
	for _, p := range d.Paths {
		locs = append(locs, p.String())
	}
	return &Error{
		Kind:    KindLabel,
		RuleID:  RuleDuplicateLabel,
		Message: fmt.Sprintf("duplicate label %q (occurs at %s)", d.Label, strings.Join(locs, ", ")),
		Path:    at,
		Label:   d.Label,
		Paths:   d.Paths,
	}
}

// NonDisjointParError reports a Par whose branches share role.
func NonDisjointParError(p Path, label Label, role Role, left, right RoleSet) error {
	return &Error{
		Kind:       KindDisjoint,
		RuleID:     RuleNonDisjointPar,
		Message:    fmt.Sprintf("par %q: role %q appears in both branches", label, role),
		Path:       p,
		Label:      label,
		Role:       role,
		LeftRoles:  left.Sorted(),
		RightRoles: right.Sorted(),
	}
}

func uncertifiedParError(p Path, label Label) error {
	return &Error{
		Kind:    KindWitness,
		RuleID:  RuleUncertifiedPar,
		Message: fmt.Sprintf("par %q has no disjointness witness", label),
		Path:    p,
		Label:   label,
	}
}

func parBothRolesPresentError(p Path, label Label, role Role, left, right RoleSet) error {
	return &Error{
		Kind:       KindInvariant,
		RuleID:     RuleParBothRolesPresent,
		Message:    fmt.Sprintf("certified par %q has role %q in both branches", label, role),
		Path:       p,
		Label:      label,
		Role:       role,
		LeftRoles:  left.Sorted(),
		RightRoles: right.Sorted(),
	}
}
