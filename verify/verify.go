// Package verify checks a global type for well-formedness and projects it
// onto every role, producing a report suitable for rendering.
package verify

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"besedarium.dev/mpst/compliance"
	"besedarium.dev/mpst/session"
)

// Options controls verification.
//
// The zero value verifies in Permissive mode with logging disabled.
type Options struct {
	Mode compliance.Mode

	// Roles are projected in addition to RolesOf(protocol). Use this for
	// observers that must receive a (possibly Skip) local type.
	Roles []session.Role

	Logger zerolog.Logger
}

// Violation is one failed rule.
type Violation struct {
	RuleID  string
	Kind    session.Kind
	Message string
	Path    string
	Label   session.Label
	Role    session.Role
}

// Report is the outcome of Verify.
//
// Protocol is the tree that was projected: in Permissive mode it has every
// disjoint Par certified. Locals is nil unless WellFormed.
type Report struct {
	Mode       compliance.Mode
	Protocol   session.GlobalType
	Roles      []session.Role
	Labels     []session.Label
	Witnesses  []session.Witness
	Duplicates []session.Duplicate
	Violations []Violation
	Locals     map[session.Role]session.LocalType
	WellFormed bool
}

// Local returns the projection for role, if any.
func (r *Report) Local(role session.Role) (session.LocalType, bool) {
	if r == nil || r.Locals == nil {
		return nil, false
	}
	l, ok := r.Locals[role]
	return l, ok
}

// LocalRoles returns the roles with a projection, sorted.
func (r *Report) LocalRoles() []session.Role {
	if r == nil {
		return nil
	}
	out := make([]session.Role, 0, len(r.Locals))
	for role := range r.Locals {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ErrNilProtocol is returned when Verify is given no protocol.
var ErrNilProtocol = errors.New("verify: nil protocol")

// Verify runs every well-formedness rule against g, collecting all
// violations, and projects g onto each role when no rule fails.
//
// The returned error is nil when the protocol is well-formed; otherwise it is
// the first violation as a *session.Error. The report is returned in both
// cases.
func Verify(g session.GlobalType, opts Options) (*Report, error) {
	if g == nil {
		return nil, ErrNilProtocol
	}
	log := opts.Logger
	rep := &Report{Mode: opts.Mode}

	var first error
	fail := func(err error) {
		if first == nil {
			first = err
		}
		rep.Violations = append(rep.Violations, violationOf(err))
	}

	if err := session.CheckStructure(g); err != nil {
		log.Debug().Str("rule", session.RuleID(err)).Err(err).Msg("structure check failed")
		fail(err)
		rep.WellFormed = false
		return rep, first
	}

	rep.Roles = session.RolesOf(g).Sorted()
	rep.Labels = session.LabelsOf(g)
	rep.Witnesses = session.ParWitnesses(g)
	rep.Duplicates = session.Duplicates(g)

	for _, rule := range rules {
		errs := rule.Check(g, opts.Mode)
		ev := log.Debug().Str("rule", rule.ID).Int("violations", len(errs))
		ev.Msg("rule evaluated")
		for _, err := range errs {
			fail(err)
		}
	}

	if first != nil {
		log.Info().Int("violations", len(rep.Violations)).Msg("protocol rejected")
		return rep, first
	}

	certified := g
	if opts.Mode == compliance.Permissive {
		var err error
		certified, err = session.CertifyAll(g)
		if err != nil {
			// The disjointness rule already ran; reaching this is a bug.
			fail(err)
			return rep, first
		}
	}
	rep.Protocol = certified
	rep.Witnesses = session.ParWitnesses(certified)

	locals, err := session.ProjectAll(certified, opts.Roles...)
	if err != nil {
		fail(err)
		return rep, first
	}
	rep.Locals = locals
	rep.WellFormed = true
	log.Debug().Int("roles", len(locals)).Str("mode", opts.Mode.String()).Msg("protocol projected")
	return rep, nil
}

// VerifyStrict is Verify in Strict mode.
func VerifyStrict(g session.GlobalType, opts Options) (*Report, error) {
	opts.Mode = compliance.Strict
	return Verify(g, opts)
}

func violationOf(err error) Violation {
	e, ok := session.AsError(err)
	if !ok {
		return Violation{RuleID: "MPST-INTERNAL", Message: err.Error()}
	}
	return Violation{
		RuleID:  e.RuleID,
		Kind:    e.Kind,
		Message: e.Message,
		Path:    e.Path.String(),
		Label:   e.Label,
		Role:    e.Role,
	}
}
