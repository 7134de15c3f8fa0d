package verify

import (
	"fmt"

	"besedarium.dev/mpst/compliance"
	"besedarium.dev/mpst/session"
)

// Rule is an explicit, named well-formedness rule.
//
// ID must be stable across versions. Check must be deterministic and side
// effect free and return violations in pre-order.
type Rule struct {
	ID    string
	Check func(g session.GlobalType, mode compliance.Mode) []error
}

// rules is the evaluation order; keep it stable.
var rules = []Rule{
	{ID: session.RuleDuplicateLabel, Check: checkLabels},
	{ID: session.RuleNonDisjointPar, Check: checkDisjoint},
	{ID: session.RuleUncertifiedPar, Check: checkWitnesses},
}

// Rules returns the rule IDs in evaluation order.
func Rules() []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.ID)
	}
	return out
}

func checkLabels(g session.GlobalType, _ compliance.Mode) []error {
	var out []error
	for _, d := range session.Duplicates(g) {
		out = append(out, session.DuplicateLabelError(d))
	}
	return out
}

func checkDisjoint(g session.GlobalType, _ compliance.Mode) []error {
	return session.CheckDisjoint(g)
}

// checkWitnesses only applies in Strict mode: every disjoint Par must already
// carry a witness. Overlapping Pars are reported by checkDisjoint instead.
func checkWitnesses(g session.GlobalType, mode compliance.Mode) []error {
	if mode != compliance.Strict {
		return nil
	}
	var out []error
	for _, w := range session.ParWitnesses(g) {
		if w.Certified || !w.Disjoint() {
			continue
		}
		out = append(out, &session.Error{
			Kind:    session.KindWitness,
			RuleID:  session.RuleUncertifiedPar,
			Message: fmt.Sprintf("strict mode: par %q was not certified by the builder", w.Label),
			Path:    w.Path,
			Label:   w.Label,
		})
	}
	return out
}
