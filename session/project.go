package session

import (
	"fmt"
	"sync"
)

// Project returns the local type that role me must follow in g.
//
// g is expected to have passed CheckStructure, CheckUniqueLabels and
// certification. Project refuses an uncertified Par (MPST-PAR-002) and treats
// a certified Par with me in both branches as an invariant violation
// (MPST-INV-001). For every other input it succeeds; roles that take no part
// in a Choice or Par receive Skip for it.
func Project(me Role, g GlobalType) (LocalType, error) {
	return project(me, nil, g)
}

func project(me Role, p Path, g GlobalType) (LocalType, error) {
	switch n := g.(type) {
	case End:
		return LocalEnd{Label: n.Label}, nil

	case Interact:
		cont, err := project(me, p.Child(StepCont), n.Cont)
		if err != nil {
			return nil, err
		}
		if n.Role == me {
			return Send{Label: n.Label, Role: n.Role, Msg: n.Msg, IO: n.IO, Cont: cont}, nil
		}
		return Recv{Label: n.Label, Role: n.Role, Msg: n.Msg, IO: n.IO, Cont: cont}, nil

	case Choice:
		inL, inR := Involves(n.Left, me), Involves(n.Right, me)
		switch {
		case inL && inR:
			left, err := project(me, p.Child(StepLeft), n.Left)
			if err != nil {
				return nil, err
			}
			right, err := project(me, p.Child(StepRight), n.Right)
			if err != nil {
				return nil, err
			}
			return LocalChoice{Label: n.Label, Left: left, Right: right}, nil
		case inL:
			return project(me, p.Child(StepLeft), n.Left)
		case inR:
			return project(me, p.Child(StepRight), n.Right)
		default:
			return Skip{Label: n.Label}, nil
		}

	case Par:
		if !n.Certified {
			return nil, uncertifiedParError(p, n.Label)
		}
		inL, inR := Involves(n.Left, me), Involves(n.Right, me)
		if inL && inR {
			return nil, parBothRolesPresentError(p, n.Label, me, RolesOf(n.Left), RolesOf(n.Right))
		}
		var left, right LocalType = Skip{Label: n.Label}, Skip{Label: n.Label}
		var err error
		if inL {
			if left, err = project(me, p.Child(StepLeft), n.Left); err != nil {
				return nil, err
			}
		}
		if inR {
			if right, err = project(me, p.Child(StepRight), n.Right); err != nil {
				return nil, err
			}
		}
		return FoldPar(n.Label, left, right), nil

	case Rec:
		body, err := project(me, p.Child(StepBody), n.Body)
		if err != nil {
			return nil, err
		}
		return LocalRec{Label: n.Label, Body: body}, nil

	case nil:
		return nil, structureError(p, "", RuleNilSubtree, "cannot project an empty subtree")

	default:
		return nil, &Error{Kind: KindProjection, RuleID: RuleNilSubtree, Message: fmt.Sprintf("unknown node %T", g), Path: p}
	}
}

// FoldPar combines the projections of a Par's two branches.
//
// Skip∘Skip is Skip{label}; Skip∘X and X∘Skip are X. End is not absorbed:
// any two non-Skip operands, End included, yield LocalPar{label, l, r}.
func FoldPar(label Label, l, r LocalType) LocalType {
	switch {
	case IsSkip(l) && IsSkip(r):
		return Skip{Label: label}
	case IsSkip(l):
		return r
	case IsSkip(r):
		return l
	default:
		return LocalPar{Label: label, Left: l, Right: r}
	}
}

// ProjectAll projects g onto every role in RolesOf(g) plus extra. Roles are
// projected concurrently; the result does not depend on scheduling. The
// returned error is the one for the smallest failing role.
func ProjectAll(g GlobalType, extra ...Role) (map[Role]LocalType, error) {
	roles := RolesOf(g)
	for _, r := range extra {
		roles.Add(r)
	}
	sorted := roles.Sorted()

	locals := make([]LocalType, len(sorted))
	errs := make([]error, len(sorted))
	var wg sync.WaitGroup
	for i, r := range sorted {
		wg.Add(1)
		go func(i int, r Role) {
			defer wg.Done()
			locals[i], errs[i] = Project(r, g)
		}(i, r)
	}
	wg.Wait()

	out := make(map[Role]LocalType, len(sorted))
	for i, r := range sorted {
		if errs[i] != nil {
			return nil, errs[i]
		}
		out[r] = locals[i]
	}
	return out, nil
}
