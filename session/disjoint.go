package session

// IsDisjoint reports whether a and b share no role. It is symmetric.
func IsDisjoint(a, b RoleSet) bool {
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}
	for r := range small {
		if large.Contains(r) {
			return false
		}
	}
	return true
}

// Overlap returns the roles common to a and b in ascending order.
func Overlap(a, b RoleSet) []Role {
	return a.Intersect(b).Sorted()
}

// Certify checks that p's branches are role-disjoint and returns p with its
// witness set. On overlap it returns a NonDisjointPar error naming the
// smallest shared role.
func Certify(p Par) (Par, error) {
	return certifyAt(nil, p)
}

func certifyAt(path Path, p Par) (Par, error) {
	left, right := RolesOf(p.Left), RolesOf(p.Right)
	if shared := Overlap(left, right); len(shared) > 0 {
		return p, NonDisjointParError(path, p.Label, shared[0], left, right)
	}
	p.Certified = true
	return p, nil
}

// CertifyAll returns a copy of g in which every Par has been certified. It
// stops at the first non-disjoint Par in pre-order.
func CertifyAll(g GlobalType) (GlobalType, error) {
	return certifyTree(nil, g)
}

func certifyTree(p Path, g GlobalType) (GlobalType, error) {
	switch n := g.(type) {
	case Interact:
		cont, err := certifyTree(p.Child(StepCont), n.Cont)
		if err != nil {
			return nil, err
		}
		n.Cont = cont
		return n, nil
	case Choice:
		left, right, err := certifyBranches(p, n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		n.Left, n.Right = left, right
		return n, nil
	case Par:
		n, err := certifyAt(p, n)
		if err != nil {
			return nil, err
		}
		left, right, err := certifyBranches(p, n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		n.Left, n.Right = left, right
		return n, nil
	case Rec:
		body, err := certifyTree(p.Child(StepBody), n.Body)
		if err != nil {
			return nil, err
		}
		n.Body = body
		return n, nil
	default:
		return g, nil
	}
}

func certifyBranches(p Path, left, right GlobalType) (GlobalType, GlobalType, error) {
	l, err := certifyTree(p.Child(StepLeft), left)
	if err != nil {
		return nil, nil, err
	}
	r, err := certifyTree(p.Child(StepRight), right)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// Witness describes one Par node of a tree.
type Witness struct {
	Path       Path
	Label      Label
	Certified  bool
	LeftRoles  []Role
	RightRoles []Role
	Shared     []Role
}

// Disjoint reports whether the Par's branches share no role.
func (w Witness) Disjoint() bool { return len(w.Shared) == 0 }

// ParWitnesses lists every Par of g in pre-order with its recorded witness
// and the result of re-checking disjointness.
func ParWitnesses(g GlobalType) []Witness {
	var out []Witness
	Walk(g, func(p Path, n GlobalType) bool {
		par, ok := n.(Par)
		if !ok {
			return true
		}
		left, right := RolesOf(par.Left), RolesOf(par.Right)
		out = append(out, Witness{
			Path:       p,
			Label:      par.Label,
			Certified:  par.Certified,
			LeftRoles:  left.Sorted(),
			RightRoles: right.Sorted(),
			Shared:     Overlap(left, right),
		})
		return true
	})
	return out
}

// CheckDisjoint returns a NonDisjointPar error for every Par of g whose
// branches overlap, in pre-order, regardless of the recorded witness.
func CheckDisjoint(g GlobalType) []error {
	var errs []error
	for _, w := range ParWitnesses(g) {
		if w.Disjoint() {
			continue
		}
		errs = append(errs, NonDisjointParError(w.Path, w.Label, w.Shared[0], NewRoleSet(w.LeftRoles...), NewRoleSet(w.RightRoles...)))
	}
	return errs
}
