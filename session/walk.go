package session

// Visitor is called for every node in pre-order. Returning false skips the
// node's children.
type Visitor func(p Path, g GlobalType) bool

// Walk visits g and its descendants in pre-order: the node itself, then its
// children left to right (Cont, Left, Right, Body). Nil children are not
// visited.
func Walk(g GlobalType, visit Visitor) {
	walk(nil, g, visit)
}

func walk(p Path, g GlobalType, visit Visitor) {
	if g == nil {
		return
	}
	if !visit(p, g) {
		return
	}
	switch n := g.(type) {
	case Interact:
		walk(p.Child(StepCont), n.Cont, visit)
	case Choice:
		walk(p.Child(StepLeft), n.Left, visit)
		walk(p.Child(StepRight), n.Right, visit)
	case Par:
		walk(p.Child(StepLeft), n.Left, visit)
		walk(p.Child(StepRight), n.Right, visit)
	case Rec:
		walk(p.Child(StepBody), n.Body, visit)
	}
}

// Size returns the number of nodes in g.
func Size(g GlobalType) int {
	n := 0
	Walk(g, func(Path, GlobalType) bool {
		n++
		return true
	})
	return n
}

// CheckStructure reports the first nil subtree or Interact without a role,
// in pre-order.
func CheckStructure(g GlobalType) error {
	if g == nil {
		return structureError(nil, "", RuleNilSubtree, "protocol is empty")
	}
	var err error
	Walk(g, func(p Path, n GlobalType) bool {
		if err != nil {
			return false
		}
		switch n := n.(type) {
		case Interact:
			if n.Role == "" {
				err = structureError(p, n.Label, RuleEmptyRole, "interact has no role")
				return false
			}
			if n.Cont == nil {
				err = structureError(p.Child(StepCont), n.Label, RuleNilSubtree, "interact has no continuation")
			}
		case Choice:
			err = checkBranches(p, n.Label, n.Left, n.Right)
		case Par:
			err = checkBranches(p, n.Label, n.Left, n.Right)
		case Rec:
			if n.Body == nil {
				err = structureError(p.Child(StepBody), n.Label, RuleNilSubtree, "rec has no body")
			}
		}
		return err == nil
	})
	return err
}

func checkBranches(p Path, label Label, left, right GlobalType) error {
	if left == nil {
		return structureError(p.Child(StepLeft), label, RuleNilSubtree, "missing left branch")
	}
	if right == nil {
		return structureError(p.Child(StepRight), label, RuleNilSubtree, "missing right branch")
	}
	return nil
}
