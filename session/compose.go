package session

// Compose appends tail after every End of g.
//
// An End is replaced by tail and its label is dropped. Interact and Rec pass
// the tail into their continuation or body; Choice and Par pass it into both
// branches, so labels in tail appear once per branch. Every Par in the result
// has its witness cleared, because the tail may add roles to a branch; use
// Extend to compose and re-certify in one step.
func Compose(g, tail GlobalType) GlobalType {
	switch n := g.(type) {
	case End:
		return tail
	case Interact:
		n.Cont = Compose(n.Cont, tail)
		return n
	case Choice:
		n.Left = Compose(n.Left, tail)
		n.Right = Compose(n.Right, tail)
		return n
	case Par:
		n.Left = Compose(n.Left, tail)
		n.Right = Compose(n.Right, tail)
		n.Certified = false
		return n
	case Rec:
		n.Body = Compose(n.Body, tail)
		return n
	default:
		return g
	}
}

// Extend composes tail onto g and certifies every Par of the result.
func Extend(g, tail GlobalType) (GlobalType, error) {
	return CertifyAll(Compose(g, tail))
}

// Uncertify returns a copy of g with every Par witness cleared.
func Uncertify(g GlobalType) GlobalType {
	switch n := g.(type) {
	case Interact:
		n.Cont = Uncertify(n.Cont)
		return n
	case Choice:
		n.Left, n.Right = Uncertify(n.Left), Uncertify(n.Right)
		return n
	case Par:
		n.Left, n.Right = Uncertify(n.Left), Uncertify(n.Right)
		n.Certified = false
		return n
	case Rec:
		n.Body = Uncertify(n.Body)
		return n
	default:
		return g
	}
}
