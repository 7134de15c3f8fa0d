package session

import "sort"

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet returns a set holding roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s RoleSet) Add(r Role) { s[r] = struct{}{} }

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) Len() int { return len(s) }

// Union returns a new set with the members of s and other.
func (s RoleSet) Union(other RoleSet) RoleSet {
	out := make(RoleSet, len(s)+len(other))
	for r := range s {
		out[r] = struct{}{}
	}
	for r := range other {
		out[r] = struct{}{}
	}
	return out
}

// Intersect returns a new set with the members common to s and other.
func (s RoleSet) Intersect(other RoleSet) RoleSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := RoleSet{}
	for r := range small {
		if large.Contains(r) {
			out[r] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in ascending order.
func (s RoleSet) Sorted() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal reports whether s and other have the same members.
func (s RoleSet) Equal(other RoleSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Contains(r) {
			return false
		}
	}
	return true
}

// RolesOf returns every role that acts somewhere in g.
//
// End contributes nothing; Interact contributes its role; Choice and Par
// contribute both branches; Rec contributes its body.
func RolesOf(g GlobalType) RoleSet {
	out := RoleSet{}
	collectRoles(g, out)
	return out
}

func collectRoles(g GlobalType, into RoleSet) {
	switch n := g.(type) {
	case Interact:
		into.Add(n.Role)
		collectRoles(n.Cont, into)
	case Choice:
		collectRoles(n.Left, into)
		collectRoles(n.Right, into)
	case Par:
		collectRoles(n.Left, into)
		collectRoles(n.Right, into)
	case Rec:
		collectRoles(n.Body, into)
	}
}

// Involves reports whether role acts somewhere in g.
func Involves(g GlobalType, role Role) bool {
	switch n := g.(type) {
	case Interact:
		return n.Role == role || Involves(n.Cont, role)
	case Choice:
		return Involves(n.Left, role) || Involves(n.Right, role)
	case Par:
		return Involves(n.Left, role) || Involves(n.Right, role)
	case Rec:
		return Involves(n.Body, role)
	default:
		return false
	}
}
