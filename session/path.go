package session

import "strings"

// Step is one edge from a node to a child.
type Step string

const (
	StepCont  Step = "cont"
	StepLeft  Step = "left"
	StepRight Step = "right"
	StepBody  Step = "body"
)

// Path locates a subtree by the steps taken from the root. The root is the
// empty path.
type Path []Step

// Child returns a new path extended by s. The receiver is not modified.
func (p Path) Child(s Step) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// String renders the path as "/" for the root or "/left/cont" style otherwise.
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, s := range p {
		sb.WriteString("/")
		sb.WriteString(string(s))
	}
	return sb.String()
}

// ParsePath is the inverse of Path.String.
func ParsePath(s string) (Path, bool) {
	if s == "/" {
		return Path{}, true
	}
	if !strings.HasPrefix(s, "/") {
		return nil, false
	}
	parts := strings.Split(s[1:], "/")
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		switch Step(part) {
		case StepCont, StepLeft, StepRight, StepBody:
			out = append(out, Step(part))
		default:
			return nil, false
		}
	}
	return out, true
}

// Lookup returns the subtree of g at p.
func Lookup(g GlobalType, p Path) (GlobalType, bool) {
	cur := g
	for _, s := range p {
		switch n := cur.(type) {
		case Interact:
			if s != StepCont {
				return nil, false
			}
			cur = n.Cont
		case Choice:
			cur = pickBranch(s, n.Left, n.Right)
		case Par:
			cur = pickBranch(s, n.Left, n.Right)
		case Rec:
			if s != StepBody {
				return nil, false
			}
			cur = n.Body
		default:
			return nil, false
		}
		if cur == nil {
			return nil, false
		}
	}
	return cur, cur != nil
}

func pickBranch(s Step, left, right GlobalType) GlobalType {
	switch s {
	case StepLeft:
		return left
	case StepRight:
		return right
	default:
		return nil
	}
}
