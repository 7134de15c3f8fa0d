package session

import "strings"

// GlobalType is a protocol described from the viewpoint of all participants.
//
// The implementations are End, Interact, Choice, Par and Rec. The interface is
// sealed; switch on the concrete type to inspect a node.
type GlobalType interface {
	Kind() NodeKind
	NodeLabel() Label
	String() string
	global()
}

// End terminates a branch.
type End struct {
	Label Label
}

// Interact is one action by Role carrying Msg, followed by Cont.
type Interact struct {
	Label Label
	Role  Role
	Msg   Message
	IO    IO
	Cont  GlobalType
}

// Choice takes exactly one of Left or Right.
type Choice struct {
	Label Label
	Left  GlobalType
	Right GlobalType
}

// Par runs Left and Right concurrently.
//
// Certified is the disjointness witness. It is true only when the role sets
// of Left and Right have been checked to be disjoint; construct certified
// values with NewPar, Certify or CertifyAll.
type Par struct {
	Label     Label
	Left      GlobalType
	Right     GlobalType
	Certified bool
}

// Rec marks a recursion point. Body is a finite subtree; looping is left to
// whatever executes the projected local type.
type Rec struct {
	Label Label
	Body  GlobalType
}

func (End) Kind() NodeKind      { return KindEnd }
func (Interact) Kind() NodeKind { return KindInteract }
func (Choice) Kind() NodeKind   { return KindChoice }
func (Par) Kind() NodeKind      { return KindPar }
func (Rec) Kind() NodeKind      { return KindRec }

func (n End) NodeLabel() Label      { return n.Label }
func (n Interact) NodeLabel() Label { return n.Label }
func (n Choice) NodeLabel() Label   { return n.Label }
func (n Par) NodeLabel() Label      { return n.Label }
func (n Rec) NodeLabel() Label      { return n.Label }

func (End) global()      {}
func (Interact) global() {}
func (Choice) global()   {}
func (Par) global()      {}
func (Rec) global()      {}

// NewEnd returns End{label}.
func NewEnd(label Label) End { return End{Label: label} }

// NewInteract returns an Interact with no IO marker.
func NewInteract(label Label, role Role, msg Message, cont GlobalType) Interact {
	return Interact{Label: label, Role: role, Msg: msg, Cont: cont}
}

// NewChoice returns Choice{label, left, right}.
func NewChoice(label Label, left, right GlobalType) Choice {
	return Choice{Label: label, Left: left, Right: right}
}

// NewRec returns Rec{label, body}.
func NewRec(label Label, body GlobalType) Rec {
	return Rec{Label: label, Body: body}
}

// NewPar builds a Par and certifies it. It fails with a NonDisjointPar error
// when the branches share a role.
func NewPar(label Label, left, right GlobalType) (Par, error) {
	return Certify(Par{Label: label, Left: left, Right: right})
}

// UncertifiedPar builds a Par whose witness is not set.
func UncertifiedPar(label Label, left, right GlobalType) Par {
	return Par{Label: label, Left: left, Right: right}
}

func (n End) String() string { return "End(" + quote(string(n.Label)) + ")" }

func (n Interact) String() string {
	var sb strings.Builder
	sb.WriteString("Interact(")
	writeAction(&sb, n.Label, n.Role, n.Msg, n.IO)
	sb.WriteString(",")
	sb.WriteString(globalString(n.Cont))
	sb.WriteString(")")
	return sb.String()
}

func (n Choice) String() string {
	return "Choice(" + quote(string(n.Label)) + "," + globalString(n.Left) + "," + globalString(n.Right) + ")"
}

func (n Par) String() string {
	head := "Par("
	if !n.Certified {
		head = "Par?("
	}
	return head + quote(string(n.Label)) + "," + globalString(n.Left) + "," + globalString(n.Right) + ")"
}

func (n Rec) String() string {
	return "Rec(" + quote(string(n.Label)) + "," + globalString(n.Body) + ")"
}

func globalString(g GlobalType) string {
	if g == nil {
		return "<nil>"
	}
	return g.String()
}

func writeAction(sb *strings.Builder, label Label, role Role, msg Message, io IO) {
	sb.WriteString(quote(string(label)))
	sb.WriteString(",")
	sb.WriteString(quote(string(role)))
	sb.WriteString(",")
	sb.WriteString(quote(string(msg)))
	if io != IONone {
		sb.WriteString("@")
		sb.WriteString(string(io))
	}
}
