package session

import "strings"

// LocalType is a protocol projected onto a single role.
//
// The implementations are LocalEnd, Send, Recv, LocalChoice, LocalPar, Skip and
// LocalRec. Values are comparable with ==.
type LocalType interface {
	Kind() NodeKind
	NodeLabel() Label
	String() string
	local()
}

// LocalEnd terminates a local branch.
type LocalEnd struct {
	Label Label
}

// Send is an action performed by the projected role itself.
type Send struct {
	Label Label
	Role  Role
	Msg   Message
	IO    IO
	Cont  LocalType
}

// Recv is an action performed by another role that the projected role observes.
type Recv struct {
	Label Label
	Role  Role
	Msg   Message
	IO    IO
	Cont  LocalType
}

// LocalChoice means the role must be prepared to follow either branch.
type LocalChoice struct {
	Label Label
	Left  LocalType
	Right LocalType
}

// LocalPar runs two local branches concurrently.
type LocalPar struct {
	Label Label
	Left  LocalType
	Right LocalType
}

// Skip stands for a subtree the role takes no part in. Label is the label of
// the Choice or Par that was skipped.
type Skip struct {
	Label Label
}

// LocalRec marks a recursion point in the local view.
type LocalRec struct {
	Label Label
	Body  LocalType
}

func (LocalEnd) Kind() NodeKind    { return KindEnd }
func (Send) Kind() NodeKind        { return KindSend }
func (Recv) Kind() NodeKind        { return KindRecv }
func (LocalChoice) Kind() NodeKind { return KindChoice }
func (LocalPar) Kind() NodeKind    { return KindPar }
func (Skip) Kind() NodeKind        { return KindSkip }
func (LocalRec) Kind() NodeKind    { return KindRec }

func (n LocalEnd) NodeLabel() Label    { return n.Label }
func (n Send) NodeLabel() Label        { return n.Label }
func (n Recv) NodeLabel() Label        { return n.Label }
func (n LocalChoice) NodeLabel() Label { return n.Label }
func (n LocalPar) NodeLabel() Label    { return n.Label }
func (n Skip) NodeLabel() Label        { return n.Label }
func (n LocalRec) NodeLabel() Label    { return n.Label }

func (LocalEnd) local()    {}
func (Send) local()        {}
func (Recv) local()        {}
func (LocalChoice) local() {}
func (LocalPar) local()    {}
func (Skip) local()        {}
func (LocalRec) local()    {}

func (n LocalEnd) String() string { return "End(" + quote(string(n.Label)) + ")" }

func (n Send) String() string {
	var sb strings.Builder
	sb.WriteString("Send(")
	writeAction(&sb, n.Label, n.Role, n.Msg, n.IO)
	sb.WriteString(",")
	sb.WriteString(localString(n.Cont))
	sb.WriteString(")")
	return sb.String()
}

func (n Recv) String() string {
	var sb strings.Builder
	sb.WriteString("Recv(")
	writeAction(&sb, n.Label, n.Role, n.Msg, n.IO)
	sb.WriteString(",")
	sb.WriteString(localString(n.Cont))
	sb.WriteString(")")
	return sb.String()
}

func (n LocalChoice) String() string {
	return "Choice(" + quote(string(n.Label)) + "," + localString(n.Left) + "," + localString(n.Right) + ")"
}

func (n LocalPar) String() string {
	return "Par(" + quote(string(n.Label)) + "," + localString(n.Left) + "," + localString(n.Right) + ")"
}

func (n Skip) String() string { return "Skip(" + quote(string(n.Label)) + ")" }

func (n LocalRec) String() string {
	return "Rec(" + quote(string(n.Label)) + "," + localString(n.Body) + ")"
}

func localString(l LocalType) string {
	if l == nil {
		return "<nil>"
	}
	return l.String()
}

// IsSkip reports whether l is a Skip node.
func IsSkip(l LocalType) bool {
	_, ok := l.(Skip)
	return ok
}
