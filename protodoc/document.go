// Package protodoc is the protocol builder boundary: it decodes protocol
// documents (YAML, JSONC or CBOR) into session.GlobalType trees and encodes
// trees back into documents and canonical bytes.
//
// A document node is a tagged record:
//
//	kind: interact          # end | interact | choice | par | rec
//	label: request          # optional; generated from the path when empty
//	role: client            # interact only
//	msg: Message            # interact only
//	io: http                # interact only, optional
//	cont: {kind: end}       # interact only
//	left: ..., right: ...   # choice and par
//	certified: true         # par only; the builder's disjointness witness
//	body: ...               # rec only
package protodoc

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"besedarium.dev/mpst/session"
)

// Document is a named protocol with an optional role roster.
//
// Roles lists participants that must receive a projection even when they
// never act. IO is the default marker for interactions that set none.
type Document struct {
	Protocol string   `json:"protocol" yaml:"protocol" cbor:"protocol" validate:"required,max=128"`
	IO       string   `json:"io,omitempty" yaml:"io,omitempty" cbor:"io,omitempty" validate:"omitempty,oneof=http db mqtt cache mixed"`
	Roles    []string `json:"roles,omitempty" yaml:"roles,omitempty" cbor:"roles,omitempty" validate:"dive,required"`
	Root     *Node    `json:"root" yaml:"root" cbor:"root" validate:"required"`
}

// Node is one document node. See the package documentation for which fields
// each kind uses.
type Node struct {
	Kind      string `json:"kind" yaml:"kind" cbor:"kind" validate:"required,oneof=end interact choice par rec"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty" cbor:"label,omitempty" validate:"max=256"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty" cbor:"role,omitempty"`
	Msg       string `json:"msg,omitempty" yaml:"msg,omitempty" cbor:"msg,omitempty"`
	IO        string `json:"io,omitempty" yaml:"io,omitempty" cbor:"io,omitempty" validate:"omitempty,oneof=http db mqtt cache mixed"`
	Cont      *Node  `json:"cont,omitempty" yaml:"cont,omitempty" cbor:"cont,omitempty"`
	Left      *Node  `json:"left,omitempty" yaml:"left,omitempty" cbor:"left,omitempty"`
	Right     *Node  `json:"right,omitempty" yaml:"right,omitempty" cbor:"right,omitempty"`
	Body      *Node  `json:"body,omitempty" yaml:"body,omitempty" cbor:"body,omitempty"`
	Certified bool   `json:"certified,omitempty" yaml:"certified,omitempty" cbor:"certified,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(nodeShape, Node{})
	return v
}

// nodeShape enforces which child and action fields each kind may carry.
func nodeShape(sl validator.StructLevel) {
	n := sl.Current().Interface().(Node)
	need := func(ok bool, field, tag string) {
		if !ok {
			sl.ReportError(n.Kind, field, field, tag, n.Kind)
		}
	}
	switch n.Kind {
	case "end":
		need(n.Role == "" && n.Msg == "" && n.Cont == nil && n.Left == nil && n.Right == nil && n.Body == nil, "Kind", "leaf")
	case "interact":
		need(n.Role != "", "Role", "required")
		need(n.Msg != "", "Msg", "required")
		need(n.Cont != nil, "Cont", "required")
		need(n.Left == nil && n.Right == nil && n.Body == nil, "Kind", "interact_children")
	case "choice", "par":
		need(n.Left != nil, "Left", "required")
		need(n.Right != nil, "Right", "required")
		need(n.Cont == nil && n.Body == nil && n.Role == "", "Kind", "branch_children")
	case "rec":
		need(n.Body != nil, "Body", "required")
		need(n.Cont == nil && n.Left == nil && n.Right == nil && n.Role == "", "Kind", "rec_children")
	}
	if n.Certified && n.Kind != "par" {
		sl.ReportError(n.Certified, "Certified", "Certified", "par_only", n.Kind)
	}
}

// Validate checks the document against its schema. Nested nodes are
// validated recursively.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("protodoc: nil document")
	}
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("protodoc: invalid document: %w", err)
	}
	return nil
}

// Build validates d and converts it to a global type.
//
// Nodes without a label receive "<kind>@<path>", which is unique within the
// tree. Par nodes keep the witness recorded in the document; certification
// is left to the caller (see verify and session.CertifyAll).
func (d *Document) Build() (session.GlobalType, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return buildNode(d.Root, nil, session.IO(d.IO), true), nil
}

// ExtraRoles returns the document's role roster as session roles.
func (d *Document) ExtraRoles() []session.Role {
	out := make([]session.Role, 0, len(d.Roles))
	for _, r := range d.Roles {
		out = append(out, session.Role(r))
	}
	return out
}

// buildNode converts a validated node. With auto set, empty labels are
// replaced by AutoLabel.
func buildNode(n *Node, p session.Path, io session.IO, auto bool) session.GlobalType {
	label := session.Label(n.Label)
	if label == "" && auto {
		label = AutoLabel(session.NodeKind(n.Kind), p)
	}
	switch n.Kind {
	case "end":
		return session.End{Label: label}
	case "interact":
		nio := session.IO(n.IO)
		if nio == session.IONone {
			nio = io
		}
		return session.Interact{
			Label: label,
			Role:  session.Role(n.Role),
			Msg:   session.Message(n.Msg),
			IO:    nio,
			Cont:  buildNode(n.Cont, p.Child(session.StepCont), io, auto),
		}
	case "choice":
		return session.Choice{
			Label: label,
			Left:  buildNode(n.Left, p.Child(session.StepLeft), io, auto),
			Right: buildNode(n.Right, p.Child(session.StepRight), io, auto),
		}
	case "par":
		return session.Par{
			Label:     label,
			Left:      buildNode(n.Left, p.Child(session.StepLeft), io, auto),
			Right:     buildNode(n.Right, p.Child(session.StepRight), io, auto),
			Certified: n.Certified,
		}
	default:
		return session.Rec{
			Label: label,
			Body:  buildNode(n.Body, p.Child(session.StepBody), io, auto),
		}
	}
}

// AutoLabel is the label given to an unlabeled node of kind k at p.
func AutoLabel(k session.NodeKind, p session.Path) session.Label {
	return session.Label(string(k) + "@" + p.String())
}

// FromGlobal converts g into a document. Labels and witnesses are written
// verbatim; IO markers are written per interaction.
func FromGlobal(name string, g session.GlobalType, roles ...session.Role) *Document {
	d := &Document{Protocol: name, Root: nodeOf(g)}
	for _, r := range roles {
		d.Roles = append(d.Roles, string(r))
	}
	return d
}

func nodeOf(g session.GlobalType) *Node {
	switch n := g.(type) {
	case session.End:
		return &Node{Kind: "end", Label: string(n.Label)}
	case session.Interact:
		return &Node{Kind: "interact", Label: string(n.Label), Role: string(n.Role), Msg: string(n.Msg), IO: string(n.IO), Cont: nodeOf(n.Cont)}
	case session.Choice:
		return &Node{Kind: "choice", Label: string(n.Label), Left: nodeOf(n.Left), Right: nodeOf(n.Right)}
	case session.Par:
		return &Node{Kind: "par", Label: string(n.Label), Left: nodeOf(n.Left), Right: nodeOf(n.Right), Certified: n.Certified}
	case session.Rec:
		return &Node{Kind: "rec", Label: string(n.Label), Body: nodeOf(n.Body)}
	default:
		return nil
	}
}

// Format names a document encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSONC Format = "jsonc"
	FormatCBOR  Format = "cbor"
)

// FormatForPath picks a format from a file extension. Unknown extensions
// are treated as YAML, which also accepts plain JSON.
func FormatForPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"), strings.HasSuffix(lower, ".jsonc"):
		return FormatJSONC
	case strings.HasSuffix(lower, ".cbor"):
		return FormatCBOR
	default:
		return FormatYAML
	}
}

// ParseFormat accepts a format name as used on the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatJSONC, "json":
		return FormatJSONC, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("protodoc: unknown format %q", s)
	}
}
