package protodoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"besedarium.dev/mpst/session"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items. The same tree always
// produces identical bytes, which is what CIDs are computed over.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protodoc: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("protodoc: CBOR decoder initialization failed: " + err.Error())
	}
}

// DecodeYAML parses a YAML (or plain JSON) document. Unknown fields are
// rejected.
func DecodeYAML(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var d Document
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("protodoc: parsing yaml: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecodeJSONC strips JSONC comments and trailing commas, then parses the
// result as JSON. Unknown fields are rejected.
func DecodeJSONC(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	var d Document
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("protodoc: parsing json: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecodeCBOR parses a CBOR document. Unknown fields are rejected.
func DecodeCBOR(data []byte) (*Document, error) {
	var d Document
	if err := decMode.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("protodoc: parsing cbor: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Decode parses data in the given format.
func Decode(data []byte, f Format) (*Document, error) {
	switch f {
	case FormatYAML:
		return DecodeYAML(data)
	case FormatJSONC:
		return DecodeJSONC(data)
	case FormatCBOR:
		return DecodeCBOR(data)
	default:
		return nil, fmt.Errorf("protodoc: unknown format %q", f)
	}
}

// ReadFile reads and decodes a document, choosing the format from the file
// extension.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	d, err := Decode(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// EncodeYAML renders d as YAML.
func EncodeYAML(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeJSON renders d as indented JSON.
func EncodeJSON(d *Document) ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// EncodeCBOR renders d as deterministic CBOR.
func EncodeCBOR(d *Document) ([]byte, error) {
	return encMode.Marshal(d)
}

// Encode renders d in the given format.
func Encode(d *Document, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return EncodeYAML(d)
	case FormatJSONC:
		return EncodeJSON(d)
	case FormatCBOR:
		return EncodeCBOR(d)
	default:
		return nil, fmt.Errorf("protodoc: unknown format %q", f)
	}
}

// CanonicalGlobal returns the deterministic CBOR encoding of g alone, without
// document metadata. Two trees have equal canonical bytes exactly when they
// are structurally equal, witnesses included.
func CanonicalGlobal(g session.GlobalType) ([]byte, error) {
	n := nodeOf(g)
	if n == nil {
		return nil, fmt.Errorf("protodoc: cannot encode empty protocol")
	}
	return encMode.Marshal(n)
}

// DecodeGlobal is the inverse of CanonicalGlobal. Labels are taken
// verbatim, including empty ones.
func DecodeGlobal(data []byte) (session.GlobalType, error) {
	var n Node
	if err := decMode.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("protodoc: parsing global cbor: %w", err)
	}
	if err := validate.Struct(n); err != nil {
		return nil, fmt.Errorf("protodoc: invalid protocol: %w", err)
	}
	return buildNode(&n, nil, session.IONone, false), nil
}

// localNode is the canonical record form of a local type.
type localNode struct {
	Kind  string     `cbor:"kind"`
	Label string     `cbor:"label"`
	Role  string     `cbor:"role,omitempty"`
	Msg   string     `cbor:"msg,omitempty"`
	IO    string     `cbor:"io,omitempty"`
	Cont  *localNode `cbor:"cont,omitempty"`
	Left  *localNode `cbor:"left,omitempty"`
	Right *localNode `cbor:"right,omitempty"`
	Body  *localNode `cbor:"body,omitempty"`
}

func localNodeOf(l session.LocalType) *localNode {
	switch n := l.(type) {
	case session.LocalEnd:
		return &localNode{Kind: string(session.KindEnd), Label: string(n.Label)}
	case session.Send:
		return &localNode{Kind: string(session.KindSend), Label: string(n.Label), Role: string(n.Role), Msg: string(n.Msg), IO: string(n.IO), Cont: localNodeOf(n.Cont)}
	case session.Recv:
		return &localNode{Kind: string(session.KindRecv), Label: string(n.Label), Role: string(n.Role), Msg: string(n.Msg), IO: string(n.IO), Cont: localNodeOf(n.Cont)}
	case session.LocalChoice:
		return &localNode{Kind: string(session.KindChoice), Label: string(n.Label), Left: localNodeOf(n.Left), Right: localNodeOf(n.Right)}
	case session.LocalPar:
		return &localNode{Kind: string(session.KindPar), Label: string(n.Label), Left: localNodeOf(n.Left), Right: localNodeOf(n.Right)}
	case session.Skip:
		return &localNode{Kind: string(session.KindSkip), Label: string(n.Label)}
	case session.LocalRec:
		return &localNode{Kind: string(session.KindRec), Label: string(n.Label), Body: localNodeOf(n.Body)}
	default:
		return nil
	}
}

// CanonicalLocal returns the deterministic CBOR encoding of a local type.
func CanonicalLocal(l session.LocalType) ([]byte, error) {
	n := localNodeOf(l)
	if n == nil {
		return nil, fmt.Errorf("protodoc: cannot encode empty local type")
	}
	return encMode.Marshal(n)
}

// DecodeLocal is the inverse of CanonicalLocal.
func DecodeLocal(data []byte) (session.LocalType, error) {
	var n localNode
	if err := decMode.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("protodoc: parsing local cbor: %w", err)
	}
	return localFromNode(&n)
}

func localFromNode(n *localNode) (session.LocalType, error) {
	if n == nil {
		return nil, fmt.Errorf("protodoc: missing local subtree")
	}
	label := session.Label(n.Label)
	switch session.NodeKind(n.Kind) {
	case session.KindEnd:
		return session.LocalEnd{Label: label}, nil
	case session.KindSkip:
		return session.Skip{Label: label}, nil
	case session.KindSend, session.KindRecv:
		cont, err := localFromNode(n.Cont)
		if err != nil {
			return nil, err
		}
		if session.NodeKind(n.Kind) == session.KindSend {
			return session.Send{Label: label, Role: session.Role(n.Role), Msg: session.Message(n.Msg), IO: session.IO(n.IO), Cont: cont}, nil
		}
		return session.Recv{Label: label, Role: session.Role(n.Role), Msg: session.Message(n.Msg), IO: session.IO(n.IO), Cont: cont}, nil
	case session.KindChoice, session.KindPar:
		left, err := localFromNode(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := localFromNode(n.Right)
		if err != nil {
			return nil, err
		}
		if session.NodeKind(n.Kind) == session.KindChoice {
			return session.LocalChoice{Label: label, Left: left, Right: right}, nil
		}
		return session.LocalPar{Label: label, Left: left, Right: right}, nil
	case session.KindRec:
		body, err := localFromNode(n.Body)
		if err != nil {
			return nil, err
		}
		return session.LocalRec{Label: label, Body: body}, nil
	default:
		return nil, fmt.Errorf("protodoc: unknown local kind %q", n.Kind)
	}
}
