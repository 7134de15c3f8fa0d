package session

import (
	"strconv"
	"strings"
)

// Role names a protocol participant. Roles are compared by equality.
type Role string

// Label names a protocol point. Labels are used for diagnostics and for the
// uniqueness check; the empty label is an ordinary value.
type Label string

// Message names the payload type carried by an Interact.
type Message string

// Well-known roles used by the bundled example protocols.
const (
	Client Role = "client"
	Server Role = "server"
	Broker Role = "broker"
	Worker Role = "worker"
)

// Well-known message types.
const (
	MsgMessage   Message = "Message"
	MsgResponse  Message = "Response"
	MsgPublish   Message = "Publish"
	MsgNotify    Message = "Notify"
	MsgSubscribe Message = "Subscribe"
)

// IO marks the transport an interaction travels over. It is informational and
// does not affect verification or projection.
type IO string

const (
	IONone  IO = ""
	IOHTTP  IO = "http"
	IODB    IO = "db"
	IOMQTT  IO = "mqtt"
	IOCache IO = "cache"
	IOMixed IO = "mixed"
)

// Valid reports whether io is a known marker.
func (io IO) Valid() bool {
	switch io {
	case IONone, IOHTTP, IODB, IOMQTT, IOCache, IOMixed:
		return true
	default:
		return false
	}
}

// NodeKind tags global and local tree nodes.
type NodeKind string

const (
	KindEnd      NodeKind = "end"
	KindInteract NodeKind = "interact"
	KindSend     NodeKind = "send"
	KindRecv     NodeKind = "recv"
	KindChoice   NodeKind = "choice"
	KindPar      NodeKind = "par"
	KindSkip     NodeKind = "skip"
	KindRec      NodeKind = "rec"
)

// quote renders an identifier for the textual tree form. Bare identifiers are
// written as-is; anything that could be confused with the surrounding syntax
// is quoted.
func quote(s string) string {
	if s == "" || strings.ContainsAny(s, "(),\"\\ \t\r\n") {
		return strconv.Quote(s)
	}
	return s
}
