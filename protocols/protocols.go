// Package protocols is a small catalog of reference protocols over the
// client, server, broker and worker roles.
package protocols

import (
	"fmt"
	"sort"

	"besedarium.dev/mpst/session"
)

// Entry is one catalog protocol.
type Entry struct {
	Name        string
	Description string
	Build       func() (session.GlobalType, error)
}

var catalog = map[string]Entry{
	"handshake": {
		Name:        "handshake",
		Description: "HTTP request followed by a response",
		Build:       Handshake,
	},
	"branching": {
		Name:        "branching",
		Description: "client either logs in or registers",
		Build:       Branching,
	},
	"concurrent": {
		Name:        "concurrent",
		Description: "a client download running alongside a worker upload",
		Build:       Concurrent,
	},
	"mixed": {
		Name:        "mixed",
		Description: "HTTP and MQTT traffic composed in parallel",
		Build:       Mixed,
	},
	"pubsub": {
		Name:        "pubsub",
		Description: "client publishes or subscribes over MQTT",
		Build:       PubSub,
	},
	"streaming": {
		Name:        "streaming",
		Description: "client streams messages in a loop",
		Build:       Streaming,
	},
	"workflow": {
		Name:        "workflow",
		Description: "request/response with broker and worker notifications in parallel",
		Build:       Workflow,
	},
}

// Names returns the catalog names, sorted.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for n := range catalog {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the named entry.
func Lookup(name string) (Entry, error) {
	e, ok := catalog[name]
	if !ok {
		return Entry{}, fmt.Errorf("protocols: unknown protocol %q", name)
	}
	return e, nil
}

func interact(label session.Label, role session.Role, msg session.Message, io session.IO, cont session.GlobalType) session.Interact {
	return session.Interact{Label: label, Role: role, Msg: msg, IO: io, Cont: cont}
}

// Handshake: client sends a request, server answers.
func Handshake() (session.GlobalType, error) {
	return interact("request", session.Client, session.MsgMessage, session.IOHTTP,
		interact("response", session.Server, session.MsgResponse, session.IOHTTP,
			session.NewEnd("handshake-done"))), nil
}

// Branching: client chooses between login and registration.
func Branching() (session.GlobalType, error) {
	return session.NewChoice("login-or-register",
		interact("login", session.Client, session.MsgMessage, session.IOHTTP, session.NewEnd("login-done")),
		interact("register", session.Client, session.MsgPublish, session.IOHTTP, session.NewEnd("register-done")),
	), nil
}

// Concurrent: independent transfers by disjoint roles.
func Concurrent() (session.GlobalType, error) {
	p, err := session.NewPar("transfers",
		interact("download", session.Client, session.MsgMessage, session.IOHTTP, session.NewEnd("download-done")),
		interact("upload", session.Worker, session.MsgPublish, session.IOHTTP, session.NewEnd("upload-done")),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Mixed: HTTP on one branch, MQTT on the other.
func Mixed() (session.GlobalType, error) {
	p, err := session.NewPar("mixed",
		interact("http-request", session.Client, session.MsgMessage, session.IOHTTP, session.NewEnd("http-done")),
		interact("mqtt-publish", session.Broker, session.MsgPublish, session.IOMQTT, session.NewEnd("mqtt-done")),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PubSub: client publishes or subscribes.
func PubSub() (session.GlobalType, error) {
	return session.NewChoice("pub-or-sub",
		interact("publish", session.Client, session.MsgPublish, session.IOMQTT, session.NewEnd("publish-done")),
		interact("subscribe", session.Client, session.MsgSubscribe, session.IOMQTT, session.NewEnd("subscribe-done")),
	), nil
}

// Streaming: a recursion point around a single client message.
func Streaming() (session.GlobalType, error) {
	return session.NewRec("stream",
		interact("chunk", session.Client, session.MsgMessage, session.IOHTTP, session.NewEnd("chunk-done")),
	), nil
}

// Workflow: a client/server exchange in parallel with broker and worker
// notifications. The three branches are nested binary Pars.
func Workflow() (session.GlobalType, error) {
	notify, err := session.NewPar("notify",
		interact("publish", session.Broker, session.MsgPublish, session.IOMQTT, session.NewEnd("publish-done")),
		interact("notify-worker", session.Worker, session.MsgNotify, session.IOMQTT, session.NewEnd("notify-done")),
	)
	if err != nil {
		return nil, err
	}
	exchange := interact("request", session.Client, session.MsgMessage, session.IOHTTP,
		interact("response", session.Server, session.MsgResponse, session.IOHTTP, session.NewEnd("exchange-done")))
	root, err := session.NewPar("workflow", exchange, notify)
	if err != nil {
		return nil, err
	}
	return root, nil
}
