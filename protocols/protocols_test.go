package protocols

import (
	"testing"

	"besedarium.dev/mpst/session"
	"besedarium.dev/mpst/verify"
)

func TestCatalogIsWellFormed(t *testing.T) {
	for _, name := range Names() {
		e, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", name, err)
		}
		g, err := e.Build()
		if err != nil {
			t.Fatalf("%s: Build: %v", name, err)
		}
		rep, err := verify.VerifyStrict(g, verify.Options{})
		if err != nil {
			t.Fatalf("%s: VerifyStrict: %v", name, err)
		}
		if len(rep.Locals) != len(rep.Roles) {
			t.Fatalf("%s: %d locals for %d roles", name, len(rep.Locals), len(rep.Roles))
		}
	}
	if _, err := Lookup("nope"); err == nil {
		t.Fatalf("expected error for unknown protocol")
	}
}

func TestWorkflowProjections(t *testing.T) {
	g, err := Workflow()
	if err != nil {
		t.Fatalf("Workflow: %v", err)
	}
	worker, err := session.Project(session.Worker, g)
	if err != nil {
		t.Fatalf("Project(worker): %v", err)
	}
	want := session.Send{Label: "notify-worker", Role: session.Worker, Msg: session.MsgNotify, IO: session.IOMQTT, Cont: session.LocalEnd{Label: "notify-done"}}
	if worker != want {
		t.Fatalf("worker = %s, want %s", worker, want)
	}
	server, err := session.Project(session.Server, g)
	if err != nil {
		t.Fatalf("Project(server): %v", err)
	}
	if server.Kind() != session.KindRecv || server.NodeLabel() != "request" {
		t.Fatalf("server = %s", server)
	}
}

func TestStreamingKeepsRec(t *testing.T) {
	g, _ := Streaming()
	l, err := session.Project(session.Server, g)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	rec, ok := l.(session.LocalRec)
	if !ok || rec.Label != "stream" || rec.Body.Kind() != session.KindRecv {
		t.Fatalf("server = %s", l)
	}
}
