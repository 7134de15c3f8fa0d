package verify_test

import (
	"reflect"
	"testing"

	"besedarium.dev/mpst/compliance"
	"besedarium.dev/mpst/internal/testutil/testlog"
	"besedarium.dev/mpst/session"
	"besedarium.dev/mpst/verify"
)

func handshake() session.GlobalType {
	return session.NewInteract("req", session.Client, session.MsgMessage,
		session.NewInteract("resp", session.Server, session.MsgResponse, session.NewEnd("done")))
}

func uncertifiedWorkflow() session.GlobalType {
	return session.UncertifiedPar("fanout",
		handshake(),
		session.NewInteract("pub", session.Broker, session.MsgPublish, session.NewEnd("pub-done")),
	)
}

func TestVerify_WellFormed(t *testing.T) {
	testlog.Start(t)
	rep, err := verify.Verify(handshake(), verify.Options{Logger: testlog.Logger(t)})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !rep.WellFormed {
		t.Fatalf("expected well-formed report")
	}
	if got, want := rep.Roles, []session.Role{session.Client, session.Server}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Roles = %v, want %v", got, want)
	}
	if got, want := rep.Labels, []session.Label{"req", "resp", "done"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Labels = %v, want %v", got, want)
	}
	l, ok := rep.Local(session.Client)
	if !ok || l.Kind() != session.KindSend {
		t.Fatalf("client local = %v", l)
	}
	l, ok = rep.Local(session.Server)
	if !ok || l.Kind() != session.KindRecv {
		t.Fatalf("server local = %v", l)
	}
}

func TestVerify_PermissiveCertifiesDisjointPar(t *testing.T) {
	rep, err := verify.Verify(uncertifiedWorkflow(), verify.Options{Mode: compliance.Permissive})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(rep.Witnesses) != 1 || !rep.Witnesses[0].Certified {
		t.Fatalf("witnesses = %+v", rep.Witnesses)
	}
	if got := rep.Locals[session.Broker]; got.Kind() != session.KindSend {
		t.Fatalf("broker local = %s", got)
	}
	if p, ok := rep.Protocol.(session.Par); !ok || !p.Certified {
		t.Fatalf("report protocol should be certified: %v", rep.Protocol)
	}
}

func TestVerify_StrictRejectsUncertifiedPar(t *testing.T) {
	rep, err := verify.VerifyStrict(uncertifiedWorkflow(), verify.Options{})
	if session.RuleID(err) != session.RuleUncertifiedPar {
		t.Fatalf("err = %v, want %s", err, session.RuleUncertifiedPar)
	}
	if rep.WellFormed || rep.Locals != nil {
		t.Fatalf("rejected protocol must not be projected")
	}
	if len(rep.Violations) != 1 || rep.Violations[0].Path != "/" || rep.Violations[0].Label != "fanout" {
		t.Fatalf("violations = %+v", rep.Violations)
	}

	certified, cerr := session.CertifyAll(uncertifiedWorkflow())
	if cerr != nil {
		t.Fatalf("CertifyAll: %v", cerr)
	}
	if _, err := verify.VerifyStrict(certified, verify.Options{}); err != nil {
		t.Fatalf("certified protocol rejected in strict mode: %v", err)
	}
}

func TestVerify_CollectsAllViolations(t *testing.T) {
	g := session.NewChoice("dup",
		session.Par{
			Label:     "overlap",
			Left:      session.NewInteract("a", session.Client, session.MsgMessage, session.NewEnd("end")),
			Right:     session.NewInteract("b", session.Client, session.MsgPublish, session.NewEnd("end")),
			Certified: true,
		},
		session.NewInteract("dup", session.Server, session.MsgResponse, session.NewEnd("tail")),
	)
	rep, err := verify.Verify(g, verify.Options{})
	if err == nil {
		t.Fatalf("expected rejection")
	}
	var ids []string
	for _, v := range rep.Violations {
		ids = append(ids, v.RuleID)
	}
	want := []string{session.RuleDuplicateLabel, session.RuleDuplicateLabel, session.RuleNonDisjointPar}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("violations = %v, want %v", ids, want)
	}
	if rep.Violations[0].Label != "end" || rep.Violations[1].Label != "dup" {
		t.Fatalf("duplicate order = %+v", rep.Violations[:2])
	}
	if v := rep.Violations[2]; v.Role != session.Client || v.Path != "/left" {
		t.Fatalf("disjointness violation = %+v", v)
	}
	if session.RuleID(err) != session.RuleDuplicateLabel {
		t.Fatalf("first error = %v", err)
	}
}

func TestVerify_StructureFailureStopsEarly(t *testing.T) {
	rep, err := verify.Verify(session.NewChoice("c", session.NewEnd("e"), nil), verify.Options{})
	if session.RuleID(err) != session.RuleNilSubtree {
		t.Fatalf("err = %v", err)
	}
	if len(rep.Violations) != 1 || rep.Violations[0].Path != "/right" {
		t.Fatalf("violations = %+v", rep.Violations)
	}
	if _, err := verify.Verify(nil, verify.Options{}); err != verify.ErrNilProtocol {
		t.Fatalf("Verify(nil) = %v", err)
	}
}

func TestVerify_ExtraRolesGetSkip(t *testing.T) {
	g, err := session.NewPar("p",
		session.NewInteract("a", session.Client, session.MsgMessage, session.NewEnd("e1")),
		session.NewInteract("b", session.Worker, session.MsgNotify, session.NewEnd("e2")),
	)
	if err != nil {
		t.Fatalf("NewPar: %v", err)
	}
	rep, err := verify.Verify(g, verify.Options{Roles: []session.Role{"auditor"}})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := rep.Locals["auditor"]; got != (session.Skip{Label: "p"}) {
		t.Fatalf("auditor = %s", got)
	}
	if got, want := rep.LocalRoles(), []session.Role{"auditor", session.Client, session.Worker}; !reflect.DeepEqual(got, want) {
		t.Fatalf("LocalRoles = %v, want %v", got, want)
	}
}

func TestVerify_Deterministic(t *testing.T) {
	g := uncertifiedWorkflow()
	golden, err := verify.Verify(g, verify.Options{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	for run := 0; run < 25; run++ {
		rep, err := verify.Verify(g, verify.Options{})
		if err != nil {
			t.Fatalf("Verify(run %d): %v", run, err)
		}
		if !reflect.DeepEqual(rep, golden) {
			t.Fatalf("run %d differs from the first run", run)
		}
	}
}

func TestRules_Order(t *testing.T) {
	want := []string{session.RuleDuplicateLabel, session.RuleNonDisjointPar, session.RuleUncertifiedPar}
	if got := verify.Rules(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Rules = %v, want %v", got, want)
	}
}
