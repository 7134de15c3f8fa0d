package model

import (
	"errors"
	"testing"

	"besedarium.dev/mpst/certificate"
	"besedarium.dev/mpst/internal/testutil/testlog"
	"besedarium.dev/mpst/session"
	"besedarium.dev/mpst/storage"
)

func codeOf(t *testing.T, err error) ErrorCode {
	t.Helper()
	var ce *CodedError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CodedError, got %T: %v", err, err)
	}
	return ce.Code
}

func TestProject_CatalogCertified(t *testing.T) {
	opts := ProjectOptions{Logger: testlog.Logger(t)}
	resp, err := Project(ProjectionRequest{
		Protocol:   ProtocolRef{Catalog: "handshake"},
		Compliance: ComplianceStrict,
		Certify:    true,
	}, opts)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if !resp.WellFormed || len(resp.Errors) != 0 {
		t.Fatalf("expected well-formed, got %+v", resp.Errors)
	}
	if resp.Name != "handshake" || resp.Compliance != "strict" {
		t.Fatalf("name/compliance = %s/%s", resp.Name, resp.Compliance)
	}
	if len(resp.Projections) != 2 || resp.Projections[0].Role != "client" || resp.Projections[1].Role != "server" {
		t.Fatalf("projections = %+v", resp.Projections)
	}
	if resp.ProtocolCID == "" || resp.Fingerprint == "" {
		t.Fatalf("missing identity: %+v", resp)
	}
	if resp.Certificate == nil {
		t.Fatalf("expected certificate")
	}
	id, err := certificate.CID(resp.Certificate.Bytes)
	if err != nil {
		t.Fatalf("certificate.CID: %v", err)
	}
	if id != resp.Certificate.CID {
		t.Fatalf("certificate CID = %s, want %s", resp.Certificate.CID, id)
	}
	v, ok, err := certificate.Field(resp.Certificate.Bytes, "INPUTS", "Protocol-CID")
	if err != nil || !ok || v != resp.ProtocolCID {
		t.Fatalf("Protocol-CID = %q, %v, %v; want %s", v, ok, err, resp.ProtocolCID)
	}
}

func TestProject_RejectedProtocolIsData(t *testing.T) {
	doc := []byte(`
protocol: dup
root:
  kind: interact
  label: a
  role: client
  msg: Message
  cont:
    kind: interact
    label: a
    role: server
    msg: Response
    cont: {kind: end, label: done}
`)
	resp, err := Project(ProjectionRequest{
		Protocol: ProtocolRef{Bytes: doc},
		Certify:  true,
	}, ProjectOptions{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if resp.WellFormed || resp.Certificate != nil || len(resp.Projections) != 0 {
		t.Fatalf("expected rejection, got %+v", resp)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("errors = %+v", resp.Errors)
	}
	e := resp.Errors[0]
	if e.Code != ErrNotWellFormed || e.RuleID != session.RuleDuplicateLabel || e.Label != "a" {
		t.Fatalf("error = %+v", e)
	}
	if resp.ProtocolCID == "" {
		t.Fatalf("rejected protocol should still be identified")
	}
}

func TestProject_StrictReportsUncertifiedPar(t *testing.T) {
	doc := []byte(`{
  "protocol": "fanout",
  "root": {
    "kind": "par", "label": "p",
    "left":  {"kind": "interact", "label": "a", "role": "client", "msg": "Message", "cont": {"kind": "end", "label": "e1"}},
    "right": {"kind": "interact", "label": "b", "role": "broker", "msg": "Publish", "cont": {"kind": "end", "label": "e2"}}
  }
}`)
	req := ProjectionRequest{Protocol: ProtocolRef{Bytes: doc, Format: "json"}, Compliance: ComplianceStrict}
	resp, err := Project(req, ProjectOptions{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if resp.WellFormed || len(resp.Errors) == 0 || resp.Errors[0].RuleID != session.RuleUncertifiedPar {
		t.Fatalf("strict response = %+v", resp.Errors)
	}

	req.Compliance = CompliancePermissive
	resp, err = Project(req, ProjectOptions{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if !resp.WellFormed || len(resp.Witnesses) != 1 || !resp.Witnesses[0].Certified {
		t.Fatalf("permissive response = %+v", resp)
	}
}

func TestProject_DocumentRolesAreProjected(t *testing.T) {
	doc := []byte("protocol: observed\nroles: [auditor]\nroot: {kind: interact, label: a, role: client, msg: Message, cont: {kind: end, label: e}}\n")
	res, err := ProjectResult(ProjectionRequest{
		Protocol: ProtocolRef{Bytes: doc},
		Roles:    []string{"broker"},
	}, ProjectOptions{})
	if err != nil {
		t.Fatalf("ProjectResult: %v", err)
	}
	for _, role := range []session.Role{"auditor", session.Broker, session.Client} {
		if _, ok := res.Report.Local(role); !ok {
			t.Fatalf("no projection for %s", role)
		}
	}
	if res.Certificate != nil || res.Manifest != nil {
		t.Fatalf("unexpected certificate or manifest")
	}
}

func TestProject_PublishThenLoadByCID(t *testing.T) {
	cas := storage.NewMemCAS()
	opts := ProjectOptions{CAS: cas, Logger: testlog.Logger(t)}
	first, err := Project(ProjectionRequest{
		Protocol: ProtocolRef{Catalog: "workflow"},
		Certify:  true,
		Publish:  true,
	}, opts)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	protoCID, ok := first.Published["protocol"]
	if !ok || protoCID != first.ProtocolCID {
		t.Fatalf("published = %v, protocol cid %s", first.Published, first.ProtocolCID)
	}
	if first.Published["certificate"] != first.Certificate.CID {
		t.Fatalf("certificate not published: %v", first.Published)
	}

	second, err := Project(ProjectionRequest{
		Protocol:   ProtocolRef{CID: protoCID},
		Compliance: ComplianceStrict,
	}, ProjectOptions{CASAdapters: []storage.CAS{storage.NewMemCAS(), cas}})
	if err != nil {
		t.Fatalf("Project by cid: %v", err)
	}
	if second.ProtocolCID != first.ProtocolCID || len(second.Projections) != len(first.Projections) {
		t.Fatalf("reloaded protocol differs: %+v", second)
	}
	for i := range first.Projections {
		if first.Projections[i] != second.Projections[i] {
			t.Fatalf("projection %d = %+v, want %+v", i, second.Projections[i], first.Projections[i])
		}
	}
}

func TestProject_InvalidRequests(t *testing.T) {
	cas := storage.NewMemCAS()
	certID, err := cas.Put([]byte("not a protocol"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	cases := []struct {
		name string
		req  ProjectionRequest
		opts ProjectOptions
		want ErrorCode
	}{
		{"empty ref", ProjectionRequest{}, ProjectOptions{}, ErrInvalidRequest},
		{"two refs", ProjectionRequest{Protocol: ProtocolRef{Catalog: "handshake", Bytes: []byte("x")}}, ProjectOptions{}, ErrInvalidRequest},
		{"bad compliance", ProjectionRequest{Protocol: ProtocolRef{Catalog: "handshake"}, Compliance: "lenient"}, ProjectOptions{}, ErrInvalidRequest},
		{"empty role", ProjectionRequest{Protocol: ProtocolRef{Catalog: "handshake"}, Roles: []string{" "}}, ProjectOptions{}, ErrInvalidRequest},
		{"unknown catalog", ProjectionRequest{Protocol: ProtocolRef{Catalog: "nope"}}, ProjectOptions{}, ErrNotFound},
		{"bad cid", ProjectionRequest{Protocol: ProtocolRef{CID: "not-a-cid"}}, ProjectOptions{CAS: cas}, ErrInvalidCID},
		{"cid without cas", ProjectionRequest{Protocol: ProtocolRef{CID: certID.String()}}, ProjectOptions{}, ErrMissingCAS},
		{"publish without cas", ProjectionRequest{Protocol: ProtocolRef{Catalog: "handshake"}, Publish: true}, ProjectOptions{}, ErrMissingCAS},
		{"wrong kind", ProjectionRequest{Protocol: ProtocolRef{CID: certID.String()}}, ProjectOptions{CAS: cas}, ErrWrongKind},
		{"bad format", ProjectionRequest{Protocol: ProtocolRef{Bytes: []byte("x"), Format: "xml"}}, ProjectOptions{}, ErrInvalidRequest},
		{"bad document", ProjectionRequest{Protocol: ProtocolRef{Bytes: []byte("protocol: x\n")}}, ProjectOptions{}, ErrInvalidDocument},
	}
	for _, tc := range cases {
		_, err := Project(tc.req, tc.opts)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if got := codeOf(t, err); got != tc.want {
			t.Fatalf("%s: code = %s, want %s (%v)", tc.name, got, tc.want, err)
		}
	}
}
