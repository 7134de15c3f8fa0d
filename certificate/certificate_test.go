package certificate

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"besedarium.dev/mpst/keys"
	"besedarium.dev/mpst/protocols"
	"besedarium.dev/mpst/session"
	"besedarium.dev/mpst/verify"
)

func workflowReport(t *testing.T) *verify.Report {
	t.Helper()
	g, err := protocols.Workflow()
	if err != nil {
		t.Fatalf("Workflow: %v", err)
	}
	rep, err := verify.VerifyStrict(g, verify.Options{})
	if err != nil {
		t.Fatalf("VerifyStrict: %v", err)
	}
	return rep
}

func seed() []byte {
	s := make([]byte, keys.SeedSize)
	for i := range s {
		s[i] = byte(i * 3)
	}
	return s
}

func TestRender_CanonicalAndDeterministic(t *testing.T) {
	rep := workflowReport(t)
	opts := Options{CertifierID: "ci", Protocol: "workflow", IssuedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	a, err := Render(rep, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, _ := Render(workflowReport(t), opts)
	if !bytes.Equal(a, b) {
		t.Fatalf("Render is not deterministic")
	}
	if _, err := Canonicalize(a); err != nil {
		t.Fatalf("Canonicalize(Render): %v\n%s", err, a)
	}
	for _, want := range []string{
		"Mode: strict\n",
		"Role: \"worker\"\nLocal-CID: ",
		"Par: / \"workflow\"\n",
		"Left-Roles: \"client\" \"server\"\n",
		"Well-Formed: true\n",
	} {
		if !strings.Contains(string(a), want) {
			t.Fatalf("certificate lacks %q:\n%s", want, a)
		}
	}
	ok, err := VerifySignature(a)
	if ok || err != nil {
		t.Fatalf("unsigned VerifySignature = %v, %v", ok, err)
	}
	if err := Matches(a, rep); err != nil {
		t.Fatalf("Matches: %v", err)
	}
}

func TestRender_RefusesRejectedProtocol(t *testing.T) {
	g := session.UncertifiedPar("p",
		session.NewInteract("a", session.Client, session.MsgMessage, session.NewEnd("e1")),
		session.NewInteract("b", session.Worker, session.MsgNotify, session.NewEnd("e2")))
	rep, _ := verify.VerifyStrict(g, verify.Options{})
	if _, err := Render(rep, Options{}); !errors.Is(err, ErrNotWellFormed) {
		t.Fatalf("Render(rejected) = %v", err)
	}
}

func TestRenderSigned_Verifies(t *testing.T) {
	rep := workflowReport(t)
	for _, alg := range []string{keys.AlgEd25519, keys.AlgDilithium3} {
		s, err := keys.NewSigner(alg, "blake3", seed())
		if err != nil {
			t.Fatalf("NewSigner: %v", err)
		}
		cert, id, err := RenderWithCID(rep, Options{Signer: s})
		if err != nil {
			t.Fatalf("RenderWithCID(%s): %v", alg, err)
		}
		if id == "" {
			t.Fatalf("empty CID")
		}
		ok, err := VerifySignature(cert)
		if !ok || err != nil {
			t.Fatalf("VerifySignature(%s) = %v, %v", alg, ok, err)
		}
		tampered := bytes.Replace(cert, []byte("Certifier-ID: mpst"), []byte("Certifier-ID: evil"), 1)
		if ok, err := VerifySignature(tampered); ok || err == nil {
			t.Fatalf("tampered certificate verified (%s)", alg)
		}
	}
}

func TestMatches_DetectsDifferentProtocol(t *testing.T) {
	cert, err := Render(workflowReport(t), Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	g, _ := protocols.Handshake()
	other, err := verify.Verify(g, verify.Options{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := Matches(cert, other); !errors.Is(err, ErrMismatch) {
		t.Fatalf("Matches = %v", err)
	}
}

func TestCanonicalize_Rejects(t *testing.T) {
	cert, err := Render(workflowReport(t), Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	cases := map[string][]byte{
		"empty":         nil,
		"crlf":          bytes.ReplaceAll(cert, []byte("\n"), []byte("\r\n")),
		"no newline":    bytes.TrimSuffix(cert, []byte("\n")),
		"trailing ws":   bytes.Replace(cert, []byte("META\n"), []byte("META \n"), 1),
		"unsorted meta": bytes.Replace(cert, []byte("Version: 1"), []byte("Aardvark: 1\nVersion: 1"), 1),
		"no preamble":   bytes.TrimPrefix(cert, []byte(Preamble+"\n")),
		"section order": bytes.Replace(cert, []byte("ROLES\n"), []byte("LABELS\n"), 1),
	}
	for name, in := range cases {
		if _, err := Canonicalize(in); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}
