// Package certificate renders projection certificates: a canonical text
// record binding a protocol CID to the CIDs of its local projections,
// optionally signed.
package certificate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"besedarium.dev/mpst/cidutil"
	"besedarium.dev/mpst/keys"
	"besedarium.dev/mpst/protodoc"
	"besedarium.dev/mpst/session"
	"besedarium.dev/mpst/verify"
)

const (
	Preamble  = "-----BEGIN MPST PROJECTION CERTIFICATE-----"
	Postamble = "-----END MPST PROJECTION CERTIFICATE-----"

	FormatID = "mpst-cert-1"
)

var sectionOrder = []string{"META", "INPUTS", "ROLES", "LABELS", "WITNESSES", "LOCALS", "VERDICT", "CRYPTO"}

// ErrNotWellFormed is returned when asked to certify a rejected protocol.
var ErrNotWellFormed = errors.New("certificate: protocol is not well-formed")

// Options controls rendering.
type Options struct {
	CertifierID string
	Protocol    string
	IssuedAt    time.Time // zero means omit

	// Signer, when set, fills the CRYPTO section.
	Signer *keys.Signer
}

// Render produces canonical certificate bytes for a well-formed report.
// Section order is fixed and every section's lines are deterministic.
func Render(rep *verify.Report, opts Options) ([]byte, error) {
	if rep == nil || !rep.WellFormed {
		return nil, ErrNotWellFormed
	}
	certifier := opts.CertifierID
	if certifier == "" {
		certifier = "mpst"
	}
	protoBytes, err := protodoc.CanonicalGlobal(rep.Protocol)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	line := func(k, v string) {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	section := func(name string) { sb.WriteString(name + "\n") }
	end := func() { sb.WriteString("\n") }

	sb.WriteString(Preamble + "\n")

	section("META")
	meta := []string{
		"Certifier-ID: " + certifier,
		"Format: " + FormatID,
		"Mode: " + rep.Mode.String(),
		"Version: 1",
	}
	if !opts.IssuedAt.IsZero() {
		meta = append(meta, "Issued-At: "+opts.IssuedAt.UTC().Format(time.RFC3339))
	}
	if opts.Protocol != "" {
		meta = append(meta, "Protocol: "+strconv.Quote(opts.Protocol))
	}
	sort.Strings(meta)
	for _, l := range meta {
		sb.WriteString(l + "\n")
	}
	end()

	section("INPUTS")
	line("Protocol-CID", cidutil.CIDv1RawSHA256(protoBytes))
	line("Fingerprint", cidutil.Fingerprint(protoBytes))
	end()

	section("ROLES")
	roles := rep.LocalRoles()
	for _, r := range roles {
		line("Role", strconv.Quote(string(r)))
	}
	end()

	section("LABELS")
	for _, l := range rep.Labels {
		line("Label", strconv.Quote(string(l)))
	}
	end()

	section("WITNESSES")
	for _, w := range rep.Witnesses {
		line("Par", w.Path.String()+" "+strconv.Quote(string(w.Label)))
		line("Left-Roles", quoteRoles(w.LeftRoles))
		line("Right-Roles", quoteRoles(w.RightRoles))
	}
	end()

	section("LOCALS")
	for _, r := range roles {
		l := rep.Locals[r]
		b, err := protodoc.CanonicalLocal(l)
		if err != nil {
			return nil, fmt.Errorf("certificate: encoding local type of %s: %w", r, err)
		}
		line("Role", strconv.Quote(string(r)))
		line("Local-CID", cidutil.CIDv1RawSHA256(b))
		line("Local", l.String())
	}
	end()

	section("VERDICT")
	line("Rules", strings.Join(verify.Rules(), ","))
	line("Well-Formed", "true")
	end()

	section("CRYPTO")
	if opts.Signer != nil {
		crypto := []string{
			"Certifier-Key: " + opts.Signer.PublicKey(),
			"Hash-Alg: " + opts.Signer.HashAlg,
			"Signature-Alg: " + opts.Signer.Alg,
			"Signature: 0",
		}
		sort.Strings(crypto)
		for _, l := range crypto {
			sb.WriteString(l + "\n")
		}
	}
	end()

	sb.WriteString(Postamble + "\n")
	out := sb.String()

	if opts.Signer != nil {
		scope, err := signatureScope([]byte(out))
		if err != nil {
			return nil, err
		}
		sig, err := opts.Signer.Sign(scope)
		if err != nil {
			return nil, fmt.Errorf("certificate: signing: %w", err)
		}
		out = strings.Replace(out, "\nSignature: 0\n", "\nSignature: "+sig+"\n", 1)
	}
	return []byte(out), nil
}

// RenderWithCID renders a certificate and returns its CID.
func RenderWithCID(rep *verify.Report, opts Options) ([]byte, string, error) {
	b, err := Render(rep, opts)
	if err != nil {
		return nil, "", err
	}
	id, err := CID(b)
	if err != nil {
		return nil, "", err
	}
	return b, id, nil
}

func quoteRoles(rs []session.Role) string {
	if len(rs) == 0 {
		return "-"
	}
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = strconv.Quote(string(r))
	}
	return strings.Join(parts, " ")
}

// signatureScope is the certificate with its Signature line removed.
func signatureScope(cert []byte) ([]byte, error) {
	lines := strings.Split(string(cert), "\n")
	out := make([]string, 0, len(lines))
	removed := false
	for _, l := range lines {
		if strings.HasPrefix(l, "Signature: ") {
			if removed {
				return nil, errors.New("certificate: multiple Signature lines")
			}
			removed = true
			continue
		}
		out = append(out, l)
	}
	if !removed {
		return nil, errors.New("certificate: missing Signature line")
	}
	return []byte(strings.Join(out, "\n")), nil
}
