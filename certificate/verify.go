package certificate

import (
	"errors"
	"fmt"
	"strconv"

	"besedarium.dev/mpst/cidutil"
	"besedarium.dev/mpst/keys"
	"besedarium.dev/mpst/protodoc"
	"besedarium.dev/mpst/session"
	"besedarium.dev/mpst/verify"
)

// Field returns the single value of key in section.
func Field(cert []byte, section, key string) (string, bool, error) {
	secs, err := parseSections(string(cert))
	if err != nil {
		return "", false, err
	}
	var val string
	found := false
	for _, l := range secs[section] {
		k, v, err := splitKV(l)
		if err != nil {
			return "", false, err
		}
		if k != key {
			continue
		}
		if found {
			return "", false, fmt.Errorf("%s: multiple %s", section, key)
		}
		val, found = v, true
	}
	return val, found, nil
}

// LocalCIDs returns the Local-CID of each role in the certificate.
func LocalCIDs(cert []byte) (map[session.Role]string, error) {
	secs, err := parseSections(string(cert))
	if err != nil {
		return nil, err
	}
	body := secs["LOCALS"]
	out := make(map[session.Role]string, len(body)/3)
	for i := 0; i+1 < len(body); i += 3 {
		_, quoted, _ := splitKV(body[i])
		role, err := strconv.Unquote(quoted)
		if err != nil {
			return nil, fmt.Errorf("LOCALS: bad role %s: %w", quoted, err)
		}
		_, id, _ := splitKV(body[i+1])
		out[session.Role(role)] = id
	}
	return out, nil
}

// VerifySignature checks the CRYPTO section.
//
// It returns (true, nil) for a valid signature, (false, nil) for an unsigned
// certificate and (false, err) for anything malformed or failing.
func VerifySignature(cert []byte) (bool, error) {
	canon, err := Canonicalize(cert)
	if err != nil {
		return false, fmt.Errorf("canonical certificate required: %w", err)
	}
	secs, _ := parseSections(string(canon))
	if len(secs["CRYPTO"]) == 0 {
		return false, nil
	}
	get := func(k string) string {
		v, _, _ := Field(canon, "CRYPTO", k)
		return v
	}
	key, hashAlg, sigAlg, sig := get("Certifier-Key"), get("Hash-Alg"), get("Signature-Alg"), get("Signature")
	alg, _, err := keys.ParsePublicKey(key)
	if err != nil {
		return false, fmt.Errorf("CRYPTO: %w", err)
	}
	if alg != sigAlg {
		return false, fmt.Errorf("CRYPTO: Signature-Alg %q does not match key algorithm %q", sigAlg, alg)
	}
	scope, err := signatureScope(canon)
	if err != nil {
		return false, err
	}
	if err := keys.Verify(key, hashAlg, scope, sig); err != nil {
		return false, fmt.Errorf("CRYPTO: %w", err)
	}
	return true, nil
}

// ErrMismatch is returned by Matches when a certificate does not describe
// the given report.
var ErrMismatch = errors.New("certificate: does not match protocol")

// Matches checks that cert certifies rep: same protocol CID and the same
// local CID for every role.
func Matches(cert []byte, rep *verify.Report) error {
	if rep == nil || !rep.WellFormed {
		return ErrNotWellFormed
	}
	protoBytes, err := protodoc.CanonicalGlobal(rep.Protocol)
	if err != nil {
		return err
	}
	got, _, err := Field(cert, "INPUTS", "Protocol-CID")
	if err != nil {
		return err
	}
	if want := cidutil.CIDv1RawSHA256(protoBytes); got != want {
		return fmt.Errorf("%w: Protocol-CID %s, want %s", ErrMismatch, got, want)
	}
	locals, err := LocalCIDs(cert)
	if err != nil {
		return err
	}
	if len(locals) != len(rep.Locals) {
		return fmt.Errorf("%w: %d roles, want %d", ErrMismatch, len(locals), len(rep.Locals))
	}
	for role, l := range rep.Locals {
		b, err := protodoc.CanonicalLocal(l)
		if err != nil {
			return err
		}
		if want := cidutil.CIDv1RawSHA256(b); locals[role] != want {
			return fmt.Errorf("%w: role %s Local-CID %s, want %s", ErrMismatch, role, locals[role], want)
		}
	}
	return nil
}
