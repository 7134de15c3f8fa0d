package certificate

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"besedarium.dev/mpst/cidutil"
)

// Canonicalize rejects any input that Render could not have produced. It
// is the choke point before CID derivation and signature checks.
func Canonicalize(input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, errors.New("empty certificate")
	}
	if !utf8.Valid(input) {
		return nil, errors.New("certificate must be valid UTF-8")
	}
	if bytes.HasPrefix(input, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("BOM not allowed")
	}
	if bytes.Contains(input, []byte("\r")) {
		return nil, errors.New("CR line endings not allowed")
	}
	if input[len(input)-1] != '\n' {
		return nil, errors.New("missing trailing newline")
	}
	for _, l := range bytes.Split(input, []byte("\n")) {
		if len(l) > 0 && (l[len(l)-1] == ' ' || l[len(l)-1] == '\t') {
			return nil, errors.New("trailing whitespace forbidden")
		}
	}
	if _, err := parseSections(string(input)); err != nil {
		return nil, err
	}
	return append([]byte(nil), input...), nil
}

// CID returns the CIDv1 (raw, sha2-256) of canonical certificate bytes.
func CID(cert []byte) (string, error) {
	canon, err := Canonicalize(cert)
	if err != nil {
		return "", fmt.Errorf("canonical certificate required: %w", err)
	}
	return cidutil.CIDv1RawSHA256(canon), nil
}

type sections map[string][]string

func parseSections(doc string) (sections, error) {
	lines := strings.Split(doc, "\n")
	if len(lines) < 3 {
		return nil, errors.New("certificate too short")
	}
	if lines[0] != Preamble {
		return nil, errors.New("missing certificate preamble")
	}
	if lines[len(lines)-2] != Postamble {
		return nil, errors.New("missing certificate postamble")
	}
	out := make(sections, len(sectionOrder))
	i := 1
	last := len(lines) - 2
	for _, sec := range sectionOrder {
		if i >= last {
			return nil, fmt.Errorf("missing section %q", sec)
		}
		if lines[i] != sec {
			return nil, fmt.Errorf("sections missing or out of order (expected %q got %q)", sec, lines[i])
		}
		i++
		start := i
		for i < last && lines[i] != "" {
			i++
		}
		if i >= last {
			return nil, fmt.Errorf("missing blank line after section %q", sec)
		}
		body := lines[start:i]
		if err := checkSection(sec, body); err != nil {
			return nil, err
		}
		out[sec] = body
		i++
	}
	if i != last {
		return nil, errors.New("unexpected content before postamble")
	}
	return out, nil
}

func splitKV(l string) (string, string, error) {
	k, v, ok := strings.Cut(l, ": ")
	if !ok {
		return "", "", fmt.Errorf("invalid key-value line %q", l)
	}
	if k == "" || v == "" {
		return "", "", fmt.Errorf("empty key or value in %q", l)
	}
	return k, v, nil
}

func checkSorted(sec string, body []string, required ...string) error {
	have := make(map[string]bool, len(body))
	for i, l := range body {
		k, _, err := splitKV(l)
		if err != nil {
			return fmt.Errorf("%s: %w", sec, err)
		}
		if have[k] {
			return fmt.Errorf("%s: duplicate %s", sec, k)
		}
		have[k] = true
		if i > 0 && body[i-1] >= l {
			return fmt.Errorf("%s: lines not sorted", sec)
		}
	}
	for _, k := range required {
		if !have[k] {
			return fmt.Errorf("%s: missing %s", sec, k)
		}
	}
	return nil
}

// checkRecords checks that body is a sequence of records, each made of the
// given keys in order.
func checkRecords(sec string, body []string, keys ...string) error {
	if len(body)%len(keys) != 0 {
		return fmt.Errorf("%s: truncated record", sec)
	}
	for i, l := range body {
		k, _, err := splitKV(l)
		if err != nil {
			return fmt.Errorf("%s: %w", sec, err)
		}
		if want := keys[i%len(keys)]; k != want {
			return fmt.Errorf("%s: expected %s, got %s", sec, want, k)
		}
	}
	return nil
}

func checkSection(sec string, body []string) error {
	switch sec {
	case "META":
		return checkSorted(sec, body, "Certifier-ID", "Format", "Mode", "Version")
	case "INPUTS":
		return checkRecords(sec, body, "Protocol-CID", "Fingerprint")
	case "ROLES":
		if err := checkRecords(sec, body, "Role"); err != nil {
			return err
		}
		return checkUnique(sec, body)
	case "LABELS":
		if err := checkRecords(sec, body, "Label"); err != nil {
			return err
		}
		return checkUnique(sec, body)
	case "WITNESSES":
		return checkRecords(sec, body, "Par", "Left-Roles", "Right-Roles")
	case "LOCALS":
		return checkRecords(sec, body, "Role", "Local-CID", "Local")
	case "VERDICT":
		return checkSorted(sec, body, "Rules", "Well-Formed")
	case "CRYPTO":
		if len(body) == 0 {
			return nil
		}
		return checkSorted(sec, body, "Certifier-Key", "Hash-Alg", "Signature", "Signature-Alg")
	default:
		return fmt.Errorf("unknown section %q", sec)
	}
}

func checkUnique(sec string, body []string) error {
	seen := make(map[string]bool, len(body))
	for _, l := range body {
		if seen[l] {
			return fmt.Errorf("%s: duplicate line %q", sec, l)
		}
		seen[l] = true
	}
	return nil
}
