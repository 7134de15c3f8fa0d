package model

import (
	"encoding/json"
	"testing"
)

func TestSnapshot_ProjectionRequest_JSONShape(t *testing.T) {
	req := ProjectionRequest{
		Protocol:   ProtocolRef{Catalog: "handshake"},
		Compliance: ComplianceStrict,
		Roles:      []string{"auditor"},
		Certify:    true,
	}

	b, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"protocol\": {\n" +
		"    \"catalog\": \"handshake\"\n" +
		"  },\n" +
		"  \"compliance\": \"strict\",\n" +
		"  \"roles\": [\n" +
		"    \"auditor\"\n" +
		"  ],\n" +
		"  \"certify\": true\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func TestSnapshot_ProjectionResponse_JSONShape(t *testing.T) {
	resp := ProjectionResponse{
		Name:        "dup",
		ProtocolCID: "bafy-protocol-1",
		Fingerprint: "00ff",
		Compliance:  "strict",
		Roles:       []string{"client"},
		Labels:      []string{},
		Witnesses:   []Witness{},
		Projections: []Projection{},
		Errors: []CodedError{{
			Code:    ErrNotWellFormed,
			RuleID:  "MPST-LBL-001",
			Message: "duplicate label",
			Path:    "/cont",
			Label:   "a",
		}},
	}

	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"name\": \"dup\",\n" +
		"  \"protocolCID\": \"bafy-protocol-1\",\n" +
		"  \"fingerprint\": \"00ff\",\n" +
		"  \"compliance\": \"strict\",\n" +
		"  \"wellFormed\": false,\n" +
		"  \"roles\": [\n" +
		"    \"client\"\n" +
		"  ],\n" +
		"  \"labels\": [],\n" +
		"  \"witnesses\": [],\n" +
		"  \"projections\": [],\n" +
		"  \"errors\": [\n" +
		"    {\n" +
		"      \"code\": \"NOT_WELL_FORMED\",\n" +
		"      \"ruleID\": \"MPST-LBL-001\",\n" +
		"      \"message\": \"duplicate label\",\n" +
		"      \"path\": \"/cont\",\n" +
		"      \"label\": \"a\"\n" +
		"    }\n" +
		"  ]\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func TestCodedError_Error(t *testing.T) {
	if got := NewError(ErrNotFound, "gone").Error(); got != "NOT_FOUND: gone" {
		t.Fatalf("Error() = %q", got)
	}
	e := &CodedError{Code: ErrNotWellFormed, RuleID: "MPST-PAR-001", Message: "shared role"}
	if got := e.Error(); got != "NOT_WELL_FORMED: MPST-PAR-001: shared role" {
		t.Fatalf("Error() = %q", got)
	}
	var nilErr *CodedError
	if nilErr.Error() != "" {
		t.Fatalf("nil CodedError should render empty")
	}
}
