package keys

import (
	"bytes"
	"testing"
)

func TestDeriveRoleSeed(t *testing.T) {
	root := testSeed(0)
	a, err := DeriveRoleSeed(root, "client")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	b, _ := DeriveRoleSeed(root, "client")
	if !bytes.Equal(a, b) {
		t.Fatalf("expected deterministic derivation")
	}
	c, _ := DeriveRoleSeed(root, "server")
	if bytes.Equal(a, c) {
		t.Fatalf("expected different roles to derive different seeds")
	}
	if _, err := DeriveRoleSeed(root, "bad/role"); err == nil {
		t.Fatalf("expected invalid role error")
	}
	if _, err := DeriveRoleSeed(root[:5], "client"); err == nil {
		t.Fatalf("expected short root error")
	}
}

func TestKeyStore(t *testing.T) {
	ks, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pub, _, err := ks.InitRoot("ci", AlgEd25519, testSeed(3), false)
	if err != nil {
		t.Fatalf("InitRoot: %v", err)
	}
	if _, _, err := ks.InitRoot("ci", AlgEd25519, testSeed(4), false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	rolePub, _, err := ks.DeriveRole("ci", "worker", AlgEd25519, false)
	if err != nil {
		t.Fatalf("DeriveRole: %v", err)
	}
	if rolePub == pub {
		t.Fatalf("role key equals root key")
	}
	s, err := ks.Signer("ci", "worker", AlgEd25519, "blake3")
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if s.PublicKey() != rolePub {
		t.Fatalf("loaded signer key = %s, want %s", s.PublicKey(), rolePub)
	}
	entries, err := ks.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "ci" || len(entries[0].Roles) != 1 || entries[0].Roles[0] != "worker" {
		t.Fatalf("List = %+v", entries)
	}
	if _, err := ParseSeedHex(" 0x" + "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff\n"); err != nil {
		t.Fatalf("ParseSeedHex: %v", err)
	}
}
