package localfs

import (
	"os"
	"path/filepath"
	"testing"

	"besedarium.dev/mpst/cidutil"
	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/casregistry"
	"besedarium.dev/mpst/storage/testkit"
)

func newCAS(t *testing.T) storage.CAS {
	t.Helper()
	cas, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cas
}

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, newCAS)
	testkit.RunListConformance(t, newCAS)
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	cas, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	orig := []byte("original")
	id, err := cas.Put(orig)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	path := cas.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := cas.Get(id); err != storage.ErrCIDMismatch {
		t.Fatalf("Get after corruption: got %v want %v", err, storage.ErrCIDMismatch)
	}
	if _, err := cas.Put(orig); err != storage.ErrImmutable {
		t.Fatalf("Put after corruption: got %v want %v", err, storage.ErrImmutable)
	}
	wantID, err := cidutil.CIDv1RawSHA256CID(orig)
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if id != wantID {
		t.Fatalf("unexpected CID: got %s want %s", id, wantID)
	}
}

func TestLocalFS_ListSkipsStrayFiles(t *testing.T) {
	cas, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, _ := cas.Put([]byte("x"))
	if err := os.WriteFile(filepath.Join(cas.Root(), "README"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(filepath.Dir(cas.pathFor(id)), "junk"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	ids, err := cas.List()
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Fatalf("List = %v, %v", ids, err)
	}
}

func TestLocalFS_Registered(t *testing.T) {
	dir := t.TempDir()
	cas, _, err := casregistry.OpenWithConfig("localfs", casregistry.UsageDaemon, map[string]string{"localfs-dir": dir})
	if err != nil {
		t.Fatalf("OpenWithConfig: %v", err)
	}
	if got := cas.(*CAS).Root(); got != dir {
		t.Fatalf("root = %s, want %s", got, dir)
	}
	if _, _, err := casregistry.OpenWithConfig("localfs", casregistry.UsageCLI, nil); err == nil {
		t.Fatalf("expected missing directory error")
	}
}
