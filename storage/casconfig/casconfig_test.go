package casconfig

import (
	"os"
	"path/filepath"
	"testing"

	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/casregistry"
	_ "besedarium.dev/mpst/storage/localfs"
	_ "besedarium.dev/mpst/storage/memcas"
)

func TestParse_AllSyntaxes(t *testing.T) {
	tomlSrc := `
write_policy = "all"

[[backends]]
name = "mem"

[[backends]]
name = "localfs"
[backends.config]
localfs-dir = "/tmp/x"
`
	jsoncSrc := `{
  // replicated
  "write_policy": "all",
  "backends": [
    {"name": "mem"},
    {"name": "localfs", "config": {"localfs-dir": "/tmp/x"}},
  ],
}`
	yamlSrc := `
write_policy: all
backends:
  - name: mem
  - name: localfs
    config:
      localfs-dir: /tmp/x
`
	parsers := map[string]func([]byte) (Config, error){"toml": ParseTOML, "jsonc": ParseJSONC, "yaml": ParseYAML}
	srcs := map[string]string{"toml": tomlSrc, "jsonc": jsoncSrc, "yaml": yamlSrc}
	for name, parse := range parsers {
		cfg, err := parse([]byte(srcs[name]))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if cfg.WritePolicy != "all" || len(cfg.Backends) != 2 || cfg.Backends[1].Config["localfs-dir"] != "/tmp/x" {
			t.Fatalf("%s: parsed %+v", name, cfg)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	if _, err := ParseTOML([]byte("bogus = 1\n[[backends]]\nname = \"mem\"\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := ParseJSONC([]byte(`{"backends": []}`)); err == nil {
		t.Fatalf("expected empty backend error")
	}
	if _, err := ParseYAML([]byte("write_policy: most\nbackends: [{name: mem}]\n")); err == nil {
		t.Fatalf("expected write policy error")
	}
	if _, err := ParseJSONC([]byte(`{"backends": [{"name": "mem"}, {"name": "mem"}]}`)); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestOpen_Policies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cas.toml")
	src := "[[backends]]\nname = \"mem\"\n\n[[backends]]\nname = \"localfs\"\n[backends.config]\nlocalfs-dir = \"" + filepath.ToSlash(filepath.Join(dir, "cas")) + "\"\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	cas, closeFn, err := cfg.Open(casregistry.UsageCLI, "localfs")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()
	multi, ok := cas.(storage.MultiCAS)
	if !ok || len(multi.Adapters) != 2 {
		t.Fatalf("Open(first) = %T", cas)
	}
	id, err := cas.Put([]byte("to localfs"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if multi.Adapters[1].Has(id) || !multi.Adapters[0].Has(id) {
		t.Fatalf("preferred backend did not receive the write")
	}

	cfg.WritePolicy = "all"
	cas, _, err = cfg.Open(casregistry.UsageCLI, "")
	if err != nil {
		t.Fatalf("Open(all): %v", err)
	}
	rep, ok := cas.(storage.ReplicatingCAS)
	if !ok {
		t.Fatalf("Open(all) = %T", cas)
	}
	_, per, err := rep.PutAll([]byte("everywhere"))
	if err != nil || len(per) != 2 {
		t.Fatalf("PutAll = %v, %v", per, err)
	}

	if _, _, err := cfg.Open(casregistry.UsageCLI, "nope"); err == nil {
		t.Fatalf("expected unknown preferred backend error")
	}
}
