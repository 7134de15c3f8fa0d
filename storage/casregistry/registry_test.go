package casregistry

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"besedarium.dev/mpst/storage"
)

func testBackend(name string, usage Usage, opened *string) Backend {
	var flagVal string
	return Backend{
		Name:  name,
		Usage: usage,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagVal, name+"-opt", "", "test option")
		},
		Open: func() (storage.CAS, Closer, error) {
			*opened = flagVal
			return storage.NewMemCAS(), nil, nil
		},
		OpenConfig: func(cfg map[string]string) (storage.CAS, Closer, error) {
			*opened = cfg["opt"]
			return storage.NewMemCAS(), nil, nil
		},
	}
}

func TestRegistry(t *testing.T) {
	var opened string
	MustRegister(testBackend("zz-test-cli", UsageCLI, &opened))
	MustRegister(testBackend("zz-test-daemon", UsageDaemon, &opened))

	if err := Register(testBackend("zz-test-cli", UsageCLI, &opened)); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := Register(Backend{Name: "incomplete"}); err == nil {
		t.Fatalf("expected validation error")
	}

	names := strings.Join(Names(UsageCLI), ",")
	if !strings.Contains(names, "zz-test-cli") || strings.Contains(names, "zz-test-daemon") {
		t.Fatalf("Names(UsageCLI) = %s", names)
	}

	fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
	RegisterFlags(fs, UsageCLI)
	if err := fs.Parse([]string{"--zz-test-cli-opt=flagged"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, _, err := Open("zz-test-cli", UsageCLI); err != nil || opened != "flagged" {
		t.Fatalf("Open = %v, opened %q", err, opened)
	}
	if _, _, err := OpenWithConfig("zz-test-cli", UsageCLI, map[string]string{"opt": "configured"}); err != nil || opened != "configured" {
		t.Fatalf("OpenWithConfig = %v, opened %q", err, opened)
	}
	if _, _, err := Open("zz-test-daemon", UsageCLI); err == nil {
		t.Fatalf("expected usage rejection")
	}
	if _, _, err := Open("missing", UsageCLI); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}
