package localfs

import (
	"fmt"

	"github.com/spf13/pflag"

	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/casregistry"
)

var flagDir string

func open(dir string) (storage.CAS, casregistry.Closer, error) {
	if dir == "" {
		return nil, nil, fmt.Errorf("localfs: missing directory (--localfs-dir or config key localfs-dir)")
	}
	cas, err := New(dir)
	if err != nil {
		return nil, nil, err
	}
	return cas, nil, nil
}

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem CAS (directory)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagDir, "localfs-dir", "", "LocalFS CAS directory (for --backend=localfs)")
		},
		Open: func() (storage.CAS, casregistry.Closer, error) { return open(flagDir) },
		OpenConfig: func(cfg map[string]string) (storage.CAS, casregistry.Closer, error) {
			return open(cfg["localfs-dir"])
		},
	})
}
