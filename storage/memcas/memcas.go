// Package memcas registers the in-memory CAS as the "mem" backend. Its
// contents live as long as the process.
package memcas

import (
	"github.com/spf13/pflag"

	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:          "mem",
		Description:   "In-memory CAS (lost on exit)",
		Usage:         casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(*pflag.FlagSet) {},
		Open: func() (storage.CAS, casregistry.Closer, error) {
			return storage.NewMemCAS(), nil, nil
		},
		OpenConfig: func(map[string]string) (storage.CAS, casregistry.Closer, error) {
			return storage.NewMemCAS(), nil, nil
		},
	})
}
