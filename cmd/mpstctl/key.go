package main

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"besedarium.dev/mpst/keys"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: mpstctl key <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: init, derive, list, export")
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

// openKeyStore honors --key-dir, then key_dir from mpst.toml.
func openKeyStore(dir string, errOut io.Writer) (*keys.KeyStore, bool) {
	cfg, _, ok := settings(errOut)
	if !ok {
		return nil, false
	}
	if dir == "" {
		dir = cfg.KeyDir
	}
	ks, err := keys.Open(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return nil, false
	}
	return ks, true
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("key init", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var name, seedHex, alg, dir string
	var force bool
	fs.StringVar(&name, "name", "", "Certifier key name")
	fs.StringVar(&seedHex, "seed-hex", "", "Root seed as 64 hex chars (random when omitted)")
	fs.StringVar(&alg, "alg", keys.AlgEd25519, "Algorithm for the printed public key")
	fs.StringVar(&dir, "key-dir", "", "Key store directory (default ~/.mpst/keys)")
	fs.BoolVar(&force, "force", false, "Overwrite an existing key")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	var seed []byte
	var err error
	if seedHex != "" {
		seed, err = keys.ParseSeedHex(seedHex)
	} else {
		seed, err = keys.NewSeed(rand.Reader)
	}
	if err != nil {
		fmt.Fprintf(errOut, "invalid seed: %v\n", err)
		return 2
	}
	ks, ok := openKeyStore(dir, errOut)
	if !ok {
		return 1
	}
	pub, path, err := ks.InitRoot(name, alg, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "key init: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "wrote %s\n", path)
	_, _ = fmt.Fprintln(out, pub)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("key derive", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var from, role, alg, dir string
	var force bool
	fs.StringVar(&from, "from", "", "Certifier key name")
	fs.StringVar(&role, "role", "", "Role to derive a key for")
	fs.StringVar(&alg, "alg", keys.AlgEd25519, "Algorithm for the printed public key")
	fs.StringVar(&dir, "key-dir", "", "Key store directory (default ~/.mpst/keys)")
	fs.BoolVar(&force, "force", false, "Overwrite an existing role key")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if from == "" || role == "" {
		fmt.Fprintln(errOut, "usage: mpstctl key derive --from <name> --role <role>")
		return 2
	}
	ks, ok := openKeyStore(dir, errOut)
	if !ok {
		return 1
	}
	pub, path, err := ks.DeriveRole(from, role, alg, force)
	if err != nil {
		fmt.Fprintf(errOut, "key derive: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "wrote %s\n", path)
	_, _ = fmt.Fprintln(out, pub)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("key list", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var dir string
	fs.StringVar(&dir, "key-dir", "", "Key store directory (default ~/.mpst/keys)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	ks, ok := openKeyStore(dir, errOut)
	if !ok {
		return 1
	}
	entries, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "key list: %v\n", err)
		return 1
	}
	for _, e := range entries {
		if len(e.Roles) == 0 {
			fmt.Fprintln(out, e.Name)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", e.Name, strings.Join(e.Roles, ","))
	}
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("key export", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var name, role, alg, dir string
	fs.StringVar(&name, "name", "", "Certifier key name")
	fs.StringVar(&role, "role", "", "Export a derived role key")
	fs.StringVar(&alg, "alg", keys.AlgEd25519, "Public key algorithm")
	fs.StringVar(&dir, "key-dir", "", "Key store directory (default ~/.mpst/keys)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	ks, ok := openKeyStore(dir, errOut)
	if !ok {
		return 1
	}
	seed, err := ks.Seed(name, role)
	if err != nil {
		fmt.Fprintf(errOut, "key export: %v\n", err)
		return 1
	}
	pub, err := keys.PublicKeyFromSeed(alg, seed)
	if err != nil {
		fmt.Fprintf(errOut, "key export: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, pub)
	return 0
}
