// Command mpstctl checks, projects, certifies and stores multiparty session
// protocols.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"besedarium.dev/mpst/internal/config"
	"besedarium.dev/mpst/internal/logging"

	_ "besedarium.dev/mpst/storage/grpccas"
	_ "besedarium.dev/mpst/storage/localfs"
	_ "besedarium.dev/mpst/storage/memcas"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "check":
		return cmdCheck(args[1:], out, errOut)
	case "project":
		return cmdProject(args[1:], out, errOut)
	case "roles":
		return cmdRoles(args[1:], out, errOut)
	case "labels":
		return cmdLabels(args[1:], out, errOut)
	case "cid":
		return cmdCID(args[1:], out, errOut)
	case "example":
		return cmdExample(args[1:], out, errOut)
	case "cert":
		return cmdCert(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "store":
		return cmdStore(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "mpstctl: multiparty session type checker and projector")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  mpstctl check   (<file> | --example <name>) [--mode permissive|strict] [--role <r> ...] [--output text|json|yaml]")
	fmt.Fprintln(w, "  mpstctl project (<file> | --example <name>) [--mode ...] [--role <r> ...] [--output text|json|yaml]")
	fmt.Fprintln(w, "  mpstctl roles   (<file> | --example <name>)")
	fmt.Fprintln(w, "  mpstctl labels  (<file> | --example <name>)")
	fmt.Fprintln(w, "  mpstctl cid     (<file> | --example <name>) [--mode ...]")
	fmt.Fprintln(w, "  mpstctl example [<name>] [--format yaml|json|cbor]")
	fmt.Fprintln(w, "  mpstctl cert render (<file> | --example <name>) [--sign] [--signer <name> [--signer-role <r>] | --key-file <path>] [--issued-at now|<RFC3339>] [--out <file>]")
	fmt.Fprintln(w, "  mpstctl cert verify <cert> [--protocol <file> | --example <name>]")
	fmt.Fprintln(w, "  mpstctl cert cid <cert>")
	fmt.Fprintln(w, "  mpstctl key init --name <name> [--seed-hex <64hex>] [--alg ed25519|dilithium3] [--force]")
	fmt.Fprintln(w, "  mpstctl key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  mpstctl key list")
	fmt.Fprintln(w, "  mpstctl key export --name <name> [--role <role>] [--alg ed25519|dilithium3]")
	fmt.Fprintln(w, "  mpstctl store put <file>")
	fmt.Fprintln(w, "  mpstctl store get --cid <cid> [--out <file>]")
	fmt.Fprintln(w, "  mpstctl store publish (<file> | --example <name>) [--certify] [--sign]")
	fmt.Fprintln(w, "  mpstctl store export --out <bundle> [--compress] [--label <name>=<cid> ...] <cid> [<cid> ...]")
	fmt.Fprintln(w, "  mpstctl store import <bundle>")
	fmt.Fprintln(w, "  mpstctl store list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - protocol files are YAML, JSON/JSONC or CBOR, chosen by extension")
	fmt.Fprintln(w, "  - settings are read from $MPST_CONFIG or ~/.mpst/mpst.toml when present")
	fmt.Fprintln(w, "  - store commands take --backend <name> [backend flags] or --storage-config <file>")
	fmt.Fprintln(w, "  - check exits 1 when the protocol is rejected")
}

// settings loads mpst.toml and installs the process logger.
func settings(errOut io.Writer) (config.Config, zerolog.Logger, bool) {
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return config.Config{}, zerolog.Nop(), false
	}
	lc := logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON, NoColor: true, Output: errOut}
	logging.ApplyEnvOverrides(&lc)
	logging.Install(lc)
	return cfg, logging.Component("mpstctl"), true
}

func parseFlags(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func writeStructured(out io.Writer, format string, v any) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
