package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/spf13/pflag"

	"besedarium.dev/mpst/cidutil"
	"besedarium.dev/mpst/internal/config"
	"besedarium.dev/mpst/internal/logging"
	"besedarium.dev/mpst/model"
	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/bundle"
	"besedarium.dev/mpst/storage/casconfig"
	"besedarium.dev/mpst/storage/casregistry"
)

type storeFlags struct {
	backend       string
	storageConfig string
	prefer        string
	listBackends  bool
}

func (s *storeFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&s.backend, "backend", "", "CAS backend name (default from mpst.toml)")
	fs.StringVar(&s.storageConfig, "storage-config", "", "CAS config file (TOML, JSONC or YAML)")
	fs.StringVar(&s.prefer, "prefer", "", "With --storage-config, move this backend to the front")
	fs.BoolVar(&s.listBackends, "list-backends", false, "List supported backends and exit")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (s *storeFlags) open(cfg config.Config) (storage.CAS, casregistry.Closer, error) {
	path := s.storageConfig
	if path == "" && s.backend == "" {
		path = cfg.StorageConfig
	}
	if path != "" {
		c, err := casconfig.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		return c.Open(casregistry.UsageCLI, s.prefer)
	}
	backend := s.backend
	if backend == "" {
		backend = cfg.Backend
	}
	return casregistry.Open(backend, casregistry.UsageCLI)
}

func printBackends(out io.Writer) {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(out, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
	}
}

// storeCommand parses flags, opens the CAS and calls body.
func storeCommand(name string, args []string, out, errOut io.Writer, extra func(fs *pflag.FlagSet), body func(fs *pflag.FlagSet, cfg config.Config, cas storage.CAS) int) int {
	fs := pflag.NewFlagSet("store "+name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf storeFlags
	sf.add(fs)
	if extra != nil {
		extra(fs)
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if sf.listBackends {
		printBackends(out)
		return 0
	}
	cfg, _, ok := settings(errOut)
	if !ok {
		return 1
	}
	cas, closeFn, err := sf.open(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "store: %v\n", err)
		return 2
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}
	return body(fs, cfg, cas)
}

func cmdStore(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: mpstctl store <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get, publish, export, import, list")
		return 2
	}
	switch args[0] {
	case "put":
		return cmdStorePut(args[1:], out, errOut)
	case "get":
		return cmdStoreGet(args[1:], out, errOut)
	case "publish":
		return cmdStorePublish(args[1:], out, errOut)
	case "export":
		return cmdStoreExport(args[1:], out, errOut)
	case "import":
		return cmdStoreImport(args[1:], out, errOut)
	case "list":
		return cmdStoreList(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown store subcommand: %s\n", args[0])
		return 2
	}
}

func cmdStorePut(args []string, out io.Writer, errOut io.Writer) int {
	return storeCommand("put", args, out, errOut, nil, func(fs *pflag.FlagSet, _ config.Config, cas storage.CAS) int {
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: mpstctl store put <file>")
			return 2
		}
		b, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read: %v\n", err)
			return 1
		}
		id, err := cas.Put(b)
		if err != nil {
			fmt.Fprintf(errOut, "put: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, id.String())
		return 0
	})
}

func cmdStoreGet(args []string, out io.Writer, errOut io.Writer) int {
	var cidStr, outPath string
	return storeCommand("get", args, out, errOut, func(fs *pflag.FlagSet) {
		fs.StringVar(&cidStr, "cid", "", "CID to fetch")
		fs.StringVar(&outPath, "out", "", "Write to a file instead of stdout")
	}, func(_ *pflag.FlagSet, _ config.Config, cas storage.CAS) int {
		if cidStr == "" {
			fmt.Fprintln(errOut, "missing --cid")
			return 2
		}
		id, err := cidutil.Parse(cidStr)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --cid: %v\n", err)
			return 2
		}
		b, err := cas.Get(id)
		if err != nil {
			fmt.Fprintf(errOut, "get: %v\n", err)
			return 1
		}
		if outPath != "" {
			if err := os.WriteFile(outPath, b, 0o644); err != nil {
				fmt.Fprintf(errOut, "write: %v\n", err)
				return 1
			}
			return 0
		}
		_, _ = out.Write(b)
		return 0
	})
}

func cmdStorePublish(args []string, out io.Writer, errOut io.Writer) int {
	var pf protocolFlags
	var sf signerFlags
	var certify bool
	return storeCommand("publish", args, out, errOut, func(fs *pflag.FlagSet) {
		pf.add(fs)
		sf.add(fs)
		fs.BoolVar(&certify, "certify", false, "Also render and store a projection certificate")
	}, func(fs *pflag.FlagSet, cfg config.Config, cas storage.CAS) int {
		req, err := pf.request(fs.Args(), cfg)
		if err != nil {
			fmt.Fprintf(errOut, "usage: mpstctl store publish (<file> | --example <name>): %v\n", err)
			return 2
		}
		signer, err := sf.resolve(cfg)
		if err != nil {
			fmt.Fprintf(errOut, "invalid signer: %v\n", err)
			return 2
		}
		req.Certify = certify || signer != nil
		req.Publish = true

		opts := projectOptions(cfg, logging.Component("mpstctl"))
		opts.CAS = cas
		opts.Certificate.Signer = signer
		resp, err := model.Project(req, opts)
		if err != nil {
			fmt.Fprintf(errOut, "publish: %v\n", err)
			return 1
		}
		if !resp.WellFormed {
			fmt.Fprintln(errOut, "publish: protocol is not well-formed")
			printViolations(errOut, resp)
			return 1
		}
		names := make([]string, 0, len(resp.Published))
		for n := range resp.Published {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(out, "%s\t%s\n", n, resp.Published[n])
		}
		return 0
	})
}

func cmdStoreExport(args []string, out io.Writer, errOut io.Writer) int {
	var outPath string
	var compress bool
	var labels []string
	return storeCommand("export", args, out, errOut, func(fs *pflag.FlagSet) {
		fs.StringVar(&outPath, "out", "", "Bundle file to write")
		fs.BoolVar(&compress, "compress", false, "zstd-compress the bundle")
		fs.StringArrayVar(&labels, "label", nil, "Index label as <name>=<cid> (repeatable)")
	}, func(fs *pflag.FlagSet, _ config.Config, cas storage.CAS) int {
		if outPath == "" || fs.NArg() == 0 {
			fmt.Fprintln(errOut, "usage: mpstctl store export --out <bundle> <cid> [<cid> ...]")
			return 2
		}
		ids := make([]cid.Cid, 0, fs.NArg())
		for _, s := range fs.Args() {
			id, err := cidutil.Parse(s)
			if err != nil {
				fmt.Fprintf(errOut, "invalid cid %q: %v\n", s, err)
				return 2
			}
			ids = append(ids, id)
		}
		named, err := parseLabels(labels)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --label: %v\n", err)
			return 2
		}
		for _, id := range named {
			ids = append(ids, id)
		}
		f, err := os.Create(outPath)
		if err != nil {
			fmt.Fprintf(errOut, "create bundle: %v\n", err)
			return 1
		}
		err = bundle.Export(f, cas, ids, bundle.ExportOptions{Labels: named, IncludeIndex: true, Compress: compress})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(outPath)
			fmt.Fprintf(errOut, "export: %v\n", err)
			return 1
		}
		return 0
	})
}

func parseLabels(kvs []string) (map[string]cid.Cid, error) {
	out := make(map[string]cid.Cid, len(kvs))
	for _, kv := range kvs {
		name, v, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected <name>=<cid>, got %q", kv)
		}
		id, err := cidutil.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = id
	}
	return out, nil
}

func cmdStoreImport(args []string, out io.Writer, errOut io.Writer) int {
	return storeCommand("import", args, out, errOut, nil, func(fs *pflag.FlagSet, _ config.Config, cas storage.CAS) int {
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: mpstctl store import <bundle>")
			return 2
		}
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "open bundle: %v\n", err)
			return 1
		}
		defer f.Close()
		ids, err := bundle.Import(f, cas)
		if err != nil {
			fmt.Fprintf(errOut, "import: %v\n", err)
			return 1
		}
		for _, id := range ids {
			_, _ = fmt.Fprintln(out, id.String())
		}
		return 0
	})
}

func cmdStoreList(args []string, out io.Writer, errOut io.Writer) int {
	return storeCommand("list", args, out, errOut, nil, func(_ *pflag.FlagSet, _ config.Config, cas storage.CAS) int {
		l, ok := cas.(storage.Lister)
		if !ok {
			fmt.Fprintln(errOut, "list: backend cannot enumerate its contents")
			return 1
		}
		ids, err := l.List()
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return 0
			}
			fmt.Fprintf(errOut, "list: %v\n", err)
			return 1
		}
		for _, id := range ids {
			_, _ = fmt.Fprintln(out, id.String())
		}
		return 0
	})
}
