package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"besedarium.dev/mpst/certificate"
	"besedarium.dev/mpst/internal/config"
	"besedarium.dev/mpst/keys"
	"besedarium.dev/mpst/model"
)

func cmdCert(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: mpstctl cert <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: render, verify, cid")
		return 2
	}
	switch args[0] {
	case "render":
		return cmdCertRender(args[1:], out, errOut)
	case "verify":
		return cmdCertVerify(args[1:], out, errOut)
	case "cid":
		fs := pflag.NewFlagSet("cert cid", pflag.ContinueOnError)
		fs.SetOutput(errOut)
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: mpstctl cert cid <cert>")
			return 2
		}
		b, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read certificate: %v\n", err)
			return 1
		}
		id, err := certificate.CID(b)
		if err != nil {
			fmt.Fprintf(errOut, "invalid certificate: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, id)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown cert subcommand: %s\n", args[0])
		return 2
	}
}

// signerFlags override the mpst.toml signing key.
type signerFlags struct {
	sign       bool
	signer     string
	signerRole string
	keyFile    string
	alg        string
	hashAlg    string
}

func (s *signerFlags) add(fs *pflag.FlagSet) {
	fs.BoolVar(&s.sign, "sign", false, "Sign with the configured key (mpst.toml) unless overridden")
	fs.StringVar(&s.signer, "signer", "", "Sign with a stored key by name (implies --sign)")
	fs.StringVar(&s.signerRole, "signer-role", "", "With --signer, use a derived role key")
	fs.StringVar(&s.keyFile, "key-file", "", "Sign with a hex seed file (implies --sign)")
	fs.StringVar(&s.alg, "alg", "", "Signature algorithm: ed25519 or dilithium3")
	fs.StringVar(&s.hashAlg, "hash", "", "Hash algorithm: blake3, sha256, sha3-256 or sha512")
}

// resolve returns nil when no signature was requested.
func (s *signerFlags) resolve(cfg config.Config) (*keys.Signer, error) {
	if !s.sign && s.signer == "" && s.keyFile == "" {
		return nil, nil
	}
	if s.signer != "" && s.keyFile != "" {
		return nil, fmt.Errorf("--signer cannot be combined with --key-file")
	}
	if s.signer != "" {
		cfg.Signer, cfg.SignerRole, cfg.SignerKeyFile = s.signer, s.signerRole, ""
	}
	if s.keyFile != "" {
		cfg.SignerKeyFile = s.keyFile
	}
	if s.alg != "" {
		cfg.SignatureAlg = s.alg
	}
	if s.hashAlg != "" {
		cfg.HashAlg = s.hashAlg
	}
	signer, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, fmt.Errorf("no signing key configured (set signer in mpst.toml or pass --signer/--key-file)")
	}
	return signer, nil
}

func parseIssuedAt(s string) (time.Time, error) {
	switch s {
	case "":
		return time.Time{}, nil
	case "now":
		return time.Now().UTC().Truncate(time.Second), nil
	default:
		return time.Parse(time.RFC3339, s)
	}
}

func cmdCertRender(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("cert render", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var pf protocolFlags
	var sf signerFlags
	var issuedAt string
	var outPath string
	pf.add(fs)
	sf.add(fs)
	fs.StringVar(&issuedAt, "issued-at", "", "Issued-At timestamp: now or RFC3339 (omitted by default)")
	fs.StringVar(&outPath, "out", "", "Write the certificate to a file instead of stdout")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	cfg, log, ok := settings(errOut)
	if !ok {
		return 1
	}
	req, err := pf.request(fs.Args(), cfg)
	if err != nil {
		fmt.Fprintf(errOut, "usage: mpstctl cert render (<file> | --example <name>): %v\n", err)
		return 2
	}
	req.Certify = true
	ts, err := parseIssuedAt(issuedAt)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --issued-at: %v\n", err)
		return 2
	}
	signer, err := sf.resolve(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return 2
	}

	opts := projectOptions(cfg, log)
	opts.Certificate.IssuedAt = ts
	opts.Certificate.Signer = signer
	res, err := model.ProjectResult(req, opts)
	if err != nil {
		fmt.Fprintf(errOut, "cert render: %v\n", err)
		return 1
	}
	if res.Certificate == nil {
		fmt.Fprintln(errOut, "cert render: protocol is not well-formed")
		for _, v := range res.Report.Violations {
			fmt.Fprintf(errOut, "%s %s: %s\n", v.RuleID, v.Path, v.Message)
		}
		return 1
	}
	if signer != nil {
		fmt.Fprintf(errOut, "Certifier-Key: %s\n", signer.PublicKey())
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, res.Certificate, 0o644); err != nil {
			fmt.Fprintf(errOut, "write certificate: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, res.CertificateCID)
		return 0
	}
	_, _ = out.Write(res.Certificate)
	return 0
}

func cmdCertVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("cert verify", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var protocolPath string
	var example string
	var mode string
	fs.StringVar(&protocolPath, "protocol", "", "Check the certificate against this protocol file")
	fs.StringVar(&example, "example", "", "Check the certificate against a catalog protocol")
	fs.StringVar(&mode, "mode", "", "Compliance mode used when projecting the protocol")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: mpstctl cert verify <cert> [--protocol <file> | --example <name>]")
		return 2
	}
	if protocolPath != "" && example != "" {
		fmt.Fprintln(errOut, "--protocol cannot be combined with --example")
		return 2
	}
	cfg, log, ok := settings(errOut)
	if !ok {
		return 1
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read certificate: %v\n", err)
		return 1
	}
	if _, err := certificate.Canonicalize(b); err != nil {
		fmt.Fprintf(errOut, "invalid certificate: %v\n", err)
		return 1
	}
	signed, err := certificate.VerifySignature(b)
	if err != nil {
		fmt.Fprintf(errOut, "signature: %v\n", err)
		return 1
	}

	if protocolPath != "" || example != "" {
		pf := protocolFlags{example: example, mode: mode}
		var pargs []string
		if protocolPath != "" {
			pargs = []string{protocolPath}
		}
		req, err := pf.request(pargs, cfg)
		if err != nil {
			fmt.Fprintf(errOut, "cert verify: %v\n", err)
			return 2
		}
		res, err := model.ProjectResult(req, projectOptions(cfg, log))
		if err != nil {
			fmt.Fprintf(errOut, "cert verify: %v\n", err)
			return 1
		}
		if err := certificate.Matches(b, res.Report); err != nil {
			fmt.Fprintf(errOut, "cert verify: %v\n", err)
			return 1
		}
	}

	if signed {
		_, _ = fmt.Fprintln(out, "OK")
	} else {
		_, _ = fmt.Fprintln(out, "OK (unsigned)")
	}
	return 0
}
