package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"besedarium.dev/mpst/internal/config"
	"besedarium.dev/mpst/model"
	"besedarium.dev/mpst/protocols"
	"besedarium.dev/mpst/protodoc"
)

// protocolFlags selects a protocol from a file argument or the catalog.
type protocolFlags struct {
	example string
	mode    string
	roles   []string
}

func (p *protocolFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&p.example, "example", "", "Use a catalog protocol instead of a file")
	fs.StringVar(&p.mode, "mode", "", "Compliance mode: permissive or strict (default from mpst.toml)")
	fs.StringArrayVar(&p.roles, "role", nil, "Additional role to project (repeatable)")
}

// request builds a projection request from the parsed flags and the
// positional file argument, if any.
func (p *protocolFlags) request(args []string, cfg config.Config) (model.ProjectionRequest, error) {
	var req model.ProjectionRequest
	switch {
	case p.example != "" && len(args) > 0:
		return req, errors.New("--example cannot be combined with a file")
	case p.example != "":
		req.Protocol.Catalog = p.example
	case len(args) == 1:
		path := args[0]
		b, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("read protocol: %w", err)
		}
		req.Protocol.Bytes = b
		req.Protocol.Format = string(protodoc.FormatForPath(path))
	default:
		return req, errors.New("expected one protocol file or --example <name>")
	}
	mode := p.mode
	if mode == "" {
		mode = cfg.Mode.String()
	}
	req.Compliance = model.ComplianceMode(strings.ToLower(mode))
	req.Roles = p.roles
	return req, nil
}

func projectOptions(cfg config.Config, log zerolog.Logger) model.ProjectOptions {
	opts := model.ProjectOptions{Logger: log}
	opts.Certificate.CertifierID = cfg.CertifierID
	return opts
}

// runProjection is the shared body of check, project, roles, labels and cid.
func runProjection(name string, args []string, errOut io.Writer, extra func(fs *pflag.FlagSet)) (*model.ProjectionResponse, int) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var pf protocolFlags
	pf.add(fs)
	if extra != nil {
		extra(fs)
	}
	if code, ok := parseFlags(fs, args); !ok {
		return nil, code
	}
	cfg, log, ok := settings(errOut)
	if !ok {
		return nil, 1
	}
	req, err := pf.request(fs.Args(), cfg)
	if err != nil {
		fmt.Fprintf(errOut, "usage: mpstctl %s (<file> | --example <name>): %v\n", name, err)
		return nil, 2
	}
	resp, err := model.Project(req, projectOptions(cfg, log))
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", name, err)
		return nil, 1
	}
	return resp, 0
}

func printViolations(w io.Writer, resp *model.ProjectionResponse) {
	for _, e := range resp.Errors {
		loc := e.Path
		if loc == "" {
			loc = "/"
		}
		fmt.Fprintf(w, "%s %s %q: %s\n", e.RuleID, loc, e.Label, e.Message)
	}
}

func cmdCheck(args []string, out io.Writer, errOut io.Writer) int {
	var output string
	resp, code := runProjection("check", args, errOut, func(fs *pflag.FlagSet) {
		fs.StringVar(&output, "output", "text", "Output format: text, json or yaml")
	})
	if resp == nil {
		return code
	}
	if output != "text" {
		if err := writeStructured(out, output, resp); err != nil {
			fmt.Fprintf(errOut, "check: %v\n", err)
			return 2
		}
	} else {
		fmt.Fprintf(out, "Protocol: %s\n", resp.Name)
		fmt.Fprintf(out, "Protocol-CID: %s\n", resp.ProtocolCID)
		fmt.Fprintf(out, "Fingerprint: %s\n", resp.Fingerprint)
		fmt.Fprintf(out, "Mode: %s\n", resp.Compliance)
		fmt.Fprintf(out, "Roles: %s\n", strings.Join(resp.Roles, " "))
		fmt.Fprintf(out, "Well-Formed: %t\n", resp.WellFormed)
		printViolations(out, resp)
	}
	if !resp.WellFormed {
		return 1
	}
	return 0
}

func cmdProject(args []string, out io.Writer, errOut io.Writer) int {
	var output string
	resp, code := runProjection("project", args, errOut, func(fs *pflag.FlagSet) {
		fs.StringVar(&output, "output", "text", "Output format: text, json or yaml")
	})
	if resp == nil {
		return code
	}
	if !resp.WellFormed {
		fmt.Fprintln(errOut, "project: protocol is not well-formed")
		printViolations(errOut, resp)
		return 1
	}
	if output != "text" {
		if err := writeStructured(out, output, resp.Projections); err != nil {
			fmt.Fprintf(errOut, "project: %v\n", err)
			return 2
		}
		return 0
	}
	for _, p := range resp.Projections {
		fmt.Fprintf(out, "%s\t%s\n", p.Role, p.Local)
	}
	return 0
}

func cmdRoles(args []string, out io.Writer, errOut io.Writer) int {
	resp, code := runProjection("roles", args, errOut, nil)
	if resp == nil {
		return code
	}
	for _, r := range resp.Roles {
		fmt.Fprintln(out, r)
	}
	return 0
}

func cmdLabels(args []string, out io.Writer, errOut io.Writer) int {
	resp, code := runProjection("labels", args, errOut, nil)
	if resp == nil {
		return code
	}
	for _, l := range resp.Labels {
		fmt.Fprintln(out, l)
	}
	return 0
}

func cmdCID(args []string, out io.Writer, errOut io.Writer) int {
	resp, code := runProjection("cid", args, errOut, nil)
	if resp == nil {
		return code
	}
	if resp.ProtocolCID == "" {
		fmt.Fprintln(errOut, "cid: protocol cannot be encoded")
		return 1
	}
	fmt.Fprintln(out, resp.ProtocolCID)
	return 0
}

func cmdExample(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("example", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	var format string
	fs.StringVar(&format, "format", "yaml", "Document format: yaml, json or cbor")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() == 0 {
		for _, name := range protocols.Names() {
			e, _ := protocols.Lookup(name)
			fmt.Fprintf(out, "%s\t%s\n", e.Name, e.Description)
		}
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: mpstctl example [<name>] [--format yaml|json|cbor]")
		return 2
	}
	f, err := protodoc.ParseFormat(format)
	if err != nil {
		fmt.Fprintf(errOut, "example: %v\n", err)
		return 2
	}
	e, err := protocols.Lookup(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "example: %v\n", err)
		return 1
	}
	g, err := e.Build()
	if err != nil {
		fmt.Fprintf(errOut, "example: %v\n", err)
		return 1
	}
	b, err := protodoc.Encode(protodoc.FromGlobal(e.Name, g), f)
	if err != nil {
		fmt.Fprintf(errOut, "example: %v\n", err)
		return 1
	}
	_, _ = out.Write(b)
	return 0
}
