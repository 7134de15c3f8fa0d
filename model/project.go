package model

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"

	"besedarium.dev/mpst/certificate"
	"besedarium.dev/mpst/cidutil"
	"besedarium.dev/mpst/compliance"
	"besedarium.dev/mpst/protocols"
	"besedarium.dev/mpst/protodoc"
	"besedarium.dev/mpst/session"
	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/verify"
)

// ProjectOptions supplies the collaborators a request may need.
type ProjectOptions struct {
	// CAS hydrates protocols referenced by CID and receives published
	// artifacts. CASAdapters are consulted in order when CAS is nil.
	CAS         storage.CAS
	CASAdapters []storage.CAS

	Certificate certificate.Options
	Logger      zerolog.Logger
}

func (o ProjectOptions) cas() storage.CAS {
	if o.CAS != nil {
		return o.CAS
	}
	if len(o.CASAdapters) > 0 {
		return storage.MultiCAS{Adapters: o.CASAdapters}
	}
	return nil
}

// ProjectResult runs verification and returns a compact, Go-friendly view of
// the outcome.
func ProjectResult(req ProjectionRequest, opts ProjectOptions) (*ProjectionResult, error) {
	run, err := project(req, opts)
	if err != nil {
		return nil, err
	}
	return &ProjectionResult{
		Name:           run.name,
		Report:         run.rep,
		Certificate:    run.cert,
		CertificateCID: run.certCID,
		Manifest:       run.manifest,
	}, nil
}

// Project runs verification and returns the JSON boundary view.
//
// A protocol that fails verification is not an error: the response carries
// WellFormed=false and one CodedError per violation. The returned error is a
// *CodedError for malformed requests and infrastructure failures.
func Project(req ProjectionRequest, opts ProjectOptions) (*ProjectionResponse, error) {
	run, err := project(req, opts)
	if err != nil {
		return nil, err
	}
	return run.response()
}

type projection struct {
	name     string
	input    session.GlobalType
	rep      *verify.Report
	cert     []byte
	certCID  cid.Cid
	manifest *storage.Manifest
}

func project(req ProjectionRequest, opts ProjectOptions) (*projection, error) {
	mode, err := toCompliance(req.Compliance)
	if err != nil {
		return nil, err
	}
	if req.Publish && opts.cas() == nil {
		return nil, NewError(ErrMissingCAS, "publish requested without a CAS")
	}
	roles := make([]session.Role, 0, len(req.Roles))
	for i, r := range req.Roles {
		if strings.TrimSpace(r) == "" {
			return nil, NewError(ErrInvalidRequest, "empty role at roles["+strconv.Itoa(i)+"]")
		}
		roles = append(roles, session.Role(r))
	}

	name, g, docRoles, err := loadProtocol(req.Protocol, opts)
	if err != nil {
		return nil, err
	}
	roles = append(docRoles, roles...)

	log := opts.Logger.With().Str("protocol", name).Logger()
	rep, verr := verify.Verify(g, verify.Options{Mode: mode, Roles: roles, Logger: log})
	if rep == nil {
		return nil, mapErr(verr)
	}
	run := &projection{name: name, input: g, rep: rep}
	if !rep.WellFormed {
		return run, nil
	}

	if req.Certify {
		copts := opts.Certificate
		if copts.Protocol == "" {
			copts.Protocol = name
		}
		b, idStr, err := certificate.RenderWithCID(rep, copts)
		if err != nil {
			return nil, mapErr(err)
		}
		id, err := cid.Decode(idStr)
		if err != nil {
			return nil, NewError(ErrInvalidCID, "invalid certificate cid")
		}
		run.cert, run.certCID = b, id
	}

	if req.Publish {
		repo := storage.NewRepository(opts.cas(), log)
		m, err := repo.Publish(rep, run.cert)
		if err != nil {
			return nil, mapErr(err)
		}
		run.manifest = &m
	}
	return run, nil
}

func loadProtocol(ref ProtocolRef, opts ProjectOptions) (string, session.GlobalType, []session.Role, error) {
	set := 0
	for _, ok := range []bool{ref.CID != "", len(ref.Bytes) > 0, ref.Catalog != ""} {
		if ok {
			set++
		}
	}
	switch {
	case set == 0:
		return "", nil, nil, NewError(ErrInvalidRequest, "protocol ref missing cid/bytes/catalog")
	case set > 1:
		return "", nil, nil, NewError(ErrInvalidRequest, "protocol ref sets more than one of cid/bytes/catalog")
	}

	switch {
	case ref.Catalog != "":
		e, err := protocols.Lookup(ref.Catalog)
		if err != nil {
			return "", nil, nil, NewError(ErrNotFound, err.Error())
		}
		g, err := e.Build()
		if err != nil {
			return "", nil, nil, mapErr(err)
		}
		return e.Name, g, nil, nil

	case ref.CID != "":
		id, err := cidutil.Parse(ref.CID)
		if err != nil {
			return "", nil, nil, NewError(ErrInvalidCID, "invalid cid")
		}
		cas := opts.cas()
		if cas == nil {
			return "", nil, nil, NewError(ErrMissingCAS, "protocol referenced by cid but no CAS configured")
		}
		g, err := storage.NewRepository(cas, opts.Logger).GetProtocol(id)
		if err != nil {
			return "", nil, nil, mapErr(err)
		}
		return id.String(), g, nil, nil

	default:
		format := protodoc.FormatYAML
		if ref.Format != "" {
			f, err := protodoc.ParseFormat(ref.Format)
			if err != nil {
				return "", nil, nil, NewError(ErrInvalidRequest, err.Error())
			}
			format = f
		}
		d, err := protodoc.Decode(ref.Bytes, format)
		if err != nil {
			return "", nil, nil, NewError(ErrInvalidDocument, err.Error())
		}
		g, err := d.Build()
		if err != nil {
			return "", nil, nil, NewError(ErrInvalidDocument, err.Error())
		}
		return d.Protocol, g, d.ExtraRoles(), nil
	}
}

func toCompliance(m ComplianceMode) (compliance.Mode, error) {
	switch m {
	case CompliancePermissive, "":
		return compliance.Permissive, nil
	case ComplianceStrict:
		return compliance.Strict, nil
	default:
		return 0, NewError(ErrInvalidRequest, "invalid compliance mode")
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	if e, ok := session.AsError(err); ok {
		return violationError(e.RuleID, e.Message, e.Path.String(), e.Label, e.Role)
	}
	switch {
	case errors.Is(err, verify.ErrNilProtocol):
		return NewError(ErrInvalidRequest, err.Error())
	case errors.Is(err, certificate.ErrNotWellFormed):
		return NewError(ErrNotWellFormed, err.Error())
	case errors.Is(err, certificate.ErrMismatch):
		return NewError(ErrCIDMismatch, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return NewError(ErrNotFound, err.Error())
	case errors.Is(err, storage.ErrCIDMismatch):
		return NewError(ErrCIDMismatch, err.Error())
	case errors.Is(err, storage.ErrInvalidCID):
		return NewError(ErrInvalidCID, err.Error())
	case errors.Is(err, storage.ErrWrongKind):
		return NewError(ErrWrongKind, err.Error())
	}
	return NewError(ErrInternal, err.Error())
}

func violationError(ruleID, msg, path string, label session.Label, role session.Role) *CodedError {
	return &CodedError{
		Code:    ErrNotWellFormed,
		RuleID:  ruleID,
		Message: msg,
		Path:    path,
		Label:   string(label),
		Role:    string(role),
	}
}

func (p *projection) response() (*ProjectionResponse, error) {
	rep := p.rep
	tree := p.input
	if rep.WellFormed {
		tree = rep.Protocol
	}
	resp := &ProjectionResponse{
		Name:        p.name,
		Compliance:  rep.Mode.String(),
		WellFormed:  rep.WellFormed,
		Roles:       make([]string, 0, len(rep.Roles)),
		Labels:      make([]string, 0, len(rep.Labels)),
		Witnesses:   make([]Witness, 0, len(rep.Witnesses)),
		Projections: make([]Projection, 0, len(rep.Locals)),
		Errors:      make([]CodedError, 0, len(rep.Violations)),
	}
	// Rejected protocols are identified by their input tree.
	if b, err := protodoc.CanonicalGlobal(tree); err == nil {
		resp.ProtocolCID = cidutil.CIDv1RawSHA256(b)
		resp.Fingerprint = cidutil.Fingerprint(b)
	}
	for _, r := range rep.Roles {
		resp.Roles = append(resp.Roles, string(r))
	}
	for _, l := range rep.Labels {
		resp.Labels = append(resp.Labels, string(l))
	}
	for _, w := range rep.Witnesses {
		resp.Witnesses = append(resp.Witnesses, Witness{
			Path:       w.Path.String(),
			Label:      string(w.Label),
			Certified:  w.Certified,
			LeftRoles:  roleStrings(w.LeftRoles),
			RightRoles: roleStrings(w.RightRoles),
		})
	}
	for _, role := range rep.LocalRoles() {
		l := rep.Locals[role]
		b, err := protodoc.CanonicalLocal(l)
		if err != nil {
			return nil, mapErr(err)
		}
		resp.Projections = append(resp.Projections, Projection{
			Role:     string(role),
			Local:    l.String(),
			LocalCID: cidutil.CIDv1RawSHA256(b),
		})
	}
	for _, v := range rep.Violations {
		resp.Errors = append(resp.Errors, *violationError(v.RuleID, v.Message, v.Path, v.Label, v.Role))
	}
	if p.cert != nil {
		resp.Certificate = &CertificateDocument{Bytes: p.cert, CID: p.certCID.String()}
	}
	if p.manifest != nil {
		resp.Published = make(map[string]string)
		for name, id := range p.manifest.Names() {
			resp.Published[name] = id.String()
		}
	}
	return resp, nil
}

func roleStrings(rs []session.Role) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, string(r))
	}
	return out
}
