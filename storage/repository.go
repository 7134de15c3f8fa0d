package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"

	"besedarium.dev/mpst/certificate"
	"besedarium.dev/mpst/protodoc"
	"besedarium.dev/mpst/session"
	"besedarium.dev/mpst/verify"
)

// Repository stores typed protocol artifacts in a CAS.
type Repository struct {
	CAS CAS
	Log zerolog.Logger
}

// NewRepository wraps cas. A zero logger discards output.
func NewRepository(cas CAS, log zerolog.Logger) *Repository {
	return &Repository{CAS: cas, Log: log}
}

// PutProtocol stores the canonical encoding of g.
func (r *Repository) PutProtocol(g session.GlobalType) (cid.Cid, error) {
	b, err := protodoc.CanonicalGlobal(g)
	if err != nil {
		return cid.Undef, err
	}
	id, err := r.CAS.Put(b)
	if err != nil {
		return cid.Undef, err
	}
	r.Log.Debug().Str("cid", id.String()).Int("bytes", len(b)).Msg("protocol stored")
	return id, nil
}

// GetProtocol loads and decodes a protocol.
func (r *Repository) GetProtocol(id cid.Cid) (session.GlobalType, error) {
	b, err := r.CAS.Get(id)
	if err != nil {
		return nil, err
	}
	g, err := protodoc.DecodeGlobal(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWrongKind, id, err)
	}
	return g, nil
}

// PutLocal stores the canonical encoding of a local type.
func (r *Repository) PutLocal(l session.LocalType) (cid.Cid, error) {
	b, err := protodoc.CanonicalLocal(l)
	if err != nil {
		return cid.Undef, err
	}
	return r.CAS.Put(b)
}

// GetLocal loads and decodes a local type.
func (r *Repository) GetLocal(id cid.Cid) (session.LocalType, error) {
	b, err := r.CAS.Get(id)
	if err != nil {
		return nil, err
	}
	l, err := protodoc.DecodeLocal(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWrongKind, id, err)
	}
	return l, nil
}

// PutCertificate stores a certificate after checking it is canonical.
func (r *Repository) PutCertificate(cert []byte) (cid.Cid, error) {
	canon, err := certificate.Canonicalize(cert)
	if err != nil {
		return cid.Undef, err
	}
	return r.CAS.Put(canon)
}

// GetCertificate loads a certificate and checks it is canonical.
func (r *Repository) GetCertificate(id cid.Cid) ([]byte, error) {
	b, err := r.CAS.Get(id)
	if err != nil {
		return nil, err
	}
	if _, err := certificate.Canonicalize(b); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWrongKind, id, err)
	}
	return b, nil
}

// Manifest lists everything Publish stored.
type Manifest struct {
	Protocol    cid.Cid
	Locals      map[session.Role]cid.Cid
	Certificate cid.Cid
}

// CIDs returns every CID in the manifest.
func (m Manifest) CIDs() []cid.Cid {
	out := []cid.Cid{m.Protocol}
	for _, id := range m.Locals {
		out = append(out, id)
	}
	if m.Certificate.Defined() {
		out = append(out, m.Certificate)
	}
	return out
}

// Names maps a readable name to each CID, for bundle indexes.
func (m Manifest) Names() map[string]cid.Cid {
	out := map[string]cid.Cid{"protocol": m.Protocol}
	for role, id := range m.Locals {
		out["local/"+string(role)] = id
	}
	if m.Certificate.Defined() {
		out["certificate"] = m.Certificate
	}
	return out
}

// Publish stores a verified protocol, every local projection and, when cert
// is non-nil, its certificate. The certificate must match the report.
func (r *Repository) Publish(rep *verify.Report, cert []byte) (Manifest, error) {
	if rep == nil || !rep.WellFormed {
		return Manifest{}, certificate.ErrNotWellFormed
	}
	if cert != nil {
		if err := certificate.Matches(cert, rep); err != nil {
			return Manifest{}, err
		}
	}
	var m Manifest
	var err error
	if m.Protocol, err = r.PutProtocol(rep.Protocol); err != nil {
		return Manifest{}, err
	}
	m.Locals = make(map[session.Role]cid.Cid, len(rep.Locals))
	for _, role := range rep.LocalRoles() {
		id, err := r.PutLocal(rep.Locals[role])
		if err != nil {
			return Manifest{}, fmt.Errorf("storing local type of %s: %w", role, err)
		}
		m.Locals[role] = id
	}
	if cert != nil {
		if m.Certificate, err = r.PutCertificate(cert); err != nil {
			return Manifest{}, err
		}
	}
	r.Log.Info().
		Str("protocol", m.Protocol.String()).
		Int("locals", len(m.Locals)).
		Bool("certified", m.Certificate.Defined()).
		Msg("protocol published")
	return m, nil
}
