package model

// ProtocolRef names the protocol to project.
// Exactly one of CID, Bytes or Catalog MUST be set.
//
// Bytes hold a protocol document; Format selects yaml, json or cbor and
// defaults to yaml. JSON note: Bytes are encoded as base64 by encoding/json.
type ProtocolRef struct {
	CID     string `json:"cid,omitempty" yaml:"cid,omitempty"`
	Bytes   []byte `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Format  string `json:"format,omitempty" yaml:"format,omitempty"`
	Catalog string `json:"catalog,omitempty" yaml:"catalog,omitempty"`
}

type ComplianceMode string

const (
	CompliancePermissive ComplianceMode = "permissive"
	ComplianceStrict     ComplianceMode = "strict"
)

type ProjectionRequest struct {
	Protocol   ProtocolRef    `json:"protocol" yaml:"protocol"`
	Compliance ComplianceMode `json:"compliance" yaml:"compliance"`
	// Roles are projected in addition to the roles the protocol mentions.
	Roles   []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Certify bool     `json:"certify,omitempty" yaml:"certify,omitempty"`
	Publish bool     `json:"publish,omitempty" yaml:"publish,omitempty"`
}

type Witness struct {
	Path       string   `json:"path" yaml:"path"`
	Label      string   `json:"label" yaml:"label"`
	Certified  bool     `json:"certified" yaml:"certified"`
	LeftRoles  []string `json:"leftRoles" yaml:"leftRoles"`
	RightRoles []string `json:"rightRoles" yaml:"rightRoles"`
}

type Projection struct {
	Role     string `json:"role" yaml:"role"`
	Local    string `json:"local" yaml:"local"`
	LocalCID string `json:"localCID" yaml:"localCID"`
}

type CertificateDocument struct {
	Bytes []byte `json:"bytes" yaml:"bytes"`
	CID   string `json:"cid" yaml:"cid"`
}

type ProjectionResponse struct {
	Name        string       `json:"name,omitempty" yaml:"name,omitempty"`
	ProtocolCID string       `json:"protocolCID" yaml:"protocolCID"`
	Fingerprint string       `json:"fingerprint" yaml:"fingerprint"`
	Compliance  string       `json:"compliance" yaml:"compliance"`
	WellFormed  bool         `json:"wellFormed" yaml:"wellFormed"`
	Roles       []string     `json:"roles" yaml:"roles"`
	Labels      []string     `json:"labels" yaml:"labels"`
	Witnesses   []Witness    `json:"witnesses" yaml:"witnesses"`
	Projections []Projection `json:"projections" yaml:"projections"`
	Errors      []CodedError `json:"errors" yaml:"errors"`

	Certificate *CertificateDocument `json:"certificate,omitempty" yaml:"certificate,omitempty"`
	// Published maps manifest names ("protocol", "local/<role>",
	// "certificate") to CIDs.
	Published map[string]string `json:"published,omitempty" yaml:"published,omitempty"`
}
