package model

import (
	"github.com/ipfs/go-cid"

	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/verify"
)

// ProjectionResult is a compact, Go-friendly view of a projection run.
//
// It is intended for integrations that want the verification report and
// certificate directly, without the ProjectionResponse DTO.
//
// Notes:
// - Certificate is nil unless certification was requested and succeeded.
// - Manifest is nil unless publishing was requested.
type ProjectionResult struct {
	Name           string
	Report         *verify.Report
	Certificate    []byte
	CertificateCID cid.Cid
	Manifest       *storage.Manifest
}
