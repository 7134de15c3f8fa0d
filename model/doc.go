// Package model defines stable boundary types for API layers.
//
// Protocol identity (canonical CBOR bytes and their CIDs) is unaffected by
// these views. The structs here are the only types intended for direct
// JSON/YAML serialization by consumers.
package model
