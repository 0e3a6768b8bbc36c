// Package contracts implements the Contract Registry (C4): data-contract
// fetch by id with a cached DataContractFetchInfo, document-type lookup, and
// per-version contract dispatch.
package contracts

import "fmt"

// DocumentType describes the schema and mutability rules for one document
// type declared by a data contract.
type DocumentType struct {
	Name                  string
	Properties            []string
	Required              []string
	Indices                []Index
	DocumentsMutable      bool
	DocumentsCanBeDeleted bool
	RevisionRequired      bool
}

// Index describes a named, ordered set of properties a document type is
// queryable/unique on.
type Index struct {
	Name       string
	Properties []string
	Unique     bool
}

// TokenConfig is the per-position token configuration a contract may embed.
type TokenConfig struct {
	Position     uint16
	BaseSupply   uint64
	MaxSupply    uint64
	Decimals     uint8
}

// DataContract is the persisted contract record. ID and OwnerID are fixed at
// creation time (spec §3) and never rewritten by an update.
type DataContract struct {
	ID            [32]byte
	OwnerID       [32]byte
	Version       uint32
	DocumentTypes map[string]DocumentType
	Tokens        map[uint16]TokenConfig
}

// DocumentType looks up a document type by name, reporting whether it exists.
func (c *DataContract) DocumentType(name string) (DocumentType, bool) {
	dt, ok := c.DocumentTypes[name]
	return dt, ok
}

// ErrDataContractNotPresent is returned when a lookup misses; STEP maps this
// to BasicError.DataContractNotPresent (spec §7).
var ErrDataContractNotPresent = fmt.Errorf("contracts: data contract not present")

// ErrDocumentTypeNotPresent is returned when a document type is not declared
// by the contract.
var ErrDocumentTypeNotPresent = fmt.Errorf("contracts: document type not present")
