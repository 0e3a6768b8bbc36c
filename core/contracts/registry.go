package contracts

import "fmt"

// Ledger is the narrow view of the Ledger Store (C1) the registry needs.
type Ledger interface {
	GetContract(id [32]byte) (*DataContract, error)
	PutContract(c *DataContract) error
}

// FeeQuoter prices a contract retrieval; supplied by core/fees so the
// registry never imports the fee engine's concrete types directly.
type FeeQuoter interface {
	QuoteContractFetch(c *DataContract) uint64
}

// DataContractFetchInfo bundles a fetched contract with its document types
// and a precomputed retrieval fee quote, matching spec §4.4.
type DataContractFetchInfo struct {
	Contract      *DataContract
	FetchFeeQuote uint64
}

// Registry is a get-or-load cache in front of the Ledger Store, keyed by
// contract id within the scope of a single block (mirrors the teacher's
// per-block PlatformRef snapshot semantics from spec §3).
type Registry struct {
	ledger Ledger
	fees   FeeQuoter
	cache  map[[32]byte]*DataContractFetchInfo
}

// NewRegistry constructs a Registry over the given ledger and fee quoter.
func NewRegistry(ledger Ledger, fees FeeQuoter) *Registry {
	return &Registry{ledger: ledger, fees: fees, cache: make(map[[32]byte]*DataContractFetchInfo)}
}

// GetWithFetchInfo returns the cached or freshly-loaded DataContractFetchInfo
// for id, returning ErrDataContractNotPresent when absent.
func (r *Registry) GetWithFetchInfo(id [32]byte) (*DataContractFetchInfo, error) {
	if cached, ok := r.cache[id]; ok {
		return cached, nil
	}
	contract, err := r.ledger.GetContract(id)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, ErrDataContractNotPresent
	}
	info := &DataContractFetchInfo{Contract: contract}
	if r.fees != nil {
		info.FetchFeeQuote = r.fees.QuoteContractFetch(contract)
	}
	r.cache[id] = info
	return info, nil
}

// Put persists a newly created or updated contract and refreshes the cache.
func (r *Registry) Put(c *DataContract) error {
	if err := r.ledger.PutContract(c); err != nil {
		return err
	}
	info := &DataContractFetchInfo{Contract: c}
	if r.fees != nil {
		info.FetchFeeQuote = r.fees.QuoteContractFetch(c)
	}
	r.cache[c.ID] = info
	return nil
}

// ResolveDocumentType is a convenience combining GetWithFetchInfo with the
// document-type lookup used throughout Batch validation (spec §4.1 stage 8).
func (r *Registry) ResolveDocumentType(contractID [32]byte, typeName string) (*DataContractFetchInfo, DocumentType, error) {
	info, err := r.GetWithFetchInfo(contractID)
	if err != nil {
		return nil, DocumentType{}, err
	}
	dt, ok := info.Contract.DocumentType(typeName)
	if !ok {
		return nil, DocumentType{}, fmt.Errorf("%w: contract=%x type=%s", ErrDocumentTypeNotPresent, contractID, typeName)
	}
	return info, dt, nil
}
