package fees

import "platformchain/core/contracts"

// ContractFeeQuoter adapts a Table into the contracts.FeeQuoter interface,
// pricing a contract retrieval as one read plus one hash per document type
// (index verification) — a fixed, deterministic shape independent of the
// contract's current in-memory representation.
type ContractFeeQuoter struct {
	Table Table
}

// QuoteContractFetch implements contracts.FeeQuoter.
func (q ContractFeeQuoter) QuoteContractFetch(c *contracts.DataContract) uint64 {
	ops := []ValidationOperation{{Kind: OpRead, Units: 1}}
	if c != nil {
		ops = append(ops, ValidationOperation{Kind: OpHash, Units: uint64(len(c.DocumentTypes))})
	}
	return q.Table.Quote(ops).Total()
}
