package step

import (
	"platformchain/core/contracts"
	"platformchain/core/fees"
	"platformchain/core/identity"
)

// DocumentLedger is the document/token-balance subset of the Ledger Store
// (C1) stages 8-9 need; implemented by core/apply.DocumentLedgerAdapter over
// core/state.Manager.
type DocumentLedger interface {
	GetDocument(contractID [32]byte, typeName string, docID [32]byte) (*ResolvedDocumentRecord, error)
	GetTokenBalance(contractID [32]byte, position uint16, identityID [32]byte) (uint64, error)
	DocumentExists(contractID [32]byte, typeName string, docID [32]byte) (bool, error)
}

// ResolvedDocumentRecord mirrors core/state.Document's fields needed by
// stage 8/9 validation (kept separate from core/step.ResolvedDocument to
// decouple the ledger-facing shape from the action-facing shape).
type ResolvedDocumentRecord struct {
	OwnerID   [32]byte
	Revision  uint64
	ListPrice uint64
	SizeBytes uint64
}

// PrefundedBalanceLedger backs stage 6's prefunded specialized balance
// pre-check for MasternodeVote.
type PrefundedBalanceLedger interface {
	PrefundedContestBalance(contestID [32]byte) (uint64, error)
}

// Deps bundles every collaborator the STEP dispatcher needs. A single Deps
// value is constructed once per block by the Block Orchestrator (C8) and
// reused across every transition in that block — it is stateless aside from
// the registry's per-block cache (spec §4.4).
type Deps struct {
	Identity  *identity.Store
	Contracts *contracts.Registry
	Documents DocumentLedger
	Prefunded PrefundedBalanceLedger
	FeeTable  fees.Table
	Version   uint32
	// MinimumBalancePreCheckVersion is the Version at and above which stage
	// 6's prefunded-balance pre-check applies to MasternodeVote; below it
	// the pre-check is skipped for backward compatibility with pre-vote
	// protocol versions (config.MinimumBalancePreCheckVersion). Zero means
	// the check always runs.
	MinimumBalancePreCheckVersion uint32
}
