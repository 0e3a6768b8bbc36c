package step

import (
	"platformchain/core/contracts"
	"platformchain/core/wire"
)

// ActionKind enumerates every mutation shape STEP can produce, including the
// two synthetic bump-nonce shapes used to bill a signed-but-invalid
// transition without performing its intended mutation (spec §7, design note
// §9). Kept as two distinct variants rather than one parameterized variant
// so each switch names both cases explicitly (SPEC_FULL.md §13); Go does not
// check switch exhaustiveness, and an unhandled kind reaches the default
// branch.
type ActionKind byte

const (
	ActionCreateIdentity ActionKind = iota
	ActionTopUpIdentity
	ActionUpdateIdentity
	ActionTransferCredits
	ActionWithdrawCredits
	ActionCreateContract
	ActionUpdateContract
	ActionBatch
	ActionCastVote
	ActionBumpIdentityNonce
	ActionBumpIdentityDataContractNonce
	// ActionNone marks a check_tx result cut off before stage 8 built the
	// real action; it is never handed to the Action Applier.
	ActionNone
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreateIdentity:
		return "CreateIdentity"
	case ActionTopUpIdentity:
		return "TopUpIdentity"
	case ActionUpdateIdentity:
		return "UpdateIdentity"
	case ActionTransferCredits:
		return "TransferCredits"
	case ActionWithdrawCredits:
		return "WithdrawCredits"
	case ActionCreateContract:
		return "CreateContract"
	case ActionUpdateContract:
		return "UpdateContract"
	case ActionBatch:
		return "Batch"
	case ActionCastVote:
		return "CastVote"
	case ActionBumpIdentityNonce:
		return "BumpIdentityNonce"
	case ActionBumpIdentityDataContractNonce:
		return "BumpIdentityDataContractNonce"
	case ActionNone:
		return "None"
	default:
		return "Unknown"
	}
}

// ResolvedDocumentOp pairs a submitted DocumentOp with the original document
// it targets (nil for Create) after stage 8's ledger lookups.
type ResolvedDocumentOp struct {
	Op       wire.DocumentOp
	Original *ResolvedDocument // nil for DocumentOpCreate
}

// ResolvedDocument is the subset of core/state.Document stage 8 needs to
// finish validating and apply a mutation, decoupled from the storage
// package to avoid an import cycle between core/step and core/state.
type ResolvedDocument struct {
	OwnerID   [32]byte
	Revision  uint64
	ListPrice uint64
	SizeBytes uint64
}

// Action is the concrete, priceable mutation STEP hands to the Action
// Applier (C6). PayerIdentityID is always set except on the ActionNone result
// check_tx returns for IdentityCreate, which has no identity yet; a paid
// failure without a payer is downgraded to unpaid, so bump shapes always
// carry one.
type Action struct {
	Kind            ActionKind
	PayerIdentityID [32]byte

	CreateIdentity *wire.IdentityCreate
	TopUpIdentity  *wire.IdentityTopUp
	UpdateIdentity *wire.IdentityUpdate
	Transfer       *wire.IdentityCreditTransfer
	Withdrawal     *wire.IdentityCreditWithdrawal
	CreateContract *ContractCreateAction
	UpdateContract *wire.DataContractUpdate
	Batch          *BatchAction
	CastVote       *wire.MasternodeVote

	// BumpIdentityNonce / BumpIdentityDataContractNonce payload.
	BumpContractID [32]byte // zero value for plain identity-nonce bumps
	BumpNonce      uint64
}

// ContractCreateAction carries the derived contract id alongside the
// submitted payload (design note §9: compute the id before any operation
// that references it).
type ContractCreateAction struct {
	Contract *contracts.DataContract
}

// BatchAction is a Batch transition resolved against the ledger: every
// DocumentOp paired with its fetched original (if any).
type BatchAction struct {
	OwnerID               [32]byte
	ContractID            [32]byte
	IdentityContractNonce uint64
	Ops                   []ResolvedDocumentOp
}

// ExecutionEvent is STEP's success payload (spec §3): the action plus the
// payer and epoch context the Action Applier and Fee Engine need.
// TransitionHash is the wire digest of the originating transition, stamped
// by the orchestrator so appliers can index durable records (the withdrawal
// queue) back to their source.
type ExecutionEvent struct {
	Action          Action
	PayerIdentityID [32]byte
	Epoch           uint64
	TransitionHash  [32]byte
}
