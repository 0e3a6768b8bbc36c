// Package wire defines the tagged-union StateTransition type and its
// canonical wire encoding (spec §6): a length-delimited envelope whose first
// field is a protocol-version varint followed by the discriminator.
package wire

import (
	"platformchain/core/contracts"
	"platformchain/core/identity"
)

// Kind is the closed, versioned enum of transition variants (spec §3/§9).
// Every STEP stage switches on Kind. Go does not check switch
// exhaustiveness: a variant missing from a switch compiles and reaches that
// switch's default branch.
type Kind byte

const (
	KindDataContractCreate Kind = iota
	KindDataContractUpdate
	KindIdentityCreate
	KindIdentityTopUp
	KindIdentityUpdate
	KindIdentityCreditTransfer
	KindIdentityCreditWithdrawal
	KindBatch
	KindMasternodeVote
)

func (k Kind) String() string {
	switch k {
	case KindDataContractCreate:
		return "DataContractCreate"
	case KindDataContractUpdate:
		return "DataContractUpdate"
	case KindIdentityCreate:
		return "IdentityCreate"
	case KindIdentityTopUp:
		return "IdentityTopUp"
	case KindIdentityUpdate:
		return "IdentityUpdate"
	case KindIdentityCreditTransfer:
		return "IdentityCreditTransfer"
	case KindIdentityCreditWithdrawal:
		return "IdentityCreditWithdrawal"
	case KindBatch:
		return "Batch"
	case KindMasternodeVote:
		return "MasternodeVote"
	default:
		return "Unknown"
	}
}

// AssetLockRef points at the Core-chain output an IdentityCreate/IdentityTopUp
// anchors to.
type AssetLockRef struct {
	Outpoint    identity.AssetLockOutpoint
	ValueDuffs  uint64
	OneTimeKey  []byte // the one-time public key authorizing this transition
}

// SignaturePointer identifies which identity key signed the transition.
type SignaturePointer struct {
	KeyID     uint32
	Signature []byte
}

// StateTransition is the tagged union of all transition payloads. Exactly
// one of the Kind-matching fields is populated; the rest are nil. This
// mirrors the teacher's single-struct-with-TxType-tag shape
// (core/types.Transaction) generalized to a closed Go interface-free union so
// stage dispatch stays a flat switch rather than virtual dispatch (spec §9).
type StateTransition struct {
	ProtocolVersion uint32
	Kind            Kind
	Signature       SignaturePointer // IdentityCreate/IdentityTopUp: signed by the asset lock's one-time key

	DataContractCreate      *DataContractCreate
	DataContractUpdate      *DataContractUpdate
	IdentityCreate          *IdentityCreate
	IdentityTopUp           *IdentityTopUp
	IdentityUpdate          *IdentityUpdate
	IdentityCreditTransfer  *IdentityCreditTransfer
	IdentityCreditWithdrawal *IdentityCreditWithdrawal
	Batch                   *Batch
	MasternodeVote          *MasternodeVote
}

// DataContractCreate creates a new contract. ID is derived, not transmitted;
// Entropy is the caller-chosen randomness the id derivation binds to.
type DataContractCreate struct {
	OwnerID       [32]byte
	Entropy       [32]byte
	DocumentTypes map[string]contracts.DocumentType
	Tokens        map[uint16]contracts.TokenConfig
	IdentityNonce uint64
}

// DataContractUpdate revises an existing contract's document types/tokens.
type DataContractUpdate struct {
	ContractID            [32]byte
	NewVersion             uint32
	DocumentTypes          map[string]contracts.DocumentType
	Tokens                 map[uint16]contracts.TokenConfig
	IdentityContractNonce  uint64
}

// IdentityCreate mints a new identity anchored to a Core asset lock.
type IdentityCreate struct {
	AssetLock AssetLockRef
	Keys      map[uint32]identity.PublicKey
}

// IdentityTopUp adds credits to an existing identity via a second asset lock.
type IdentityTopUp struct {
	IdentityID [32]byte
	AssetLock  AssetLockRef
}

// IdentityUpdate mutates an identity's key set. AddKeys/DisableKeyIDs are
// applied together as one atomic revision bump.
type IdentityUpdate struct {
	IdentityID    [32]byte
	AddKeys       map[uint32]identity.PublicKey
	DisableKeyIDs []uint32
	IdentityNonce uint64
}

// IdentityCreditTransfer moves credits between two identities.
type IdentityCreditTransfer struct {
	FromIdentityID [32]byte
	ToIdentityID   [32]byte
	Amount         uint64
	IdentityNonce  uint64
}

// IdentityCreditWithdrawal converts credits back to a Core-chain payout,
// enqueued for the (out-of-scope) withdrawal batcher.
type IdentityCreditWithdrawal struct {
	IdentityID    [32]byte
	Amount        uint64
	CoreOutputScript []byte
	IdentityNonce uint64
}

// DocumentOpKind enumerates the document-level mutations a Batch carries.
type DocumentOpKind byte

const (
	DocumentOpCreate DocumentOpKind = iota
	DocumentOpReplace
	DocumentOpDelete
	DocumentOpTransfer
	DocumentOpPurchase
	DocumentOpUpdatePrice
)

// DocumentOp is a single document mutation within a Batch.
type DocumentOp struct {
	Kind           DocumentOpKind
	DocumentID     [32]byte
	ContractID     [32]byte
	TypeName       string
	OwnerID        [32]byte // not read: Create records the payer as owner; other ops use the ledger record's owner
	Revision       uint64   // required revision for Replace/Transfer/Purchase/UpdatePrice
	Properties     map[string]any
	TransferTo     [32]byte // DocumentOpTransfer
	PurchasePrice  uint64   // DocumentOpPurchase: price the buyer offers
	NewListPrice   uint64   // DocumentOpUpdatePrice
	MaxTokenCost   uint64   // token pre-flight: payer's declared cap, 0 = none required
	TokenPosition  uint16
}

// Batch carries a list of document mutations under one identity-contract
// nonce (token operations reuse the same envelope per spec §1).
type Batch struct {
	OwnerID               [32]byte
	ContractID             [32]byte
	Ops                    []DocumentOp
	IdentityContractNonce  uint64
}

// MasternodeVote casts a vote in a contested-resource poll. The poll
// tallying subsystem is an external collaborator (spec §1); STEP only
// validates and prices the cast.
type MasternodeVote struct {
	VoterIdentityID [32]byte
	ContestedName   string
	ChoiceIdentityID [32]byte // identity the vote favors, zero value = abstain/lock
	IdentityNonce   uint64
}
