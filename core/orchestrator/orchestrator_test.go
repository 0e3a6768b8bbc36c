package orchestrator

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"platformchain/core/contracts"
	"platformchain/core/fees"
	"platformchain/core/identity"
	"platformchain/core/state"
	"platformchain/core/steperr"
	"platformchain/core/wire"
	"platformchain/storage"
	"platformchain/storage/trie"
)

type signer struct {
	key *ecdsa.PrivateKey
	pub []byte // compressed secp256k1 point
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return &signer{key: key, pub: ethcrypto.CompressPubkey(&key.PublicKey)}
}

func (s *signer) sign(t *testing.T, tx *wire.StateTransition, keyID uint32) {
	t.Helper()
	digest, err := wire.Hash(tx)
	require.NoError(t, err)
	sig, err := ethcrypto.Sign(digest[:], s.key)
	require.NoError(t, err)
	tx.Signature = wire.SignaturePointer{KeyID: keyID, Signature: sig}
}

type harness struct {
	t    *testing.T
	orch *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	manager := state.NewManager(tr)
	orch := New(manager, fees.DefaultTable, 1, nil, slog.Default())
	return &harness{t: t, orch: orch}
}

// seedIdentity persists an identity holding a MASTER auth key (id 0), a HIGH
// auth key (id 1), a CRITICAL transfer key (id 2), and a MEDIUM voting key
// (id 3), all bound to the same test signer for convenience.
func (h *harness) seedIdentity(idByte byte, s *signer, balance uint64) [32]byte {
	h.t.Helper()
	var id [32]byte
	id[0] = idByte
	ident := &identity.Identity{
		ID: id, Balance: balance, Revision: 1,
		Keys: map[uint32]identity.PublicKey{
			0: {ID: 0, Purpose: identity.PurposeAuthentication, SecurityLevel: identity.SecurityMaster, KeyType: identity.KeyTypeECDSASecp256k1, Data: s.pub},
			1: {ID: 1, Purpose: identity.PurposeAuthentication, SecurityLevel: identity.SecurityHigh, KeyType: identity.KeyTypeECDSASecp256k1, Data: s.pub},
			2: {ID: 2, Purpose: identity.PurposeTransfer, SecurityLevel: identity.SecurityCritical, KeyType: identity.KeyTypeECDSASecp256k1, Data: s.pub},
			3: {ID: 3, Purpose: identity.PurposeVoting, SecurityLevel: identity.SecurityMedium, KeyType: identity.KeyTypeECDSASecp256k1, Data: s.pub},
		},
	}
	require.NoError(h.t, h.orch.Ledger().PutIdentity(ident))
	return id
}

func (h *harness) seedContract(idByte byte, owner [32]byte, types map[string]contracts.DocumentType) [32]byte {
	h.t.Helper()
	var cid [32]byte
	cid[0] = idByte
	require.NoError(h.t, h.orch.Ledger().PutContract(&contracts.DataContract{ID: cid, OwnerID: owner, Version: 1, DocumentTypes: types}))
	return cid
}

func (h *harness) process(txs ...*wire.StateTransition) BlockResult {
	h.t.Helper()
	result, err := h.orch.ProcessBlock(context.Background(), BlockInfo{Height: 1, TimeMs: 1_700_000_000_000, Epoch: 0}, txs)
	require.NoError(h.t, err)
	return result
}

func (h *harness) balance(id [32]byte) uint64 {
	h.t.Helper()
	ident, err := h.orch.Ledger().GetIdentity(id)
	require.NoError(h.t, err)
	require.NotNil(h.t, ident)
	return ident.Balance
}

func (h *harness) revision(id [32]byte) uint64 {
	h.t.Helper()
	ident, err := h.orch.Ledger().GetIdentity(id)
	require.NoError(h.t, err)
	require.NotNil(h.t, ident)
	return ident.Revision
}

func outpoint(b byte) identity.AssetLockOutpoint {
	var o identity.AssetLockOutpoint
	o[0] = b
	return o
}

func identityCreateTx(t *testing.T, s *signer, o identity.AssetLockOutpoint, valueDuffs uint64) *wire.StateTransition {
	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindIdentityCreate,
		IdentityCreate: &wire.IdentityCreate{
			AssetLock: wire.AssetLockRef{Outpoint: o, ValueDuffs: valueDuffs, OneTimeKey: s.pub},
			Keys: map[uint32]identity.PublicKey{
				0: {ID: 0, Purpose: identity.PurposeAuthentication, SecurityLevel: identity.SecurityMaster, KeyType: identity.KeyTypeECDSASecp256k1, Data: s.pub},
			},
		},
	}
	s.sign(t, tx, 0)
	return tx
}

func TestIdentityCreateFreshAssetLock(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	tx := identityCreateTx(t, s, outpoint(1), 1000)

	result := h.process(tx)
	require.Equal(t, 1, result.ValidCount)

	tr := result.Results[0]
	require.Equal(t, BucketValid, tr.Bucket)
	require.Positive(t, tr.FeeResult.Total())

	minted := fees.DefaultTable.DuffsToCredits(1000)
	newID := tr.Event.Action.PayerIdentityID
	require.Equal(t, minted-tr.FeeResult.Total(), h.balance(newID))

	used, err := h.orch.Ledger().AssetLockConsumed([36]byte(outpoint(1)))
	require.NoError(t, err)
	require.True(t, used, "asset lock outpoint must be recorded as consumed")
}

func TestAssetLockReuseIsPaidError(t *testing.T) {
	h := newHarness(t)
	creator := newSigner(t)
	first := h.process(identityCreateTx(t, creator, outpoint(1), 1000))
	require.Equal(t, 1, first.ValidCount)
	firstID := first.Results[0].Event.Action.PayerIdentityID
	firstBalance := h.balance(firstID)

	other := newSigner(t)
	otherID := h.seedIdentity(9, other, 1_000_000)
	oneTime := newSigner(t)
	topUp := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindIdentityTopUp,
		IdentityTopUp: &wire.IdentityTopUp{
			IdentityID: otherID,
			AssetLock:  wire.AssetLockRef{Outpoint: outpoint(1), ValueDuffs: 500, OneTimeKey: oneTime.pub},
		},
	}
	oneTime.sign(t, topUp, 0)

	result, err := h.orch.ProcessBlock(context.Background(), BlockInfo{Height: 2, TimeMs: 2, Epoch: 0}, []*wire.StateTransition{topUp})
	require.NoError(t, err)
	require.Equal(t, 1, result.PaidCount)
	require.Equal(t, steperr.CodeAssetLockOutpointAlreadyExists, result.Results[0].DomainErr.Code)

	require.Equal(t, firstBalance, h.balance(firstID), "first identity untouched by the reuse attempt")
	require.Less(t, h.balance(otherID), uint64(1_000_000), "reusing payer billed for the work")
	require.Equal(t, uint64(2), h.revision(otherID), "nonce advances on a paid failure")
}

func TestTopUpUnknownIdentityIsUnpaid(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	var ghost [32]byte
	ghost[0] = 0xAA
	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindIdentityTopUp,
		IdentityTopUp: &wire.IdentityTopUp{
			IdentityID: ghost,
			AssetLock:  wire.AssetLockRef{Outpoint: outpoint(2), ValueDuffs: 100, OneTimeKey: s.pub},
		},
	}
	s.sign(t, tx, 0)

	result := h.process(tx)
	require.Equal(t, 1, result.UnpaidCount)
	require.Equal(t, steperr.CodeIdentityNotFound, result.Results[0].DomainErr.Code)
}

func TestIdentityUpdateWithWeakKeyIsPaid(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	id := h.seedIdentity(1, s, 1_000_000)

	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindIdentityUpdate,
		IdentityUpdate: &wire.IdentityUpdate{
			IdentityID: id,
			AddKeys: map[uint32]identity.PublicKey{
				5: {ID: 5, Purpose: identity.PurposeEncryption, SecurityLevel: identity.SecurityMedium, KeyType: identity.KeyTypeECDSASecp256k1, Data: s.pub},
			},
			IdentityNonce: 2,
		},
	}
	s.sign(t, tx, 1) // HIGH key; IdentityUpdate demands MASTER

	result := h.process(tx)
	require.Equal(t, 1, result.PaidCount)
	require.Equal(t, steperr.CodeWrongSecurityLevel, result.Results[0].DomainErr.Code)
	require.Equal(t, uint64(2), h.revision(id), "revision advances")
	require.Less(t, h.balance(id), uint64(1_000_000), "payer billed")

	// The intended mutation must not have happened.
	ident, err := h.orch.Ledger().GetIdentity(id)
	require.NoError(t, err)
	_, added := ident.Keys[5]
	require.False(t, added)
}

func profileTypes() map[string]contracts.DocumentType {
	return map[string]contracts.DocumentType{
		"profile": {
			Name: "profile", Properties: []string{"displayName"},
			DocumentsMutable: true, DocumentsCanBeDeleted: true, RevisionRequired: true,
		},
		"contactRequest": {
			Name: "contactRequest", Properties: []string{"toUserId"},
			DocumentsMutable: false, DocumentsCanBeDeleted: false,
		},
	}
}

func batchTx(t *testing.T, s *signer, owner, contract [32]byte, nonce uint64, ops ...wire.DocumentOp) *wire.StateTransition {
	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindBatch,
		Batch:           &wire.Batch{OwnerID: owner, ContractID: contract, Ops: ops, IdentityContractNonce: nonce},
	}
	s.sign(t, tx, 0)
	return tx
}

func TestBatchCreateThenDelete(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	owner := h.seedIdentity(1, s, 10_000_000)
	contract := h.seedContract(2, owner, profileTypes())

	var docID [32]byte
	docID[0] = 3
	create := batchTx(t, s, owner, contract, 0, wire.DocumentOp{
		Kind: wire.DocumentOpCreate, DocumentID: docID, TypeName: "profile",
		Properties: map[string]any{"displayName": "alice"},
	})
	del := batchTx(t, s, owner, contract, 1, wire.DocumentOp{
		Kind: wire.DocumentOpDelete, DocumentID: docID, TypeName: "profile",
	})

	result := h.process(create, del)
	require.Equal(t, 2, result.ValidCount)
	require.Positive(t, result.Results[0].FeeResult.ProcessingFee)
	require.NotEqual(t, result.Root.Hex(), "0x0000000000000000000000000000000000000000000000000000000000000000")

	gone, err := h.orch.Ledger().GetDocument(contract, "profile", docID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestBatchDeleteOnNonDeletableIsPaid(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	owner := h.seedIdentity(1, s, 10_000_000)
	contract := h.seedContract(2, owner, profileTypes())

	var docID [32]byte
	docID[0] = 4
	require.NoError(t, h.orch.Ledger().PutDocument(&state.Document{
		ID: docID, OwnerID: owner, ContractID: contract, TypeName: "contactRequest", Revision: 1, SizeBytes: 10,
	}))

	del := batchTx(t, s, owner, contract, 0, wire.DocumentOp{
		Kind: wire.DocumentOpDelete, DocumentID: docID, TypeName: "contactRequest",
	})
	result := h.process(del)
	require.Equal(t, 1, result.PaidCount)
	require.Equal(t, steperr.CodeDocumentNotDeletable, result.Results[0].DomainErr.Code)

	survived, err := h.orch.Ledger().GetDocument(contract, "contactRequest", docID)
	require.NoError(t, err)
	require.NotNil(t, survived)
}

func TestBatchPurchaseWrongPriceIsPaid(t *testing.T) {
	h := newHarness(t)
	seller := newSigner(t)
	sellerID := h.seedIdentity(1, seller, 10_000_000)
	buyer := newSigner(t)
	buyerID := h.seedIdentity(2, buyer, 10_000_000)
	contract := h.seedContract(3, sellerID, profileTypes())

	var docID [32]byte
	docID[0] = 5
	require.NoError(t, h.orch.Ledger().PutDocument(&state.Document{
		ID: docID, OwnerID: sellerID, ContractID: contract, TypeName: "profile", Revision: 2, ListPrice: 100, SizeBytes: 10,
	}))

	purchase := batchTx(t, buyer, buyerID, contract, 0, wire.DocumentOp{
		Kind: wire.DocumentOpPurchase, DocumentID: docID, TypeName: "profile", Revision: 2, PurchasePrice: 99,
	})
	result := h.process(purchase)
	require.Equal(t, 1, result.PaidCount)
	require.Equal(t, steperr.CodeDocumentIncorrectPurchasePrice, result.Results[0].DomainErr.Code)
}

func TestBatchTokenShortfallIsPaid(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	owner := h.seedIdentity(1, s, 10_000_000)
	contract := h.seedContract(2, owner, profileTypes())
	require.NoError(t, h.orch.Ledger().CreditTokenBalance(contract, 1, owner, 10))

	var docID [32]byte
	docID[0] = 6
	create := batchTx(t, s, owner, contract, 0, wire.DocumentOp{
		Kind: wire.DocumentOpCreate, DocumentID: docID, TypeName: "profile",
		Properties:   map[string]any{"displayName": "bob"},
		MaxTokenCost: 50, TokenPosition: 1,
	})
	result := h.process(create)
	require.Equal(t, 1, result.PaidCount)
	require.Equal(t, steperr.CodeIdentityDoesNotHaveEnoughTokenBalance, result.Results[0].DomainErr.Code)
	require.Less(t, h.balance(owner), uint64(10_000_000), "credit balance still debited for processing")
}

func TestTransferConservesCredits(t *testing.T) {
	h := newHarness(t)
	from := newSigner(t)
	fromID := h.seedIdentity(1, from, 1_000_000)
	to := newSigner(t)
	toID := h.seedIdentity(2, to, 500_000)

	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindIdentityCreditTransfer,
		IdentityCreditTransfer: &wire.IdentityCreditTransfer{
			FromIdentityID: fromID, ToIdentityID: toID, Amount: 100_000, IdentityNonce: 2,
		},
	}
	from.sign(t, tx, 2) // TRANSFER key

	result := h.process(tx)
	require.Equal(t, 1, result.ValidCount)
	fee := result.Results[0].FeeResult.Total()

	require.Equal(t, uint64(1_000_000-100_000)-fee, h.balance(fromID))
	require.Equal(t, uint64(500_000+100_000), h.balance(toID))
}

func TestWithdrawalEnqueuesCorePayout(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	id := h.seedIdentity(1, s, 1_000_000)

	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindIdentityCreditWithdrawal,
		IdentityCreditWithdrawal: &wire.IdentityCreditWithdrawal{
			IdentityID: id, Amount: 200_000, CoreOutputScript: []byte{0x76, 0xA9}, IdentityNonce: 2,
		},
	}
	s.sign(t, tx, 2)

	result := h.process(tx)
	require.Equal(t, 1, result.ValidCount)
	fee := result.Results[0].FeeResult.Total()
	require.Equal(t, uint64(1_000_000-200_000)-fee, h.balance(id))

	queued, err := h.orch.Ledger().DequeueWithdrawalTransactions(10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	require.Equal(t, uint64(200_000), queued[0].AmountCredits)
	require.Equal(t, id, queued[0].IdentityID)

	txHash, err := wire.Hash(tx)
	require.NoError(t, err)
	_, found, err := h.orch.Ledger().FindWithdrawalByTransactionID(txHash)
	require.NoError(t, err)
	require.True(t, found)
}

func TestStaleNonceIsUnpaid(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	fromID := h.seedIdentity(1, s, 1_000_000)
	toID := h.seedIdentity(2, newSigner(t), 0)

	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindIdentityCreditTransfer,
		IdentityCreditTransfer: &wire.IdentityCreditTransfer{
			FromIdentityID: fromID, ToIdentityID: toID, Amount: 1, IdentityNonce: 1, // revision is already 1
		},
	}
	s.sign(t, tx, 2)

	result := h.process(tx)
	require.Equal(t, 1, result.UnpaidCount)
	require.Equal(t, uint64(1_000_000), h.balance(fromID), "unpaid failures never touch the payer")
	require.Equal(t, uint64(1), h.revision(fromID))
}

func voteTx(t *testing.T, s *signer, voter [32]byte, name string, nonce uint64) *wire.StateTransition {
	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindMasternodeVote,
		MasternodeVote: &wire.MasternodeVote{
			VoterIdentityID: voter, ContestedName: name, IdentityNonce: nonce,
		},
	}
	s.sign(t, tx, 3) // VOTING key
	return tx
}

func TestMasternodeVoteBillsContestAndAdvancesNonce(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	voter := h.seedIdentity(1, s, 1_000_000)
	contestID := identity.DeriveContestID("alice")
	require.NoError(t, h.orch.Ledger().CreditContestBalance(contestID, 100_000))

	result := h.process(voteTx(t, s, voter, "alice", 2))
	require.Equal(t, 1, result.ValidCount)
	fee := result.Results[0].FeeResult.Total()

	pool, err := h.orch.Ledger().PrefundedContestBalance(contestID)
	require.NoError(t, err)
	require.Equal(t, uint64(100_000)-fee, pool, "contest pool pays the vote")
	require.Equal(t, uint64(1_000_000), h.balance(voter), "voter's own credits untouched")
	require.Equal(t, uint64(2), h.revision(voter), "voter nonce advances")

	// The identical signed vote must not replay once the nonce consumed it.
	replay, err := h.orch.ProcessBlock(context.Background(), BlockInfo{Height: 2, TimeMs: 2, Epoch: 0}, []*wire.StateTransition{voteTx(t, s, voter, "alice", 2)})
	require.NoError(t, err)
	require.Equal(t, 1, replay.UnpaidCount)
	require.Equal(t, uint64(2), h.revision(voter))
}

func TestMasternodeVoteExhaustedPoolIsUnpaid(t *testing.T) {
	h := newHarness(t)
	s := newSigner(t)
	voter := h.seedIdentity(1, s, 1_000_000)

	result := h.process(voteTx(t, s, voter, "unfunded-name", 2))
	require.Equal(t, 1, result.UnpaidCount)
	require.Equal(t, uint64(1), h.revision(voter), "unpaid failures never advance the nonce")
}

func TestBlockDeterminism(t *testing.T) {
	build := func() string {
		h := newHarness(t)
		// A fixed private key so both runs produce byte-identical
		// transitions and signatures.
		key, err := ethcrypto.ToECDSA(make32(0x42))
		require.NoError(t, err)
		s := &signer{key: key, pub: ethcrypto.CompressPubkey(&key.PublicKey)}

		owner := h.seedIdentity(1, s, 10_000_000)
		contract := h.seedContract(2, owner, profileTypes())
		var docID [32]byte
		docID[0] = 7
		create := batchTx(t, s, owner, contract, 0, wire.DocumentOp{
			Kind: wire.DocumentOpCreate, DocumentID: docID, TypeName: "profile",
			Properties: map[string]any{"displayName": "carol"},
		})
		result := h.process(create)
		require.Equal(t, 1, result.ValidCount)
		return result.Root.Hex()
	}
	require.Equal(t, build(), build(), "same ledger, same block, same root")
}

func make32(b byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = b
	}
	return out
}
