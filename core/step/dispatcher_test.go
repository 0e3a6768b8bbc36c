package step_test

import (
	"crypto/ecdsa"
	"errors"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"platformchain/core/execctx"
	"platformchain/core/fees"
	"platformchain/core/identity"
	"platformchain/core/orchestrator"
	"platformchain/core/state"
	"platformchain/core/step"
	"platformchain/core/steperr"
	"platformchain/core/wire"
	"platformchain/storage"
	"platformchain/storage/trie"
)

type fixture struct {
	t       *testing.T
	manager *state.Manager
	deps    step.Deps
	key     *ecdsa.PrivateKey
	pub     []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	manager := state.NewManager(tr)
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &fixture{
		t:       t,
		manager: manager,
		deps:    orchestrator.DepsFor(manager, fees.DefaultTable, 1, 1),
		key:     key,
		pub:     ethcrypto.CompressPubkey(&key.PublicKey),
	}
}

func (f *fixture) seedIdentity(idByte byte, balance uint64) [32]byte {
	f.t.Helper()
	var id [32]byte
	id[0] = idByte
	err := f.manager.PutIdentity(&identity.Identity{
		ID: id, Balance: balance, Revision: 1,
		Keys: map[uint32]identity.PublicKey{
			0: {ID: 0, Purpose: identity.PurposeAuthentication, SecurityLevel: identity.SecurityMaster, KeyType: identity.KeyTypeECDSASecp256k1, Data: f.pub},
			2: {ID: 2, Purpose: identity.PurposeTransfer, SecurityLevel: identity.SecurityCritical, KeyType: identity.KeyTypeECDSASecp256k1, Data: f.pub},
			3: {ID: 3, Purpose: identity.PurposeVoting, SecurityLevel: identity.SecurityMedium, KeyType: identity.KeyTypeECDSASecp256k1, Data: f.pub},
		},
	})
	if err != nil {
		f.t.Fatalf("seed identity: %v", err)
	}
	return id
}

func (f *fixture) sign(tx *wire.StateTransition, keyID uint32) {
	f.t.Helper()
	digest, err := wire.Hash(tx)
	if err != nil {
		f.t.Fatalf("hash: %v", err)
	}
	sig, err := ethcrypto.Sign(digest[:], f.key)
	if err != nil {
		f.t.Fatalf("sign: %v", err)
	}
	tx.Signature = wire.SignaturePointer{KeyID: keyID, Signature: sig}
}

func (f *fixture) transfer(from, to [32]byte, amount, nonce uint64) *wire.StateTransition {
	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindIdentityCreditTransfer,
		IdentityCreditTransfer: &wire.IdentityCreditTransfer{
			FromIdentityID: from, ToIdentityID: to, Amount: amount, IdentityNonce: nonce,
		},
	}
	f.sign(tx, 2)
	return tx
}

func TestValidateRefusesUnsetVersion(t *testing.T) {
	f := newFixture(t)
	f.deps.Version = 0
	from := f.seedIdentity(1, 1_000_000)
	to := f.seedIdentity(2, 0)
	_, err := step.Validate(f.deps, nil, f.transfer(from, to, 1, 2), execctx.New(false, false, 0))
	if err == nil {
		t.Fatalf("zero version accepted")
	}
}

type rejectPolicy struct{}

func (rejectPolicy) IsAllowed(tx *wire.StateTransition) error {
	return errors.New("contested resource frozen")
}

func TestPolicyRejectionIsUnpaid(t *testing.T) {
	f := newFixture(t)
	owner := f.seedIdentity(1, 1_000_000)
	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindBatch,
		Batch: &wire.Batch{OwnerID: owner, Ops: []wire.DocumentOp{{
			Kind: wire.DocumentOpCreate, TypeName: "profile",
		}}},
	}
	f.sign(tx, 0)

	result, err := step.Validate(f.deps, rejectPolicy{}, tx, execctx.New(false, false, 0))
	if err != nil {
		t.Fatalf("fatal: %v", err)
	}
	if result.IsValid() || result.Error().Verdict != steperr.VerdictUnpaid {
		t.Fatalf("policy rejection must be unpaid, got %+v", result.Error())
	}
	if result.Error().Code != step.CodeNotAllowed {
		t.Fatalf("code = %s", result.Error().Code)
	}
}

func TestForgedSignatureIsUnpaidForUnknownIdentity(t *testing.T) {
	f := newFixture(t)
	var ghostFrom, to [32]byte
	ghostFrom[0], to[0] = 0xBB, 2
	tx := f.transfer(ghostFrom, to, 1, 2)

	result, err := step.Validate(f.deps, nil, tx, execctx.New(false, false, 0))
	if err != nil {
		t.Fatalf("fatal: %v", err)
	}
	if result.IsValid() || result.Error().Code != steperr.CodeIdentityNotFound {
		t.Fatalf("want IdentityNotFound, got %+v", result.Error())
	}
	if result.Error().Verdict != steperr.VerdictUnpaid {
		t.Fatalf("unknown identity must be unpaid")
	}
}

func TestTamperedSignatureIsPaidWithBump(t *testing.T) {
	f := newFixture(t)
	from := f.seedIdentity(1, 1_000_000)
	to := f.seedIdentity(2, 0)
	tx := f.transfer(from, to, 100, 2)
	tx.IdentityCreditTransfer.Amount = 999 // invalidates the signature

	result, err := step.Validate(f.deps, nil, tx, execctx.New(false, false, 0))
	if err != nil {
		t.Fatalf("fatal: %v", err)
	}
	if result.IsValid() || result.Error().Verdict != steperr.VerdictPaid {
		t.Fatalf("tampered payload against a known identity must be paid, got %+v", result.Error())
	}
	if !result.HasData() {
		t.Fatalf("paid failure must carry a bump event")
	}
	ev := result.Data()
	if ev.Action.Kind != step.ActionBumpIdentityNonce || ev.PayerIdentityID != from {
		t.Fatalf("bump event = %+v", ev.Action)
	}
}

func TestInsufficientPreCheckBalanceIsUnpaid(t *testing.T) {
	f := newFixture(t)
	from := f.seedIdentity(1, 10) // below any pre-check floor
	to := f.seedIdentity(2, 0)

	result, err := step.Validate(f.deps, nil, f.transfer(from, to, 1, 2), execctx.New(false, false, 0))
	if err != nil {
		t.Fatalf("fatal: %v", err)
	}
	if result.IsValid() || result.Error().Verdict != steperr.VerdictUnpaid {
		t.Fatalf("payer below pre-check floor must be unpaid, got %+v", result.Error())
	}
}

func TestDeclaredAmountOverBalanceIsPaid(t *testing.T) {
	f := newFixture(t)
	from := f.seedIdentity(1, 50_000)
	to := f.seedIdentity(2, 0)

	result, err := step.Validate(f.deps, nil, f.transfer(from, to, 49_999, 2), execctx.New(false, false, 0))
	if err != nil {
		t.Fatalf("fatal: %v", err)
	}
	if result.IsValid() || result.Error().Verdict != steperr.VerdictPaid {
		t.Fatalf("amount over balance-plus-reserve must be paid, got %+v", result.Error())
	}
}

func (f *fixture) vote(voter [32]byte, name string, nonce uint64) *wire.StateTransition {
	tx := &wire.StateTransition{
		ProtocolVersion: 1,
		Kind:            wire.KindMasternodeVote,
		MasternodeVote:  &wire.MasternodeVote{VoterIdentityID: voter, ContestedName: name, IdentityNonce: nonce},
	}
	f.sign(tx, 3)
	return tx
}

func TestPrefundedCheckGatedOnVersion(t *testing.T) {
	f := newFixture(t)
	voter := f.seedIdentity(1, 1_000_000)
	// No contest balance is seeded, so the pre-check would fail if run.

	t.Run("at the minimum version the check runs", func(t *testing.T) {
		result, err := step.Validate(f.deps, nil, f.vote(voter, "alice", 2), execctx.New(false, false, 0))
		if err != nil {
			t.Fatalf("fatal: %v", err)
		}
		if result.IsValid() || result.Error().Verdict != steperr.VerdictUnpaid {
			t.Fatalf("empty contest pool must be unpaid, got %+v", result.Error())
		}
	})

	t.Run("below the minimum version the check is skipped", func(t *testing.T) {
		deps := f.deps
		deps.MinimumBalancePreCheckVersion = 2 // current Version is 1
		result, err := step.Validate(deps, nil, f.vote(voter, "alice", 2), execctx.New(false, false, 0))
		if err != nil {
			t.Fatalf("fatal: %v", err)
		}
		if !result.IsValid() {
			t.Fatalf("pre-vote protocol version must skip the pool check: %+v", result.Error())
		}
	})
}

// check_tx valid implies the full pipeline never returns an unpaid verdict
// for the same transition and state (spec §8).
func TestCheckTxAgreement(t *testing.T) {
	f := newFixture(t)
	from := f.seedIdentity(1, 1_000_000)
	to := f.seedIdentity(2, 0)

	txs := []*wire.StateTransition{
		f.transfer(from, to, 100, 2),
		f.transfer(from, to, 999_999, 2), // over balance: paid at stage 5
	}
	for i, tx := range txs {
		check, err := step.CheckTx(f.deps, nil, tx, execctx.New(true, false, 0))
		if err != nil {
			t.Fatalf("tx %d check: %v", i, err)
		}
		if !check.IsValid() && check.Error().Verdict == steperr.VerdictUnpaid {
			continue // check_tx already rejects; nothing to agree on
		}
		full, err := step.Validate(f.deps, nil, tx, execctx.New(false, false, 0))
		if err != nil {
			t.Fatalf("tx %d validate: %v", i, err)
		}
		if !full.IsValid() && full.Error().Verdict == steperr.VerdictUnpaid {
			t.Fatalf("tx %d: check_tx admitted but STEP returned unpaid: %+v", i, full.Error())
		}
	}
}
