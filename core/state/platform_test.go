package state

import (
	"testing"

	"platformchain/core/contracts"
	"platformchain/core/identity"
	"platformchain/storage"
	"platformchain/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func TestIdentityRoundTrip(t *testing.T) {
	m := newTestManager(t)
	var id [32]byte
	id[0] = 7
	ident := &identity.Identity{
		ID: id, Balance: 12345, Revision: 3,
		Keys: map[uint32]identity.PublicKey{
			0: {ID: 0, Purpose: identity.PurposeAuthentication, SecurityLevel: identity.SecurityMaster, KeyType: identity.KeyTypeECDSASecp256k1, Data: []byte{1, 2, 3}},
			2: {ID: 2, Purpose: identity.PurposeTransfer, SecurityLevel: identity.SecurityCritical, Data: []byte{9}, ContractBounds: &identity.ContractBounds{DocumentType: "profile"}},
		},
	}
	if err := m.PutIdentity(ident); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := m.GetIdentity(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Balance != 12345 || got.Revision != 3 || len(got.Keys) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Keys[2].ContractBounds == nil || got.Keys[2].ContractBounds.DocumentType != "profile" {
		t.Fatalf("contract bounds lost: %+v", got.Keys[2])
	}

	var missing [32]byte
	missing[0] = 99
	absent, err := m.GetIdentity(missing)
	if err != nil || absent != nil {
		t.Fatalf("absent identity: (%v, %v)", absent, err)
	}
}

func TestContractRoundTrip(t *testing.T) {
	m := newTestManager(t)
	var cid, owner [32]byte
	cid[0], owner[0] = 1, 2
	contract := &contracts.DataContract{
		ID: cid, OwnerID: owner, Version: 4,
		DocumentTypes: map[string]contracts.DocumentType{
			"note": {
				Name: "note", Properties: []string{"body", "title"}, Required: []string{"title"},
				Indices:          []contracts.Index{{Name: "byTitle", Properties: []string{"title"}, Unique: true}},
				DocumentsMutable: true,
			},
		},
		Tokens: map[uint16]contracts.TokenConfig{1: {Position: 1, BaseSupply: 1000, Decimals: 8}},
	}
	if err := m.PutContract(contract); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := m.GetContract(cid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 4 {
		t.Fatalf("version = %d", got.Version)
	}
	dt, ok := got.DocumentTypes["note"]
	if !ok || len(dt.Indices) != 1 || !dt.Indices[0].Unique {
		t.Fatalf("document type mismatch: %+v", got.DocumentTypes)
	}
	if got.Tokens[1].BaseSupply != 1000 {
		t.Fatalf("token config mismatch: %+v", got.Tokens)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	m := newTestManager(t)
	var cid, docID, owner [32]byte
	cid[0], docID[0], owner[0] = 1, 2, 3

	doc := &Document{ID: docID, OwnerID: owner, ContractID: cid, TypeName: "note", Revision: 1, Properties: map[string]string{"title": "hi"}, SizeBytes: 7}
	if err := m.PutDocument(doc); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := m.GetDocument(cid, "note", docID)
	if err != nil || got == nil || got.Revision != 1 {
		t.Fatalf("get: (%+v, %v)", got, err)
	}
	if err := m.DeleteDocument(cid, "note", docID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := m.GetDocument(cid, "note", docID)
	if err != nil || gone != nil {
		t.Fatalf("document survived delete: (%+v, %v)", gone, err)
	}
}

func TestAssetLockOneShot(t *testing.T) {
	m := newTestManager(t)
	var outpoint [36]byte
	outpoint[0] = 5

	used, err := m.AssetLockConsumed(outpoint)
	if err != nil || used {
		t.Fatalf("fresh outpoint: (%v, %v)", used, err)
	}
	if err := m.ConsumeAssetLock(outpoint); err != nil {
		t.Fatalf("consume: %v", err)
	}
	used, err = m.AssetLockConsumed(outpoint)
	if err != nil || !used {
		t.Fatalf("consumed outpoint unrecorded: (%v, %v)", used, err)
	}
}

func TestTokenAndContestBalances(t *testing.T) {
	m := newTestManager(t)
	var cid, who, contest [32]byte
	cid[0], who[0], contest[0] = 1, 2, 3

	if err := m.CreditTokenBalance(cid, 1, who, 500); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := m.DebitTokenBalance(cid, 1, who, 200); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal, err := m.GetTokenBalance(cid, 1, who)
	if err != nil || bal != 300 {
		t.Fatalf("balance = (%d, %v)", bal, err)
	}
	if err := m.DebitTokenBalance(cid, 1, who, 301); err == nil {
		t.Fatalf("token overdraft accepted")
	}

	if err := m.CreditContestBalance(contest, 100); err != nil {
		t.Fatalf("contest credit: %v", err)
	}
	if err := m.DebitContestBalance(contest, 101); err == nil {
		t.Fatalf("contest overdraft accepted")
	}
}

func TestWithdrawalQueueOrder(t *testing.T) {
	m := newTestManager(t)
	var a, b [32]byte
	a[0], b[0] = 1, 2

	for i, who := range [][32]byte{a, b, a} {
		var txID [32]byte
		txID[0] = byte(10 + i)
		if _, err := m.EnqueueWithdrawalTransaction(WithdrawalRecord{TransitionID: txID, IdentityID: who, AmountCredits: uint64(100 * (i + 1))}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	first, err := m.DequeueWithdrawalTransactions(2)
	if err != nil || len(first) != 2 {
		t.Fatalf("dequeue: (%v, %v)", first, err)
	}
	if first[0].AmountCredits != 100 || first[1].AmountCredits != 200 {
		t.Fatalf("dequeue order broken: %+v", first)
	}

	rest, err := m.DequeueWithdrawalTransactions(10)
	if err != nil || len(rest) != 1 || rest[0].AmountCredits != 300 {
		t.Fatalf("remainder: (%+v, %v)", rest, err)
	}
	empty, err := m.DequeueWithdrawalTransactions(10)
	if err != nil || len(empty) != 0 {
		t.Fatalf("drained queue returned records: %+v", empty)
	}

	var txID [32]byte
	txID[0] = 11
	seq, found, err := m.FindWithdrawalByTransactionID(txID)
	if err != nil || !found || seq != 1 {
		t.Fatalf("find by tx id: (%d, %v, %v)", seq, found, err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m := newTestManager(t)
	var id [32]byte
	id[0] = 1
	if err := m.PutIdentity(&identity.Identity{ID: id, Balance: 100, Revision: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	ident, err := snap.GetIdentity(id)
	if err != nil {
		t.Fatalf("snap get: %v", err)
	}
	ident.Balance = 1
	if err := snap.PutIdentity(ident); err != nil {
		t.Fatalf("snap put: %v", err)
	}

	// The parent must be untouched until the snapshot commits.
	parent, err := m.GetIdentity(id)
	if err != nil || parent.Balance != 100 {
		t.Fatalf("parent mutated through snapshot: (%+v, %v)", parent, err)
	}
}
