package state

import (
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"platformchain/core/contracts"
	"platformchain/core/identity"
)

// This file extends Manager with the Ledger Store (C1) operations STEP's
// collaborators (C3 identity, C4 contracts, C6 applier) need: identity,
// data-contract, document, and asset-lock persistence on top of the existing
// RLP-over-trie KVPut/KVGet/KVDelete helpers (manager.go), following the same
// prefixed-key convention as every other subtree in this file.
var (
	platformIdentityPrefix          = []byte("platform/identity/")
	platformIdentityContractNoncePrefix = []byte("platform/idcnonce/")
	platformAssetLockPrefix         = []byte("platform/assetlock/")
	platformContractPrefix          = []byte("platform/contract/")
	platformDocumentPrefix          = []byte("platform/document/")
	platformTokenBalancePrefix      = []byte("platform/tokenbal/")
	platformContestBalancePrefix   = []byte("platform/contestbal/")
)

func platformContestBalanceKey(contestID [32]byte) []byte {
	return append(append([]byte(nil), platformContestBalancePrefix...), contestID[:]...)
}

func platformIdentityKey(id [32]byte) []byte {
	return append(append([]byte(nil), platformIdentityPrefix...), id[:]...)
}

func platformIdentityContractNonceKey(id, contract [32]byte) []byte {
	key := append([]byte(nil), platformIdentityContractNoncePrefix...)
	key = append(key, id[:]...)
	key = append(key, contract[:]...)
	return key
}

func platformAssetLockKey(outpoint [36]byte) []byte {
	return append(append([]byte(nil), platformAssetLockPrefix...), outpoint[:]...)
}

func platformContractKey(id [32]byte) []byte {
	return append(append([]byte(nil), platformContractPrefix...), id[:]...)
}

func platformDocumentKey(contractID [32]byte, typeName string, docID [32]byte) []byte {
	key := append([]byte(nil), platformDocumentPrefix...)
	key = append(key, contractID[:]...)
	key = append(key, []byte(typeName)...)
	key = append(key, docID[:]...)
	return key
}

func platformTokenBalanceKey(contractID [32]byte, position uint16, identityID [32]byte) []byte {
	key := append([]byte(nil), platformTokenBalancePrefix...)
	key = append(key, contractID[:]...)
	key = append(key, byte(position>>8), byte(position))
	key = append(key, identityID[:]...)
	return key
}

// --- storedIdentity: RLP-friendly mirror of identity.Identity ---

type storedPublicKey struct {
	ID             uint32
	Purpose        byte
	SecurityLevel  byte
	KeyType        byte
	ReadOnly       bool
	Data           []byte
	DisabledAtMs   uint64
	HasBounds      bool
	BoundsContract [32]byte
	BoundsDocType  string
}

type storedIdentity struct {
	ID       [32]byte
	Balance  uint64
	Revision uint64
	Keys     []storedPublicKey
}

func toStoredIdentity(id *identity.Identity) storedIdentity {
	out := storedIdentity{ID: id.ID, Balance: id.Balance, Revision: id.Revision}
	for _, k := range id.Keys {
		sk := storedPublicKey{
			ID:            k.ID,
			Purpose:       byte(k.Purpose),
			SecurityLevel: byte(k.SecurityLevel),
			KeyType:       byte(k.KeyType),
			ReadOnly:      k.ReadOnly,
			Data:          k.Data,
			DisabledAtMs:  k.DisabledAtMs,
		}
		if k.ContractBounds != nil {
			sk.HasBounds = true
			sk.BoundsContract = k.ContractBounds.ContractID
			sk.BoundsDocType = k.ContractBounds.DocumentType
		}
		out.Keys = append(out.Keys, sk)
	}
	return out
}

func (s storedIdentity) toIdentity() *identity.Identity {
	out := &identity.Identity{ID: s.ID, Balance: s.Balance, Revision: s.Revision, Keys: make(map[uint32]identity.PublicKey, len(s.Keys))}
	for _, sk := range s.Keys {
		k := identity.PublicKey{
			ID:            sk.ID,
			Purpose:       identity.KeyPurpose(sk.Purpose),
			SecurityLevel: identity.SecurityLevel(sk.SecurityLevel),
			KeyType:       identity.KeyType(sk.KeyType),
			ReadOnly:      sk.ReadOnly,
			Data:          sk.Data,
			DisabledAtMs:  sk.DisabledAtMs,
		}
		if sk.HasBounds {
			k.ContractBounds = &identity.ContractBounds{ContractID: sk.BoundsContract, DocumentType: sk.BoundsDocType}
		}
		out.Keys[sk.ID] = k
	}
	return out
}

// GetIdentity implements identity.Ledger.
func (m *Manager) GetIdentity(id [32]byte) (*identity.Identity, error) {
	var stored storedIdentity
	ok, err := m.KVGet(platformIdentityKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return stored.toIdentity(), nil
}

// PutIdentity implements identity.Ledger.
func (m *Manager) PutIdentity(ident *identity.Identity) error {
	return m.KVPut(platformIdentityKey(ident.ID), toStoredIdentity(ident))
}

// GetIdentityContractNonce implements identity.Ledger.
func (m *Manager) GetIdentityContractNonce(identityID, contractID [32]byte) (identity.IdentityContractNonce, error) {
	var stored struct {
		Floor    uint64
		UsedMask uint64
	}
	ok, err := m.KVGet(platformIdentityContractNonceKey(identityID, contractID), &stored)
	if err != nil {
		return identity.IdentityContractNonce{}, err
	}
	if !ok {
		return identity.IdentityContractNonce{}, nil
	}
	return identity.IdentityContractNonce{Floor: stored.Floor, UsedMask: stored.UsedMask}, nil
}

// PutIdentityContractNonce implements identity.Ledger.
func (m *Manager) PutIdentityContractNonce(identityID, contractID [32]byte, n identity.IdentityContractNonce) error {
	stored := struct {
		Floor    uint64
		UsedMask uint64
	}{Floor: n.Floor, UsedMask: n.UsedMask}
	return m.KVPut(platformIdentityContractNonceKey(identityID, contractID), stored)
}

// AssetLockConsumed implements identity.Ledger.
func (m *Manager) AssetLockConsumed(outpoint [36]byte) (bool, error) {
	ok, err := m.KVGet(platformAssetLockKey(outpoint), nil)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ConsumeAssetLock implements identity.Ledger.
func (m *Manager) ConsumeAssetLock(outpoint [36]byte) error {
	return m.KVPut(platformAssetLockKey(outpoint), struct{ Consumed bool }{true})
}

// --- contracts.Ledger ---

type storedDocumentType struct {
	Name                  string
	Properties            []string
	Required              []string
	Indices               []storedIndex
	DocumentsMutable      bool
	DocumentsCanBeDeleted bool
	RevisionRequired      bool
}

type storedIndex struct {
	Name       string
	Properties []string
	Unique     bool
}

type storedTokenConfig struct {
	Position   uint16
	BaseSupply uint64
	MaxSupply  uint64
	Decimals   uint8
}

type storedContract struct {
	ID            [32]byte
	OwnerID       [32]byte
	Version       uint32
	DocumentTypes []storedDocumentType
	Tokens        []storedTokenConfig
}

func toStoredContract(c *contracts.DataContract) storedContract {
	out := storedContract{ID: c.ID, OwnerID: c.OwnerID, Version: c.Version}
	for _, dt := range c.DocumentTypes {
		sdt := storedDocumentType{
			Name: dt.Name, Properties: dt.Properties, Required: dt.Required,
			DocumentsMutable: dt.DocumentsMutable, DocumentsCanBeDeleted: dt.DocumentsCanBeDeleted,
			RevisionRequired: dt.RevisionRequired,
		}
		for _, idx := range dt.Indices {
			sdt.Indices = append(sdt.Indices, storedIndex{Name: idx.Name, Properties: idx.Properties, Unique: idx.Unique})
		}
		out.DocumentTypes = append(out.DocumentTypes, sdt)
	}
	for _, tc := range c.Tokens {
		out.Tokens = append(out.Tokens, storedTokenConfig{Position: tc.Position, BaseSupply: tc.BaseSupply, MaxSupply: tc.MaxSupply, Decimals: tc.Decimals})
	}
	return out
}

func (s storedContract) toContract() *contracts.DataContract {
	out := &contracts.DataContract{ID: s.ID, OwnerID: s.OwnerID, Version: s.Version, DocumentTypes: make(map[string]contracts.DocumentType), Tokens: make(map[uint16]contracts.TokenConfig)}
	for _, sdt := range s.DocumentTypes {
		dt := contracts.DocumentType{
			Name: sdt.Name, Properties: sdt.Properties, Required: sdt.Required,
			DocumentsMutable: sdt.DocumentsMutable, DocumentsCanBeDeleted: sdt.DocumentsCanBeDeleted,
			RevisionRequired: sdt.RevisionRequired,
		}
		for _, idx := range sdt.Indices {
			dt.Indices = append(dt.Indices, contracts.Index{Name: idx.Name, Properties: idx.Properties, Unique: idx.Unique})
		}
		out.DocumentTypes[sdt.Name] = dt
	}
	for _, tc := range s.Tokens {
		out.Tokens[tc.Position] = contracts.TokenConfig{Position: tc.Position, BaseSupply: tc.BaseSupply, MaxSupply: tc.MaxSupply, Decimals: tc.Decimals}
	}
	return out
}

// GetContract implements contracts.Ledger.
func (m *Manager) GetContract(id [32]byte) (*contracts.DataContract, error) {
	var stored storedContract
	ok, err := m.KVGet(platformContractKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return stored.toContract(), nil
}

// PutContract implements contracts.Ledger.
func (m *Manager) PutContract(c *contracts.DataContract) error {
	return m.KVPut(platformContractKey(c.ID), toStoredContract(c))
}

// --- Document storage ---

// Document is the persisted record for a single Batch-managed document
// (spec §3).
type Document struct {
	ID         [32]byte
	OwnerID    [32]byte
	ContractID [32]byte
	TypeName   string
	Revision   uint64
	CreatedAtMs uint64
	UpdatedAtMs uint64
	Properties map[string]string
	ListPrice  uint64 // 0 = not for sale
	SizeBytes  uint64
}

// documentRLP mirrors Document for RLP purposes: RLP cannot encode Go maps
// directly, so Properties is carried as a slice of key/value pairs sorted by
// key to keep the encoding deterministic (required for block/state-root
// determinism).
type documentRLP struct {
	ID          [32]byte
	OwnerID     [32]byte
	ContractID  [32]byte
	TypeName    string
	Revision    uint64
	CreatedAtMs uint64
	UpdatedAtMs uint64
	Properties  []documentPropertyRLP
	ListPrice   uint64
	SizeBytes   uint64
}

type documentPropertyRLP struct {
	Key   string
	Value string
}

// EncodeRLP implements rlp.Encoder.
func (d Document) EncodeRLP(w io.Writer) error {
	props := make([]documentPropertyRLP, 0, len(d.Properties))
	for k, v := range d.Properties {
		props = append(props, documentPropertyRLP{Key: k, Value: v})
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Key < props[j].Key })
	return rlp.Encode(w, &documentRLP{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		ContractID:  d.ContractID,
		TypeName:    d.TypeName,
		Revision:    d.Revision,
		CreatedAtMs: d.CreatedAtMs,
		UpdatedAtMs: d.UpdatedAtMs,
		Properties:  props,
		ListPrice:   d.ListPrice,
		SizeBytes:   d.SizeBytes,
	})
}

// DecodeRLP implements rlp.Decoder.
func (d *Document) DecodeRLP(s *rlp.Stream) error {
	var dec documentRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	var props map[string]string
	if len(dec.Properties) > 0 {
		props = make(map[string]string, len(dec.Properties))
		for _, p := range dec.Properties {
			props[p.Key] = p.Value
		}
	}
	*d = Document{
		ID:          dec.ID,
		OwnerID:     dec.OwnerID,
		ContractID:  dec.ContractID,
		TypeName:    dec.TypeName,
		Revision:    dec.Revision,
		CreatedAtMs: dec.CreatedAtMs,
		UpdatedAtMs: dec.UpdatedAtMs,
		Properties:  props,
		ListPrice:   dec.ListPrice,
		SizeBytes:   dec.SizeBytes,
	}
	return nil
}

// GetDocument fetches a document by (contract, type, id); returns nil, nil
// when absent.
func (m *Manager) GetDocument(contractID [32]byte, typeName string, docID [32]byte) (*Document, error) {
	var doc Document
	ok, err := m.KVGet(platformDocumentKey(contractID, typeName, docID), &doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// PutDocument persists a document record.
func (m *Manager) PutDocument(doc *Document) error {
	return m.KVPut(platformDocumentKey(doc.ContractID, doc.TypeName, doc.ID), *doc)
}

// DeleteDocument removes a document record.
func (m *Manager) DeleteDocument(contractID [32]byte, typeName string, docID [32]byte) error {
	return m.KVDelete(platformDocumentKey(contractID, typeName, docID))
}

// --- Token balances (for Batch token pre-flights, spec §4.1 stage 8) ---

// GetTokenBalance returns the identity's balance of the token at position
// within contractID.
func (m *Manager) GetTokenBalance(contractID [32]byte, position uint16, identityID [32]byte) (uint64, error) {
	var bal uint64
	ok, err := m.KVGet(platformTokenBalanceKey(contractID, position, identityID), &bal)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return bal, nil
}

// SetTokenBalance writes the identity's balance of the token at position.
func (m *Manager) SetTokenBalance(contractID [32]byte, position uint16, identityID [32]byte, balance uint64) error {
	return m.KVPut(platformTokenBalanceKey(contractID, position, identityID), balance)
}

// DebitTokenBalance reduces balance by amount, rejecting insufficient funds.
func (m *Manager) DebitTokenBalance(contractID [32]byte, position uint16, identityID [32]byte, amount uint64) error {
	bal, err := m.GetTokenBalance(contractID, position, identityID)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("state: insufficient token balance: have=%d need=%d", bal, amount)
	}
	return m.SetTokenBalance(contractID, position, identityID, bal-amount)
}

// CreditTokenBalance increases balance by amount.
func (m *Manager) CreditTokenBalance(contractID [32]byte, position uint16, identityID [32]byte, amount uint64) error {
	bal, err := m.GetTokenBalance(contractID, position, identityID)
	if err != nil {
		return err
	}
	return m.SetTokenBalance(contractID, position, identityID, bal+amount)
}

// --- Contest prefunded balances (spec §4.1 stage 6, MasternodeVote) ---

// PrefundedContestBalance returns the remaining prefunded credit balance
// backing a contested-resource poll, implementing step.PrefundedBalanceLedger.
func (m *Manager) PrefundedContestBalance(contestID [32]byte) (uint64, error) {
	var bal uint64
	ok, err := m.KVGet(platformContestBalanceKey(contestID), &bal)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return bal, nil
}

// CreditContestBalance tops up a contest's prefunded balance. No transition
// kind funds a contest pool; the Action Applier only debits it.
func (m *Manager) CreditContestBalance(contestID [32]byte, amount uint64) error {
	bal, err := m.PrefundedContestBalance(contestID)
	if err != nil {
		return err
	}
	return m.KVPut(platformContestBalanceKey(contestID), bal+amount)
}

// DebitContestBalance spends amount from a contest's prefunded balance,
// rejecting an overdraft.
func (m *Manager) DebitContestBalance(contestID [32]byte, amount uint64) error {
	bal, err := m.PrefundedContestBalance(contestID)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("state: insufficient contest balance: have=%d need=%d", bal, amount)
	}
	return m.KVPut(platformContestBalanceKey(contestID), bal-amount)
}
