// Package identity implements the Identity & Key Store (C3): partial-identity
// fetch, key lookup by (purpose, security level, key type), nonce tracking,
// and balance mutation for Platform identities.
package identity

import (
	"errors"
	"fmt"
)

// KeyPurpose mirrors the purpose tags a Platform identity key may carry.
type KeyPurpose byte

const (
	PurposeAuthentication KeyPurpose = iota
	PurposeEncryption
	PurposeDecryption
	PurposeTransfer
	PurposeVoting
	PurposeOwner
)

// SecurityLevel orders the trust tiers a key may be registered at.
type SecurityLevel byte

const (
	SecurityMaster SecurityLevel = iota
	SecurityCritical
	SecurityHigh
	SecurityMedium
)

// KeyType identifies the curve/hash backing a key.
type KeyType byte

const (
	KeyTypeECDSASecp256k1 KeyType = iota
	KeyTypeBLS12381
	KeyTypeECDSAHash160
)

// singletonPurposes lists purposes for which at most one enabled key per
// security level may exist on an identity.
var singletonPurposes = map[KeyPurpose]bool{
	PurposeAuthentication: true,
	PurposeTransfer:       true,
	PurposeOwner:          true,
	PurposeVoting:         true,
}

// ContractBounds restricts a key's authority to a single data contract and,
// optionally, a single document type within it.
type ContractBounds struct {
	ContractID   [32]byte
	DocumentType string
}

// PublicKey is a single entry in an identity's key map.
type PublicKey struct {
	ID             uint32
	Purpose        KeyPurpose
	SecurityLevel  SecurityLevel
	KeyType        KeyType
	ReadOnly       bool
	Data           []byte
	DisabledAtMs   uint64 // 0 means enabled
	ContractBounds *ContractBounds
}

// Enabled reports whether the key may currently be used to authorize a
// transition.
func (k PublicKey) Enabled() bool {
	return k.DisabledAtMs == 0
}

// Identity is the persisted Platform identity record.
type Identity struct {
	ID       [32]byte
	Balance  uint64 // credits
	Revision uint64
	Keys     map[uint32]PublicKey
}

// Clone returns a deep copy so callers may mutate without aliasing the
// snapshot materialized into a PlatformRef.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	out := &Identity{ID: id.ID, Balance: id.Balance, Revision: id.Revision}
	out.Keys = make(map[uint32]PublicKey, len(id.Keys))
	for k, v := range id.Keys {
		if v.ContractBounds != nil {
			bounds := *v.ContractBounds
			v.ContractBounds = &bounds
		}
		v.Data = append([]byte(nil), v.Data...)
		out.Keys[k] = v
	}
	return out
}

var (
	// ErrKeyCollision signals a singleton-purpose key already enabled at the
	// requested security level.
	ErrKeyCollision = errors.New("identity: singleton key purpose/level already occupied")
	// ErrNegativeBalance would leave an identity with a negative balance.
	ErrNegativeBalance = errors.New("identity: balance cannot go negative")
)

// ValidateKeySet checks the at-most-one-enabled-key-per-(purpose,level)
// invariant for singleton purposes across a candidate key set.
func ValidateKeySet(keys map[uint32]PublicKey) error {
	seen := make(map[[2]byte]uint32)
	for id, k := range keys {
		if !k.Enabled() || !singletonPurposes[k.Purpose] {
			continue
		}
		slot := [2]byte{byte(k.Purpose), byte(k.SecurityLevel)}
		if existing, ok := seen[slot]; ok {
			return fmt.Errorf("%w: purpose=%d level=%d keys=%d,%d", ErrKeyCollision, k.Purpose, k.SecurityLevel, existing, id)
		}
		seen[slot] = id
	}
	return nil
}

// Debit subtracts amount credits from the identity balance, rejecting any
// mutation that would drive it negative.
func (id *Identity) Debit(amount uint64) error {
	if amount > id.Balance {
		return fmt.Errorf("%w: balance=%d amount=%d", ErrNegativeBalance, id.Balance, amount)
	}
	id.Balance -= amount
	return nil
}

// Credit adds amount credits to the identity balance.
func (id *Identity) Credit(amount uint64) {
	id.Balance += amount
}

// BumpRevision advances the identity revision by exactly one, as required on
// every successful mutation.
func (id *Identity) BumpRevision() {
	id.Revision++
}
