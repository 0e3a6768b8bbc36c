package identity

import "fmt"

// Ledger is the subset of the Ledger Store (C1) the identity layer needs.
// Implemented by core/state.Manager; kept as a narrow interface here so
// core/identity has no dependency on the storage package.
type Ledger interface {
	GetIdentity(id [32]byte) (*Identity, error)
	PutIdentity(id *Identity) error
	GetIdentityContractNonce(identity [32]byte, contract [32]byte) (IdentityContractNonce, error)
	PutIdentityContractNonce(identity [32]byte, contract [32]byte, n IdentityContractNonce) error
	AssetLockConsumed(outpoint [36]byte) (bool, error)
	ConsumeAssetLock(outpoint [36]byte) error
}

// Store wraps a Ledger with the identity-layer operations named in spec
// §4.3: balance fetch, balance+keys fetch, nonce advance, debit/credit, and
// asset-lock bookkeeping.
type Store struct {
	ledger Ledger
}

// NewStore constructs an identity Store over the given ledger.
func NewStore(ledger Ledger) *Store {
	return &Store{ledger: ledger}
}

// ErrIdentityNotFound reports a missing identity at the given id.
type ErrIdentityNotFound [32]byte

func (e ErrIdentityNotFound) Error() string {
	return fmt.Sprintf("identity: not found: %x", [32]byte(e))
}

// FetchBalance returns only the identity's credit balance.
func (s *Store) FetchBalance(id [32]byte) (uint64, error) {
	ident, err := s.ledger.GetIdentity(id)
	if err != nil {
		return 0, err
	}
	if ident == nil {
		return 0, ErrIdentityNotFound(id)
	}
	return ident.Balance, nil
}

// FetchBalanceWithKeys returns the identity's balance plus the keys selected
// by req.
func (s *Store) FetchBalanceWithKeys(id [32]byte, req KeyRequestType) (uint64, []PublicKey, error) {
	ident, err := s.ledger.GetIdentity(id)
	if err != nil {
		return 0, nil, err
	}
	if ident == nil {
		return 0, nil, ErrIdentityNotFound(id)
	}
	return ident.Balance, ident.Select(req), nil
}

// FetchFull returns the full persisted identity, used by stages that must
// inspect the complete key set (e.g. IdentityUpdate).
func (s *Store) FetchFull(id [32]byte) (*Identity, error) {
	ident, err := s.ledger.GetIdentity(id)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, ErrIdentityNotFound(id)
	}
	return ident, nil
}

// Put persists the identity, overwriting any prior record at the same id.
func (s *Store) Put(ident *Identity) error {
	return s.ledger.PutIdentity(ident)
}

// ValidateAndAdvanceContractNonce validates submitted against the persisted
// windowed state for (identity, contract) and, on success, writes back the
// advanced state.
func (s *Store) ValidateAndAdvanceContractNonce(identityID, contractID [32]byte, submitted uint64) error {
	state, err := s.ledger.GetIdentityContractNonce(identityID, contractID)
	if err != nil {
		return err
	}
	next, err := state.Validate(submitted)
	if err != nil {
		return err
	}
	return s.ledger.PutIdentityContractNonce(identityID, contractID, next)
}

// FetchContractNonce returns the persisted windowed nonce state for
// (identityID, contractID) without advancing it, used by stage 3's
// read-only validation pass (the advance itself happens only once the
// enclosing transition is known to succeed or be a billable PaidError).
func (s *Store) FetchContractNonce(identityID, contractID [32]byte) (IdentityContractNonce, error) {
	return s.ledger.GetIdentityContractNonce(identityID, contractID)
}

// AssetLockOutpoint is the 36-byte Core-chain outpoint (32-byte txid + 4-byte
// vout) an IdentityCreate/IdentityTopUp transition anchors to.
type AssetLockOutpoint [36]byte

// ErrAssetLockAlreadyUsed reports an attempt to reuse a consumed outpoint.
var ErrAssetLockAlreadyUsed = fmt.Errorf("identity: asset lock outpoint already consumed")

// AssetLockConsumed reports whether outpoint has already been spent, without
// recording a new consumption. STEP stage 8 uses this read-only check before
// deciding whether IdentityCreate's asset lock is billable-invalid or fresh.
func (s *Store) AssetLockConsumed(outpoint AssetLockOutpoint) (bool, error) {
	return s.ledger.AssetLockConsumed([36]byte(outpoint))
}

// ConsumeAssetLock records the outpoint as spent, failing if it was already
// recorded — the one-shot invariant from spec §3.
func (s *Store) ConsumeAssetLock(outpoint AssetLockOutpoint) error {
	used, err := s.ledger.AssetLockConsumed([36]byte(outpoint))
	if err != nil {
		return err
	}
	if used {
		return ErrAssetLockAlreadyUsed
	}
	return s.ledger.ConsumeAssetLock([36]byte(outpoint))
}
