package step

import (
	"platformchain/core/identity"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// contractNonceContext reports the (contract id, submitted nonce) pair for
// variants keyed by a windowed identity-contract nonce, or ok=false for
// variants keyed by the plain strictly-monotonic identity nonce.
func contractNonceContext(tx *wire.StateTransition) (contractID [32]byte, submitted uint64, ok bool) {
	switch tx.Kind {
	case wire.KindDataContractUpdate:
		return tx.DataContractUpdate.ContractID, tx.DataContractUpdate.IdentityContractNonce, true
	case wire.KindBatch:
		return tx.Batch.ContractID, tx.Batch.IdentityContractNonce, true
	default:
		return [32]byte{}, 0, false
	}
}

// plainNonceContext reports the submitted plain identity nonce for variants
// keyed by it. Plain nonces reuse the identity's Revision counter as their
// baseline: every successful mutation bumps Revision by exactly one (spec
// §3), so "submitted == Revision+1" is the same monotonic check without a
// second persisted counter.
func plainNonceContext(tx *wire.StateTransition) (submitted uint64, ok bool) {
	switch tx.Kind {
	case wire.KindIdentityUpdate:
		return tx.IdentityUpdate.IdentityNonce, true
	case wire.KindIdentityCreditTransfer:
		return tx.IdentityCreditTransfer.IdentityNonce, true
	case wire.KindIdentityCreditWithdrawal:
		return tx.IdentityCreditWithdrawal.IdentityNonce, true
	case wire.KindDataContractCreate:
		return tx.DataContractCreate.IdentityNonce, true
	case wire.KindMasternodeVote:
		return tx.MasternodeVote.IdentityNonce, true
	default:
		return 0, false
	}
}

// validateNonceStage implements spec §4.1 stage 3 for the already-resolved
// payer identity. It validates but does not persist the nonce advance;
// persistence happens once the whole transition is known to succeed or is a
// billable PaidError (core/apply), since an UnpaidError never touches the
// ledger.
func validateNonceStage(deps Deps, tx *wire.StateTransition, payer [32]byte) *steperr.DomainError {
	if contractID, submitted, ok := contractNonceContext(tx); ok {
		state, err := deps.Identity.FetchContractNonce(payer, contractID)
		if err != nil {
			return steperr.New(steperr.CategoryBasic, steperr.CodeNonceMismatch, err.Error(), err)
		}
		if _, err := state.Validate(submitted); err != nil {
			return steperr.New(steperr.CategoryBasic, steperr.CodeNonceMismatch, err.Error(), err)
		}
		return nil
	}

	if submitted, ok := plainNonceContext(tx); ok {
		ident, err := deps.Identity.FetchFull(payer)
		if err != nil {
			return steperr.New(steperr.CategoryBasic, steperr.CodeNonceMismatch, err.Error(), err)
		}
		if err := identity.ValidateIdentityNonce(ident.Revision, submitted); err != nil {
			return steperr.New(steperr.CategoryBasic, steperr.CodeNonceMismatch, err.Error(), err)
		}
	}
	return nil
}
