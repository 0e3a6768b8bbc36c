package step

import (
	"platformchain/core/execctx"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// balancePreCheckStage implements spec §4.1 stage 5: the payer must be able
// to afford a conservative floor estimate before expensive validation runs.
// IdentityTopUp and IdentityCreate never reach here (no capability flag).
func balancePreCheckStage(deps Deps, tx *wire.StateTransition, payer [32]byte, ctx *execctx.Context) *steperr.DomainError {
	ctx.RecordRead()
	balance, err := deps.Identity.FetchBalance(payer)
	if err != nil {
		return steperr.NewWithVerdict(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, steperr.VerdictUnpaid, err.Error(), err)
	}
	// A payer that cannot even cover the pre-check work is unbillable:
	// the failure is unpaid and the transition excluded. A payer that can
	// cover the pre-check but not the declared amount is billed for it.
	estimate := deps.FeeTable.CreditsPerRead*2 + deps.FeeTable.CreditsPerSignature
	if balance < estimate {
		return steperr.NewWithVerdict(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, steperr.VerdictUnpaid, "balance below pre-check floor", nil)
	}
	if tx.Kind == wire.KindIdentityCreditTransfer && tx.IdentityCreditTransfer.Amount+estimate > balance {
		return steperr.New(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, "balance below transfer amount plus reserve", nil)
	}
	if tx.Kind == wire.KindIdentityCreditWithdrawal && tx.IdentityCreditWithdrawal.Amount+estimate > balance {
		return steperr.New(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, "balance below withdrawal amount plus reserve", nil)
	}
	if tx.Kind == wire.KindDataContractCreate {
		// Reserve one write price per declared document type as the
		// create's storage estimate on top of the pre-check floor. This is
		// a fixed reserve, not a bound on the final charge: the applier
		// bills one write plus the contract's name bytes, which can come to
		// less than the reserve.
		storageEstimate := uint64(len(tx.DataContractCreate.DocumentTypes)) * deps.FeeTable.CreditsPerWrite
		if estimate+storageEstimate > balance {
			return steperr.New(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, "balance below contract storage reserve", nil)
		}
	}
	return nil
}
