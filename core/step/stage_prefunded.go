package step

import (
	"platformchain/core/identity"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// prefundedBalanceStage implements spec §4.1 stage 6, exercised only by
// MasternodeVote: the cast is billed against the contest's prefunded
// specialized balance (credited through state.Manager.CreditContestBalance)
// rather than the voter's own identity balance.
func prefundedBalanceStage(deps Deps, tx *wire.StateTransition) *steperr.DomainError {
	contestID := identity.DeriveContestID(tx.MasternodeVote.ContestedName)
	balance, err := deps.Prefunded.PrefundedContestBalance(contestID)
	if err != nil {
		return steperr.NewWithVerdict(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, steperr.VerdictUnpaid, err.Error(), err)
	}
	// A vote whose contest pool cannot pay for it is structurally
	// inadmissible, not billable: the voter's own balance is never touched
	// by a vote, so there is nothing to charge the failure against.
	if balance < deps.FeeTable.CreditsPerWrite {
		return steperr.NewWithVerdict(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, steperr.VerdictUnpaid, "contest prefunded balance exhausted", nil)
	}
	return nil
}
