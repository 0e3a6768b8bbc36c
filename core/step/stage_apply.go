package step

import (
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// applyValidationStage implements spec §4.1 stage 9: the last state-dependent
// gate before a validated Action is handed to the Action Applier. It observes
// the built action itself — asset-lock outpoint uniqueness for IdentityTopUp
// (IdentityCreate's outpoint is checked at stage 8), uniqueness of created
// documents for Batch, and a
// final balance floor for everything billed against the payer's own credits.
func applyValidationStage(deps Deps, tx *wire.StateTransition, action *Action) *steperr.DomainError {
	switch tx.Kind {
	case wire.KindIdentityCreate:
		// Outpoint uniqueness was already checked at stage 8; a failure
		// there is unpaid because no identity exists to bill.
		return nil

	case wire.KindIdentityTopUp:
		// The subject identity exists (stage 2), so a consumed outpoint is
		// billable against it.
		used, err := deps.Identity.AssetLockConsumed(tx.IdentityTopUp.AssetLock.Outpoint)
		if err != nil {
			return steperr.NewWithVerdict(steperr.CategoryBasic, steperr.CodeAssetLockOutpointAlreadyExists, steperr.VerdictUnpaid, err.Error(), err)
		}
		if used {
			return steperr.NewWithVerdict(steperr.CategoryBasic, steperr.CodeAssetLockOutpointAlreadyExists, steperr.VerdictPaid, "asset lock outpoint already consumed", nil)
		}
		return nil

	case wire.KindMasternodeVote:
		// Funded by the contest's prefunded balance, verified at stage 6.
		return nil

	case wire.KindBatch:
		// Created document ids must not collide with existing records; the
		// id doubles as the primary unique index for its type.
		for _, rop := range action.Batch.Ops {
			if rop.Op.Kind != wire.DocumentOpCreate {
				continue
			}
			exists, err := deps.Documents.DocumentExists(action.Batch.ContractID, rop.Op.TypeName, rop.Op.DocumentID)
			if err != nil {
				return steperr.NewWithVerdict(steperr.CategoryState, steperr.CodeUniqueIndexViolation, steperr.VerdictUnpaid, err.Error(), err)
			}
			if exists {
				return steperr.New(steperr.CategoryState, steperr.CodeUniqueIndexViolation, "document id already exists", nil)
			}
		}
	}

	balance, err := deps.Identity.FetchBalance(action.PayerIdentityID)
	if err != nil {
		return steperr.NewWithVerdict(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, steperr.VerdictUnpaid, err.Error(), err)
	}
	required := deps.FeeTable.CreditsPerRead + deps.FeeTable.CreditsPerWrite
	if tx.Kind == wire.KindIdentityCreditWithdrawal {
		// Stage 5's pre-check is a floor estimate; re-check against the
		// balance the earlier transitions in this block left behind.
		required += tx.IdentityCreditWithdrawal.Amount
	}
	if balance < required {
		return steperr.New(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, "insufficient balance to finalize", nil)
	}
	return nil
}
