package step

import (
	"platformchain/core/identity"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// basicStructureStage implements spec §4.1 stage 4: cheap, state-free
// well-formedness checks every mutating transition must pass before any
// ledger read is attempted (beyond stage 2's signer lookup).
func basicStructureStage(tx *wire.StateTransition) *steperr.DomainError {
	switch tx.Kind {
	case wire.KindIdentityCreate:
		return basicIdentityCreate(tx.IdentityCreate)
	case wire.KindIdentityTopUp:
		return basicAssetLock(&tx.IdentityTopUp.AssetLock)
	case wire.KindIdentityUpdate:
		return basicIdentityUpdate(tx.IdentityUpdate)
	case wire.KindIdentityCreditTransfer:
		if tx.IdentityCreditTransfer.Amount == 0 {
			return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "transfer amount must be nonzero", nil)
		}
		if tx.IdentityCreditTransfer.FromIdentityID == tx.IdentityCreditTransfer.ToIdentityID {
			return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "cannot transfer to self", nil)
		}
		return nil
	case wire.KindIdentityCreditWithdrawal:
		if tx.IdentityCreditWithdrawal.Amount == 0 {
			return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "withdrawal amount must be nonzero", nil)
		}
		if len(tx.IdentityCreditWithdrawal.CoreOutputScript) == 0 {
			return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "missing core output script", nil)
		}
		return nil
	case wire.KindDataContractCreate:
		return basicDocumentTypes(len(tx.DataContractCreate.DocumentTypes))
	case wire.KindDataContractUpdate:
		return basicDocumentTypes(len(tx.DataContractUpdate.DocumentTypes))
	case wire.KindBatch:
		if len(tx.Batch.Ops) == 0 {
			return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "batch has no operations", nil)
		}
		return nil
	case wire.KindMasternodeVote:
		if _, err := identity.NormalizeContestName(tx.MasternodeVote.ContestedName); err != nil {
			return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, err.Error(), err)
		}
		return nil
	default:
		return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "unknown transition kind", nil)
	}
}

func basicAssetLock(lock *wire.AssetLockRef) *steperr.DomainError {
	if lock.ValueDuffs == 0 {
		return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "asset lock value must be nonzero", nil)
	}
	if len(lock.OneTimeKey) == 0 {
		return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "asset lock missing one-time key", nil)
	}
	return nil
}

func basicIdentityCreate(ic *wire.IdentityCreate) *steperr.DomainError {
	if derr := basicAssetLock(&ic.AssetLock); derr != nil {
		return derr
	}
	if len(ic.Keys) == 0 {
		return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "identity must declare at least one key", nil)
	}
	return nil
}

func basicIdentityUpdate(iu *wire.IdentityUpdate) *steperr.DomainError {
	if len(iu.AddKeys) == 0 && len(iu.DisableKeyIDs) == 0 {
		return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "update declares no key changes", nil)
	}
	return nil
}

func basicDocumentTypes(count int) *steperr.DomainError {
	if count == 0 {
		return steperr.New(steperr.CategoryBasic, steperr.CodeInvalidDocumentType, "contract declares no document types", nil)
	}
	return nil
}
