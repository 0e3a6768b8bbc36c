package step

import (
	"platformchain/core/execctx"
	"platformchain/core/identity"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// advancedWithStateStage implements spec §4.1 stage 8 for the three variants
// that need a ledger-dependent transformation into a priceable Action:
// IdentityCreate, Batch, MasternodeVote.
func advancedWithStateStage(deps Deps, tx *wire.StateTransition, payer [32]byte, ctx *execctx.Context) (Action, *steperr.DomainError, error) {
	switch tx.Kind {
	case wire.KindIdentityCreate:
		return stageIdentityCreate(deps, tx.IdentityCreate, ctx)
	case wire.KindBatch:
		return stageBatch(deps, tx.Batch, payer, ctx)
	case wire.KindMasternodeVote:
		return stageMasternodeVote(deps, tx.MasternodeVote, payer, ctx)
	default:
		return Action{}, nil, steperr.Fatal(steperr.CodeCorruptedCodeExecution, "stage 8 reached for a kind without the capability flag", nil)
	}
}

func stageIdentityCreate(deps Deps, ic *wire.IdentityCreate, ctx *execctx.Context) (Action, *steperr.DomainError, error) {
	if err := identity.ValidateKeySet(ic.Keys); err != nil {
		return Action{}, steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, err.Error(), nil), nil
	}
	outpoint := ic.AssetLock.Outpoint
	ctx.RecordRead()
	used, err := deps.Identity.AssetLockConsumed(outpoint)
	if err != nil {
		return Action{}, nil, err
	}
	if used {
		return Action{}, steperr.New(steperr.CategoryBasic, steperr.CodeAssetLockOutpointAlreadyExists, "asset lock outpoint already consumed", nil), nil
	}
	id := identity.DeriveIdentityID(outpoint)
	ctx.RecordHash(1)
	return Action{Kind: ActionCreateIdentity, PayerIdentityID: id, CreateIdentity: ic}, nil, nil
}

func stageMasternodeVote(deps Deps, v *wire.MasternodeVote, payer [32]byte, ctx *execctx.Context) (Action, *steperr.DomainError, error) {
	name, err := identity.NormalizeContestName(v.ContestedName)
	if err != nil {
		return Action{}, steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, err.Error(), err), nil
	}
	normalized := *v
	normalized.ContestedName = name
	ctx.RecordRead()
	return Action{Kind: ActionCastVote, PayerIdentityID: payer, CastVote: &normalized}, nil, nil
}
