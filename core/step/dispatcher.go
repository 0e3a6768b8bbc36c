package step

import (
	"fmt"

	"platformchain/core/contracts"
	"platformchain/core/execctx"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// Policy gates a Batch transition before a payer is even known (stage 1).
// The DPNS/contested-username policy engine itself is an external
// collaborator; this is the narrow admission gate spec §4.1 stage 1
// describes.
type Policy interface {
	IsAllowed(tx *wire.StateTransition) error
}

// Validate runs the nine-stage STEP pipeline (spec §4.1) over tx and returns
// either a successful ExecutionEvent or a classified DomainError. The second
// return value is a fatal Go error (Execution category, spec §7) that must
// abort the enclosing block — never a billable verdict.
//
// Stage order is normative. Do not reorder these calls: doing so changes
// which failures are paid vs unpaid, which is consensus-breaking (spec
// §4.1).
func Validate(deps Deps, policy Policy, tx *wire.StateTransition, ctx *execctx.Context) (steperr.ConsensusValidationResult[ExecutionEvent], error) {
	caps, ok := capabilitiesFor(tx.Kind)
	if !ok {
		return steperr.ConsensusValidationResult[ExecutionEvent]{}, steperr.Fatal(steperr.CodeUnknownVersionMismatch, fmt.Sprintf("kind=%d", tx.Kind), fmt.Errorf("no capability entry"))
	}
	if deps.Version == 0 {
		return steperr.ConsensusValidationResult[ExecutionEvent]{}, steperr.Fatal(steperr.CodeUnknownVersionMismatch, "platform version not set", fmt.Errorf("deps.Version == 0"))
	}

	// Stage 1: policy allow-check.
	if caps.hasIsAllowedValidation && policy != nil {
		if err := policy.IsAllowed(tx); err != nil {
			return steperr.Err[ExecutionEvent](steperr.New(steperr.CategoryBasic, CodeNotAllowed, err.Error(), err)), nil
		}
	}

	// Stage 2: signature / identity retrieval. A key-class or signature
	// failure against a resolved identity is billable (the identity
	// provably exists and its nonce must advance, spec §8 scenario 4);
	// an unresolvable identity is not.
	payerID, signingKey, derr, ferr := resolveSignerStage(deps, tx, caps, ctx)
	if ferr != nil {
		return steperr.ConsensusValidationResult[ExecutionEvent]{}, ferr
	}
	if derr != nil {
		return paidResult(derr, payerID, tx, ctx.Epoch), nil
	}

	// Stage 3: nonce validation.
	if caps.hasNonceValidation {
		if derr := validateNonceStage(deps, tx, payerID); derr != nil {
			return steperr.Err[ExecutionEvent](derr), nil
		}
	}

	// Stage 4: basic structural validation.
	if caps.hasBasicStructureValidation {
		if derr := basicStructureStage(tx); derr != nil {
			return steperr.Err[ExecutionEvent](derr), nil
		}
	}

	// Stage 5: balance pre-check. Paid when the payer can at least cover
	// the pre-check work, unpaid when it cannot even do that (spec §4.1).
	if caps.hasBalancePreCheckValidation {
		if derr := balancePreCheckStage(deps, tx, payerID, ctx); derr != nil {
			return paidResult(derr, payerID, tx, ctx.Epoch), nil
		}
	}

	// Stage 6: prefunded specialized balance pre-check (MasternodeVote
	// only), gated on the protocol version that introduced it.
	if caps.usesPrefundedSpecializedBalanceForPayment && deps.Version >= deps.MinimumBalancePreCheckVersion {
		if derr := prefundedBalanceStage(deps, tx); derr != nil {
			return steperr.Err[ExecutionEvent](derr), nil
		}
	}

	// Stage 7: advanced structure without state. Failures here are billed
	// through a BumpIdentityNonce action (spec §4.1 stage 7).
	if caps.hasAdvancedStructureValidationWithoutState {
		if derr := advancedNoStateStage(tx, signingKey); derr != nil {
			derr.Verdict = steperr.VerdictPaid
			return paidResult(derr, payerID, tx, ctx.Epoch), nil
		}
	}

	// Stage 8: advanced structure with state -> transform into an Action.
	// Failures are billed through a BumpIdentityDataContractNonce action for
	// contract-nonce variants, BumpIdentityNonce otherwise (spec §4.1 stage
	// 8; SPEC_FULL.md §14 resolution 3 keeps IdentityCreate failures unpaid
	// since no identity exists to bill).
	var action Action
	if caps.hasAdvancedStructureValidationWithState {
		if ctx.CheckTx && !caps.requiresAdvancedStructureValidationWithStateOnCheckTx {
			// check_tx stops before stage 8 unless the variant mandates it.
			return steperr.Ok(ExecutionEvent{Action: Action{Kind: ActionNone, PayerIdentityID: payerID}, PayerIdentityID: payerID, Epoch: ctx.Epoch}), nil
		}
		built, derr, ferr := advancedWithStateStage(deps, tx, payerID, ctx)
		if ferr != nil {
			return steperr.ConsensusValidationResult[ExecutionEvent]{}, ferr
		}
		if derr != nil {
			if tx.Kind != wire.KindIdentityCreate {
				derr.Verdict = steperr.VerdictPaid
			}
			return paidResult(derr, payerID, tx, ctx.Epoch), nil
		}
		action = built
	} else {
		action = defaultAction(tx, payerID)
	}

	if ctx.CheckTx {
		return steperr.Ok(ExecutionEvent{Action: action, PayerIdentityID: payerID, Epoch: ctx.Epoch}), nil
	}

	// Stage 9: state application validation.
	if derr := applyValidationStage(deps, tx, &action); derr != nil {
		return paidResult(derr, action.PayerIdentityID, tx, ctx.Epoch), nil
	}

	return steperr.Ok(ExecutionEvent{Action: action, PayerIdentityID: payerID, Epoch: ctx.Epoch}), nil
}

// CheckTx runs the thinner mempool pre-screen (spec §4.8): stages 1-6,
// stopping before advanced-with-state, except Batch where stage 8 is
// mandatory. It reuses Validate with ctx.CheckTx set, which short-circuits
// after stage 6/8 accordingly.
func CheckTx(deps Deps, policy Policy, tx *wire.StateTransition, ctx *execctx.Context) (steperr.ConsensusValidationResult[ExecutionEvent], error) {
	ctx.CheckTx = true
	return Validate(deps, policy, tx, ctx)
}

// defaultAction builds the straightforward action for variants with no
// stage-8 transformation (their submitted payload already is the action).
func defaultAction(tx *wire.StateTransition, payerID [32]byte) Action {
	a := Action{PayerIdentityID: payerID}
	switch tx.Kind {
	case wire.KindIdentityTopUp:
		a.Kind = ActionTopUpIdentity
		a.TopUpIdentity = tx.IdentityTopUp
	case wire.KindIdentityCreditTransfer:
		a.Kind = ActionTransferCredits
		a.Transfer = tx.IdentityCreditTransfer
	case wire.KindIdentityCreditWithdrawal:
		a.Kind = ActionWithdrawCredits
		a.Withdrawal = tx.IdentityCreditWithdrawal
	case wire.KindDataContractUpdate:
		a.Kind = ActionUpdateContract
		a.UpdateContract = tx.DataContractUpdate
	case wire.KindIdentityUpdate:
		a.Kind = ActionUpdateIdentity
		a.UpdateIdentity = tx.IdentityUpdate
	case wire.KindDataContractCreate:
		cc := tx.DataContractCreate
		id := contracts.DeriveContractID(cc.OwnerID, cc.Entropy)
		a.Kind = ActionCreateContract
		a.CreateContract = &ContractCreateAction{Contract: &contracts.DataContract{
			ID:            id,
			OwnerID:       cc.OwnerID,
			Version:       1,
			DocumentTypes: cc.DocumentTypes,
			Tokens:        cc.Tokens,
		}}
	}
	return a
}
