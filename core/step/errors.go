package step

import (
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// CodeNotAllowed classifies a stage-1 policy rejection (spec §4.1 stage 1),
// scoped to package step since only Batch's IsAllowed gate produces it.
const CodeNotAllowed steperr.Code = "NotAllowed"

// bumpActionFor builds the synthetic action that bills a signed-but-invalid
// transition and advances its nonce without performing the intended mutation
// (spec §7). Variants keyed by an identity-contract nonce get the contract
// flavor so the windowed counter advances by exactly the submitted value;
// everything else gets the plain identity-nonce bump.
func bumpActionFor(tx *wire.StateTransition, payer [32]byte) Action {
	if contractID, submitted, ok := contractNonceContext(tx); ok {
		return Action{
			Kind:            ActionBumpIdentityDataContractNonce,
			PayerIdentityID: payer,
			BumpContractID:  contractID,
			BumpNonce:       submitted,
		}
	}
	return Action{Kind: ActionBumpIdentityNonce, PayerIdentityID: payer}
}

// paidResult classifies a stage failure into its final result shape: a
// VerdictPaid error with a resolved payer carries the bump-nonce event on
// the data side so the Action Applier can bill it; anything else is a bare
// error. A paid verdict reached before any payer could be resolved
// downgrades to unpaid — there is nobody to bill.
func paidResult(derr *steperr.DomainError, payer [32]byte, tx *wire.StateTransition, epoch uint64) steperr.ConsensusValidationResult[ExecutionEvent] {
	if derr.Verdict != steperr.VerdictPaid {
		return steperr.Err[ExecutionEvent](derr)
	}
	if payer == ([32]byte{}) {
		downgraded := *derr
		downgraded.Verdict = steperr.VerdictUnpaid
		return steperr.Err[ExecutionEvent](&downgraded)
	}
	ev := ExecutionEvent{
		Action:          bumpActionFor(tx, payer),
		PayerIdentityID: payer,
		Epoch:           epoch,
	}
	return steperr.ErrWithData(derr, ev)
}
