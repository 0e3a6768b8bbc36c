// Package apply implements the Action Applier (C6): turns a validated
// step.Action into concrete Ledger Store mutations, debits/credits the
// payer, advances nonces, and computes storage-shrink refunds, following
// the same Manager-mutation style the teacher uses for its native/*
// transfer/stake settlement paths (native/bank/transfer.go).
package apply

import (
	"encoding/json"
	"fmt"

	"platformchain/core/contracts"
	"platformchain/core/execctx"
	"platformchain/core/fees"
	"platformchain/core/identity"
	"platformchain/core/state"
	"platformchain/core/step"
	"platformchain/core/wire"
)

// Applier wires the Ledger Store, Identity & Key Store, Contract Registry,
// and Fee Engine together to execute one ExecutionEvent at a time. One
// Applier is constructed per block by the Block Orchestrator (C8) and
// reused across every transition in that block, mirroring step.Deps.
type Applier struct {
	Ledger    *state.Manager
	Identity  *identity.Store
	Contracts *contracts.Registry
	FeeTable  fees.Table
	Refunds   *fees.RefundLedger
}

// New constructs an Applier over the given collaborators.
func New(ledger *state.Manager, idStore *identity.Store, registry *contracts.Registry, table fees.Table, refunds *fees.RefundLedger) *Applier {
	return &Applier{Ledger: ledger, Identity: idStore, Contracts: registry, FeeTable: table, Refunds: refunds}
}

// Apply executes ev's action against the ledger and returns the priced
// FeeResult for the transition (spec §4.2/§4.5). Callers must have already
// confirmed ev came from a successful or PaidError STEP verdict — apply
// never re-runs validation, it only mutates.
//
// The action's own writes are priced into the execution context before the
// quote so StorageFee reflects the bytes this transition actually lands,
// then storage-shrink refunds accrued by the mutation are settled back onto
// their owed identities (spec §4.2: refunds compensate identities whose
// epoch-scoped storage is freed).
func (a *Applier) Apply(ev step.ExecutionEvent, ctx *execctx.Context, nowMs uint64) (fees.FeeResult, error) {
	priceAction(ev.Action, ctx)
	feeResult := ctx.Quote(a.FeeTable)

	var err error
	switch ev.Action.Kind {
	case step.ActionCreateIdentity:
		err = a.applyCreateIdentity(ev.Action, feeResult)
	case step.ActionTopUpIdentity:
		err = a.applyTopUpIdentity(ev.Action, feeResult)
	case step.ActionUpdateIdentity:
		err = a.applyUpdateIdentity(ev.Action, feeResult)
	case step.ActionTransferCredits:
		err = a.applyTransferCredits(ev.Action, feeResult)
	case step.ActionWithdrawCredits:
		err = a.applyWithdrawCredits(ev.Action, feeResult, ev.TransitionHash)
	case step.ActionCreateContract:
		err = a.applyCreateContract(ev.Action, feeResult)
	case step.ActionUpdateContract:
		err = a.applyUpdateContract(ev.Action, feeResult)
	case step.ActionBatch:
		err = a.applyBatch(ev.Action, feeResult, ev.Epoch, nowMs)
	case step.ActionCastVote:
		err = a.applyCastVote(ev.Action, feeResult)
	case step.ActionBumpIdentityNonce:
		err = a.applyBumpIdentityNonce(ev.Action, feeResult)
	case step.ActionBumpIdentityDataContractNonce:
		err = a.applyBumpContractNonce(ev.Action, feeResult)
	default:
		err = fmt.Errorf("apply: unknown action kind %d", ev.Action.Kind)
	}
	if err != nil {
		return feeResult, err
	}

	refunds := a.Refunds.Settle(ev.Epoch)
	for id, amount := range refunds {
		ident, ferr := a.Identity.FetchFull(id)
		if ferr != nil {
			return feeResult, ferr
		}
		ident.Credit(amount)
		if ferr := a.Identity.Put(ident); ferr != nil {
			return feeResult, ferr
		}
	}
	feeResult.FeeRefunds = refunds
	return feeResult, nil
}

// priceAction meters the write-side work the action will perform, completing
// the fee picture the validation stages started. Bump-nonce actions are one
// write; everything else is one write per touched record. Storage bytes are
// metered only for contract creates and for document creates and replaces.
func priceAction(act step.Action, ctx *execctx.Context) {
	switch act.Kind {
	case step.ActionCreateIdentity:
		ctx.RecordWrite(2) // identity record + consumed-outpoint marker
	case step.ActionTopUpIdentity:
		ctx.RecordWrite(2)
	case step.ActionUpdateIdentity:
		ctx.RecordWrite(1)
	case step.ActionTransferCredits:
		ctx.RecordWrite(2) // both parties
	case step.ActionWithdrawCredits:
		ctx.RecordWrite(1)
	case step.ActionCreateContract:
		ctx.RecordWrite(1)
		ctx.RecordStorageBytes(contractStorageSize(act.CreateContract.Contract))
	case step.ActionUpdateContract:
		ctx.RecordWrite(1)
	case step.ActionBatch:
		for _, rop := range act.Batch.Ops {
			ctx.RecordWrite(1)
			switch rop.Op.Kind {
			case wire.DocumentOpCreate, wire.DocumentOpReplace:
				ctx.RecordStorageBytes(propertiesSize(rop.Op.Properties))
			}
		}
	case step.ActionCastVote:
		ctx.RecordWrite(1)
	case step.ActionBumpIdentityNonce, step.ActionBumpIdentityDataContractNonce:
		ctx.RecordWrite(1)
	}
}

func contractStorageSize(c *contracts.DataContract) uint64 {
	var total uint64
	for name, dt := range c.DocumentTypes {
		total += uint64(len(name))
		for _, p := range dt.Properties {
			total += uint64(len(p))
		}
	}
	return total
}

func (a *Applier) applyCreateIdentity(act step.Action, fr fees.FeeResult) error {
	ic := act.CreateIdentity
	if err := a.Identity.ConsumeAssetLock(ic.AssetLock.Outpoint); err != nil {
		return err
	}
	minted := a.FeeTable.DuffsToCredits(ic.AssetLock.ValueDuffs)
	balance := uint64(0)
	if minted > fr.Total() {
		balance = minted - fr.Total()
	}
	ident := &identity.Identity{ID: act.PayerIdentityID, Balance: balance, Revision: 1, Keys: ic.Keys}
	return a.Identity.Put(ident)
}

func (a *Applier) applyTopUpIdentity(act step.Action, fr fees.FeeResult) error {
	tu := act.TopUpIdentity
	if err := a.Identity.ConsumeAssetLock(tu.AssetLock.Outpoint); err != nil {
		return err
	}
	ident, err := a.Identity.FetchFull(tu.IdentityID)
	if err != nil {
		return err
	}
	minted := a.FeeTable.DuffsToCredits(tu.AssetLock.ValueDuffs)
	if minted > fr.Total() {
		ident.Credit(minted - fr.Total())
	}
	ident.BumpRevision()
	return a.Identity.Put(ident)
}

func (a *Applier) applyUpdateIdentity(act step.Action, fr fees.FeeResult) error {
	iu := act.UpdateIdentity
	ident, err := a.Identity.FetchFull(act.PayerIdentityID)
	if err != nil {
		return err
	}
	if err := ident.Debit(fr.Total()); err != nil {
		return err
	}
	for id, k := range iu.AddKeys {
		ident.Keys[id] = k
	}
	for _, id := range iu.DisableKeyIDs {
		k, ok := ident.Keys[id]
		if !ok {
			continue
		}
		k.DisabledAtMs = 1
		ident.Keys[id] = k
	}
	if err := identity.ValidateKeySet(ident.Keys); err != nil {
		return err
	}
	ident.BumpRevision()
	return a.Identity.Put(ident)
}

func (a *Applier) applyTransferCredits(act step.Action, fr fees.FeeResult) error {
	t := act.Transfer
	from, err := a.Identity.FetchFull(t.FromIdentityID)
	if err != nil {
		return err
	}
	to, err := a.Identity.FetchFull(t.ToIdentityID)
	if err != nil {
		return err
	}
	if err := from.Debit(t.Amount + fr.Total()); err != nil {
		return err
	}
	to.Credit(t.Amount)
	from.BumpRevision()
	if err := a.Identity.Put(from); err != nil {
		return err
	}
	return a.Identity.Put(to)
}

func (a *Applier) applyWithdrawCredits(act step.Action, fr fees.FeeResult, txHash [32]byte) error {
	w := act.Withdrawal
	ident, err := a.Identity.FetchFull(act.PayerIdentityID)
	if err != nil {
		return err
	}
	if err := ident.Debit(w.Amount + fr.Total()); err != nil {
		return err
	}
	ident.BumpRevision()
	if err := a.Identity.Put(ident); err != nil {
		return err
	}
	_, err = a.Ledger.EnqueueWithdrawalTransaction(state.WithdrawalRecord{
		TransitionID:     txHash,
		IdentityID:       act.PayerIdentityID,
		AmountCredits:    w.Amount,
		CoreOutputScript: w.CoreOutputScript,
	})
	return err
}

func (a *Applier) applyCreateContract(act step.Action, fr fees.FeeResult) error {
	ident, err := a.Identity.FetchFull(act.PayerIdentityID)
	if err != nil {
		return err
	}
	if err := ident.Debit(fr.Total()); err != nil {
		return err
	}
	ident.BumpRevision()
	if err := a.Identity.Put(ident); err != nil {
		return err
	}
	return a.Contracts.Put(act.CreateContract.Contract)
}

func (a *Applier) applyUpdateContract(act step.Action, fr fees.FeeResult) error {
	uc := act.UpdateContract
	info, err := a.Contracts.GetWithFetchInfo(uc.ContractID)
	if err != nil {
		return err
	}
	ident, err := a.Identity.FetchFull(info.Contract.OwnerID)
	if err != nil {
		return err
	}
	if err := ident.Debit(fr.Total()); err != nil {
		return err
	}
	if err := a.Identity.Put(ident); err != nil {
		return err
	}
	updated := *info.Contract
	updated.Version = uc.NewVersion
	updated.DocumentTypes = uc.DocumentTypes
	updated.Tokens = uc.Tokens
	if err := a.Contracts.Put(&updated); err != nil {
		return err
	}
	return a.Identity.ValidateAndAdvanceContractNonce(info.Contract.OwnerID, uc.ContractID, uc.IdentityContractNonce)
}

func (a *Applier) applyBatch(act step.Action, fr fees.FeeResult, epoch uint64, nowMs uint64) error {
	b := act.Batch
	ident, err := a.Identity.FetchFull(act.PayerIdentityID)
	if err != nil {
		return err
	}
	if err := ident.Debit(fr.Total()); err != nil {
		return err
	}
	for _, rop := range b.Ops {
		if err := a.applyDocumentOp(ident, b.ContractID, rop, epoch, nowMs); err != nil {
			return err
		}
	}
	ident.BumpRevision()
	if err := a.Identity.Put(ident); err != nil {
		return err
	}
	return a.Identity.ValidateAndAdvanceContractNonce(act.PayerIdentityID, b.ContractID, b.IdentityContractNonce)
}

func (a *Applier) applyDocumentOp(payer *identity.Identity, contractID [32]byte, rop step.ResolvedDocumentOp, epoch uint64, nowMs uint64) error {
	op := rop.Op
	if op.MaxTokenCost > 0 {
		if err := a.Ledger.DebitTokenBalance(contractID, op.TokenPosition, payer.ID, op.MaxTokenCost); err != nil {
			return err
		}
		info, err := a.Contracts.GetWithFetchInfo(contractID)
		if err != nil {
			return err
		}
		if err := a.Ledger.CreditTokenBalance(contractID, op.TokenPosition, info.Contract.OwnerID, op.MaxTokenCost); err != nil {
			return err
		}
	}

	switch op.Kind {
	case wire.DocumentOpCreate:
		doc := &state.Document{
			ID: op.DocumentID, OwnerID: payer.ID, ContractID: contractID, TypeName: op.TypeName,
			Revision: 1, CreatedAtMs: nowMs, UpdatedAtMs: nowMs, Properties: stringifyProperties(op.Properties),
			SizeBytes: propertiesSize(op.Properties),
		}
		return a.Ledger.PutDocument(doc)

	case wire.DocumentOpReplace:
		existing, err := a.Ledger.GetDocument(contractID, op.TypeName, op.DocumentID)
		if err != nil {
			return err
		}
		newSize := propertiesSize(op.Properties)
		if existing != nil && newSize < existing.SizeBytes {
			refund, err := fees.QuoteShrink(a.FeeTable, existing.SizeBytes, newSize)
			if err != nil {
				return err
			}
			a.Refunds.Accrue(epoch, payer.ID, refund)
		}
		doc := &state.Document{
			ID: op.DocumentID, OwnerID: payer.ID, ContractID: contractID, TypeName: op.TypeName,
			Revision: rop.Original.Revision + 1, UpdatedAtMs: nowMs, Properties: stringifyProperties(op.Properties),
			SizeBytes: newSize, ListPrice: rop.Original.ListPrice,
		}
		return a.Ledger.PutDocument(doc)

	case wire.DocumentOpDelete:
		existing, err := a.Ledger.GetDocument(contractID, op.TypeName, op.DocumentID)
		if err != nil {
			return err
		}
		if existing != nil {
			refund, err := fees.QuoteShrink(a.FeeTable, existing.SizeBytes, 0)
			if err != nil {
				return err
			}
			a.Refunds.Accrue(epoch, payer.ID, refund)
		}
		return a.Ledger.DeleteDocument(contractID, op.TypeName, op.DocumentID)

	case wire.DocumentOpTransfer:
		existing, err := a.Ledger.GetDocument(contractID, op.TypeName, op.DocumentID)
		if err != nil {
			return err
		}
		doc := *existing
		doc.OwnerID = op.TransferTo
		doc.Revision = existing.Revision + 1
		doc.UpdatedAtMs = nowMs
		return a.Ledger.PutDocument(&doc)

	case wire.DocumentOpPurchase:
		seller, err := a.Identity.FetchFull(rop.Original.OwnerID)
		if err != nil {
			return err
		}
		if err := payer.Debit(op.PurchasePrice); err != nil {
			return err
		}
		seller.Credit(op.PurchasePrice)
		if err := a.Identity.Put(seller); err != nil {
			return err
		}
		existing, err := a.Ledger.GetDocument(contractID, op.TypeName, op.DocumentID)
		if err != nil {
			return err
		}
		doc := *existing
		doc.OwnerID = payer.ID
		doc.Revision = existing.Revision + 1
		doc.UpdatedAtMs = nowMs
		doc.ListPrice = 0
		return a.Ledger.PutDocument(&doc)

	case wire.DocumentOpUpdatePrice:
		existing, err := a.Ledger.GetDocument(contractID, op.TypeName, op.DocumentID)
		if err != nil {
			return err
		}
		doc := *existing
		doc.ListPrice = op.NewListPrice
		doc.Revision = existing.Revision + 1
		doc.UpdatedAtMs = nowMs
		return a.Ledger.PutDocument(&doc)

	default:
		return fmt.Errorf("apply: unknown document op kind %d", op.Kind)
	}
}

func (a *Applier) applyCastVote(act step.Action, fr fees.FeeResult) error {
	contestID := identity.DeriveContestID(act.CastVote.ContestedName)
	if err := a.Ledger.DebitContestBalance(contestID, fr.Total()); err != nil {
		return err
	}
	// The contest pool pays the fee, but the voter's plain nonce (Revision)
	// must still advance or the identical signed vote would replay forever.
	voter, err := a.Identity.FetchFull(act.PayerIdentityID)
	if err != nil {
		return err
	}
	voter.BumpRevision()
	return a.Identity.Put(voter)
}

func (a *Applier) applyBumpIdentityNonce(act step.Action, fr fees.FeeResult) error {
	ident, err := a.Identity.FetchFull(act.PayerIdentityID)
	if err != nil {
		return err
	}
	debitCapped(ident, fr.Total())
	ident.BumpRevision()
	return a.Identity.Put(ident)
}

func (a *Applier) applyBumpContractNonce(act step.Action, fr fees.FeeResult) error {
	ident, err := a.Identity.FetchFull(act.PayerIdentityID)
	if err != nil {
		return err
	}
	debitCapped(ident, fr.Total())
	if err := a.Identity.Put(ident); err != nil {
		return err
	}
	return a.Identity.ValidateAndAdvanceContractNonce(act.PayerIdentityID, act.BumpContractID, act.BumpNonce)
}

// debitCapped charges up to amount, draining the balance rather than failing
// when it cannot cover the full bill. Bump-nonce actions must never abort the
// block over an underfunded payer — the failure being billed may itself be an
// insufficient-balance failure.
func debitCapped(ident *identity.Identity, amount uint64) {
	if amount > ident.Balance {
		amount = ident.Balance
	}
	ident.Balance -= amount
}

// stringifyProperties renders a document's JSON-ish property bag into the
// flat map[string]string the Ledger Store persists documents with, using
// canonical JSON encoding per value so structured properties (nested
// objects, numbers) round-trip deterministically regardless of Go map
// iteration order.
func stringifyProperties(props map[string]any) map[string]string {
	if props == nil {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k] = string(b)
	}
	return out
}

// propertiesSize returns the serialized byte size of a document's property
// bag, the same unit the Fee Engine's storage-byte price table and
// fees.QuoteShrink operate on.
func propertiesSize(props map[string]any) uint64 {
	var total uint64
	for k, v := range props {
		total += uint64(len(k))
		if b, err := json.Marshal(v); err == nil {
			total += uint64(len(b))
		}
	}
	return total
}
