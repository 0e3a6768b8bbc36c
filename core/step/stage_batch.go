package step

import (
	"platformchain/core/execctx"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// stageBatch implements spec §4.1 stage 8 for Batch: every DocumentOp is
// resolved against its contract's document type and, for any op but
// Create, against the ledger's current document record, producing a
// BatchAction the Action Applier can mutate the ledger from directly.
func stageBatch(deps Deps, b *wire.Batch, payer [32]byte, ctx *execctx.Context) (Action, *steperr.DomainError, error) {
	resolved := make([]ResolvedDocumentOp, 0, len(b.Ops))
	for _, op := range b.Ops {
		r, derr, ferr := resolveDocumentOp(deps, b.ContractID, payer, op, ctx)
		if ferr != nil {
			return Action{}, nil, ferr
		}
		if derr != nil {
			return Action{}, derr, nil
		}
		resolved = append(resolved, r)
	}
	action := Action{
		Kind:            ActionBatch,
		PayerIdentityID: payer,
		Batch: &BatchAction{
			OwnerID:               b.OwnerID,
			ContractID:            b.ContractID,
			IdentityContractNonce: b.IdentityContractNonce,
			Ops:                   resolved,
		},
	}
	return action, nil, nil
}

func resolveDocumentOp(deps Deps, contractID [32]byte, payer [32]byte, op wire.DocumentOp, ctx *execctx.Context) (ResolvedDocumentOp, *steperr.DomainError, error) {
	ctx.RecordRead()
	_, docType, err := deps.Contracts.ResolveDocumentType(contractID, op.TypeName)
	if err != nil {
		return ResolvedDocumentOp{}, steperr.New(steperr.CategoryBasic, steperr.CodeInvalidDocumentType, err.Error(), err), nil
	}

	if op.Kind == wire.DocumentOpCreate {
		if op.MaxTokenCost > 0 {
			ctx.RecordRead()
			bal, err := deps.Documents.GetTokenBalance(contractID, op.TokenPosition, payer)
			if err != nil {
				return ResolvedDocumentOp{}, nil, err
			}
			if bal < op.MaxTokenCost {
				return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughTokenBalance, "insufficient token balance", nil), nil
			}
		}
		return ResolvedDocumentOp{Op: op}, nil, nil
	}

	ctx.RecordRead()
	record, err := deps.Documents.GetDocument(contractID, op.TypeName, op.DocumentID)
	if err != nil {
		return ResolvedDocumentOp{}, nil, err
	}
	if record == nil {
		return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeDocumentNotFound, "document not found", nil), nil
	}

	switch op.Kind {
	case wire.DocumentOpReplace:
		if record.OwnerID != payer {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeDocumentOwnerIDMismatch, "replace requires ownership", nil), nil
		}
		if !docType.DocumentsMutable {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeDocumentImmutable, "document type is not mutable", nil), nil
		}
		if op.Revision != record.Revision {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeInvalidDocumentRevision, "stale revision", nil), nil
		}
	case wire.DocumentOpDelete:
		if record.OwnerID != payer {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeDocumentOwnerIDMismatch, "delete requires ownership", nil), nil
		}
		if !docType.DocumentsCanBeDeleted {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeDocumentNotDeletable, "document type is not deletable", nil), nil
		}
	case wire.DocumentOpTransfer:
		if record.OwnerID != payer {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeDocumentOwnerIDMismatch, "transfer requires ownership", nil), nil
		}
		if op.Revision != record.Revision {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeInvalidDocumentRevision, "stale revision", nil), nil
		}
	case wire.DocumentOpUpdatePrice:
		if record.OwnerID != payer {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeDocumentOwnerIDMismatch, "price update requires ownership", nil), nil
		}
		if op.Revision != record.Revision {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeInvalidDocumentRevision, "stale revision", nil), nil
		}
	case wire.DocumentOpPurchase:
		if record.ListPrice == 0 {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeDocumentNotForSale, "document is not listed for sale", nil), nil
		}
		if op.PurchasePrice != record.ListPrice {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeDocumentIncorrectPurchasePrice, "purchase price does not match list price", nil), nil
		}
		if op.Revision != record.Revision {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeInvalidDocumentRevision, "stale revision", nil), nil
		}
		ctx.RecordRead()
		buyerBalance, err := deps.Identity.FetchBalance(payer)
		if err != nil {
			return ResolvedDocumentOp{}, nil, err
		}
		if buyerBalance < op.PurchasePrice {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughBalance, "insufficient balance for purchase", nil), nil
		}
	}

	if op.MaxTokenCost > 0 {
		ctx.RecordRead()
		bal, err := deps.Documents.GetTokenBalance(contractID, op.TokenPosition, payer)
		if err != nil {
			return ResolvedDocumentOp{}, nil, err
		}
		if bal < op.MaxTokenCost {
			return ResolvedDocumentOp{}, steperr.New(steperr.CategoryState, steperr.CodeIdentityDoesNotHaveEnoughTokenBalance, "insufficient token balance", nil), nil
		}
	}

	original := &ResolvedDocument{OwnerID: record.OwnerID, Revision: record.Revision, ListPrice: record.ListPrice, SizeBytes: record.SizeBytes}
	return ResolvedDocumentOp{Op: op, Original: original}, nil, nil
}
