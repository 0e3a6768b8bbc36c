package apply

import (
	"platformchain/core/state"
	"platformchain/core/step"
)

// DocumentLedgerAdapter adapts *state.Manager to step.DocumentLedger,
// translating the storage-facing state.Document shape into the
// validation-facing step.ResolvedDocumentRecord shape so core/step never
// needs to import core/state (design note §9: STEP stages only see narrow
// collaborator interfaces, never concrete storage types).
type DocumentLedgerAdapter struct {
	Manager *state.Manager
}

// GetDocument implements step.DocumentLedger.
func (d DocumentLedgerAdapter) GetDocument(contractID [32]byte, typeName string, docID [32]byte) (*step.ResolvedDocumentRecord, error) {
	doc, err := d.Manager.GetDocument(contractID, typeName, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return &step.ResolvedDocumentRecord{OwnerID: doc.OwnerID, Revision: doc.Revision, ListPrice: doc.ListPrice, SizeBytes: doc.SizeBytes}, nil
}

// GetTokenBalance implements step.DocumentLedger.
func (d DocumentLedgerAdapter) GetTokenBalance(contractID [32]byte, position uint16, identityID [32]byte) (uint64, error) {
	return d.Manager.GetTokenBalance(contractID, position, identityID)
}

// DocumentExists implements step.DocumentLedger.
func (d DocumentLedgerAdapter) DocumentExists(contractID [32]byte, typeName string, docID [32]byte) (bool, error) {
	doc, err := d.Manager.GetDocument(contractID, typeName, docID)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}
