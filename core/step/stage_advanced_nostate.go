package step

import (
	"platformchain/core/contracts"
	"platformchain/core/identity"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// advancedNoStateStage implements spec §4.1 stage 7: deeper cross-field
// structural checks that still require no ledger access. Only
// IdentityUpdate and DataContractCreate carry this stage (capabilities
// table); signingKey is the key resolved at stage 2, included so a future
// variant can cross-check it against the submitted payload without a second
// ledger round-trip.
func advancedNoStateStage(tx *wire.StateTransition, signingKey identity.PublicKey) *steperr.DomainError {
	switch tx.Kind {
	case wire.KindIdentityUpdate:
		return advancedIdentityUpdateStructure(tx.IdentityUpdate)
	case wire.KindDataContractCreate:
		return advancedContractStructure(tx.DataContractCreate.DocumentTypes)
	default:
		return nil
	}
}

// advancedIdentityUpdateStructure validates the candidate key additions are
// internally consistent (no two new keys collide on a singleton
// purpose/level slot) before the Action Applier merges them against the
// ledger's current key set.
func advancedIdentityUpdateStructure(iu *wire.IdentityUpdate) *steperr.DomainError {
	if err := identity.ValidateKeySet(iu.AddKeys); err != nil {
		return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, err.Error(), err)
	}
	seen := make(map[uint32]bool, len(iu.DisableKeyIDs))
	for _, id := range iu.DisableKeyIDs {
		if seen[id] {
			return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "duplicate key id in disable list", nil)
		}
		seen[id] = true
		if _, collides := iu.AddKeys[id]; collides {
			return steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, "key id both added and disabled", nil)
		}
	}
	return nil
}

// advancedContractStructure validates that every index only references
// properties the document type actually declares, and that required
// properties are a subset of declared properties.
func advancedContractStructure(types map[string]contracts.DocumentType) *steperr.DomainError {
	for name, dt := range types {
		declared := make(map[string]bool, len(dt.Properties))
		for _, p := range dt.Properties {
			declared[p] = true
		}
		for _, req := range dt.Required {
			if !declared[req] {
				return steperr.New(steperr.CategoryBasic, steperr.CodeInvalidDocumentType, "required property not declared: "+name+"."+req, nil)
			}
		}
		for _, idx := range dt.Indices {
			for _, p := range idx.Properties {
				if !declared[p] {
					return steperr.New(steperr.CategoryBasic, steperr.CodeInvalidDocumentType, "index references undeclared property: "+name+"."+idx.Name, nil)
				}
			}
		}
	}
	return nil
}
