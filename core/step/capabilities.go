// Package step implements the Transition Validator (C5): the nine-stage
// ordered STEP pipeline from spec §4.1. Stage order is normative; do not
// reorder the calls in Validate.
package step

import "platformchain/core/wire"

// capabilities is the per-variant boolean table from spec §4.1, the single
// source of truth for which stages run for a given transition Kind. It is a
// method table keyed on the tag, not inheritance, per design note §9.
type capabilities struct {
	hasIsAllowedValidation                          bool
	usesIdentityInState                             bool
	validatesSignatureBasedOnIdentityInfo           bool
	hasNonceValidation                              bool
	hasBasicStructureValidation                     bool
	hasBalancePreCheckValidation                    bool
	usesPrefundedSpecializedBalanceForPayment       bool
	hasAdvancedStructureValidationWithoutState      bool
	hasAdvancedStructureValidationWithState         bool
	requiresAdvancedStructureValidationWithStateOnCheckTx bool
}

var capabilityTable = map[wire.Kind]capabilities{
	wire.KindIdentityCreate: {
		usesIdentityInState:                       false,
		validatesSignatureBasedOnIdentityInfo:     false,
		hasNonceValidation:                        false,
		hasBasicStructureValidation:               true,
		hasBalancePreCheckValidation:               false,
		hasAdvancedStructureValidationWithState:   true,
	},
	wire.KindIdentityTopUp: {
		usesIdentityInState:                   true,
		validatesSignatureBasedOnIdentityInfo: false,
		hasNonceValidation:                    false,
		hasBasicStructureValidation:           true,
	},
	wire.KindIdentityUpdate: {
		usesIdentityInState:                        true,
		validatesSignatureBasedOnIdentityInfo:      true,
		hasNonceValidation:                         true,
		hasBasicStructureValidation:                true,
		hasBalancePreCheckValidation:                true,
		hasAdvancedStructureValidationWithoutState: true,
	},
	wire.KindIdentityCreditTransfer: {
		usesIdentityInState:                   true,
		validatesSignatureBasedOnIdentityInfo: true,
		hasNonceValidation:                    true,
		hasBasicStructureValidation:           true,
		hasBalancePreCheckValidation:           true,
	},
	wire.KindIdentityCreditWithdrawal: {
		usesIdentityInState:                   true,
		validatesSignatureBasedOnIdentityInfo: true,
		hasNonceValidation:                    true,
		hasBasicStructureValidation:           true,
		hasBalancePreCheckValidation:          true,
	},
	wire.KindDataContractCreate: {
		usesIdentityInState:                        true,
		validatesSignatureBasedOnIdentityInfo:      true,
		hasNonceValidation:                         true,
		hasBasicStructureValidation:                true,
		hasBalancePreCheckValidation:                true,
		hasAdvancedStructureValidationWithoutState: true,
	},
	wire.KindDataContractUpdate: {
		usesIdentityInState:                   true,
		validatesSignatureBasedOnIdentityInfo: true,
		hasNonceValidation:                    true,
		hasBasicStructureValidation:           true,
		hasBalancePreCheckValidation:           true,
	},
	wire.KindBatch: {
		hasIsAllowedValidation:                                true,
		usesIdentityInState:                                   true,
		validatesSignatureBasedOnIdentityInfo:                 true,
		hasNonceValidation:                                    true,
		hasBasicStructureValidation:                           true,
		hasBalancePreCheckValidation:                           true,
		hasAdvancedStructureValidationWithState:                true,
		requiresAdvancedStructureValidationWithStateOnCheckTx: true,
	},
	wire.KindMasternodeVote: {
		usesIdentityInState:                        true,
		validatesSignatureBasedOnIdentityInfo:      true,
		hasNonceValidation:                         true,
		hasBasicStructureValidation:                true,
		usesPrefundedSpecializedBalanceForPayment:  true,
		hasAdvancedStructureValidationWithState:    true,
	},
}

func capabilitiesFor(k wire.Kind) (capabilities, bool) {
	c, ok := capabilityTable[k]
	return c, ok
}
