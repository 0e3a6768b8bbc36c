package step

import (
	"platformchain/core/execctx"
	"platformchain/core/identity"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// digestOf hashes tx's signable bytes, turning a malformed payload into a
// fatal Execution error rather than a billable one — it indicates the
// transition could not even be re-encoded, which basic structural
// validation (stage 4) should already have ruled out for any transition
// that reached signature verification with a well-formed payload.
func digestOf(tx *wire.StateTransition) ([32]byte, error) {
	d, err := wire.Hash(tx)
	if err != nil {
		return [32]byte{}, steperr.Fatal(steperr.CodeCorruptedCodeExecution, "hash signable bytes", err)
	}
	return d, nil
}

// payerFor extracts the identity id that stage 2 must resolve and, for
// validatesSignatureBasedOnIdentityInfo variants, the identity that owns
// tx.Signature. IdentityCreate has no subject identity yet (zero value);
// IdentityTopUp's subject is the identity being funded, not a signer.
func payerFor(tx *wire.StateTransition) [32]byte {
	switch tx.Kind {
	case wire.KindIdentityCreate:
		return [32]byte{}
	case wire.KindIdentityTopUp:
		return tx.IdentityTopUp.IdentityID
	case wire.KindIdentityUpdate:
		return tx.IdentityUpdate.IdentityID
	case wire.KindIdentityCreditTransfer:
		return tx.IdentityCreditTransfer.FromIdentityID
	case wire.KindIdentityCreditWithdrawal:
		return tx.IdentityCreditWithdrawal.IdentityID
	case wire.KindDataContractCreate:
		return tx.DataContractCreate.OwnerID
	case wire.KindDataContractUpdate:
		// Owner is resolved from the ledger contract record, not the wire
		// payload (spec §3: ownership is fixed at creation). Filled in by
		// resolveSignerStage once the contract is fetched.
		return [32]byte{}
	case wire.KindBatch:
		return tx.Batch.OwnerID
	case wire.KindMasternodeVote:
		return tx.MasternodeVote.VoterIdentityID
	default:
		return [32]byte{}
	}
}

// requiredKeyClass reports the (purpose, weakest-acceptable security level)
// a signing key must satisfy for kinds that validate against identity key
// info. Security levels are ordered strongest-first (SecurityMaster = 0), so
// "weakest acceptable" means the key's level value must be <= the returned
// bound.
func requiredKeyClass(k wire.Kind) (identity.KeyPurpose, identity.SecurityLevel) {
	switch k {
	case wire.KindIdentityUpdate:
		return identity.PurposeAuthentication, identity.SecurityMaster
	case wire.KindIdentityCreditTransfer, wire.KindIdentityCreditWithdrawal:
		return identity.PurposeTransfer, identity.SecurityCritical
	case wire.KindDataContractCreate, wire.KindDataContractUpdate:
		return identity.PurposeAuthentication, identity.SecurityCritical
	case wire.KindBatch:
		return identity.PurposeAuthentication, identity.SecurityHigh
	case wire.KindMasternodeVote:
		return identity.PurposeVoting, identity.SecurityMedium
	default:
		return identity.PurposeAuthentication, identity.SecurityMedium
	}
}

// resolveSignerStage implements spec §4.1 stage 2. It returns the resolved
// payer/subject identity id and the key used to authorize the transition.
func resolveSignerStage(deps Deps, tx *wire.StateTransition, caps capabilities, ctx *execctx.Context) ([32]byte, identity.PublicKey, *steperr.DomainError, error) {
	switch tx.Kind {
	case wire.KindIdentityCreate:
		oneTime := tx.IdentityCreate.AssetLock.OneTimeKey
		if len(oneTime) == 0 {
			return [32]byte{}, identity.PublicKey{}, steperr.New(steperr.CategorySignature, steperr.CodeInvalidSignature, "missing one-time key", nil), nil
		}
		key := identity.PublicKey{KeyType: identity.KeyTypeECDSASecp256k1, Data: oneTime}
		digest, ferr := digestOf(tx)
		if ferr != nil {
			return [32]byte{}, identity.PublicKey{}, nil, ferr
		}
		ctx.RecordSignatureVerify(1)
		if err := verifySignature(key, digest, tx.Signature.Signature); err != nil {
			return [32]byte{}, identity.PublicKey{}, steperr.New(steperr.CategorySignature, steperr.CodeInvalidSignature, err.Error(), err), nil
		}
		return [32]byte{}, key, nil, nil

	case wire.KindIdentityTopUp:
		subject := tx.IdentityTopUp.IdentityID
		ctx.RecordRead()
		if _, err := deps.Identity.FetchFull(subject); err != nil {
			if _, ok := err.(identity.ErrIdentityNotFound); ok {
				return subject, identity.PublicKey{}, steperr.New(steperr.CategorySignature, steperr.CodeIdentityNotFound, "top-up target does not exist", err), nil
			}
			return subject, identity.PublicKey{}, nil, err
		}
		oneTime := tx.IdentityTopUp.AssetLock.OneTimeKey
		key := identity.PublicKey{KeyType: identity.KeyTypeECDSASecp256k1, Data: oneTime}
		digest, ferr := digestOf(tx)
		if ferr != nil {
			return subject, identity.PublicKey{}, nil, ferr
		}
		ctx.RecordSignatureVerify(1)
		if err := verifySignature(key, digest, tx.Signature.Signature); err != nil {
			return subject, identity.PublicKey{}, steperr.New(steperr.CategorySignature, steperr.CodeInvalidSignature, err.Error(), err), nil
		}
		return subject, key, nil, nil

	case wire.KindDataContractUpdate:
		info, err := deps.Contracts.GetWithFetchInfo(tx.DataContractUpdate.ContractID)
		if err != nil {
			return [32]byte{}, identity.PublicKey{}, steperr.New(steperr.CategoryBasic, steperr.CodeDataContractNotPresent, err.Error(), err), nil
		}
		return resolveIdentityKeySignature(deps, tx, info.Contract.OwnerID, ctx)

	default:
		payer := payerFor(tx)
		return resolveIdentityKeySignature(deps, tx, payer, ctx)
	}
}

// resolveIdentityKeySignature is the shared path for every variant with
// validatesSignatureBasedOnIdentityInfo = true: fetch the signer's identity,
// select the key named by tx.Signature.KeyID, check its purpose/security
// class, then verify the signature bytes.
func resolveIdentityKeySignature(deps Deps, tx *wire.StateTransition, payer [32]byte, ctx *execctx.Context) ([32]byte, identity.PublicKey, *steperr.DomainError, error) {
	ctx.RecordRead()
	_, keys, err := deps.Identity.FetchBalanceWithKeys(payer, identity.SpecificKeys(tx.Signature.KeyID))
	if err != nil {
		if _, ok := err.(identity.ErrIdentityNotFound); ok {
			return payer, identity.PublicKey{}, steperr.New(steperr.CategorySignature, steperr.CodeIdentityNotFound, "signer identity does not exist", err), nil
		}
		return payer, identity.PublicKey{}, nil, err
	}
	if len(keys) == 0 {
		return payer, identity.PublicKey{}, steperr.NewWithVerdict(steperr.CategorySignature, steperr.CodeWrongPurpose, steperr.VerdictPaid, "no such key on identity", nil), nil
	}
	key := keys[0]
	if !key.Enabled() {
		return payer, identity.PublicKey{}, steperr.NewWithVerdict(steperr.CategorySignature, steperr.CodeWrongSecurityLevel, steperr.VerdictPaid, "key disabled", nil), nil
	}
	wantPurpose, weakestLevel := requiredKeyClass(tx.Kind)
	if key.Purpose != wantPurpose {
		return payer, identity.PublicKey{}, steperr.NewWithVerdict(steperr.CategorySignature, steperr.CodeWrongPurpose, steperr.VerdictPaid, "key purpose mismatch", nil), nil
	}
	if key.SecurityLevel > weakestLevel {
		return payer, identity.PublicKey{}, steperr.NewWithVerdict(steperr.CategorySignature, steperr.CodeWrongSecurityLevel, steperr.VerdictPaid, "key security level too weak", nil), nil
	}
	digest, ferr := digestOf(tx)
	if ferr != nil {
		return payer, identity.PublicKey{}, nil, ferr
	}
	ctx.RecordSignatureVerify(1)
	if err := verifySignature(key, digest, tx.Signature.Signature); err != nil {
		return payer, identity.PublicKey{}, steperr.NewWithVerdict(steperr.CategorySignature, steperr.CodeInvalidSignature, steperr.VerdictPaid, err.Error(), err), nil
	}
	return payer, key, nil, nil
}
