package identity

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

// DeriveIdentityID computes the stable identity id from the Core asset-lock
// outpoint that funds its creation, mirroring contracts.DeriveContractID's
// owner||entropy hashing (spec §3: identity ids are derived, never chosen by
// the submitter).
func DeriveIdentityID(outpoint AssetLockOutpoint) [32]byte {
	h := ethcrypto.Keccak256(outpoint[:])
	var id [32]byte
	copy(id[:], h)
	return id
}
