package contracts

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

// DeriveContractID computes the stable contract id from its owner and
// creation entropy, per spec §3 (`id = H(owner||entropy)`). Per design note
// §9, callers must compute this id before constructing any ledger operation
// that references the contract, never the reverse.
func DeriveContractID(owner [32]byte, entropy [32]byte) [32]byte {
	h := ethcrypto.Keccak256(owner[:], entropy[:])
	var id [32]byte
	copy(id[:], h)
	return id
}
