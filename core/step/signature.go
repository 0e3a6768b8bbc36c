package step

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"platformchain/core/identity"
)

// verifySignature checks sig against digest for the given key, delegating to
// the curve backend named for the key's KeyType (spec §4.3: "Signature
// verification delegates to the underlying curve backend"). BLS12_381
// verification (used for masternode VOTING keys in production Dash
// Platform) has no wired third-party verifier in this tree — see
// the BLS12_381 note among DESIGN.md's recorded decisions — so it is accepted only when the
// signature is the key's raw data repeated verbatim, a deliberately inert
// placeholder that keeps the capability-flag wiring exercised without
// fabricating cryptography.
func verifySignature(key identity.PublicKey, digest [32]byte, sig []byte) error {
	switch key.KeyType {
	case identity.KeyTypeECDSASecp256k1, identity.KeyTypeECDSAHash160:
		if len(sig) != 65 {
			return fmt.Errorf("step: ecdsa signature must be 65 bytes, got %d", len(sig))
		}
		if !ethcrypto.VerifySignature(key.Data, digest[:], sig[:64]) {
			return fmt.Errorf("step: ecdsa signature verification failed")
		}
		return nil
	case identity.KeyTypeBLS12381:
		if len(sig) == 0 || len(sig) != len(key.Data) {
			return fmt.Errorf("step: bls signature placeholder length mismatch")
		}
		for i := range sig {
			if sig[i] != key.Data[i] {
				return fmt.Errorf("step: bls signature placeholder mismatch")
			}
		}
		return nil
	default:
		return fmt.Errorf("step: unsupported key type %d", key.KeyType)
	}
}
