package wire

import (
	"bytes"
	"testing"

	"platformchain/core/identity"
)

func sampleTransfer() *StateTransition {
	var from, to [32]byte
	from[0], to[0] = 1, 2
	return &StateTransition{
		ProtocolVersion: 1,
		Kind:            KindIdentityCreditTransfer,
		Signature:       SignaturePointer{KeyID: 3, Signature: bytes.Repeat([]byte{0xAB}, 65)},
		IdentityCreditTransfer: &IdentityCreditTransfer{
			FromIdentityID: from,
			ToIdentityID:   to,
			Amount:         500,
			IdentityNonce:  7,
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := sampleTransfer()
	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ProtocolVersion != 1 || decoded.Kind != KindIdentityCreditTransfer {
		t.Fatalf("envelope mismatch: %+v", decoded)
	}
	if *decoded.IdentityCreditTransfer != *original.IdentityCreditTransfer {
		t.Fatalf("payload mismatch: %+v", decoded.IdentityCreditTransfer)
	}
	if decoded.Signature.KeyID != 3 || !bytes.Equal(decoded.Signature.Signature, original.Signature.Signature) {
		t.Fatalf("signature mismatch")
	}
}

func TestSignableBytesZeroSignature(t *testing.T) {
	tx := sampleTransfer()
	signable, err := SignableBytes(tx)
	if err != nil {
		t.Fatalf("signable: %v", err)
	}
	unsigned := *tx
	unsigned.Signature = SignaturePointer{}
	unsignedBytes, err := Encode(&unsigned)
	if err != nil {
		t.Fatalf("encode unsigned: %v", err)
	}
	if !bytes.Equal(signable, unsignedBytes) {
		t.Fatalf("signable bytes must equal the zero-signature encoding")
	}

	// The digest is independent of the signature attached.
	h1, err := Hash(tx)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	resigned := *tx
	resigned.Signature = SignaturePointer{KeyID: 99, Signature: bytes.Repeat([]byte{0xCD}, 65)}
	h2, err := Hash(&resigned)
	if err != nil {
		t.Fatalf("hash resigned: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("digest changed with signature")
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	tx := sampleTransfer()
	encoded, err := Encode(tx)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Corrupt the kind discriminator (second byte: version varint 1 is one
	// byte here).
	encoded[1] = 0xFF
	if _, err := Decode(encoded); err == nil {
		t.Fatalf("unknown kind accepted")
	}
}

func TestEncodeDeterministicForIdentityCreate(t *testing.T) {
	var outpoint identity.AssetLockOutpoint
	outpoint[0] = 9
	tx := &StateTransition{
		ProtocolVersion: 1,
		Kind:            KindIdentityCreate,
		IdentityCreate: &IdentityCreate{
			AssetLock: AssetLockRef{Outpoint: outpoint, ValueDuffs: 1000, OneTimeKey: []byte{1, 2, 3}},
			Keys: map[uint32]identity.PublicKey{
				0: {ID: 0, Purpose: identity.PurposeAuthentication, SecurityLevel: identity.SecurityMaster, Data: []byte{4}},
				1: {ID: 1, Purpose: identity.PurposeTransfer, SecurityLevel: identity.SecurityCritical, Data: []byte{5}},
			},
		},
	}
	first, err := Encode(tx)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for range 20 {
		again, err := Encode(tx)
		if err != nil {
			t.Fatalf("re-encode: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding is not deterministic across runs")
		}
	}
}
