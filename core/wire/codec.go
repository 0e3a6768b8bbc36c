package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Encode renders a StateTransition into its canonical wire bytes: a uvarint
// protocol-version field, a one-byte Kind discriminator, then a
// length-delimited canonical JSON payload for the populated variant. JSON is
// used for the payload for the same reason the teacher hashes transactions
// via json.Marshal in core/types.Transaction.Hash — a stable, field-order
// encoding without hand-rolled struct packing.
func Encode(st *StateTransition) ([]byte, error) {
	var buf bytes.Buffer
	var verBuf [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(verBuf[:], uint64(st.ProtocolVersion))
	buf.Write(verBuf[:n])
	buf.WriteByte(byte(st.Kind))

	payload, err := payloadFor(st)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	var lenBuf [binary.MaxVarintLen64]byte
	ln := binary.PutUvarint(lenBuf[:], uint64(len(body)))
	buf.Write(lenBuf[:ln])
	buf.Write(body)

	var sigLenBuf [binary.MaxVarintLen64]byte
	sn := binary.PutUvarint(sigLenBuf[:], uint64(len(st.Signature.Signature)))
	buf.Write(sigLenBuf[:sn])
	buf.Write(st.Signature.Signature)
	var keyIDBuf [binary.MaxVarintLen32]byte
	kn := binary.PutUvarint(keyIDBuf[:], uint64(st.Signature.KeyID))
	buf.Write(keyIDBuf[:kn])

	return buf.Bytes(), nil
}

func payloadFor(st *StateTransition) (any, error) {
	switch st.Kind {
	case KindDataContractCreate:
		return st.DataContractCreate, nil
	case KindDataContractUpdate:
		return st.DataContractUpdate, nil
	case KindIdentityCreate:
		return st.IdentityCreate, nil
	case KindIdentityTopUp:
		return st.IdentityTopUp, nil
	case KindIdentityUpdate:
		return st.IdentityUpdate, nil
	case KindIdentityCreditTransfer:
		return st.IdentityCreditTransfer, nil
	case KindIdentityCreditWithdrawal:
		return st.IdentityCreditWithdrawal, nil
	case KindBatch:
		return st.Batch, nil
	case KindMasternodeVote:
		return st.MasternodeVote, nil
	default:
		return nil, fmt.Errorf("wire: unknown transition kind %d", st.Kind)
	}
}

// SignableBytes returns the canonical bytes with the signature field zeroed,
// the payload every signature is computed and verified over (spec §6).
func SignableBytes(st *StateTransition) ([]byte, error) {
	clone := *st
	clone.Signature = SignaturePointer{}
	return Encode(&clone)
}

// Hash returns the sha256 digest of the signable bytes: the digest every
// signature covers, and the transition hash the orchestrator stamps on each
// ExecutionEvent (the withdrawal queue is indexed by it).
func Hash(st *StateTransition) ([32]byte, error) {
	b, err := SignableBytes(st)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// Decode is Encode's inverse: it parses the uvarint protocol-version field,
// Kind discriminator, length-delimited JSON payload, and trailing signature
// fields back into a StateTransition. Used by the mempool and
// cmd/platformd's devnet harness to turn submitted bytes back into a
// transition before handing it to core/step.
func Decode(data []byte) (*StateTransition, error) {
	r := bytes.NewReader(data)

	version, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: decode version: %w", err)
	}

	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: decode kind: %w", err)
	}
	kind := Kind(kindByte)

	bodyLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: decode payload length: %w", err)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: decode payload: %w", err)
	}

	st := &StateTransition{ProtocolVersion: uint32(version), Kind: kind}
	if err := unmarshalPayload(st, body); err != nil {
		return nil, err
	}

	sigLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: decode signature length: %w", err)
	}
	sig := make([]byte, sigLen)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, fmt.Errorf("wire: decode signature: %w", err)
	}
	keyID, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("wire: decode key id: %w", err)
	}
	st.Signature = SignaturePointer{KeyID: uint32(keyID), Signature: sig}

	return st, nil
}

func unmarshalPayload(st *StateTransition, body []byte) error {
	switch st.Kind {
	case KindDataContractCreate:
		st.DataContractCreate = &DataContractCreate{}
		return json.Unmarshal(body, st.DataContractCreate)
	case KindDataContractUpdate:
		st.DataContractUpdate = &DataContractUpdate{}
		return json.Unmarshal(body, st.DataContractUpdate)
	case KindIdentityCreate:
		st.IdentityCreate = &IdentityCreate{}
		return json.Unmarshal(body, st.IdentityCreate)
	case KindIdentityTopUp:
		st.IdentityTopUp = &IdentityTopUp{}
		return json.Unmarshal(body, st.IdentityTopUp)
	case KindIdentityUpdate:
		st.IdentityUpdate = &IdentityUpdate{}
		return json.Unmarshal(body, st.IdentityUpdate)
	case KindIdentityCreditTransfer:
		st.IdentityCreditTransfer = &IdentityCreditTransfer{}
		return json.Unmarshal(body, st.IdentityCreditTransfer)
	case KindIdentityCreditWithdrawal:
		st.IdentityCreditWithdrawal = &IdentityCreditWithdrawal{}
		return json.Unmarshal(body, st.IdentityCreditWithdrawal)
	case KindBatch:
		st.Batch = &Batch{}
		return json.Unmarshal(body, st.Batch)
	case KindMasternodeVote:
		st.MasternodeVote = &MasternodeVote{}
		return json.Unmarshal(body, st.MasternodeVote)
	default:
		return fmt.Errorf("wire: unknown transition kind %d", st.Kind)
	}
}
