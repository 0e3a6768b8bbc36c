package identity

// KeyRequestKind enumerates the ways a caller may ask the store to select
// keys from an identity.
type KeyRequestKind byte

const (
	KeyRequestSpecific KeyRequestKind = iota
	KeyRequestAllOfPurposeAndLevel
	KeyRequestAllOfPurpose
)

// KeyRequestType mirrors the union described in spec §4.3: callers select
// keys either by explicit id list or by (purpose, security level) class.
type KeyRequestType struct {
	Kind          KeyRequestKind
	SpecificIDs   []uint32
	Purpose       KeyPurpose
	SecurityLevel SecurityLevel
}

// SpecificKeys builds a KeyRequestType selecting exact key ids.
func SpecificKeys(ids ...uint32) KeyRequestType {
	return KeyRequestType{Kind: KeyRequestSpecific, SpecificIDs: ids}
}

// AllKeysOfPurposeAndLevel builds a KeyRequestType selecting every enabled
// key at the given purpose and security level.
func AllKeysOfPurposeAndLevel(purpose KeyPurpose, level SecurityLevel) KeyRequestType {
	return KeyRequestType{Kind: KeyRequestAllOfPurposeAndLevel, Purpose: purpose, SecurityLevel: level}
}

// AllKeysOfPurpose builds a KeyRequestType selecting every enabled key for a
// purpose regardless of security level.
func AllKeysOfPurpose(purpose KeyPurpose) KeyRequestType {
	return KeyRequestType{Kind: KeyRequestAllOfPurpose, Purpose: purpose}
}

// Select filters the identity's key map according to the request.
func (id *Identity) Select(req KeyRequestType) []PublicKey {
	var out []PublicKey
	switch req.Kind {
	case KeyRequestSpecific:
		for _, id32 := range req.SpecificIDs {
			if k, ok := id.Keys[id32]; ok {
				out = append(out, k)
			}
		}
	case KeyRequestAllOfPurposeAndLevel:
		for _, k := range id.sortedKeys() {
			if k.Purpose == req.Purpose && k.SecurityLevel == req.SecurityLevel && k.Enabled() {
				out = append(out, k)
			}
		}
	case KeyRequestAllOfPurpose:
		for _, k := range id.sortedKeys() {
			if k.Purpose == req.Purpose && k.Enabled() {
				out = append(out, k)
			}
		}
	}
	return out
}

// sortedKeys returns the identity's keys in ascending key-id order so that
// selection is deterministic regardless of Go's randomized map iteration.
func (id *Identity) sortedKeys() []PublicKey {
	ids := make([]uint32, 0, len(id.Keys))
	for k := range id.Keys {
		ids = append(ids, k)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	out := make([]PublicKey, 0, len(ids))
	for _, k := range ids {
		out = append(out, id.Keys[k])
	}
	return out
}
