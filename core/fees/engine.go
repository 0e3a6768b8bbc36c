// Package fees implements the Fee Engine (C2): deterministic pricing of
// read/write/hash/signature/storage operations into credits, and
// credit<->duff conversion, following the accumulate-then-price pattern the
// teacher uses for its POS/lending fee domains (native/fees, native/lending).
package fees

import "github.com/holiman/uint256"

// OperationKind classifies a single priced unit of work performed during a
// STEP invocation.
type OperationKind byte

const (
	OpRead OperationKind = iota
	OpWrite
	OpHash
	OpSignatureVerify
	OpStorageByte
	OpPrecalculatedAction
)

// ValidationOperation is one accumulated unit of billable work. Precalculated
// action entries carry their own credit cost directly (Units is ignored).
type ValidationOperation struct {
	Kind          OperationKind
	Units         uint64
	PrecomputedFee uint64
}

// Table is the per-protocol-version credit price list. All fields are
// credits-per-unit except CreditsPerDuff, which is the credit<->duff
// conversion factor.
type Table struct {
	CreditsPerRead       uint64
	CreditsPerWrite      uint64
	CreditsPerHash       uint64
	CreditsPerSignature  uint64
	CreditsPerStorageByte uint64
	CreditsPerDuff       uint64
}

// DefaultTable is the reference price list. Values are illustrative
// but deterministic and fixed, matching the "deterministic pricing" mandate
// of spec §2/§4.2.
var DefaultTable = Table{
	CreditsPerRead:        1_000,
	CreditsPerWrite:       5_000,
	CreditsPerHash:        500,
	CreditsPerSignature:   3_000,
	CreditsPerStorageByte: 50,
	CreditsPerDuff:        1_000,
}

// Price converts a single ValidationOperation into credits using table.
func (t Table) Price(op ValidationOperation) uint64 {
	if op.Kind == OpPrecalculatedAction {
		return op.PrecomputedFee
	}
	switch op.Kind {
	case OpRead:
		return op.Units * t.CreditsPerRead
	case OpWrite:
		return op.Units * t.CreditsPerWrite
	case OpHash:
		return op.Units * t.CreditsPerHash
	case OpSignatureVerify:
		return op.Units * t.CreditsPerSignature
	case OpStorageByte:
		return op.Units * t.CreditsPerStorageByte
	default:
		return 0
	}
}

// CreditsToDuffs converts a credit amount to the Core-chain duff-equivalent
// using 256-bit-safe arithmetic, mirroring the teacher's mixed big.Int/
// uint256 usage in native/lending for overflow-sensitive conversions.
func (t Table) CreditsToDuffs(credits uint64) uint64 {
	if t.CreditsPerDuff == 0 {
		return 0
	}
	c := uint256.NewInt(credits)
	d := uint256.NewInt(t.CreditsPerDuff)
	return new(uint256.Int).Div(c, d).Uint64()
}

// DuffsToCredits converts a duff amount to credits.
func (t Table) DuffsToCredits(duffs uint64) uint64 {
	d := uint256.NewInt(duffs)
	per := uint256.NewInt(t.CreditsPerDuff)
	return new(uint256.Int).Mul(d, per).Uint64()
}

// FeeResult is the priced outcome of a transition, per spec §4.2.
type FeeResult struct {
	ProcessingFee uint64
	StorageFee    uint64
	FeeRefunds    map[[32]byte]uint64 // identity id -> refunded credits
}

// Total returns the sum of processing and storage fees, net of no refunds
// (refunds are applied to the recipient identities, not subtracted here).
func (r FeeResult) Total() uint64 {
	return r.ProcessingFee + r.StorageFee
}

// Quote accumulates a slice of ValidationOperations into a FeeResult, putting
// storage-byte operations into StorageFee and everything else into
// ProcessingFee, as described in spec §4.2.
func (t Table) Quote(ops []ValidationOperation) FeeResult {
	var result FeeResult
	for _, op := range ops {
		price := t.Price(op)
		if op.Kind == OpStorageByte {
			result.StorageFee += price
		} else {
			result.ProcessingFee += price
		}
	}
	return result
}
