package fees

import "fmt"

// RefundLedger accrues epoch-scoped storage refunds owed to identities whose
// documents shrink or are deleted, grounded on the accrual/cumulative-ledger
// pattern of the teacher's core/state.RefundLedger (refund_ledger.go) but
// scoped to storage-byte credits rather than payment refunds.
type RefundLedger struct {
	byEpoch map[uint64]map[[32]byte]uint64
}

// NewRefundLedger constructs an empty RefundLedger.
func NewRefundLedger() *RefundLedger {
	return &RefundLedger{byEpoch: make(map[uint64]map[[32]byte]uint64)}
}

// Accrue records that identity is owed amount credits of storage refund for
// epoch, accumulating across multiple transitions within the same epoch.
func (l *RefundLedger) Accrue(epoch uint64, identity [32]byte, amount uint64) {
	if amount == 0 {
		return
	}
	bucket, ok := l.byEpoch[epoch]
	if !ok {
		bucket = make(map[[32]byte]uint64)
		l.byEpoch[epoch] = bucket
	}
	bucket[identity] += amount
}

// Settle returns and clears the accrued refunds for an epoch. The Action
// Applier (C6) calls it after every applied transition and credits the
// returned amounts to identity balances.
func (l *RefundLedger) Settle(epoch uint64) map[[32]byte]uint64 {
	bucket, ok := l.byEpoch[epoch]
	if !ok {
		return nil
	}
	delete(l.byEpoch, epoch)
	return bucket
}

// QuoteShrink computes the storage-refund credits owed when a document's
// serialized size goes from oldBytes to newBytes (newBytes < oldBytes), using
// the same per-byte rate the write path charged at.
func QuoteShrink(table Table, oldBytes, newBytes uint64) (uint64, error) {
	if newBytes > oldBytes {
		return 0, fmt.Errorf("fees: shrink quote requires newBytes <= oldBytes (old=%d new=%d)", oldBytes, newBytes)
	}
	freed := oldBytes - newBytes
	return freed * table.CreditsPerStorageByte, nil
}
