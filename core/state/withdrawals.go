package state

import (
	"encoding/binary"
	"fmt"
)

// The withdrawal queue holds credit-withdrawal payouts awaiting the Core
// asset-unlock batcher (an external collaborator, spec §1). Records are
// stored under a monotonically increasing sequence number with persisted
// head/tail cursors so dequeue order equals enqueue order across restarts.
var (
	platformWithdrawalPrefix    = []byte("platform/withdrawal/")
	platformWithdrawalByTxPrefix = []byte("platform/withdrawal-tx/")
	platformWithdrawalHeadKey   = []byte("platform/withdrawal/head")
	platformWithdrawalTailKey   = []byte("platform/withdrawal/tail")
)

func platformWithdrawalKey(seq uint64) []byte {
	key := append([]byte(nil), platformWithdrawalPrefix...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

func platformWithdrawalByTxKey(txID [32]byte) []byte {
	return append(append([]byte(nil), platformWithdrawalByTxPrefix...), txID[:]...)
}

// WithdrawalRecord is one queued credit-to-Core payout.
type WithdrawalRecord struct {
	Seq              uint64
	TransitionID     [32]byte
	IdentityID       [32]byte
	AmountCredits    uint64
	CoreOutputScript []byte
}

func (m *Manager) withdrawalCursor(key []byte) (uint64, error) {
	var cursor uint64
	ok, err := m.KVGet(key, &cursor)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return cursor, nil
}

// EnqueueWithdrawalTransaction appends rec to the payout queue, assigning its
// sequence number, and indexes it by transition id.
func (m *Manager) EnqueueWithdrawalTransaction(rec WithdrawalRecord) (uint64, error) {
	tail, err := m.withdrawalCursor(platformWithdrawalTailKey)
	if err != nil {
		return 0, err
	}
	rec.Seq = tail
	if err := m.KVPut(platformWithdrawalKey(tail), rec); err != nil {
		return 0, err
	}
	if err := m.KVPut(platformWithdrawalByTxKey(rec.TransitionID), tail); err != nil {
		return 0, err
	}
	if err := m.KVPut(platformWithdrawalTailKey, tail+1); err != nil {
		return 0, err
	}
	return tail, nil
}

// DequeueWithdrawalTransactions pops up to max queued records in enqueue
// order, removing them from the queue (their by-transition index stays so
// the batcher can still resolve status queries).
func (m *Manager) DequeueWithdrawalTransactions(max int) ([]WithdrawalRecord, error) {
	head, err := m.withdrawalCursor(platformWithdrawalHeadKey)
	if err != nil {
		return nil, err
	}
	tail, err := m.withdrawalCursor(platformWithdrawalTailKey)
	if err != nil {
		return nil, err
	}
	var out []WithdrawalRecord
	for seq := head; seq < tail && len(out) < max; seq++ {
		var rec WithdrawalRecord
		ok, err := m.KVGet(platformWithdrawalKey(seq), &rec)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: withdrawal queue hole at seq %d", seq)
		}
		if err := m.KVDelete(platformWithdrawalKey(seq)); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if len(out) > 0 {
		if err := m.KVPut(platformWithdrawalHeadKey, head+uint64(len(out))); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FindWithdrawalByTransactionID resolves the queued (or already dequeued)
// sequence number a withdrawal transition was recorded under.
func (m *Manager) FindWithdrawalByTransactionID(txID [32]byte) (uint64, bool, error) {
	var seq uint64
	ok, err := m.KVGet(platformWithdrawalByTxKey(txID), &seq)
	if err != nil {
		return 0, false, err
	}
	return seq, ok, nil
}
