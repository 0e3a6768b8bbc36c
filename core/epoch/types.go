package epoch

// Epoch identifies one fee-accrual window (spec §3: Block Info carries
// epoch{index, start_time_ms}). Storage refunds accrued by the Fee Engine
// settle per epoch index, and the (out-of-scope) masternode payout
// distribution reads the same boundaries.
type Epoch struct {
	Index       uint64
	StartHeight uint64
	StartTimeMs uint64
}

// ForHeight returns the epoch containing height under cfg. StartTimeMs is
// derived from the first block the caller observed inside the epoch and is
// carried forward unchanged until the next boundary; pass the enclosing
// epoch's known start time (or the block's own time at a boundary).
func ForHeight(cfg Config, height uint64, startTimeMs uint64) Epoch {
	index := height / cfg.Length
	return Epoch{
		Index:       index,
		StartHeight: index * cfg.Length,
		StartTimeMs: startTimeMs,
	}
}

// IsBoundary reports whether height opens a new epoch under cfg.
func IsBoundary(cfg Config, height uint64) bool {
	return height%cfg.Length == 0
}

// Summary provides a lightweight view over a completed epoch. No package in
// this tree builds or reads one; the status endpoint and the event feed do
// not use it.
type Summary struct {
	Index            uint64
	StartHeight      uint64
	EndHeight        uint64
	TransitionsValid uint64
	TransitionsPaid  uint64
	TransitionsUnpaid uint64
	FeesToPool       uint64
	RefundsSettled   uint64
}
