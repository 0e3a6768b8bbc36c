package config

// Fees captures the credit price floors that must be validated before
// applying runtime configuration updates.
type Fees struct {
	PerReadOp      uint64
	PerWriteOp     uint64
	PerSignatureOp uint64
}

// Mempool controls pre-screen admission limits.
type Mempool struct {
	MaxBytes          int64
	SubmitsPerSecond  float64
	SubmitBurst       int
}

// Blocks captures block production limits for transition counts.
type Blocks struct {
	MaxTransitions int64
}

// Global bundles the runtime configuration values enforced by ValidateConfig.
type Global struct {
	Fees    Fees
	Mempool Mempool
	Blocks  Blocks
}
