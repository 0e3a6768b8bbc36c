package config

import "fmt"

func ValidateConfig(g Global) error {
	if g.Fees.PerReadOp == 0 || g.Fees.PerWriteOp == 0 {
		return fmt.Errorf("fees: per-op credit prices must be non-zero")
	}
	if g.Fees.PerSignatureOp == 0 {
		return fmt.Errorf("fees: per-signature credit price must be non-zero")
	}
	if g.Mempool.MaxBytes <= 0 {
		return fmt.Errorf("mempool: max_bytes <= 0")
	}
	if g.Mempool.SubmitBurst < 0 {
		return fmt.Errorf("mempool: submit_burst < 0")
	}
	if g.Blocks.MaxTransitions <= 0 {
		return fmt.Errorf("blocks: max_transitions <= 0")
	}
	return nil
}
