// Package execctx implements the Execution Context (C7): an explicit value
// threaded by reference through every STEP stage, never ambient/global
// state (design note §9), carrying accumulated fee-meter operations and
// per-transition flags.
package execctx

import (
	"platformchain/core/fees"
)

// Context is scoped to exactly one transition; it must not be shared or
// reused across transitions (spec §4.6).
type Context struct {
	ops      []fees.ValidationOperation
	DryRun   bool
	CheckTx  bool
	Epoch    uint64
}

// New constructs a fresh Context for one transition.
func New(checkTx bool, dryRun bool, epoch uint64) *Context {
	return &Context{CheckTx: checkTx, DryRun: dryRun, Epoch: epoch}
}

// Record appends a billable operation to the fee meter. Stages call this as
// they perform reads, writes, hashes, and signature checks so that a
// transition that fails partway is still priced fairly for the work already
// done (spec §4.2).
func (c *Context) Record(op fees.ValidationOperation) {
	c.ops = append(c.ops, op)
}

// RecordRead is a convenience for a single read operation.
func (c *Context) RecordRead() { c.Record(fees.ValidationOperation{Kind: fees.OpRead, Units: 1}) }

// RecordWrite is a convenience for n write operations.
func (c *Context) RecordWrite(n uint64) {
	c.Record(fees.ValidationOperation{Kind: fees.OpWrite, Units: n})
}

// RecordHash is a convenience for n hash operations.
func (c *Context) RecordHash(n uint64) {
	c.Record(fees.ValidationOperation{Kind: fees.OpHash, Units: n})
}

// RecordSignatureVerify is a convenience for n signature verifications.
func (c *Context) RecordSignatureVerify(n uint64) {
	c.Record(fees.ValidationOperation{Kind: fees.OpSignatureVerify, Units: n})
}

// RecordStorageBytes is a convenience for n bytes of storage delta.
func (c *Context) RecordStorageBytes(n uint64) {
	c.Record(fees.ValidationOperation{Kind: fees.OpStorageByte, Units: n})
}

// RecordPrecomputed appends an already-priced action quote (e.g. the cost of
// applying a document mutation, computed once the action shape is known).
func (c *Context) RecordPrecomputed(creditCost uint64) {
	c.Record(fees.ValidationOperation{Kind: fees.OpPrecalculatedAction, PrecomputedFee: creditCost})
}

// Operations returns the accumulated operations so far, for pricing a
// partially-failed transition at the point of failure.
func (c *Context) Operations() []fees.ValidationOperation {
	return append([]fees.ValidationOperation(nil), c.ops...)
}

// Quote prices the accumulated operations using table.
func (c *Context) Quote(table fees.Table) fees.FeeResult {
	return table.Quote(c.ops)
}
