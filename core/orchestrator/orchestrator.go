// Package orchestrator implements the Block Orchestrator (C8): it drives the
// nine-stage STEP pipeline over every transition in a block under one ledger
// transaction, splits the outcomes into the three consensus buckets (spec
// §4.7 — valid, invalid-but-paid, invalid-and-unpaid), and commits or rolls
// back the whole block atomically. It follows the same parent-root-snapshot,
// rollback-on-first-failure shape as the teacher's core.Node.CommitBlock,
// generalized to STEP's ConsensusValidationResult envelope instead of a
// single hard error per transaction.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"platformchain/core/apply"
	"platformchain/core/contracts"
	"platformchain/core/execctx"
	"platformchain/core/fees"
	"platformchain/core/identity"
	"platformchain/core/state"
	"platformchain/core/step"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

var tracer = otel.Tracer("platformchain/core/orchestrator")

var (
	metricsOnce   sync.Once
	sharedMetrics *blockMetrics
)

type blockMetrics struct {
	transitions *prometheus.CounterVec
	blockSize   prometheus.Histogram
}

func metrics() *blockMetrics {
	metricsOnce.Do(func() {
		m := &blockMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "platform_step_transitions_total",
				Help: "STEP outcomes by verdict bucket.",
			}, []string{"bucket"}),
			blockSize: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "platform_step_block_transitions",
				Help:    "Number of transitions processed per block.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			}),
		}
		prometheus.MustRegister(m.transitions, m.blockSize)
		sharedMetrics = m
	})
	return sharedMetrics
}

// Bucket classifies a processed transition into one of the three consensus
// outcomes spec §4.7 describes.
type Bucket byte

const (
	BucketValid Bucket = iota
	BucketInvalidPaid
	BucketInvalidUnpaid
)

func (b Bucket) String() string {
	switch b {
	case BucketValid:
		return "valid"
	case BucketInvalidPaid:
		return "invalid_paid"
	case BucketInvalidUnpaid:
		return "invalid_unpaid"
	default:
		return "unknown"
	}
}

// TransitionResult records the per-transition outcome of a processed block,
// including the priced fee result for paid buckets.
type TransitionResult struct {
	Index     int
	Bucket    Bucket
	Event     step.ExecutionEvent
	FeeResult fees.FeeResult
	DomainErr *steperr.DomainError
}

// BlockInfo carries the block-scoped parameters STEP and the fee engine
// need: the monotonic epoch index for refund settlement (spec §4.2) and the
// wall-clock timestamp document mutations are stamped with.
type BlockInfo struct {
	Height     uint64
	TimeMs     uint64
	Epoch      uint64
	CoreHeight uint64
}

// Policy gates Batch transitions at stage 1; callers pass the same Policy
// implementation STEP's dispatcher consumes.
type Policy = step.Policy

// Orchestrator drives blocks against the committed parent state. One
// Orchestrator is reused across blocks, its parent advancing to each
// committed snapshot; the per-block collaborators (Deps, Applier) are built
// fresh inside ProcessBlock, per spec §4.4's per-block cache scoping.
type Orchestrator struct {
	Logger   *slog.Logger
	Version  uint32
	Policy   Policy
	FeeTable fees.Table
	// MinimumBalancePreCheckVersion gates STEP's stage-6 prefunded-balance
	// pre-check (config.MinimumBalancePreCheckVersion); New defaults it to
	// the version that introduced the check.
	MinimumBalancePreCheckVersion uint32

	parent *state.Manager
}

// New constructs an Orchestrator over the given committed ledger, fee table,
// protocol version, and admission policy.
func New(parent *state.Manager, feeTable fees.Table, version uint32, policy Policy, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Logger: logger, Version: version, Policy: policy, FeeTable: feeTable, MinimumBalancePreCheckVersion: 1, parent: parent}
}

// BlockResult summarizes the outcome of ProcessBlock.
type BlockResult struct {
	Results     []TransitionResult
	ValidCount  int
	PaidCount   int
	UnpaidCount int
	Root        common.Hash
}

// ProcessBlock runs every transition in txs through STEP and the Action
// Applier against an isolated snapshot of the parent ledger (spec §5: STEP
// holds one ledger transaction exclusively for the whole block). On success
// it commits the snapshot and returns the new root; on any fatal (Execution
// category) error it discards the snapshot untouched and returns the error,
// leaving the parent ledger exactly as it was (spec §7: no partial commit).
func (o *Orchestrator) ProcessBlock(ctx context.Context, info BlockInfo, txs []*wire.StateTransition) (BlockResult, error) {
	spanCtx, span := tracer.Start(ctx, "platform.step.block", trace.WithAttributes(
		attribute.Int64("platform.block.height", int64(info.Height)),
		attribute.Int("platform.block.transition_count", len(txs)),
	))
	defer span.End()

	snapshot, err := o.parent.Snapshot()
	if err != nil {
		return BlockResult{}, fmt.Errorf("snapshot ledger: %w", err)
	}

	deps := DepsFor(snapshot, o.FeeTable, o.Version, o.MinimumBalancePreCheckVersion)
	refunds := fees.NewRefundLedger()
	applier := apply.New(snapshot, deps.Identity, deps.Contracts, o.FeeTable, refunds)

	result := BlockResult{Results: make([]TransitionResult, 0, len(txs))}

	for i, tx := range txs {
		_, txSpan := tracer.Start(spanCtx, "platform.step.transition", trace.WithAttributes(
			attribute.Int("platform.transition.index", i),
			attribute.String("platform.transition.kind", tx.Kind.String()),
		))

		exCtx := execctx.New(false, false, info.Epoch)
		valResult, ferr := step.Validate(deps, o.Policy, tx, exCtx)
		if ferr != nil {
			txSpan.End()
			return BlockResult{}, fmt.Errorf("transition %d: fatal: %w", i, ferr)
		}

		txHash, herr := wire.Hash(tx)
		if herr != nil {
			txSpan.End()
			return BlockResult{}, fmt.Errorf("transition %d: hash: %w", i, herr)
		}

		tr := TransitionResult{Index: i}
		if valResult.IsValid() {
			ev := valResult.Data()
			ev.TransitionHash = txHash
			feeResult, aerr := applier.Apply(ev, exCtx, info.TimeMs)
			if aerr != nil {
				txSpan.End()
				return BlockResult{}, fmt.Errorf("transition %d: apply: %w", i, aerr)
			}
			tr.Bucket = BucketValid
			tr.Event = ev
			tr.FeeResult = feeResult
			result.ValidCount++
		} else {
			derr := valResult.Error()
			tr.DomainErr = derr
			if derr.Verdict == steperr.VerdictPaid && valResult.HasData() {
				// Billable failure: execute the synthetic bump-nonce event so
				// the payer is charged for the work performed and the nonce
				// advances (spec §7 verdict 2).
				ev := valResult.Data()
				feeResult, aerr := applier.Apply(ev, exCtx, info.TimeMs)
				if aerr != nil {
					txSpan.End()
					return BlockResult{}, fmt.Errorf("transition %d: apply bump: %w", i, aerr)
				}
				tr.Event = ev
				tr.FeeResult = feeResult
				tr.Bucket = BucketInvalidPaid
				result.PaidCount++
			} else {
				tr.Bucket = BucketInvalidUnpaid
				result.UnpaidCount++
			}
		}

		metrics().transitions.WithLabelValues(tr.Bucket.String()).Inc()
		txSpan.SetAttributes(attribute.String("platform.transition.bucket", tr.Bucket.String()))
		txSpan.End()
		result.Results = append(result.Results, tr)
	}

	metrics().blockSize.Observe(float64(len(txs)))

	root, err := snapshot.Commit(o.parent.Root(), info.Height)
	if err != nil {
		return BlockResult{}, fmt.Errorf("commit block %d: %w", info.Height, err)
	}
	result.Root = root
	o.parent = snapshot

	o.Logger.Info("platform block processed",
		"height", info.Height,
		"valid", result.ValidCount,
		"invalid_paid", result.PaidCount,
		"invalid_unpaid", result.UnpaidCount,
		"root", root.Hex(),
	)

	return result, nil
}

// Ledger returns the orchestrator's current committed ledger, for callers
// that need to read post-block state (RPC, the next block's parent).
func (o *Orchestrator) Ledger() *state.Manager { return o.parent }

// DepsFor builds the step.Deps wiring over a ledger manager. ProcessBlock
// uses it against the per-block snapshot; the mempool pre-screen uses it
// against the committed parent (check_tx is advisory, so a slightly stale
// view is acceptable — spec §4.8).
func DepsFor(m *state.Manager, table fees.Table, version uint32, minBalancePreCheckVersion uint32) step.Deps {
	return step.Deps{
		Identity:                      identity.NewStore(m),
		Contracts:                     contracts.NewRegistry(m, fees.ContractFeeQuoter{Table: table}),
		Documents:                     apply.DocumentLedgerAdapter{Manager: m},
		Prefunded:                     m,
		FeeTable:                      table,
		Version:                       version,
		MinimumBalancePreCheckVersion: minBalancePreCheckVersion,
	}
}
