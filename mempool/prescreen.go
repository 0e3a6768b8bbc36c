// Package mempool implements the check_tx pre-screen (spec §4.8): a thinner
// STEP variant run before gossip/mempool admission. It is advisory only —
// proposers re-run the full pipeline — so it may additionally rate-limit
// callers without affecting consensus.
package mempool

import (
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"platformchain/core/execctx"
	"platformchain/core/fees"
	"platformchain/core/step"
	"platformchain/core/steperr"
	"platformchain/core/wire"
)

// Verdict is the admission decision for a submitted transition.
type Verdict byte

const (
	// VerdictAdmit means the transition passed the pre-screen and may be
	// gossiped; FeePreview estimates what STEP will charge.
	VerdictAdmit Verdict = iota
	// VerdictReject means the pre-screen classified the transition as
	// unpaid-invalid; it must not enter the mempool.
	VerdictReject
	// VerdictThrottled means the submitting identity exceeded its
	// submission rate and should retry later. Not a consensus outcome.
	VerdictThrottled
)

func (v Verdict) String() string {
	switch v {
	case VerdictAdmit:
		return "admit"
	case VerdictReject:
		return "reject"
	case VerdictThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// CheckResult is the pre-screen outcome handed back to the submitting
// surface.
type CheckResult struct {
	Verdict    Verdict
	FeePreview fees.FeeResult
	DomainErr  *steperr.DomainError
}

// Prescreen wraps STEP's check_tx mode with a per-identity submission rate
// limit, following the same token-bucket quota posture the teacher applies
// to its gateway surfaces.
type Prescreen struct {
	deps   step.Deps
	policy step.Policy
	epoch  uint64

	mu       sync.Mutex
	limiters map[[32]byte]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewPrescreen constructs a Prescreen admitting up to perSecond submissions
// per identity with the given burst. A zero perSecond disables rate
// limiting.
func NewPrescreen(deps step.Deps, policy step.Policy, epoch uint64, perSecond float64, burst int) *Prescreen {
	return &Prescreen{
		deps:     deps,
		policy:   policy,
		epoch:    epoch,
		limiters: make(map[[32]byte]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (p *Prescreen) limiterFor(id [32]byte) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.limiters[id]
	if !ok {
		lim = rate.NewLimiter(p.rate, p.burst)
		p.limiters[id] = lim
	}
	return lim
}

// submitterOf extracts the identity a submission is throttled under; the
// zero id (IdentityCreate, unresolvable payloads) shares one global bucket.
func submitterOf(tx *wire.StateTransition) [32]byte {
	switch tx.Kind {
	case wire.KindIdentityTopUp:
		return tx.IdentityTopUp.IdentityID
	case wire.KindIdentityUpdate:
		return tx.IdentityUpdate.IdentityID
	case wire.KindIdentityCreditTransfer:
		return tx.IdentityCreditTransfer.FromIdentityID
	case wire.KindIdentityCreditWithdrawal:
		return tx.IdentityCreditWithdrawal.IdentityID
	case wire.KindDataContractCreate:
		return tx.DataContractCreate.OwnerID
	case wire.KindBatch:
		return tx.Batch.OwnerID
	case wire.KindMasternodeVote:
		return tx.MasternodeVote.VoterIdentityID
	default:
		return [32]byte{}
	}
}

// Check runs the pre-screen over raw wire bytes: decode, throttle, then
// stages 1-6 of STEP (stage 8 too for Batch). A paid-invalid outcome still
// admits — the transition is billable and the block stays valid, so
// excluding it from gossip would let a mistake escape its fee (spec §8:
// check_tx valid implies STEP never returns UnpaidConsensusError).
func (p *Prescreen) Check(raw []byte) (CheckResult, error) {
	tx, err := wire.Decode(raw)
	if err != nil {
		return CheckResult{
			Verdict:   VerdictReject,
			DomainErr: steperr.New(steperr.CategoryBasic, steperr.CodeSerializedObjectParsing, err.Error(), err),
		}, nil
	}

	if p.rate > 0 {
		if !p.limiterFor(submitterOf(tx)).Allow() {
			return CheckResult{Verdict: VerdictThrottled}, nil
		}
	}

	ctx := execctx.New(true, false, p.epoch)
	result, ferr := step.CheckTx(p.deps, p.policy, tx, ctx)
	if ferr != nil {
		return CheckResult{}, fmt.Errorf("mempool: check_tx: %w", ferr)
	}

	preview := ctx.Quote(p.deps.FeeTable)
	if result.IsValid() {
		return CheckResult{Verdict: VerdictAdmit, FeePreview: preview}, nil
	}
	derr := result.Error()
	if derr.Verdict == steperr.VerdictPaid {
		return CheckResult{Verdict: VerdictAdmit, FeePreview: preview, DomainErr: derr}, nil
	}
	return CheckResult{Verdict: VerdictReject, DomainErr: derr}, nil
}
