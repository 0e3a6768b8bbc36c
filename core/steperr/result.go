package steperr

// ConsensusValidationResult is the envelope every STEP stage returns: either
// success carrying a data payload, or a classified DomainError. Fatal
// internal errors are never carried here — those propagate as a second Go
// `error` return value and abort the block (spec §7).
type ConsensusValidationResult[T any] struct {
	ok      bool
	hasData bool
	data    T
	err     *DomainError
}

// Ok constructs a successful result.
func Ok[T any](data T) ConsensusValidationResult[T] {
	return ConsensusValidationResult[T]{ok: true, hasData: true, data: data}
}

// Err constructs a failed result carrying a classified DomainError.
func Err[T any](err *DomainError) ConsensusValidationResult[T] {
	return ConsensusValidationResult[T]{ok: false, err: err}
}

// ErrWithData constructs a failed result that still carries a data payload:
// the synthetic bump-nonce action a PaidError ships alongside its error so
// the payer is billed and the nonce advances even though the intended
// mutation never runs (spec §7, design note §9).
func ErrWithData[T any](err *DomainError, data T) ConsensusValidationResult[T] {
	return ConsensusValidationResult[T]{ok: false, hasData: true, data: data, err: err}
}

// IsValid reports whether the result succeeded.
func (r ConsensusValidationResult[T]) IsValid() bool { return r.ok }

// Data returns the carried payload: the success value, or the synthetic
// action attached to a paid failure via ErrWithData.
func (r ConsensusValidationResult[T]) Data() T { return r.data }

// HasData reports whether Data carries a meaningful payload. True for every
// successful result and for paid failures constructed with ErrWithData.
func (r ConsensusValidationResult[T]) HasData() bool { return r.hasData }

// Error returns the classified error; nil when IsValid is true.
func (r ConsensusValidationResult[T]) Error() *DomainError { return r.err }

// Verdict returns the classification of a failed result, or VerdictPaid as a
// harmless default for successful results (callers should not inspect
// Verdict without first checking IsValid).
func (r ConsensusValidationResult[T]) Verdict() Verdict {
	if r.err == nil {
		return VerdictPaid
	}
	return r.err.Verdict
}
