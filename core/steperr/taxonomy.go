// Package steperr defines the closed error taxonomy and paid/unpaid verdict
// classification from spec §7, plus the ConsensusValidationResult envelope
// STEP's stages return.
package steperr

import "fmt"

// Verdict classifies whether a failed transition bills its payer.
type Verdict byte

const (
	// VerdictUnpaid means the block must exclude the transition; there is no
	// identity to bill or billing would be structurally impossible.
	VerdictUnpaid Verdict = iota
	// VerdictPaid means the payer is billed for work performed and the
	// block remains valid.
	VerdictPaid
)

func (v Verdict) String() string {
	if v == VerdictPaid {
		return "paid"
	}
	return "unpaid"
}

// Category is the closed taxonomy of domain error kinds from spec §7.
type Category string

const (
	CategorySignature  Category = "SignatureError"
	CategoryBasic      Category = "BasicError"
	CategoryState      Category = "StateError"
	CategoryExecution  Category = "Execution"
)

// Code enumerates the concrete error codes spec §7 names, grouped by
// Category. Values are stable across protocol versions.
type Code string

const (
	// SignatureError codes.
	CodeIdentityNotFound   Code = "IdentityNotFound"
	CodeWrongPurpose       Code = "WrongPurpose"
	CodeWrongSecurityLevel Code = "WrongSecurityLevel"
	CodeInvalidSignature   Code = "InvalidSignature"

	// BasicError codes.
	CodeSerializedObjectParsing       Code = "SerializedObjectParsing"
	CodeInvalidDocumentType           Code = "InvalidDocumentType"
	CodeDataContractNotPresent        Code = "DataContractNotPresent"
	CodeAssetLockOutpointAlreadyExists Code = "AssetLockOutpointAlreadyExists"
	CodeNonceMismatch                 Code = "NonceMismatch"

	// StateError codes.
	CodeDocumentNotFound                   Code = "DocumentNotFound"
	CodeDocumentOwnerIDMismatch             Code = "DocumentOwnerIdMismatch"
	CodeInvalidDocumentRevision             Code = "InvalidDocumentRevision"
	CodeDocumentNotForSale                  Code = "DocumentNotForSale"
	CodeDocumentIncorrectPurchasePrice      Code = "DocumentIncorrectPurchasePrice"
	CodeIdentityDoesNotHaveEnoughTokenBalance Code = "IdentityDoesNotHaveEnoughTokenBalance"
	CodeIdentityDoesNotHaveEnoughBalance     Code = "IdentityDoesNotHaveEnoughBalance"
	CodeDocumentImmutable                    Code = "DocumentImmutable"
	CodeDocumentNotDeletable                 Code = "DocumentNotDeletable"
	CodeUniqueIndexViolation                 Code = "UniqueIndexViolation"
	CodeAssetLockOutpointReserved            Code = "AssetLockOutpointReserved"

	// Execution codes — always fatal (Err, not a domain verdict).
	CodeCorruptedCodeExecution Code = "CorruptedCodeExecution"
	CodeUnknownVersionMismatch Code = "UnknownVersionMismatch"
)

// categoryVerdict is the default verdict for a category absent a
// finer-grained override; stages may still force VerdictUnpaid explicitly
// (e.g. a BasicError encountered before a payer could be resolved).
var categoryVerdict = map[Category]Verdict{
	CategorySignature: VerdictUnpaid,
	CategoryBasic:     VerdictUnpaid,
	CategoryState:     VerdictPaid,
}

// DomainError is a classified, billable-or-not consensus error. It is
// distinct from a Go `error` returned for internal corruption (Execution
// codes), which callers must treat as fatal and abort the block over.
type DomainError struct {
	Category Category
	Code     Code
	Verdict  Verdict
	Detail   string
	Wrapped  error
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s.%s: %s", e.Category, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s.%s", e.Category, e.Code)
}

func (e *DomainError) Unwrap() error { return e.Wrapped }

// New builds a DomainError, defaulting the verdict from the category;
// NewWithVerdict sets the verdict explicitly.
func New(category Category, code Code, detail string, wrapped error) *DomainError {
	return &DomainError{Category: category, Code: code, Verdict: categoryVerdict[category], Detail: detail, Wrapped: wrapped}
}

// NewWithVerdict builds a DomainError with an explicit verdict override,
// used when the same code is paid in one stage and unpaid in another (e.g.
// a StateError encountered before a payer is resolvable).
func NewWithVerdict(category Category, code Code, verdict Verdict, detail string, wrapped error) *DomainError {
	return &DomainError{Category: category, Code: code, Verdict: verdict, Detail: detail, Wrapped: wrapped}
}

// Fatal wraps an internal corruption condition (Execution category). Fatal
// errors are never billable; they abort the enclosing block.
func Fatal(code Code, detail string, wrapped error) error {
	return fmt.Errorf("%s.%s: %s: %w", CategoryExecution, code, detail, wrapped)
}
