package domain

import "errors"

// Error kinds surfaced at the request boundary. Every rule error below
// unwraps to exactly one of them.
var (
	ErrNotFound            = errors.New("not found")
	ErrNotPermitted        = errors.New("not permitted")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrDuplicateAllocation = errors.New("duplicate allocation")
	ErrValidation          = errors.New("validation failed")
)

// Error is a rule violation with a stable message and a kind.
type Error struct {
	kind error
	msg  string
}

// NewError builds a rule error of the given kind.
func NewError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Unwrap exposes the kind so errors.Is(err, ErrNotFound) works.
func (e *Error) Unwrap() error { return e.kind }

// Kind returns the error kind.
func (e *Error) Kind() error { return e.kind }

// Rule errors.
var (
	ErrProjectNotFound           = NewError(ErrNotFound, "project not found")
	ErrMemberNotFound            = NewError(ErrNotFound, "member not found")
	ErrAllocationNotFound        = NewError(ErrNotFound, "member is not allocated to this project")
	ErrMemberAssociationNotFound = NewError(ErrNotFound, "member association not found")
	ErrMemberFetchFailed         = NewError(ErrNotFound, "member not found in identity source")
	ErrOccupationMissing         = NewError(ErrNotFound, "occupation is required")
	ErrOccupationNotPermitted    = NewError(ErrNotFound, "occupation not allowed")
	ErrContractMissing           = NewError(ErrNotFound, "employment contract is required")
	ErrContractNotPermitted      = NewError(ErrNotFound, "employment contract not allowed")

	ErrStatusTransition    = NewError(ErrNotPermitted, "project status not allowed")
	ErrProjectNotDeletable = NewError(ErrNotPermitted, "deletion not allowed for project in current status")
	ErrMemberInUse         = NewError(ErrNotPermitted, "member is referenced by projects")

	ErrProjectCapacityExceeded = NewError(ErrCapacityExceeded, "maximum number of members exceeded for project")
	ErrMemberActiveLimit       = NewError(ErrCapacityExceeded, "member already allocated to the maximum number of active projects")

	ErrMemberAlreadyAllocated = NewError(ErrDuplicateAllocation, "member is already assigned to this project")

	ErrExternalIDTaken     = NewError(ErrValidation, "member external id already registered")
	ErrExternalIDImmutable = NewError(ErrValidation, "member external id is immutable")
	ErrAllocatedInFuture   = NewError(ErrValidation, "allocated date must not be in the future")
	ErrNegativeBudget      = NewError(ErrValidation, "total budget must not be negative")
	ErrUnknownStatus       = NewError(ErrValidation, "unknown project status")
)

// ValidationError reports malformed input with a field-specific message.
func ValidationError(msg string) error {
	return NewError(ErrValidation, msg)
}
