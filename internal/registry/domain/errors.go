package domain

import (
	"errors"
	"fmt"

	"github.com/zjrosen/cbconfig/internal/schema"
)

// Kind classifies registry errors so callers can map them to exit codes or
// HTTP statuses without matching on message text.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindDuplicateName       Kind = "DUPLICATE_NAME"
	KindNotFound            Kind = "NOT_FOUND"
	KindAllocationExhausted Kind = "ALLOCATION_EXHAUSTED"
	KindConsistencyFault    Kind = "CONSISTENCY_FAULT"
	KindIOFailure           Kind = "IO_FAILURE"
	KindInternal            Kind = "INTERNAL"
)

// Kinded is implemented by every registry error.
type Kinded interface {
	error
	Kind() Kind
}

// KindOf returns the Kind of the first registry error in err's chain, or
// KindInternal when there is none. A schema validation error counts as
// KindValidation even when not wrapped.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	return KindInternal
}

// ValidationError means the submitted content is not a valid document.
// Nothing was changed.
type ValidationError struct {
	Identifier Identifier // zero on create
	Cause      *schema.ValidationError
}

func (e *ValidationError) Error() string {
	if e.Identifier != 0 {
		return fmt.Sprintf("configuration %s: %v", e.Identifier, e.Cause)
	}
	return e.Cause.Error()
}

func (e *ValidationError) Unwrap() error { return e.Cause }
func (e *ValidationError) Kind() Kind    { return KindValidation }

// FieldErrors exposes the per-field problems.
func (e *ValidationError) FieldErrors() []schema.FieldError {
	if e.Cause == nil {
		return nil
	}
	return e.Cause.FieldErrors
}

// DuplicateNameError means another live record already uses Name.
// Nothing was changed.
type DuplicateNameError struct {
	Name     string
	Existing Identifier
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("logical name %q is already used by configuration %s", e.Name, e.Existing)
}

func (e *DuplicateNameError) Kind() Kind { return KindDuplicateName }

// NotFoundError means no live record matches. Either Identifier or Name is
// set depending on how the lookup was made.
type NotFoundError struct {
	Identifier Identifier
	Name       string
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("configuration named %q not found", e.Name)
	}
	return fmt.Sprintf("configuration %s not found", e.Identifier)
}

func (e *NotFoundError) Kind() Kind { return KindNotFound }

// AllocationExhaustedError means every six-digit identifier has been handed
// out. Existing records are unaffected.
type AllocationExhaustedError struct {
	AllocatedMax int
}

func (e *AllocationExhaustedError) Error() string {
	return fmt.Sprintf("identifier space exhausted: %d of %d identifiers allocated", e.AllocatedMax, MaxIdentifier)
}

func (e *AllocationExhaustedError) Kind() Kind { return KindAllocationExhausted }

// ConsistencyFaultError means the catalog and the directory disagree about
// a record, for instance a catalog row whose file was removed by hand.
type ConsistencyFaultError struct {
	Fault Fault
}

func (e *ConsistencyFaultError) Error() string {
	return "consistency fault: " + e.Fault.String()
}

func (e *ConsistencyFaultError) Unwrap() error { return e.Fault.Cause }
func (e *ConsistencyFaultError) Kind() Kind    { return KindConsistencyFault }

// IOFailureError means a disk or catalog operation failed. The operation was
// rolled back; a failed create still consumes its identifier.
type IOFailureError struct {
	Op         string
	Path       string
	Identifier Identifier
	Cause      error
}

func (e *IOFailureError) Error() string {
	switch {
	case e.Path != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
	case e.Identifier != 0:
		return fmt.Sprintf("%s configuration %s: %v", e.Op, e.Identifier, e.Cause)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
}

func (e *IOFailureError) Unwrap() error { return e.Cause }
func (e *IOFailureError) Kind() Kind    { return KindIOFailure }
