package core

import (
	"errors"
	"strings"
)

// Reason classifies why an operation was rejected.
type Reason string

const (
	ReasonNotFound         Reason = "not_found"
	ReasonNotOwned         Reason = "not_owned"
	ReasonInvalidReference Reason = "invalid_reference"
	ReasonValidation       Reason = "validation"
	ReasonConflict         Reason = "conflict"
	ReasonStoreFailure     Reason = "store_failure"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotOwned         = errors.New("not owned by caller")
	ErrInvalidReference = errors.New("invalid reference")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrStoreFailure     = errors.New("store failure")
)

var reasonSentinels = map[Reason]error{
	ReasonNotFound:         ErrNotFound,
	ReasonNotOwned:         ErrNotOwned,
	ReasonInvalidReference: ErrInvalidReference,
	ReasonValidation:       ErrValidation,
	ReasonConflict:         ErrConflict,
	ReasonStoreFailure:     ErrStoreFailure,
}

// RejectedError is the single failure outcome of domain operations. Callers
// branch on Reason; errors.Is matches the sentinel of the reason.
type RejectedError struct {
	Reason Reason
	Entity string
	ID     string
	Err    error
}

func (e *RejectedError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Reason))
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.ID != "" {
			b.WriteString(" ")
			b.WriteString(e.ID)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RejectedError) Unwrap() error { return e.Err }

func (e *RejectedError) Is(target error) bool {
	return reasonSentinels[e.Reason] == target
}

func NotFound(entity, id string) error {
	return &RejectedError{Reason: ReasonNotFound, Entity: entity, ID: id}
}

func NotOwned(entity, id string) error {
	return &RejectedError{Reason: ReasonNotOwned, Entity: entity, ID: id}
}

func InvalidReference(entity, id string) error {
	return &RejectedError{Reason: ReasonInvalidReference, Entity: entity, ID: id}
}

func Conflict(entity, id string, err error) error {
	return &RejectedError{Reason: ReasonConflict, Entity: entity, ID: id, Err: err}
}

// Invalid wraps a validation error.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return &RejectedError{Reason: ReasonValidation, Err: err}
}

// StoreFailure classifies err as a storage failure unless it already
// carries a reason.
func StoreFailure(err error) error {
	if err == nil || ReasonOf(err) != "" {
		return err
	}
	return &RejectedError{Reason: ReasonStoreFailure, Err: err}
}

// ReasonOf returns the reason carried by err, or "" if err is not a
// rejection.
func ReasonOf(err error) Reason {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

// IsNotFound reports whether err should be shown to a caller as "not found".
// Ownership failures are deliberately indistinguishable.
func IsNotFound(err error) bool {
	r := ReasonOf(err)
	return r == ReasonNotFound || r == ReasonNotOwned
}
