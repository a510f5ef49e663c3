package state

import (
	"errors"
	"fmt"
)

// RejectReason identifies why a submission was refused. Rejections are
// expected outcomes of mining races; they are counted, never fatal.
type RejectReason string

// Set of known rejection reasons.
const (
	ReasonUnknownParent  RejectReason = "unknown-parent"
	ReasonWrongHeight    RejectReason = "wrong-height"
	ReasonInvalidPoW     RejectReason = "invalid-pow"
	ReasonDuplicateBlock RejectReason = "duplicate-block"
)

// RejectError is returned from SubmitBlock when a submission fails one of
// the admission checks.
type RejectError struct {
	Reason RejectReason
	Err    error
}

// newReject constructs a RejectError for the specified reason.
func newReject(reason RejectReason, format string, args ...any) *RejectError {
	return &RejectError{
		Reason: reason,
		Err:    fmt.Errorf(format, args...),
	}
}

// Error implements the error interface.
func (re *RejectError) Error() string {
	return re.Err.Error()
}

// GetReject extracts a RejectError from the error chain if one exists.
func GetReject(err error) *RejectError {
	var re *RejectError
	if !errors.As(err, &re) {
		return nil
	}
	return re
}
