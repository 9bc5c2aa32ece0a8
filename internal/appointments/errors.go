package appointments

import (
	"errors"
	"fmt"
)

// RejectionReason identifies why a booking request was turned away.
type RejectionReason string

const (
	ReasonHoliday           RejectionReason = "holiday"
	ReasonDoctorUnavailable RejectionReason = "doctor_unavailable"
	ReasonDuplicatePhone    RejectionReason = "duplicate_phone"
	ReasonDuplicateName     RejectionReason = "duplicate_name"
	ReasonSlotTaken         RejectionReason = "slot_taken"
)

// RejectionError is a business-rule rejection of a booking request. It is
// distinct from transport or store failures: the request was understood and
// refused.
type RejectionError struct {
	Reason  RejectionReason
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("appointments: booking rejected (%s): %s", e.Reason, e.Message)
}

func reject(reason RejectionReason, message string) *RejectionError {
	return &RejectionError{Reason: reason, Message: message}
}

// AsRejection unwraps a RejectionError from err, if present.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// ErrNotFound indicates the requested appointment does not exist.
var ErrNotFound = errors.New("appointments: not found")

// ErrInvalidTransition indicates a status change the state machine forbids.
var ErrInvalidTransition = errors.New("appointments: invalid status transition")
