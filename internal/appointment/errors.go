package appointment

import "errors"

var (
	ErrSlotUnavailable        = errors.New("slot unavailable")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrAppointmentNotFound    = errors.New("appointment not found")
	ErrPatientNotFound        = errors.New("patient not found")
	ErrExternalEventUnmatched = errors.New("external event does not match an appointment")
	ErrInvalidBooking         = errors.New("invalid booking request")

	// errStaleStatus means a compare-and-set lost to a concurrent writer
	errStaleStatus = errors.New("appointment status changed concurrently")
)

// Unprocessable reports external-event errors that redelivery cannot fix
func Unprocessable(err error) bool {
	return errors.Is(err, ErrExternalEventUnmatched) || errors.Is(err, ErrInvalidTransition)
}
