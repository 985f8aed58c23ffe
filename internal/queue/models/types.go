package models

import "errors"

// ProcessingError tells the consumer loop how to settle a delivery that
// failed.
type ProcessingError struct {
	Err     error
	Requeue bool
}

func (p ProcessingError) Error() string {
	return p.Err.Error()
}

func (p ProcessingError) Unwrap() error {
	return p.Err
}

// Reject wraps err as a failure that must not be redelivered.
func Reject(err error) error {
	return ProcessingError{Err: err, Requeue: false}
}

// Retry wraps err as a failure worth redelivering.
func Retry(err error) error {
	return ProcessingError{Err: err, Requeue: true}
}

// ShouldRequeue reports whether err asks for redelivery.
func ShouldRequeue(err error) bool {
	var procErr ProcessingError
	if errors.As(err, &procErr) {
		return procErr.Requeue
	}
	return false
}
