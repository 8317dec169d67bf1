package messaging

import (
	"errors"
)

var (
	// ErrSerialization marks a payload that cannot be encoded or decoded.
	ErrSerialization = errors.New("message serialization failed")

	// ErrUnknownDeliveryType marks a record with a delivery type no bus serves.
	ErrUnknownDeliveryType = errors.New("unknown delivery type")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err must park the message instead of retrying it.
// Serialization and unknown-delivery-type errors are always permanent.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	return errors.As(err, &pe) ||
		errors.Is(err, ErrSerialization) ||
		errors.Is(err, ErrUnknownDeliveryType)
}
