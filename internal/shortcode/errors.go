package shortcode

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the concrete error types via errors.Is.
var (
	ErrValidation = errors.New("shortcode: validation failed")
	ErrProtocol   = errors.New("shortcode: unexpected provider response")
	ErrDelivery   = errors.New("shortcode: delivery failed")
)

// ValidationError reports a required request field that was left blank. The
// request never reaches the transport when this error is returned.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " cannot be blank"
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ProtocolError reports a provider reply that does not match the expected
// shape.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return e.Reason
}

// Is reports whether target is ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// DeliveryError reports a message part the provider refused to deliver.
type DeliveryError struct {
	Status    int
	ErrorText string
}

func (e *DeliveryError) Error() string {
	if e.ErrorText != "" {
		return fmt.Sprintf("unable to send sms message: %s - status %d", e.ErrorText, e.Status)
	}
	return fmt.Sprintf("unable to send sms message: status %d", e.Status)
}

// Is reports whether target is ErrDelivery.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

// Temporary reports whether the provider status denotes throttling or a
// provider-side fault that may clear on a later attempt.
func (e *DeliveryError) Temporary() bool {
	switch e.Status {
	case StatusThrottled, StatusInternalError, StatusCommunicationFailed:
		return true
	default:
		return false
	}
}
