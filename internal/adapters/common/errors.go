package common

import (
	"errors"
	"fmt"
)

// Classification sentinels attached to adapter errors.
var (
	ErrTransient = errors.New("transient error")
	ErrPermanent = errors.New("permanent error")
)

// WrapTransient marks err as retryable. The original error stays reachable
// through errors.Is and errors.As.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// WrapPermanent marks err as not retryable.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}
