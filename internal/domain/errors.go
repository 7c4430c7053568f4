package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrTokenNotFound         = errors.New("magic link not found")
	ErrTokenExpired          = errors.New("magic link expired")
	ErrDuplicateToken        = errors.New("magic link id already exists")
	ErrUnsupportedChannel    = errors.New("unsupported channel")
	ErrMalformedNotification = errors.New("malformed payment notification")
	ErrSignatureMismatch     = errors.New("payment notification signature mismatch")
	ErrDelivery              = errors.New("delivery failed")
	ErrDispatch              = errors.New("workflow dispatch failed")
	ErrRecordNotFound        = errors.New("dispatch record not found")
)

// DeliveryError reports a failed send on one channel. It matches ErrDelivery
// and unwraps to the provider error.
type DeliveryError struct {
	Channel Channel
	Contact string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s to %q: %v", e.Channel, e.Contact, e.Err)
}

func (e *DeliveryError) Unwrap() []error { return []error{ErrDelivery, e.Err} }

// DispatchError reports a rejected or failed workflow trigger. HTTPStatus is 0
// when no response was received.
type DispatchError struct {
	PaymentReference string
	HTTPStatus       int
	Err              error
}

func (e *DispatchError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("trigger filing for %s: status %d: %v", e.PaymentReference, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("trigger filing for %s: %v", e.PaymentReference, e.Err)
}

func (e *DispatchError) Unwrap() []error { return []error{ErrDispatch, e.Err} }
