package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the envelope layer. Both are fatal to the single
// delivery that hit them: there is no payload to retry with.
var (
	// ErrUnknownEventType indicates an event type with no registered schema.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrMalformedPayload indicates envelope data that does not parse under
	// the schema registered for its event type.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrBusClosed indicates an operation on a closed bus.
	ErrBusClosed = errors.New("event bus closed")
)

// EnvelopeError wraps an envelope codec failure with the event type that
// triggered it.
type EnvelopeError struct {
	EventType Type
	Err       error
	Cause     error
}

func (e *EnvelopeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("envelope %s: %v: %v", e.EventType, e.Err, e.Cause)
	}
	return fmt.Sprintf("envelope %s: %v", e.EventType, e.Err)
}

// Unwrap exposes the sentinel so errors.Is works on wrapped failures.
func (e *EnvelopeError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is an envelope-layer failure that no
// amount of redelivery can fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnknownEventType) || errors.Is(err, ErrMalformedPayload)
}
