// Package event provides the event-driven backbone of the store backend:
// the versioned envelope contract, the payload schema registry, and the
// publish/subscribe bus that fans mutations out to notification consumers.
//
// The envelope is the only contract shared between producers and consumers.
// Producers never hand language-level types to a subscriber; they encode a
// payload under a registered event type and publish the resulting envelope.
// Consumers decode it back through the same registry, so both sides can
// evolve independently as long as the schema stays compatible.
package event

import (
	"encoding/json"
	"time"
)

// Type tags an envelope with the kind of event it carries.
type Type string

// Event types published by the store backend.
const (
	ProductCreated Type = "PRODUCT_CREATED"
	ProductUpdated Type = "PRODUCT_UPDATED"
	ProductDeleted Type = "PRODUCT_DELETED"
	OrderCreated   Type = "ORDER_CREATED"
	OrderDeleted   Type = "ORDER_DELETED"
)

// Envelope is the wire form of a published event. Data holds the payload
// document JSON-encoded as a string, keyed by the schema registered for
// EventType. OccurredAt is stamped once at encode time (unix milliseconds)
// and travels with the envelope so redeliveries observe the original
// publish instant.
type Envelope struct {
	EventType  Type   `json:"eventType"`
	Data       string `json:"data"`
	OccurredAt int64  `json:"occurredAt,omitempty"`
}

// OccurredTime returns OccurredAt as a time.Time.
// Zero OccurredAt yields the zero time.
func (e Envelope) OccurredTime() time.Time {
	if e.OccurredAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.OccurredAt)
}

// OrderEvent is the canonical payload for ORDER_CREATED and ORDER_DELETED.
// Immutable once built.
type OrderEvent struct {
	Email        string        `json:"email"`
	OrderID      string        `json:"orderId"`
	Billing      OrderBilling  `json:"billing"`
	Shipping     OrderShipping `json:"shipping"`
	ProductCodes []string      `json:"productCodes"`
	RequestID    string        `json:"requestId"`
}

// OrderBilling carries the payment summary of an order event.
type OrderBilling struct {
	Payment    string  `json:"payment"`
	TotalPrice float64 `json:"totalPrice"`
}

// OrderShipping carries the shipping selection of an order event.
type OrderShipping struct {
	Type    string `json:"type"`
	Carrier string `json:"carrier"`
}

// ProductEvent is the canonical payload for the PRODUCT_* event types.
// Immutable once built.
type ProductEvent struct {
	Email        string  `json:"email"`
	EventType    Type    `json:"eventType"`
	ProductID    string  `json:"productId"`
	ProductCode  string  `json:"productCode"`
	ProductPrice float64 `json:"productPrice"`
	RequestID    string  `json:"requestId"`
}

// Encode wraps a payload in an Envelope under the given event type using
// the registry's schema. It fails with ErrUnknownEventType if the type has
// no registered schema.
func (r *Registry) Encode(eventType Type, payload any) (Envelope, error) {
	if !r.Has(eventType) {
		return Envelope{}, &EnvelopeError{EventType: eventType, Err: ErrUnknownEventType}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, &EnvelopeError{EventType: eventType, Err: ErrMalformedPayload, Cause: err}
	}

	return Envelope{
		EventType:  eventType,
		Data:       string(data),
		OccurredAt: time.Now().UnixMilli(),
	}, nil
}

// Decode parses an envelope's data under the schema registered for its
// event type. It returns ErrUnknownEventType for unregistered types and
// ErrMalformedPayload when the bytes do not parse under the schema; in
// both cases no partially populated payload is returned.
func (r *Registry) Decode(env Envelope) (any, error) {
	schema, ok := r.Get(env.EventType)
	if !ok {
		return nil, &EnvelopeError{EventType: env.EventType, Err: ErrUnknownEventType}
	}

	payload := schema.New()
	if err := json.Unmarshal([]byte(env.Data), payload); err != nil {
		return nil, &EnvelopeError{EventType: env.EventType, Err: ErrMalformedPayload, Cause: err}
	}

	return payload, nil
}
