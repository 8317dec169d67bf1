package messaging

import (
	"context"
	"fmt"

	"ytsoob/internal/core/id"
)

// DeliveryType selects the bus an outbox record is dispatched to.
type DeliveryType string

const (
	// DeliveryInternal delivers to in-process subscribers.
	DeliveryInternal DeliveryType = "internal"
	// DeliveryOutbox delivers to the external broker.
	DeliveryOutbox DeliveryType = "outbox"
)

// Valid reports whether d is a known delivery type.
func (d DeliveryType) Valid() bool {
	return d == DeliveryInternal || d == DeliveryOutbox
}

// ParseDeliveryType converts a stored value into a DeliveryType.
func ParseDeliveryType(s string) (DeliveryType, error) {
	d := DeliveryType(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDeliveryType, s)
	}
	return d, nil
}

// Bus publishes envelopes. A nil error is a broker acknowledgement.
type Bus interface {
	Publish(ctx context.Context, env *Envelope) error
}

// BusFunc adapts a function to Bus.
type BusFunc func(ctx context.Context, env *Envelope) error

// Publish implements Bus.
func (f BusFunc) Publish(ctx context.Context, env *Envelope) error {
	return f(ctx, env)
}

// Handler consumes one delivered envelope.
type Handler func(ctx context.Context, env *Envelope) error

// Router resolves the bus for a delivery type.
type Router interface {
	Route(d DeliveryType) (Bus, error)
}

// Routes is a static Router.
type Routes map[DeliveryType]Bus

// Route implements Router. Unknown or unbound types yield ErrUnknownDeliveryType.
func (r Routes) Route(d DeliveryType) (Bus, error) {
	bus, ok := r[d]
	if !ok || bus == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeliveryType, d)
	}
	return bus, nil
}

// Inbox records which messages a consumer has already handled.
type Inbox interface {
	// MarkConsumed returns true the first time consumer sees messageID.
	MarkConsumed(ctx context.Context, consumer string, messageID id.ID) (bool, error)
}
