// Package messaging defines the message envelope, delivery types, the bus contract
// and the wire codec shared by the outbox and the bus implementations.
package messaging

import (
	"reflect"
	"time"

	"ytsoob/internal/core/id"
)

// Metadata identifies a message. Consumers deduplicate on ID.
type Metadata struct {
	ID          id.ID     `json:"id"`
	Created     time.Time `json:"created"`
	MessageType string    `json:"messageType"`
}

// Envelope is a business event plus delivery metadata.
type Envelope struct {
	Payload  any               `json:"payload"`
	Headers  map[string]string `json:"headers,omitempty"`
	Metadata Metadata          `json:"metadata"`
}

// EnvelopeOption configures a new envelope.
type EnvelopeOption func(*Envelope)

// WithHeader sets a header.
func WithHeader(key, value string) EnvelopeOption {
	return func(e *Envelope) {
		e.SetHeader(key, value)
	}
}

// WithMessageType overrides the type name derived from the payload.
func WithMessageType(messageType string) EnvelopeOption {
	return func(e *Envelope) {
		e.Metadata.MessageType = messageType
	}
}

// WithID sets an explicit message id, e.g. when re-wrapping an existing message.
func WithID(msgID id.ID) EnvelopeOption {
	return func(e *Envelope) {
		e.Metadata.ID = msgID
	}
}

// NewEnvelope wraps payload with a fresh UUIDv7 id, the current time and the
// payload's full type name.
func NewEnvelope(payload any, opts ...EnvelopeOption) *Envelope {
	e := &Envelope{
		Payload: payload,
		Headers: make(map[string]string),
		Metadata: Metadata{
			ID:          id.New(),
			Created:     time.Now().UTC(),
			MessageType: MessageTypeOf(payload),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetHeader sets a header, allocating the map when needed.
func (e *Envelope) SetHeader(key, value string) {
	if e.Headers == nil {
		e.Headers = make(map[string]string)
	}
	e.Headers[key] = value
}

// Header returns a header value.
func (e *Envelope) Header(key string) string {
	return e.Headers[key]
}

// MessageTypeOf returns the fully qualified type name of v ("pkg/path.Type").
// Pointers are dereferenced; unnamed types fall back to their literal form.
func MessageTypeOf(v any) string {
	if v == nil {
		return ""
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
