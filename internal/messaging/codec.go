package messaging

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// DefaultCompressThreshold is the encoded size above which payloads are zstd-compressed.
const DefaultCompressThreshold = 10 * 1024

// Codec encodes envelopes for the outbox table and the wire.
// Decoded payloads are json.RawMessage; consumers unmarshal into their own types.
type Codec struct {
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewCodec creates a codec. A threshold <= 0 disables compression.
func NewCodec(compressThreshold int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: compressThreshold,
	}, nil
}

// MustCodec is NewCodec that panics, for wiring and tests.
func MustCodec(compressThreshold int) *Codec {
	c, err := NewCodec(compressThreshold)
	if err != nil {
		panic(err)
	}
	return c
}

// Marshal encodes env. Any failure wraps ErrSerialization.
func (c *Codec) Marshal(env *Envelope) (data []byte, compressed bool, err error) {
	if env == nil {
		return nil, false, fmt.Errorf("%w: nil envelope", ErrSerialization)
	}
	data, err = json.Marshal(env)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrSerialization, env.Metadata.MessageType, err)
	}
	if c.compressThreshold > 0 && len(data) > c.compressThreshold {
		return c.encoder.EncodeAll(data, nil), true, nil
	}
	return data, false, nil
}

// MarshalPayload encodes only the payload, for bus bodies.
func (c *Codec) MarshalPayload(env *Envelope) ([]byte, error) {
	if raw, ok := env.Payload.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSerialization, env.Metadata.MessageType, err)
	}
	return data, nil
}

type wireEnvelope struct {
	Payload  json.RawMessage   `json:"payload"`
	Headers  map[string]string `json:"headers,omitempty"`
	Metadata Metadata          `json:"metadata"`
}

// Unmarshal decodes data produced by Marshal.
func (c *Codec) Unmarshal(data []byte, compressed bool) (*Envelope, error) {
	if compressed {
		plain, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrSerialization, err)
		}
		data = plain
	}
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return &Envelope{
		Payload:  w.Payload,
		Headers:  w.Headers,
		Metadata: w.Metadata,
	}, nil
}

// DecodePayload unmarshals env's payload into dst. Raw JSON payloads (as
// produced by Unmarshal) are decoded directly; typed payloads are re-encoded.
func DecodePayload(env *Envelope, dst any) error {
	var raw []byte
	switch p := env.Payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		raw = b
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", ErrSerialization, env.Metadata.MessageType, err)
	}
	return nil
}
