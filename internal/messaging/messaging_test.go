package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postCreated struct {
	PostID int64  `json:"postId"`
	Title  string `json:"title"`
}

func TestNewEnvelope_Metadata(t *testing.T) {
	env := NewEnvelope(&postCreated{PostID: 1}, WithHeader("source", "a"))

	assert.Equal(t, "ytsoob/internal/messaging.postCreated", env.Metadata.MessageType)
	assert.Equal(t, "a", env.Header("source"))
	assert.False(t, env.Metadata.Created.IsZero())
	assert.Equal(t, 7, int(env.Metadata.ID.Version()))

	other := NewEnvelope(postCreated{}, WithMessageType("posts.created"))
	assert.Equal(t, "posts.created", other.Metadata.MessageType)
	assert.NotEqual(t, env.Metadata.ID, other.Metadata.ID)
}

func TestMessageTypeOf_Builtins(t *testing.T) {
	assert.Equal(t, "string", MessageTypeOf("x"))
	assert.Equal(t, "map[string]int", MessageTypeOf(map[string]int{}))
	assert.Equal(t, "", MessageTypeOf(nil))
}

func TestParseDeliveryType(t *testing.T) {
	d, err := ParseDeliveryType("outbox")
	require.NoError(t, err)
	assert.Equal(t, DeliveryOutbox, d)

	_, err = ParseDeliveryType("carrier-pigeon")
	assert.ErrorIs(t, err, ErrUnknownDeliveryType)
	assert.True(t, IsPermanent(err))
}

func TestIsPermanent(t *testing.T) {
	transient := errors.New("connection refused")

	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(transient))
	assert.True(t, IsPermanent(Permanent(transient)))
	assert.True(t, IsPermanent(fmt.Errorf("publish: %w", Permanent(transient))))
	assert.True(t, IsPermanent(fmt.Errorf("encode: %w", ErrSerialization)))
	assert.ErrorIs(t, Permanent(transient), transient)
	assert.Nil(t, Permanent(nil))
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := MustCodec(0)
	env := NewEnvelope(postCreated{PostID: 7, Title: "hello"}, WithHeader("k", "v"))

	data, compressed, err := codec.Marshal(env)
	require.NoError(t, err)
	assert.False(t, compressed)

	got, err := codec.Unmarshal(data, compressed)
	require.NoError(t, err)
	assert.Equal(t, env.Metadata.ID, got.Metadata.ID)
	assert.Equal(t, env.Metadata.MessageType, got.Metadata.MessageType)
	assert.True(t, env.Metadata.Created.Equal(got.Metadata.Created))
	assert.Equal(t, "v", got.Header("k"))

	var payload postCreated
	require.NoError(t, json.Unmarshal(got.Payload.(json.RawMessage), &payload))
	assert.Equal(t, postCreated{PostID: 7, Title: "hello"}, payload)
}

func TestCodec_CompressesAboveThreshold(t *testing.T) {
	codec := MustCodec(64)
	env := NewEnvelope(postCreated{Title: strings.Repeat("a", 4096)})

	data, compressed, err := codec.Marshal(env)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Less(t, len(data), 4096)

	got, err := codec.Unmarshal(data, true)
	require.NoError(t, err)
	assert.Equal(t, env.Metadata.ID, got.Metadata.ID)
}

func TestCodec_SerializationFailureIsPermanent(t *testing.T) {
	codec := MustCodec(0)

	_, _, err := codec.Marshal(NewEnvelope(make(chan int)))
	require.ErrorIs(t, err, ErrSerialization)
	assert.True(t, IsPermanent(err))

	_, err = codec.Unmarshal([]byte("{not json"), false)
	assert.ErrorIs(t, err, ErrSerialization)

	_, err = codec.Unmarshal([]byte("garbage"), true)
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestBusFunc(t *testing.T) {
	var got *Envelope
	bus := BusFunc(func(ctx context.Context, env *Envelope) error {
		got = env
		return nil
	})
	env := NewEnvelope("x")
	require.NoError(t, bus.Publish(context.Background(), env))
	assert.Same(t, env, got)
}

func TestRoutes(t *testing.T) {
	internal := BusFunc(func(context.Context, *Envelope) error { return nil })
	routes := Routes{DeliveryInternal: internal}

	bus, err := routes.Route(DeliveryInternal)
	require.NoError(t, err)
	assert.NotNil(t, bus)

	_, err = routes.Route(DeliveryOutbox)
	assert.ErrorIs(t, err, ErrUnknownDeliveryType)
}

func TestDecodePayload(t *testing.T) {
	type ping struct {
		N int `json:"n"`
	}

	var got ping
	require.NoError(t, DecodePayload(&Envelope{Payload: json.RawMessage(`{"n":3}`)}, &got))
	assert.Equal(t, 3, got.N)

	got = ping{}
	require.NoError(t, DecodePayload(NewEnvelope(ping{N: 5}), &got))
	assert.Equal(t, 5, got.N)

	err := DecodePayload(&Envelope{Payload: json.RawMessage(`{`)}, &got)
	assert.ErrorIs(t, err, ErrSerialization)
	assert.True(t, IsPermanent(err))
}
