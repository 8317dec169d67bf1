// Package bus implements messaging.Bus on watermill: an in-process gochannel bus
// for internal delivery, a NATS publisher for the external broker, a circuit
// breaker and a consumer router for in-process subscribers.
package bus

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"ytsoob/internal/messaging"
)

// Reserved watermill metadata keys. Every other metadata entry is an envelope header.
const (
	MetaMessageType = "message_type"
	MetaCreated     = "created"

	// HeaderTopic overrides the topic derived from the message type.
	HeaderTopic = "topic"
)

// DefaultTopicPrefix namespaces derived topics.
const DefaultTopicPrefix = "ytsoob"

// TopicFor returns the topic an envelope is published to: the topic header when set,
// otherwise prefix + "." + the last path element of the message type
// ("ytsoob/internal/modules/posts.PostCreated" -> "ytsoob.posts.PostCreated").
func TopicFor(prefix string, env *messaging.Envelope) string {
	if t := env.Header(HeaderTopic); t != "" {
		return t
	}
	name := path.Base(env.Metadata.MessageType)
	name = strings.NewReplacer(" ", "_", "*", "_", ">", "_").Replace(name)
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Publisher adapts a watermill publisher to messaging.Bus.
type Publisher struct {
	publisher message.Publisher
	codec     *messaging.Codec
	prefix    string

	mu     sync.RWMutex
	closed bool
}

var _ messaging.Bus = (*Publisher)(nil)

// NewPublisher wraps pub. An empty prefix publishes bare type names.
func NewPublisher(pub message.Publisher, codec *messaging.Codec, prefix string) *Publisher {
	return &Publisher{publisher: pub, codec: codec, prefix: prefix}
}

// ToMessage converts an envelope into a watermill message keyed by the envelope id.
func ToMessage(codec *messaging.Codec, env *messaging.Envelope) (*message.Message, error) {
	payload, err := codec.MarshalPayload(env)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(env.Metadata.ID.String(), payload)
	for k, v := range env.Headers {
		msg.Metadata.Set(k, v)
	}
	msg.Metadata.Set(MetaMessageType, env.Metadata.MessageType)
	msg.Metadata.Set(MetaCreated, env.Metadata.Created.UTC().Format(time.RFC3339Nano))
	// JetStream deduplicates on Nats-Msg-Id
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	return msg, nil
}

// Publish implements messaging.Bus.
func (p *Publisher) Publish(ctx context.Context, env *messaging.Envelope) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := ToMessage(p.codec, env)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)

	topic := TopicFor(p.prefix, env)
	done := make(chan error, 1)
	go func() { done <- p.publisher.Publish(topic, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish %s to %s: %w", env.Metadata.ID, topic, err)
		}
		return nil
	case <-ctx.Done():
		// the message may still arrive later; consumers dedupe through the inbox
		return fmt.Errorf("publish %s to %s: %w", env.Metadata.ID, topic, ctx.Err())
	}
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
