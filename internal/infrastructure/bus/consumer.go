package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"ytsoob/internal/core/id"
	"ytsoob/internal/messaging"
)

// Handler consumes one envelope. Returning an error nacks the message.
type Handler = messaging.Handler

// ConsumerConfig configures the consumer router.
type ConsumerConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// DefaultConsumerConfig returns production defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
	}
}

type consumerSpec struct {
	name    string
	topic   string
	handler Handler
}

// Consumers runs in-process subscribers on a watermill router.
// Serve makes it a suture.Service; every Serve builds a fresh router so the
// supervisor can restart it.
type Consumers struct {
	cfg        ConsumerConfig
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
	prefix     string
	specs      []consumerSpec

	running     chan struct{}
	runningOnce sync.Once
}

// NewConsumers creates a consumer set over subscriber.
func NewConsumers(cfg ConsumerConfig, subscriber message.Subscriber, logger watermill.LoggerAdapter) *Consumers {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Consumers{
		cfg:        cfg,
		subscriber: subscriber,
		logger:     logger,
		prefix:     DefaultTopicPrefix,
		running:    make(chan struct{}),
	}
}

// On subscribes handler to the topic derived from the sample payload's type.
// Must be called before Serve.
func (c *Consumers) On(name string, sample any, handler Handler) {
	c.specs = append(c.specs, consumerSpec{
		name:    name,
		topic:   TopicFor(c.prefix, messaging.NewEnvelope(sample)),
		handler: handler,
	})
}

// Serve runs the router until ctx is cancelled.
func (c *Consumers) Serve(ctx context.Context) error {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: c.cfg.CloseTimeout}, c.logger)
	if err != nil {
		return fmt.Errorf("create watermill router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      c.cfg.RetryMaxRetries,
		InitialInterval: c.cfg.RetryInitialInterval,
		MaxInterval:     c.cfg.RetryMaxInterval,
		Multiplier:      2.0,
		Logger:          c.logger,
	}
	router.AddMiddleware(retry.Middleware)

	for _, spec := range c.specs {
		handler := spec.handler
		router.AddConsumerHandler(spec.name, spec.topic, c.subscriber, func(msg *message.Message) error {
			env, err := FromMessage(msg)
			if err != nil {
				c.logger.Error("dropping undecodable message", err, watermill.LogFields{"uuid": msg.UUID})
				return nil
			}
			return handler(msg.Context(), env)
		})
	}

	go func() {
		select {
		case <-router.Running():
			c.markRunning()
		case <-ctx.Done():
		}
	}()
	return router.Run(ctx)
}

func (c *Consumers) markRunning() {
	c.runningOnce.Do(func() { close(c.running) })
}

// Running is closed once the first router has subscribed all handlers.
func (c *Consumers) Running() <-chan struct{} {
	return c.running
}

// FromMessage rebuilds an envelope from a watermill message.
// The payload stays raw JSON.
func FromMessage(msg *message.Message) (*messaging.Envelope, error) {
	msgID, err := id.Parse(msg.UUID)
	if err != nil {
		return nil, fmt.Errorf("%w: message id %q: %v", messaging.ErrSerialization, msg.UUID, err)
	}
	env := &messaging.Envelope{
		Payload: json.RawMessage(msg.Payload),
		Headers: make(map[string]string, len(msg.Metadata)),
		Metadata: messaging.Metadata{
			ID:          msgID,
			MessageType: msg.Metadata.Get(MetaMessageType),
		},
	}
	if created := msg.Metadata.Get(MetaCreated); created != "" {
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			env.Metadata.Created = t
		}
	}
	for k, v := range msg.Metadata {
		switch k {
		case MetaMessageType, MetaCreated, natsgo.MsgIdHdr:
			continue
		}
		env.Headers[k] = v
	}
	return env, nil
}
