package bus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"ytsoob/internal/messaging"
)

// InProcess is the internal bus: publish and subscribe within one process.
// Messages published while no subscriber is attached are dropped. Publish
// returns only after every subscriber acked, bounded by the publish context.
type InProcess struct {
	*Publisher
	channel *gochannel.GoChannel
}

// NewInProcess creates a gochannel-backed bus.
func NewInProcess(codec *messaging.Codec, logger watermill.LoggerAdapter) *InProcess {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
	return &InProcess{
		Publisher: NewPublisher(ch, codec, DefaultTopicPrefix),
		channel:   ch,
	}
}

// Subscriber exposes the subscribing side for consumer routers.
func (b *InProcess) Subscriber() message.Subscriber {
	return b.channel
}
