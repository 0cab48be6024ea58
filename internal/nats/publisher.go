package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing bot traffic to JetStream.
type Publisher struct {
	js jetstream.Publisher
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.Publisher) *Publisher {
	return &Publisher{js: js}
}

// PublishInboundMessage hands a received chat message to the bot bridge.
func (p *Publisher) PublishInboundMessage(ctx context.Context, msg InboundMessage) error {
	return p.publish(ctx, SubjectInboundMessage, msg)
}

// PublishOutboundMessage queues a reply for XMPP delivery.
func (p *Publisher) PublishOutboundMessage(ctx context.Context, msg OutboundMessage) error {
	return p.publish(ctx, SubjectOutboundMessage, msg)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	var opts []jetstream.PublishOpt
	if id := msgID(data); id != "" {
		opts = append(opts, jetstream.WithMsgID(id))
	}
	if _, err := p.js.Publish(ctx, subject, payload, opts...); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// msgID enables JetStream de-duplication of retried publishes.
func msgID(data any) string {
	switch m := data.(type) {
	case InboundMessage:
		return m.ID
	case OutboundMessage:
		return m.ID
	}
	return ""
}
