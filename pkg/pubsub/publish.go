package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

const defaultPublishTimeout = 15 * time.Second

// TopicPublisher wraps a v2 publisher handle with a blocking JSON publish.
// Callers that need raw message control use Client.Publisher directly.
type TopicPublisher struct {
	pub     *pubsub.Publisher
	timeout time.Duration
}

// ManagementEvents returns a blocking publisher for the management broadcast
// channel.
func (c *Client) ManagementEvents() *TopicPublisher {
	return &TopicPublisher{pub: c.ManagementPublisher(), timeout: defaultPublishTimeout}
}

// RealtimePush returns a blocking publisher for the per-connection push
// channel.
func (c *Client) RealtimePush() *TopicPublisher {
	return &TopicPublisher{pub: c.RealtimePublisher(), timeout: defaultPublishTimeout}
}

// PublishJSON marshals the payload and waits for the publish to be accepted
// by the broker.
func (p *TopicPublisher) PublishJSON(ctx context.Context, payload any, attributes map[string]string) error {
	if p == nil || p.pub == nil {
		return errors.New("publisher not initialized")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := p.pub.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	_, err = result.Get(ctx)
	return err
}
