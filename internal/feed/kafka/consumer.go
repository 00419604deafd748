package kafka

import (
	"context"
	"log/slog"

	"github.com/IBM/sarama"

	"filmtorget/internal/feed"
)

// Consumer reads the change-feed topic and replays every insert event into
// the local hub, which fans it out to this instance's live subscribers.
// Keying by conversation id upstream keeps per-conversation commit order.
type Consumer struct {
	group  sarama.ConsumerGroup
	hub    feed.Publisher
	logger *slog.Logger
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, hub feed.Publisher, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: group, hub: hub, logger: logger}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	handler := groupHandler{hub: c.hub, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, topics, handler); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	hub    feed.Publisher
	logger *slog.Logger
}

func (h groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		event, err := feed.DecodeEvent(message.Value)
		if err != nil {
			// malformed payloads are skipped, not retried
			if h.logger != nil {
				h.logger.Error("change feed payload decode failed", "error", err, "offset", message.Offset)
			}
			sess.MarkMessage(message, "")
			continue
		}
		if err := h.hub.Publish(sess.Context(), event); err != nil {
			continue
		}
		sess.MarkMessage(message, "")
	}
	return nil
}
