package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/strangerlink/match-signaling-service/config"
)

// NewPublisher builds the lifecycle-event publisher. With an AMQP DSN
// configured it publishes to a durable topic exchange; without one it falls
// back to watermill's in-process bus so the rest of the wiring stays the same
// in dev and tests.
func NewPublisher(cfg *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if cfg.Events.AMQPDSN == "" {
		return gochannel.NewGoChannel(gochannel.Config{}, logger), nil
	}

	amqpCfg := amqp.NewDurablePubSubConfig(cfg.Events.AMQPDSN, nil)
	amqpCfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return cfg.Events.Exchange },
		Type:         "topic",
		Durable:      true,
	}
	amqpCfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }

	pub, err := amqp.NewPublisher(amqpCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: %w", err)
	}
	return pub, nil
}
