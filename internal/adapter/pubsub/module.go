package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewPublisher,
		NewEventDispatcher,
	),
	fx.Invoke(func(lc fx.Lifecycle, pub message.Publisher) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return pub.Close()
			},
		})
	}),
)
