package service

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			NewMatchService,
			fx.As(new(Matchmaker)),
		),
	),

	// Intercept the Matchmaker to add cross-cutting concerns.
	fx.Decorate(func(orig Matchmaker, logger *slog.Logger) Matchmaker {
		return &MatchmakerMiddleware{
			Next:   orig,
			Logger: logger,
		}
	}),

	fx.Invoke(func(lc fx.Lifecycle, m Matchmaker, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				st := m.Stats()
				logger.Info("matching engine stopped",
					"connections", st.Connections,
					"waiting", st.Waiting,
					"paired", st.Paired,
					"uptime", st.Uptime.String(),
				)
				return nil
			},
		})
	}),
)
