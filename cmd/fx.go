package cmd

import (
	"github.com/strangerlink/match-signaling-service/config"
	httpsrv "github.com/strangerlink/match-signaling-service/infra/server/http"
	"github.com/strangerlink/match-signaling-service/internal/adapter/pubsub"
	"github.com/strangerlink/match-signaling-service/internal/domain/registry"
	"github.com/strangerlink/match-signaling-service/internal/handler/ws"
	"github.com/strangerlink/match-signaling-service/internal/service"
	"go.uber.org/fx"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		fx.Invoke(WatchConfig),
		registry.Module,
		service.Module,
		pubsub.Module,
		ws.Module,
		httpsrv.Module,
	)
}
