package httpsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"

	"github.com/strangerlink/match-signaling-service/config"
	"github.com/strangerlink/match-signaling-service/internal/handler/ws"
	"github.com/strangerlink/match-signaling-service/internal/service"
)

// NewRouter mounts the health probe, the diagnostics snapshot and the
// WebSocket endpoint. Every response carries no-cache directives.
func NewRouter(wsh *ws.WSHandler, matcher service.Matchmaker) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	// Liveness probe for orchestration. No authentication.
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("alive"))
	})

	r.Get("/debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(matcher.Stats())
	})

	r.Handle("/ws", wsh)

	return r
}

func NewServer(cfg *config.Config, r chi.Router) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.ListenPort)),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // long-lived WebSocket responses must not time out
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// Register binds the server to the fx lifecycle: listen synchronously so a
// bad port fails startup, serve in the background, drain on shutdown.
func Register(lc fx.Lifecycle, srv *http.Server, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			logger.Info("http server listening", "addr", srv.Addr)
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("http server failed", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("http server draining")
			return srv.Shutdown(ctx)
		},
	})
}
