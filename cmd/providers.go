package cmd

import (
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/strangerlink/match-signaling-service/config"
)

// ProvideLogger builds the process-wide slog logger. The level lives in a
// LevelVar so a config reload can change it without a restart.
func ProvideLogger(cfg *config.Config) (*slog.Logger, *slog.LevelVar, error) {
	level := new(slog.LevelVar)
	lvl, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	level.Set(lvl)

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", ServiceName)
	slog.SetDefault(logger)
	return logger, level, nil
}

// ProvideWatermillLogger bridges the message bus logging onto slog.
func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

// WatchConfig enables the live log-level reload.
func WatchConfig(cfg *config.Config, logger *slog.Logger, level *slog.LevelVar) {
	cfg.Watch(logger, level)
}
