package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the match-signaling service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	WS       WSConfig       `mapstructure:"ws"`
	Matching MatchingConfig `mapstructure:"matching"`
	Events   EventsConfig   `mapstructure:"events"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	v *viper.Viper
}

// ServerConfig contains network level settings for the HTTP/WebSocket listener.
type ServerConfig struct {
	BindAddress   string        `mapstructure:"bind_address"`
	ListenPort    int           `mapstructure:"listen_port"`
	AllowedOrigin string        `mapstructure:"allowed_origin"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
}

// WSConfig controls per-connection transport behaviour.
type WSConfig struct {
	SendBufferSize int           `mapstructure:"send_buffer_size"`
	MaxFrameBytes  int64         `mapstructure:"max_frame_bytes"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
}

// MatchingConfig tunes the pairing engine.
type MatchingConfig struct {
	// RematchCooldown blocks re-forming a pair that just ended.
	// Zero disables the cooldown and keeps strict FIFO scan semantics.
	RematchCooldown time.Duration `mapstructure:"rematch_cooldown"`
	// RecentPairCacheSize bounds the memory used for cooldown tracking.
	RecentPairCacheSize int `mapstructure:"recent_pair_cache_size"`
}

// EventsConfig controls the session-lifecycle event export.
type EventsConfig struct {
	Exchange string `mapstructure:"exchange"`
	// AMQPDSN enables the RabbitMQ publisher. Empty keeps the in-process bus.
	AMQPDSN string `mapstructure:"amqp_dsn"`
}

// LoggingConfig controls slog level/encoding.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// LoadConfig reads configuration from defaults, an optional YAML file and
// MATCH_* environment variables. An empty path falls back to the default
// search locations.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.listen_port", 8080)
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("ws.send_buffer_size", 64)
	v.SetDefault("ws.max_frame_bytes", int64(64<<10))
	v.SetDefault("ws.send_timeout", 500*time.Millisecond)
	v.SetDefault("ws.ping_interval", 40*time.Second)
	v.SetDefault("ws.pong_wait", 60*time.Second)

	v.SetDefault("matching.rematch_cooldown", time.Duration(0))
	v.SetDefault("matching.recent_pair_cache_size", 4096)

	v.SetDefault("events.exchange", "match_signal.events")
	v.SetDefault("events.amqp_dsn", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("match-signaling")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("MATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// The file is optional unless the operator named one explicitly.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && path != "" {
			return nil, fmt.Errorf("config read: %w", err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.ListenPort <= 0 || c.Server.ListenPort > 65535 {
		return fmt.Errorf("config: invalid listen_port %d", c.Server.ListenPort)
	}
	if c.WS.SendBufferSize <= 0 {
		c.WS.SendBufferSize = 64
	}
	if c.WS.MaxFrameBytes <= 0 {
		c.WS.MaxFrameBytes = 64 << 10
	}
	if c.Matching.RecentPairCacheSize <= 0 {
		c.Matching.RecentPairCacheSize = 4096
	}
	return nil
}

// Watch re-reads the config file on change and applies the log level live.
// Only the logging level is hot-reloadable; everything else requires a restart.
func (c *Config) Watch(logger *slog.Logger, level *slog.LevelVar) {
	if c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		lvl, err := ParseLevel(c.v.GetString("logging.level"))
		if err != nil {
			logger.Warn("config reload: bad logging level", "err", err, "file", e.Name)
			return
		}
		level.Set(lvl)
		logger.Info("config reloaded", "file", e.Name, "logging_level", lvl.String())
	})
	c.v.WatchConfig()
}

// ParseLevel maps a config string onto an slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
}
