package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration with CLI flag > environment > config file >
// default precedence. Environment variables use the RELAY_ prefix with dots
// replaced by underscores (server.port -> RELAY_SERVER_PORT).
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	defaults := DefaultServerConfig()
	v.SetDefault("server.host", defaults.Host)
	v.SetDefault("server.port", defaults.Port)
	v.SetDefault("database.url", defaults.DatabaseURL)
	v.SetDefault("feed.nats_url", defaults.NATSURL)
	v.SetDefault("feed.subject_prefix", defaults.SubjectPrefix)
	v.SetDefault("feed.buffer", defaults.FeedBuffer)
	v.SetDefault("channels.timeout", defaults.ChannelTimeout.String())
	v.SetDefault("log.level", defaults.LogLevel)
	v.SetDefault("log.format", defaults.LogFormat)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		DatabaseURL:    v.GetString("database.url"),
		NATSURL:        v.GetString("feed.nats_url"),
		SubjectPrefix:  v.GetString("feed.subject_prefix"),
		FeedBuffer:     v.GetInt("feed.buffer"),
		ChannelTimeout: v.GetDuration("channels.timeout"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required")
	}
	if cfg.FeedBuffer <= 0 {
		return fmt.Errorf("feed buffer must be positive, got %d", cfg.FeedBuffer)
	}
	if cfg.ChannelTimeout <= 0 {
		return fmt.Errorf("channel timeout must be positive, got %v", cfg.ChannelTimeout)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}
