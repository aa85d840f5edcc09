// Package config provides configuration management for the relay service.
package config

import (
	"time"
)

// ServerConfig holds the runtime configuration of the relay service: the
// HTTP authoring API, the database, the NATS change feed, and channel
// behavior.
type ServerConfig struct {
	Host string
	Port int

	DatabaseURL string

	NATSURL       string
	SubjectPrefix string
	FeedBuffer    int

	ChannelTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		DatabaseURL:    "sqlite://relay.db",
		NATSURL:        "nats://127.0.0.1:4222",
		SubjectPrefix:  "cdc",
		FeedBuffer:     256,
		ChannelTimeout: 10 * time.Second,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}
