package config

import (
	"fmt"
	"strings"

	env "github.com/Netflix/go-env"
)

// Config aggregates every tunable of the relay server. Values come
// from the environment, optionally seeded from a .env file by main.
type Config struct {
	Server ServerConfig
	Relay  RelayConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT,default=3001"`

	// Addr is derived from Port by Load.
	Addr string
}

// RelayConfig bounds the in-memory state of the hub.
type RelayConfig struct {
	// HistoryLimit caps how many chat messages stay in memory.
	HistoryLimit int `env:"HISTORY_LIMIT,default=1000"`
	// ReplayCount is how many recent messages a joining client receives.
	ReplayCount int `env:"HISTORY_REPLAY,default=50"`
	// APIHistoryMax clamps the limit parameter of the history endpoint.
	APIHistoryMax int `env:"API_HISTORY_MAX,default=100"`
	// SendQueueSize buffers outbound frames per connection; a client
	// that falls this far behind starts losing frames.
	SendQueueSize int `env:"SEND_QUEUE_SIZE,default=256"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	addr, err := listenAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if cfg.Relay.HistoryLimit <= 0 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", cfg.Relay.HistoryLimit)
	}
	if cfg.Relay.ReplayCount <= 0 || cfg.Relay.ReplayCount > cfg.Relay.HistoryLimit {
		return nil, fmt.Errorf("HISTORY_REPLAY must be within 1..%d, got %d", cfg.Relay.HistoryLimit, cfg.Relay.ReplayCount)
	}
	if cfg.Relay.APIHistoryMax <= 0 || cfg.Relay.APIHistoryMax > 100 {
		return nil, fmt.Errorf("API_HISTORY_MAX must be within 1..100, got %d", cfg.Relay.APIHistoryMax)
	}
	if cfg.Relay.SendQueueSize <= 0 {
		return nil, fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", cfg.Relay.SendQueueSize)
	}

	return &cfg, nil
}

// listenAddr turns a PORT value into a listen address. Both bare ports
// ("3001") and full addresses (":3001", "127.0.0.1:3001") are accepted.
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		return "", fmt.Errorf("PORT must not be empty")
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}
