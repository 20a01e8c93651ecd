package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Config represents the main ticketdesk configuration
type Config struct {
	// REST backend
	API APIConfig `json:"api" mapstructure:"api"`

	// Durable credential storage
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Tab broadcast channel
	Broadcast BroadcastConfig `json:"broadcast" mapstructure:"broadcast"`

	// Session coordinator
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Broadcast relay server
	Relay RelayConfig `json:"relay" mapstructure:"relay"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// APIConfig holds REST client configuration
type APIConfig struct {
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
	Timeout  int    `json:"timeout" mapstructure:"timeout"`     // seconds
	CacheTTL int    `json:"cache_ttl" mapstructure:"cache_ttl"` // seconds
}

// StorageConfig selects the credential storage driver
type StorageConfig struct {
	Driver string `json:"driver" mapstructure:"driver"` // memory, file, sqlite
	Path   string `json:"path" mapstructure:"path"`
	Origin string `json:"origin" mapstructure:"origin"`
}

// BroadcastConfig selects how tabs reach each other
type BroadcastConfig struct {
	Mode       string `json:"mode" mapstructure:"mode"` // relay, local
	RelayURL   string `json:"relay_url" mapstructure:"relay_url"`
	Channel    string `json:"channel" mapstructure:"channel"`
	Secret     string `json:"secret" mapstructure:"secret"`
	BufferSize int    `json:"buffer_size" mapstructure:"buffer_size"`
}

// SessionConfig holds coordinator settings
type SessionConfig struct {
	InactivityTimeout int `json:"inactivity_timeout" mapstructure:"inactivity_timeout"` // seconds
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Console   bool   `json:"console" mapstructure:"console"`
}

// RelayConfig holds broadcast relay server configuration
type RelayConfig struct {
	Port            int    `json:"port" mapstructure:"port"`
	Host            string `json:"host" mapstructure:"host"`
	SharedSecret    string `json:"shared_secret" mapstructure:"shared_secret"`
	FramesPerMinute int    `json:"frames_per_minute" mapstructure:"frames_per_minute"`
	AuditLog        string `json:"audit_log" mapstructure:"audit_log"`
}

// Broadcast modes
const (
	BroadcastRelay = "relay"
	BroadcastLocal = "local"
)

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  "https://system-gestion-ticket-backend.onrender.com/api/v1",
			Timeout:  30,
			CacheTTL: 30,
		},
		Storage: StorageConfig{
			Driver: "file",
			Origin: "ticketdesk",
		},
		Broadcast: BroadcastConfig{
			Mode:       BroadcastRelay,
			RelayURL:   "ws://127.0.0.1:8787",
			Channel:    "ticketdesk",
			BufferSize: 64,
		},
		Session: SessionConfig{
			InactivityTimeout: 15 * 60,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
			Console:   false,
		},
		Relay: RelayConfig{
			Port:            8787,
			Host:            "127.0.0.1",
			FramesPerMinute: 120,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// InactivityTimeout returns the session timeout as a duration
func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.Session.InactivityTimeout) * time.Second
}

// APITimeout returns the HTTP timeout as a duration
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

// CacheTTL returns the query cache TTL as a duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.API.CacheTTL) * time.Second
}

// RelayAddr returns the relay listen address
func (c *Config) RelayAddr() string {
	return fmt.Sprintf("%s:%d", c.Relay.Host, c.Relay.Port)
}

// Validate checks the settings a client tab cannot run without
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("invalid api base_url: %w", err)
	}

	switch c.Storage.Driver {
	case "", "memory", "file", "sqlite":
	default:
		return fmt.Errorf("invalid storage driver: %s", c.Storage.Driver)
	}

	switch c.Broadcast.Mode {
	case BroadcastLocal:
	case BroadcastRelay:
		if c.Broadcast.RelayURL == "" {
			return fmt.Errorf("broadcast relay_url is required in relay mode")
		}
		if c.Broadcast.Secret == "" {
			return fmt.Errorf("broadcast secret is required in relay mode")
		}
	default:
		return fmt.Errorf("invalid broadcast mode: %s", c.Broadcast.Mode)
	}

	if c.Session.InactivityTimeout <= 0 {
		return fmt.Errorf("session inactivity_timeout must be positive")
	}

	return nil
}
