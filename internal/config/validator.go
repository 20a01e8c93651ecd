package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// MinSecretLength is the shortest relay secret accepted
const MinSecretLength = 16

var channelPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateBaseURL validates the REST backend URL
func (v *Validator) ValidateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("api base URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid api base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api base URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("api base URL has no host")
	}
	return nil
}

// ValidateRelayURL validates the websocket relay URL tabs dial
func (v *Validator) ValidateRelayURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("relay URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("relay URL must use ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("relay URL has no host")
	}
	return nil
}

// ValidateSecret validates a relay shared secret
func (v *Validator) ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("relay secret cannot be empty")
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("relay secret too short (min %d characters)", MinSecretLength)
	}
	return nil
}

// ValidateChannel validates a broadcast channel name
func (v *Validator) ValidateChannel(name string) error {
	if !channelPattern.MatchString(name) {
		return fmt.Errorf("invalid broadcast channel name: %q", name)
	}
	return nil
}

// ValidateStorageDriver validates the storage driver name
func (v *Validator) ValidateStorageDriver(driver string) error {
	if driver == "" {
		return nil // Use default
	}

	validDrivers := []string{"memory", "file", "sqlite"}
	for _, valid := range validDrivers {
		if driver == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid storage driver: %s (must be one of: %s)", driver, strings.Join(validDrivers, ", "))
}

// ValidateInactivityTimeout validates the auto-logout timeout in seconds
func (v *Validator) ValidateInactivityTimeout(seconds int) error {
	if seconds < 60 {
		return fmt.Errorf("inactivity timeout must be at least 60 seconds, got %d", seconds)
	}
	if seconds > 24*60*60 {
		return fmt.Errorf("inactivity timeout too large (max 86400), got %d", seconds)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateListenAddr validates a relay listen host and port
func (v *Validator) ValidateListenAddr(host string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("relay port out of range: %d", port)
	}
	if host == "" {
		return nil
	}
	if net.ParseIP(host) == nil && host != "localhost" {
		return fmt.Errorf("relay host must be an IP address or localhost, got %q", host)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateBaseURL(cfg.API.BaseURL); err != nil {
		errors = append(errors, err)
	}
	if cfg.API.Timeout < 0 {
		errors = append(errors, fmt.Errorf("api.timeout must be >= 0"))
	}
	if cfg.API.CacheTTL < 0 {
		errors = append(errors, fmt.Errorf("api.cache_ttl must be >= 0"))
	}

	if err := v.ValidateStorageDriver(cfg.Storage.Driver); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateChannel(cfg.Broadcast.Channel); err != nil {
		errors = append(errors, err)
	}
	if cfg.Broadcast.Mode == BroadcastRelay {
		if err := v.ValidateRelayURL(cfg.Broadcast.RelayURL); err != nil {
			errors = append(errors, err)
		}
		if err := v.ValidateSecret(cfg.Broadcast.Secret); err != nil {
			errors = append(errors, fmt.Errorf("broadcast: %w", err))
		}
	}
	if cfg.Broadcast.BufferSize < 0 {
		errors = append(errors, fmt.Errorf("broadcast.buffer_size must be >= 0"))
	}

	if err := v.ValidateInactivityTimeout(cfg.Session.InactivityTimeout); err != nil {
		errors = append(errors, err)
	}

	if cfg.Relay.SharedSecret != "" {
		if err := v.ValidateSecret(cfg.Relay.SharedSecret); err != nil {
			errors = append(errors, fmt.Errorf("relay: %w", err))
		}
	}
	if err := v.ValidateListenAddr(cfg.Relay.Host, cfg.Relay.Port); err != nil {
		errors = append(errors, err)
	}
	if cfg.Relay.FramesPerMinute < 0 {
		errors = append(errors, fmt.Errorf("relay.frames_per_minute must be >= 0"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
