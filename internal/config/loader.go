package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TICKETDESK_API_BASE_URL
const EnvPrefix = "TICKETDESK"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file, then applies environment
// overrides. A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.path()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, DefaultConfig())

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(configPath)
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "ticketdesk.log")
	}
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Driver {
		case "sqlite":
			cfg.Storage.Path = filepath.Join(cfg.DataDir, "storage.db")
		default:
			cfg.Storage.Path = filepath.Join(cfg.DataDir, "storage")
		}
	}
	if cfg.Relay.AuditLog == "" {
		cfg.Relay.AuditLog = filepath.Join(cfg.DataDir, "relay-audit.jsonl")
	}

	return cfg, nil
}

// bindDefaults registers every key so AutomaticEnv can override keys
// absent from the file
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.cache_ttl", cfg.API.CacheTTL)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.origin", cfg.Storage.Origin)
	v.SetDefault("broadcast.mode", cfg.Broadcast.Mode)
	v.SetDefault("broadcast.relay_url", cfg.Broadcast.RelayURL)
	v.SetDefault("broadcast.channel", cfg.Broadcast.Channel)
	v.SetDefault("broadcast.secret", cfg.Broadcast.Secret)
	v.SetDefault("broadcast.buffer_size", cfg.Broadcast.BufferSize)
	v.SetDefault("session.inactivity_timeout", cfg.Session.InactivityTimeout)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("relay.port", cfg.Relay.Port)
	v.SetDefault("relay.host", cfg.Relay.Host)
	v.SetDefault("relay.shared_secret", cfg.Relay.SharedSecret)
	v.SetDefault("relay.frames_per_minute", cfg.Relay.FramesPerMinute)
	v.SetDefault("relay.audit_log", cfg.Relay.AuditLog)
	v.SetDefault("data_dir", cfg.DataDir)
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.path()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("api", cfg.API)
	v.Set("storage", cfg.Storage)
	v.Set("broadcast", cfg.Broadcast)
	v.Set("session", cfg.Session)
	v.Set("logging", cfg.Logging)
	v.Set("relay", cfg.Relay)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	// the file holds shared secrets
	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("failed to restrict config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	path, err := l.path()
	if err != nil {
		return ""
	}
	return path
}

func (l *Loader) path() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ticketdesk", "ticketdesk.json"), nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
