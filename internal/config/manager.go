package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"trends-go/pkg/trends"
)

type manager struct {
	mu     sync.RWMutex
	config *Config
	viper  *viper.Viper
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

// Load reads the optional YAML config file and environment overrides
// (prefix TRENDS). An empty path yields the built-in defaults.
func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setDefaults()

	m.viper.SetEnvPrefix("TRENDS")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	if configPath != "" {
		m.viper.SetConfigFile(configPath)
		if err := m.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := m.validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m.config = &config
	return &config, nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) setDefaults() {
	m.viper.SetDefault("trends.base_url", trends.DefaultBaseURL)
	m.viper.SetDefault("trends.locale", trends.DefaultLocale)
	m.viper.SetDefault("trends.timeout_ms", 30000)
	m.viper.SetDefault("trends.retries", trends.DefaultRetries)
	m.viper.SetDefault("trends.backoff_factor", trends.DefaultBackoffFactor)

	m.viper.SetDefault("server.host", "127.0.0.1")
	m.viper.SetDefault("server.port", 8080)

	m.viper.SetDefault("cache.max_entries", 256)
	m.viper.SetDefault("cache.ttl_seconds", 600)

	m.viper.SetDefault("logger.level", "info")
	m.viper.SetDefault("logger.format", "json")
	m.viper.SetDefault("logger.output", "stderr")
}

func (m *manager) validateConfig(config *Config) error {
	if config.Trends.BaseURL == "" {
		return fmt.Errorf("trends base_url cannot be empty")
	}

	if config.Trends.Retries < 0 {
		return fmt.Errorf("trends retries cannot be negative")
	}

	if config.Trends.BackoffFactor < 0 {
		return fmt.Errorf("trends backoff_factor cannot be negative")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be positive")
	}

	return nil
}
