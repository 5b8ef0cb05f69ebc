package config

type Config struct {
	Trends TrendsConfig `mapstructure:"trends"`
	Server ServerConfig `mapstructure:"server"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Logger LoggerConfig `mapstructure:"logger"`
}

// TrendsConfig configures the upstream trends client. Retries and backoff
// belong to the collaborator, not the batch runner.
type TrendsConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	Locale        string  `mapstructure:"locale"`
	TimeoutMs     int     `mapstructure:"timeout_ms"`
	Retries       int     `mapstructure:"retries"`
	BackoffFactor float64 `mapstructure:"backoff_factor"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type CacheConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

type Manager interface {
	Load(configPath string) (*Config, error)
	GetConfig() *Config
}
