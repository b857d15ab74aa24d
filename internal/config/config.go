package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Router    RouterConfig    `mapstructure:"router"`
	Backends  []BackendConfig `mapstructure:"backends"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Env         string   `mapstructure:"env"`
	AuthEnabled bool     `mapstructure:"auth_enabled"`
	APIKeys     []string `mapstructure:"api_keys"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RouterConfig holds the process-wide routing defaults.
// Per-request overrides live on the generation request.
type RouterConfig struct {
	DefaultStrategy   string        `mapstructure:"default_strategy"`
	EnableFallback    bool          `mapstructure:"enable_fallback"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
	TrackLatency      bool          `mapstructure:"track_latency"`
	WindowSize        int           `mapstructure:"window_size"`
	CheckAvailability bool          `mapstructure:"check_availability"`
	AvailabilityTTL   time.Duration `mapstructure:"availability_ttl"`
	AttemptTimeout    time.Duration `mapstructure:"attempt_timeout"`
}

// BackendConfig describes one generation backend. One config maps to one live instance.
type BackendConfig struct {
	ID           string             `json:"id" mapstructure:"id" validate:"required"`
	Type         string             `json:"type" mapstructure:"type" validate:"required"`
	APIKey       string             `json:"-" mapstructure:"api_key"`
	DefaultModel string             `json:"default_model" mapstructure:"default_model" validate:"required"`
	BaseURL      string             `json:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Enabled      bool               `json:"enabled" mapstructure:"enabled"`
	Priority     int                `json:"priority" mapstructure:"priority"`
	Timeout      time.Duration      `json:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Pricing      map[string]float64 `json:"pricing" mapstructure:"pricing" validate:"dive,gte=0"`
	Options      map[string]string  `json:"options" mapstructure:"options"`

	// WindowSize is filled from the router section when the registry is built.
	WindowSize int `json:"-" mapstructure:"-"`
}

type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver"`
	DSN           string        `mapstructure:"dsn"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneSchedule string        `mapstructure:"prune_schedule"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var knownStrategies = map[string]bool{
	"latency_first": true,
	"cost_first":    true,
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	cfg, _, err := load()
	return cfg, err
}

// Watch loads the configuration and calls onChange with every successfully
// reloaded version of it. Invalid reloads are reported through onError and skipped.
func Watch(onChange func(*Config), onError func(error)) (*Config, error) {
	cfg, v, err := load()
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}

func load() (*Config, *viper.Viper, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.auth_enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("router.default_strategy", "latency_first")
	v.SetDefault("router.enable_fallback", true)
	v.SetDefault("router.max_retries", 3)
	v.SetDefault("router.retry_base_delay", time.Second)
	v.SetDefault("router.retry_max_delay", 10*time.Second)
	v.SetDefault("router.track_latency", true)
	v.SetDefault("router.window_size", 100)
	v.SetDefault("router.check_availability", false)
	v.SetDefault("router.availability_ttl", 30*time.Second)
	v.SetDefault("router.attempt_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:router.db?_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("database.retention", 7*24*time.Hour)
	v.SetDefault("database.prune_schedule", "@hourly")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "generation-router")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve API Keys
	for i, b := range cfg.Backends {
		if strings.HasPrefix(b.APIKey, "ENV:") {
			envVar := strings.TrimPrefix(b.APIKey, "ENV:")
			// Check process environment first (explicit override)
			val := os.Getenv(envVar)
			if val == "" {
				val = v.GetString(envVar)
			}
			cfg.Backends[i].APIKey = val
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints viper cannot express.
func (c *Config) Validate() error {
	if !knownStrategies[c.Router.DefaultStrategy] {
		return fmt.Errorf("router.default_strategy: unknown strategy %q", c.Router.DefaultStrategy)
	}
	if c.Router.MaxRetries < 1 {
		return fmt.Errorf("router.max_retries must be at least 1, got %d", c.Router.MaxRetries)
	}
	if c.Router.RetryBaseDelay < 0 || c.Router.RetryMaxDelay < 0 {
		return errors.New("router retry delays must not be negative")
	}

	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.ID == "" {
			return errors.New("backends: every backend needs an id")
		}
		if seen[b.ID] {
			return fmt.Errorf("backends: duplicate id %q", b.ID)
		}
		seen[b.ID] = true
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
	}
	return nil
}

// EnabledBackends returns the backends marked enabled, in configuration order.
func (c *Config) EnabledBackends() []BackendConfig {
	out := make([]BackendConfig, 0, len(c.Backends))
	for _, b := range c.Backends {
		if b.Enabled {
			b.WindowSize = c.Router.WindowSize
			out = append(out, b)
		}
	}
	return out
}
