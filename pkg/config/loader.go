package config

import (
	"fmt"
	"strings"

	"github.com/jobmill/jobmill/pkg/observability/logger"
	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
}

// NewViperLoader creates a new ViperLoader.
// configFile: path to a YAML configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "JOBMILL")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	l.setDefaults(v, defaults)

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"))
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))

	v.BindEnv("database.url", l.prefixedEnv("DATABASE_URL"))
	v.BindEnv("database.max_open_conns", l.prefixedEnv("DATABASE_MAX_OPEN_CONNS"))
	v.BindEnv("database.max_idle_conns", l.prefixedEnv("DATABASE_MAX_IDLE_CONNS"))
	v.BindEnv("database.conn_max_lifetime", l.prefixedEnv("DATABASE_CONN_MAX_LIFETIME"))
	v.BindEnv("database.conn_max_idle_time", l.prefixedEnv("DATABASE_CONN_MAX_IDLE_TIME"))
	v.BindEnv("database.query_timeout", l.prefixedEnv("DATABASE_QUERY_TIMEOUT"))

	v.BindEnv("redis.url", l.prefixedEnv("REDIS_URL"))

	v.BindEnv("scheduler.enabled", l.prefixedEnv("SCHEDULER_ENABLED"))
	v.BindEnv("scheduler.sweep_interval", l.prefixedEnv("SCHEDULER_SWEEP_INTERVAL"))
	v.BindEnv("scheduler.lock_provider", l.prefixedEnv("SCHEDULER_LOCK_PROVIDER"))
	v.BindEnv("scheduler.lock_ttl", l.prefixedEnv("SCHEDULER_LOCK_TTL"))

	v.BindEnv("logging.level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("logging.format", l.prefixedEnv("LOG_FORMAT"))

	v.BindEnv("rate_limit.enabled", l.prefixedEnv("RATE_LIMIT_ENABLED"))
	v.BindEnv("rate_limit.rps", l.prefixedEnv("RATE_LIMIT_RPS"))
	v.BindEnv("rate_limit.burst", l.prefixedEnv("RATE_LIMIT_BURST"))
}

func (l *ViperLoader) prefixedEnv(name string) string {
	if l.envPrefix == "" {
		return name
	}
	return l.envPrefix + "_" + name
}

// setDefaults registers every default value so viper.Unmarshal sees the full tree
func (l *ViperLoader) setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("service.name", d.Service.Name)
	v.SetDefault("service.environment", d.Service.Environment)

	v.SetDefault("http.port", d.HTTP.Port)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", d.HTTP.IdleTimeout)

	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", d.Database.ConnMaxIdleTime)
	v.SetDefault("database.query_timeout", d.Database.QueryTimeout)

	v.SetDefault("redis.url", d.Redis.URL)

	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.sweep_interval", d.Scheduler.SweepInterval)
	v.SetDefault("scheduler.lock_provider", d.Scheduler.LockProvider)
	v.SetDefault("scheduler.lock_ttl", d.Scheduler.LockTTL)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.rps", d.RateLimit.RPS)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
}

// Validate checks that the loaded configuration is usable
func (l *ViperLoader) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Service.Name) == "" {
		return fmt.Errorf("service.name is required")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", cfg.HTTP.Port)
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return fmt.Errorf("database.url is required")
	}
	if cfg.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must be >= 0, got %d", cfg.Database.MaxIdleConns)
	}
	if cfg.Database.MaxIdleConns > cfg.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	}

	if _, err := logger.ParseLogLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := logger.ParseLogFormat(cfg.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if cfg.Scheduler.SweepInterval <= 0 {
			return fmt.Errorf("scheduler.sweep_interval must be > 0, got %v", cfg.Scheduler.SweepInterval)
		}
		if cfg.Scheduler.LockTTL <= 0 {
			return fmt.Errorf("scheduler.lock_ttl must be > 0, got %v", cfg.Scheduler.LockTTL)
		}
		switch cfg.Scheduler.LockProvider {
		case LockProviderRedis:
			if strings.TrimSpace(cfg.Redis.URL) == "" {
				return fmt.Errorf("redis.url is required when scheduler.lock_provider is %q", LockProviderRedis)
			}
		case LockProviderPostgres, LockProviderRuntime:
		default:
			return fmt.Errorf("unknown scheduler.lock_provider %q", cfg.Scheduler.LockProvider)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			return fmt.Errorf("rate_limit.rps must be > 0, got %v", cfg.RateLimit.RPS)
		}
		if cfg.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be > 0, got %d", cfg.RateLimit.Burst)
		}
	}

	return nil
}
