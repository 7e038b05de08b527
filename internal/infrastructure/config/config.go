// Package config loads the broker configuration from configs/config.yaml
// with BROKER_-prefixed environment overrides.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	sharedConfig "github.com/worldvpn/broker/internal/shared/config"
)

type Config struct {
	Server     sharedConfig.ServerConfig     `mapstructure:"server"`
	Database   sharedConfig.DatabaseConfig   `mapstructure:"database"`
	Logger     sharedConfig.LoggerConfig     `mapstructure:"logger"`
	Redis      sharedConfig.RedisConfig      `mapstructure:"redis"`
	Auth       sharedConfig.AuthConfig       `mapstructure:"auth"`
	Broker     sharedConfig.BrokerConfig     `mapstructure:"broker"`
	Abuse      sharedConfig.AbuseConfig      `mapstructure:"abuse"`
	VPNGate    sharedConfig.VPNGateConfig    `mapstructure:"vpngate"`
	RateLimit  sharedConfig.RateLimitConfig  `mapstructure:"ratelimit"`
	Email      sharedConfig.EmailConfig      `mapstructure:"email"`
	Permission sharedConfig.PermissionConfig `mapstructure:"permission"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("BROKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration.
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func validate(cfg *Config) error {
	if cfg.Broker.LivenessWindow <= 0 {
		return fmt.Errorf("broker.liveness_window must be positive")
	}
	if cfg.Broker.SweepInterval <= 0 {
		return fmt.Errorf("broker.sweep_interval must be positive")
	}
	if cfg.Broker.SweepInterval >= cfg.Broker.LivenessWindow {
		return fmt.Errorf("broker.sweep_interval must be shorter than the liveness window")
	}
	if cfg.Broker.GracePeriod <= 0 {
		return fmt.Errorf("broker.grace_period must be positive")
	}
	if cfg.Broker.VirtualIPCIDR == "" {
		return fmt.Errorf("broker.virtual_ip_cidr is required")
	}
	if cfg.Broker.Match.MaxRetries < 1 {
		return fmt.Errorf("broker.match.max_retries must be at least 1")
	}
	weights := cfg.Broker.Match.WeightReputation + cfg.Broker.Match.WeightLatency + cfg.Broker.Match.WeightCapacity
	if weights <= 0 {
		return fmt.Errorf("broker.match ranking weights must sum to a positive value")
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "broker_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Auth defaults
	viper.SetDefault("auth.password.bcrypt_cost", 12)
	viper.SetDefault("auth.jwt.secret", "change-me-in-production")
	viper.SetDefault("auth.jwt.access_exp_minutes", 15)
	viper.SetDefault("auth.jwt.refresh_exp_days", 7)

	// Broker defaults. The liveness window must exceed the agent heartbeat
	// period (30s) with margin for jitter.
	viper.SetDefault("broker.liveness_window", 90*time.Second)
	viper.SetDefault("broker.sweep_interval", 30*time.Second)
	viper.SetDefault("broker.grace_period", 120*time.Second)
	viper.SetDefault("broker.virtual_ip_cidr", "10.8.0.0/16")
	viper.SetDefault("broker.signup_bonus", 100)
	viper.SetDefault("broker.min_connect_credits", 10)
	viper.SetDefault("broker.policy_path", "./configs/policy.yaml")
	viper.SetDefault("broker.match.max_retries", 3)
	viper.SetDefault("broker.match.weight_reputation", 0.5)
	viper.SetDefault("broker.match.weight_latency", 0.25)
	viper.SetDefault("broker.match.weight_capacity", 0.25)

	// Abuse guard defaults
	viper.SetDefault("abuse.max_bytes_per_minute", int64(1<<30))
	viper.SetDefault("abuse.max_connects_per_minute", int64(60))
	viper.SetDefault("abuse.ban_duration", time.Hour)

	// VPN Gate importer defaults
	viper.SetDefault("vpngate.enabled", true)
	viper.SetDefault("vpngate.feed_url", "https://www.vpngate.net/api/iphone/")
	viper.SetDefault("vpngate.max_nodes", 100)
	viper.SetDefault("vpngate.interval", time.Hour)

	// Rate limit defaults
	viper.SetDefault("ratelimit.requests", 60)
	viper.SetDefault("ratelimit.window", time.Minute)

	// Email defaults (alerts disabled until operator_address is set)
	viper.SetDefault("email.smtp_host", "")
	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("email.from_address", "alerts@broker.local")
	viper.SetDefault("email.from_name", "Broker Alerts")
	viper.SetDefault("email.operator_address", "")

	// Permission defaults
	viper.SetDefault("permission.model_path", "./configs/rbac_model.conf")
}
