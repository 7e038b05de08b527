package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type PasswordConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	AccessExpMinutes int    `mapstructure:"access_exp_minutes"`
	RefreshExpDays   int    `mapstructure:"refresh_exp_days"`
}

type AuthConfig struct {
	Password PasswordConfig `mapstructure:"password"`
	JWT      JWTConfig      `mapstructure:"jwt"`
}

// MatchConfig tunes the candidate ranking weights and the bounded retry count
// for lost capacity reservations.
type MatchConfig struct {
	MaxRetries       int     `mapstructure:"max_retries"`
	WeightReputation float64 `mapstructure:"weight_reputation"`
	WeightLatency    float64 `mapstructure:"weight_latency"`
	WeightCapacity   float64 `mapstructure:"weight_capacity"`
}

// BrokerConfig carries the session brokering knobs: liveness window for the
// heartbeat sweep, grace period for reportless sessions, the virtual IP pool,
// and credit bootstrap values.
type BrokerConfig struct {
	LivenessWindow    time.Duration `mapstructure:"liveness_window"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	GracePeriod       time.Duration `mapstructure:"grace_period"`
	VirtualIPCIDR     string        `mapstructure:"virtual_ip_cidr"`
	SignupBonus       int64         `mapstructure:"signup_bonus"`
	MinConnectCredits int64         `mapstructure:"min_connect_credits"`
	PolicyPath        string        `mapstructure:"policy_path"`
	Match             MatchConfig   `mapstructure:"match"`
}

type AbuseConfig struct {
	MaxBytesPerMinute    int64         `mapstructure:"max_bytes_per_minute"`
	MaxConnectsPerMinute int64         `mapstructure:"max_connects_per_minute"`
	BanDuration          time.Duration `mapstructure:"ban_duration"`
}

type VPNGateConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	FeedURL  string        `mapstructure:"feed_url"`
	MaxNodes int           `mapstructure:"max_nodes"`
	Interval time.Duration `mapstructure:"interval"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type EmailConfig struct {
	SMTPHost        string `mapstructure:"smtp_host"`
	SMTPPort        int    `mapstructure:"smtp_port"`
	SMTPUser        string `mapstructure:"smtp_user"`
	SMTPPassword    string `mapstructure:"smtp_password"`
	FromAddress     string `mapstructure:"from_address"`
	FromName        string `mapstructure:"from_name"`
	OperatorAddress string `mapstructure:"operator_address"`
}

// Configured reports whether the mailer has enough settings to send alerts.
func (e *EmailConfig) Configured() bool {
	return e.SMTPHost != "" && e.OperatorAddress != ""
}

type PermissionConfig struct {
	ModelPath string `mapstructure:"model_path"`
}
