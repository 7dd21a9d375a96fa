package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App        AppSettings        `mapstructure:"app"`
	Postgres   PostgresSettings   `mapstructure:"postgres"`
	Redis      RedisSettings      `mapstructure:"redis"`
	Kafka      KafkaSettings      `mapstructure:"kafka"`
	JWT        JWTSettings        `mapstructure:"jwt"`
	Telemetry  TelemetrySettings  `mapstructure:"telemetry"`
	Revocation RevocationSettings `mapstructure:"revocation"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// DSN renders the connection string for pgx.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// RedisSettings configures Redis connection and TLS.
type RedisSettings struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	DB          int    `mapstructure:"db"`
	Password    string `mapstructure:"password"`
	TLSEnabled  bool   `mapstructure:"tls_enabled"`
	KeyPrefix   string `mapstructure:"key_prefix"`
	SnapshotKey string `mapstructure:"snapshot_key"`
}

// KafkaSettings configures the event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// JWTSettings carries the credential lifetimes of the issuing subsystem.
// The default revocation TTL derives from the longest of these windows.
type JWTSettings struct {
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type TelemetrySettings struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	ServiceName string `mapstructure:"service_name"`
}

// RevocationSettings tunes the tier cascade.
type RevocationSettings struct {
	DegradationPolicy  string              `mapstructure:"degradation_policy"`
	DefaultTTL         time.Duration       `mapstructure:"default_ttl"`
	HotCacheMaxEntries int                 `mapstructure:"hot_cache_max_entries"`
	CleanupInterval    time.Duration       `mapstructure:"cleanup_interval"`
	SnapshotTTL        time.Duration       `mapstructure:"snapshot_ttl"`
	TierTimeouts       TierTimeoutSettings `mapstructure:"tier_timeouts"`
}

// TierTimeoutSettings bounds individual tier accesses. A timeout counts as a
// tier failure, never as "revoked" or "not revoked" on its own.
type TierTimeoutSettings struct {
	Hot        time.Duration `mapstructure:"hot"`
	Membership time.Duration `mapstructure:"membership"`
	Durable    time.Duration `mapstructure:"durable"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("REVOCATION")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"redis.snapshot_key",
		"kafka.brokers",
		"kafka.topic_prefix",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"telemetry.metrics_port",
		"telemetry.service_name",
		"revocation.degradation_policy",
		"revocation.default_ttl",
		"revocation.hot_cache_max_entries",
		"revocation.cleanup_interval",
		"revocation.snapshot_ttl",
		"revocation.tier_timeouts.hot",
		"revocation.tier_timeouts.membership",
		"revocation.tier_timeouts.durable",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "revocation-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "revocation")
	v.SetDefault("postgres.password", "revocation_password")
	v.SetDefault("postgres.database", "revocation")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", time.Hour)
	v.SetDefault("postgres.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("postgres.health_check_period", time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "revoked")
	v.SetDefault("redis.snapshot_key", "revocation:denylist:snapshot")

	v.SetDefault("kafka.topic_prefix", "revocation")

	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 30*24*time.Hour)

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.service_name", "revocation-service")

	v.SetDefault("revocation.degradation_policy", "lenient")
	v.SetDefault("revocation.default_ttl", 0)
	v.SetDefault("revocation.hot_cache_max_entries", 100_000)
	v.SetDefault("revocation.cleanup_interval", time.Hour)
	v.SetDefault("revocation.snapshot_ttl", 48*time.Hour)
	v.SetDefault("revocation.tier_timeouts.hot", 5*time.Millisecond)
	v.SetDefault("revocation.tier_timeouts.membership", 5*time.Millisecond)
	v.SetDefault("revocation.tier_timeouts.durable", 50*time.Millisecond)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "REVOCATION_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// DefaultRecordTTL returns the configured record lifetime, falling back to the
// longest credential window so a record outlives any credential it applies to.
func (c *AppConfig) DefaultRecordTTL() time.Duration {
	if c.Revocation.DefaultTTL > 0 {
		return c.Revocation.DefaultTTL
	}
	ttl := c.JWT.AccessTokenTTL
	if c.JWT.RefreshTokenTTL > ttl {
		ttl = c.JWT.RefreshTokenTTL
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return ttl
}
