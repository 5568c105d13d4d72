package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Secret    SecretSettings    `mapstructure:"secret"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	ShortCode ShortCodeSettings `mapstructure:"short_code"`
	Buckets   BucketSettings    `mapstructure:"buckets"`
	Tokens    TokenSettings     `mapstructure:"tokens"`
}

type AppSettings struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// TrustedProxies lists the addresses or CIDRs allowed to set X-Forwarded-For. Empty trusts none.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
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

// RedisSettings configures the shared key-value store holding buckets and short codes.
type RedisSettings struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	DB           int           `mapstructure:"db"`
	Password     string        `mapstructure:"password"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaSettings configures the event producer.
type KafkaSettings struct {
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	// ConsumerGroup enables the sessions revoked consumer when set.
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

// SecretSettings holds signing material. Changing SigningKey invalidates every issued token.
type SecretSettings struct {
	SigningKey string        `mapstructure:"signing_key"`
	JWTKey     string        `mapstructure:"jwt_key"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// ServiceToken authenticates the backends allowed to issue confirmation tokens and rotate
	// salts. Those routes refuse every request while it is empty.
	ServiceToken string `mapstructure:"service_token"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// ShortCodeSettings configures the login short code generator.
type ShortCodeSettings struct {
	KeyPrefix          string `mapstructure:"key_prefix"`
	ValidityMinutes    int    `mapstructure:"validity_minutes"`
	MaxConcurrentCodes int    `mapstructure:"max_concurrent_codes"`
}

// BucketPolicy is the capacity and regeneration interval of one token bucket.
type BucketPolicy struct {
	Max      int           `mapstructure:"max"`
	Interval time.Duration `mapstructure:"interval"`
}

// BucketSettings lists the token buckets guarding the login flows.
type BucketSettings struct {
	SendCodeEmail BucketPolicy `mapstructure:"send_code_email"`
	SendCodeIP    BucketPolicy `mapstructure:"send_code_ip"`
	CheckCode     BucketPolicy `mapstructure:"check_code"`
	PasswordLogin BucketPolicy `mapstructure:"password_login"`
	HTTPIP        BucketPolicy `mapstructure:"http_ip"`
}

// TokenSettings configures validity, in days, of each confirmation token family.
type TokenSettings struct {
	SubscriptionDays int `mapstructure:"subscription_days"`
	AddEmailDays     int `mapstructure:"add_email_days"`
	MergeAccountDays int `mapstructure:"merge_account_days"`
	InvitationDays   int `mapstructure:"invitation_days"`
	ConnectionDays   int `mapstructure:"connection_days"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.log_level",
		"app.trusted_proxies",
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
		"redis.dial_timeout",
		"redis.read_timeout",
		"redis.write_timeout",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.consumer_group",
		"secret.signing_key",
		"secret.jwt_key",
		"secret.session_ttl",
		"secret.service_token",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"short_code.key_prefix",
		"short_code.validity_minutes",
		"short_code.max_concurrent_codes",
		"buckets.send_code_email.max",
		"buckets.send_code_email.interval",
		"buckets.send_code_ip.max",
		"buckets.send_code_ip.interval",
		"buckets.check_code.max",
		"buckets.check_code.interval",
		"buckets.password_login.max",
		"buckets.password_login.interval",
		"buckets.http_ip.max",
		"buckets.http_ip.interval",
		"tokens.subscription_days",
		"tokens.add_email_days",
		"tokens.merge_account_days",
		"tokens.invitation_days",
		"tokens.connection_days",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that would silently disable authentication safeguards.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Secret.SigningKey) == "" {
		return fmt.Errorf("secret.signing_key is required")
	}
	if strings.TrimSpace(c.Secret.JWTKey) == "" {
		return fmt.Errorf("secret.jwt_key is required")
	}
	for _, proxy := range c.App.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("app.trusted_proxies: %q is neither an IP nor a CIDR", proxy)
		}
	}
	if c.ShortCode.ValidityMinutes <= 0 {
		return fmt.Errorf("short_code.validity_minutes must be positive")
	}
	if c.ShortCode.MaxConcurrentCodes <= 0 {
		return fmt.Errorf("short_code.max_concurrent_codes must be positive")
	}

	policies := map[string]BucketPolicy{
		"send_code_email": c.Buckets.SendCodeEmail,
		"send_code_ip":    c.Buckets.SendCodeIP,
		"check_code":      c.Buckets.CheckCode,
		"password_login":  c.Buckets.PasswordLogin,
		"http_ip":         c.Buckets.HTTPIP,
	}
	for name, p := range policies {
		if p.Max <= 0 || p.Interval <= 0 {
			return fmt.Errorf("buckets.%s requires positive max and interval", name)
		}
	}

	return nil
}

func validProxy(s string) bool {
	if _, err := netip.ParseAddr(s); err == nil {
		return true
	}
	_, err := netip.ParsePrefix(s)
	return err == nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auth-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_level", "")
	v.SetDefault("app.trusted_proxies", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "agir")
	v.SetDefault("postgres.password", "agir_password")
	v.SetDefault("postgres.database", "agir")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "agir")
	v.SetDefault("kafka.consumer_group", "")

	v.SetDefault("secret.session_ttl", "24h")
	v.SetDefault("secret.service_token", "")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "auth-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("short_code.key_prefix", "LoginCode:")
	v.SetDefault("short_code.validity_minutes", 90)
	v.SetDefault("short_code.max_concurrent_codes", 3)

	v.SetDefault("buckets.send_code_email.max", 5)
	v.SetDefault("buckets.send_code_email.interval", "10m")
	v.SetDefault("buckets.send_code_ip.max", 10)
	v.SetDefault("buckets.send_code_ip.interval", "1m")
	v.SetDefault("buckets.check_code.max", 5)
	v.SetDefault("buckets.check_code.interval", "3m")
	v.SetDefault("buckets.password_login.max", 5)
	v.SetDefault("buckets.password_login.interval", "1m")
	v.SetDefault("buckets.http_ip.max", 60)
	v.SetDefault("buckets.http_ip.interval", "1s")

	v.SetDefault("tokens.subscription_days", 2)
	v.SetDefault("tokens.add_email_days", 2)
	v.SetDefault("tokens.merge_account_days", 2)
	v.SetDefault("tokens.invitation_days", 7)
	v.SetDefault("tokens.connection_days", 7)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTH_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
