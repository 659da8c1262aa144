package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"cloak-engine/internal/engine"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Redis struct {
		Addr string `mapstructure:"addr"` // empty selects the in-memory fingerprint cache
	} `mapstructure:"redis"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`

	Engine struct {
		FallbackURL       string         `mapstructure:"fallback_url"`
		RiskThreshold     float64        `mapstructure:"risk_threshold"`
		FingerprintTTLMin int            `mapstructure:"fingerprint_ttl_minutes"`
		ConfigCacheTTLSec int            `mapstructure:"config_cache_ttl_seconds"`
		Weights           engine.Weights `mapstructure:"weights"`
	} `mapstructure:"engine"`

	Verifier struct {
		URL            string `mapstructure:"url"`
		Secret         string `mapstructure:"secret"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"verifier"`

	Auth struct {
		JWTSecret         string `mapstructure:"jwt_secret"`
		AdminUser         string `mapstructure:"admin_user"`
		AdminPasswordHash string `mapstructure:"admin_password_hash"` // bcrypt
		TokenTTLHours     int    `mapstructure:"token_ttl_hours"`
	} `mapstructure:"auth"`

	Geo struct {
		MMDBPath string `mapstructure:"mmdb_path"` // optional GeoLite2-Country database
	} `mapstructure:"geo"`
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 10
	}
	if c.Listener.Channel == "" {
		c.Listener.Channel = "cloak_config_change"
	}
	if c.Listener.ReconnectSeconds <= 0 {
		c.Listener.ReconnectSeconds = 5
	}
	if c.Engine.FallbackURL == "" {
		c.Engine.FallbackURL = "https://www.google.com/search?q=safe+fallback"
	}
	if c.Engine.RiskThreshold <= 0 {
		c.Engine.RiskThreshold = 0.5
	}
	if c.Engine.FingerprintTTLMin <= 0 {
		c.Engine.FingerprintTTLMin = 60
	}
	if c.Engine.ConfigCacheTTLSec <= 0 {
		c.Engine.ConfigCacheTTLSec = 30
	}
	if c.Engine.Weights == (engine.Weights{}) {
		c.Engine.Weights = engine.DefaultWeights()
	}
	if c.Verifier.URL == "" {
		c.Verifier.URL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	}
	if c.Verifier.TimeoutSeconds <= 0 {
		c.Verifier.TimeoutSeconds = 3
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = 24
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration {
	return time.Duration(c.Listener.ReconnectSeconds) * time.Second
}

func (c Config) VerifierTimeout() time.Duration {
	return time.Duration(c.Verifier.TimeoutSeconds) * time.Second
}

func (c Config) FingerprintTTL() time.Duration {
	return time.Duration(c.Engine.FingerprintTTLMin) * time.Minute
}

func (c Config) ConfigCacheTTL() time.Duration {
	return time.Duration(c.Engine.ConfigCacheTTLSec) * time.Second
}
