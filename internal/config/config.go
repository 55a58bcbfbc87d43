// Package config loads registry settings from a YAML file, DOMAINREG_*
// environment variables and command flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/domainreg/internal/layout"
	"github.com/roach88/domainreg/internal/tracing"
)

// EnvPrefix prefixes every environment override, e.g. DOMAINREG_HTTP_ADDR.
const EnvPrefix = "DOMAINREG"

// Config holds all registry settings.
type Config struct {
	DB         string         `mapstructure:"db"`           // SQLite path; empty selects the in-memory backend
	LogLevel   string         `mapstructure:"log_level"`    // debug, info, warn, error
	MaxNameLen int            `mapstructure:"max_name_len"` // bytes, capped by the account size limit
	HTTP       HTTPConfig     `mapstructure:"http"`
	Kafka      KafkaConfig    `mapstructure:"kafka"`
	Cache      CacheConfig    `mapstructure:"cache"`
	Tracing    tracing.Config `mapstructure:"tracing"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// KafkaConfig enables the Kafka event sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// CacheConfig configures the record read cache. A zero TTL disables it.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		DB:         "",
		LogLevel:   "info",
		MaxNameLen: layout.MaxNameLen,
		HTTP:       HTTPConfig{Addr: "127.0.0.1:8080"},
		Kafka:      KafkaConfig{Topic: "domainreg.events"},
		Cache:      CacheConfig{TTLSeconds: 60},
		Tracing:    tracing.DefaultConfig(),
	}
}

// SetDefaults registers Defaults on v so Unmarshal sees every key.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("db", d.DB)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("max_name_len", d.MaxNameLen)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// New returns a viper instance wired for defaults and environment overrides.
// If path is empty, domainreg.yaml is searched for in the working directory.
func New(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("domainreg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	return v
}

// Load reads the config file, if any, and decodes v into a validated Config.
// A missing default file is not an error; a missing explicit file is.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.MaxNameLen < 0 || c.MaxNameLen > layout.MaxNameLen {
		return fmt.Errorf("max_name_len must be between 0 and %d, got %d", layout.MaxNameLen, c.MaxNameLen)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka.brokers is set")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must not be negative, got %d", c.Cache.TTLSeconds)
	}
	return c.Tracing.Validate()
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
