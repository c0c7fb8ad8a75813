package config

import (
	"time"

	"github.com/sentryops/account-security/internal/client"
	"github.com/sentryops/account-security/internal/geo"
	"github.com/sentryops/account-security/internal/util/logger"
)

// Config is the full service configuration, loaded from YAML with environment
// variable expansion.
type Config struct {
	Env         string `yaml:"env"`
	Port        int    `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`

	Logger      logger.Config      `yaml:"logger"`
	Redis       client.RedisConfig `yaml:"redis"`
	Geolocation geo.Config         `yaml:"geolocation"`

	Alerts    KafkaAlertConfig `yaml:"alerts"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	Proxy     ProxyConfig      `yaml:"proxy"`

	// Secrets names resolved via AWS Secrets Manager at startup when set.
	// Resolved values override the corresponding inline fields.
	Secrets SecretsConfig `yaml:"secrets"`
}

// KafkaAlertConfig configures the security alert dispatcher.
type KafkaAlertConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	BatchSize     int           `yaml:"batch_size"`
	FlushEvery    time.Duration `yaml:"flush_every"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	TLS           bool          `yaml:"tls"`
}

// TelemetryConfig configures request-audit shipping.
type TelemetryConfig struct {
	Kafka KafkaAuditConfig `yaml:"kafka"`
}

// KafkaAuditConfig configures the request-audit Kafka shipper.
type KafkaAuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	BatchSize     int           `yaml:"batch_size"`
	FlushEvery    time.Duration `yaml:"flush_every"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	TLS           bool          `yaml:"tls"`
}

// ProxyConfig controls trusted-proxy client IP resolution.
type ProxyConfig struct {
	TrustedIPHeaders []string `yaml:"trusted_ip_headers"`
	TrustedCIDRs     []string `yaml:"trusted_cidrs"`
}

// SecretsConfig names secrets to resolve from AWS Secrets Manager.
type SecretsConfig struct {
	Enabled              bool   `yaml:"enabled"`
	GeolocationAPIKey    string `yaml:"geolocation_api_key"`
	DatabaseURL          string `yaml:"database_url"`
	RedisPassword        string `yaml:"redis_password"`
}
