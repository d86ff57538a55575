// Package config loads service settings from defaults, an optional YAML file
// and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Service   string          `mapstructure:"service"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type ServerConfig struct {
	HTTPPort string `mapstructure:"http_port"`
	GRPCPort string `mapstructure:"grpc_port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Broker  string `mapstructure:"broker"`
	Topic   string `mapstructure:"topic"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Jaeger  string `mapstructure:"jaeger_endpoint"`
}

// Endpoint is the collector endpoint to export to, or "" when tracing is off.
func (t TracingConfig) Endpoint() string {
	if !t.Enabled {
		return ""
	}
	return t.Jaeger
}

// UpstreamConfig addresses the services this process calls.
type UpstreamConfig struct {
	UserURL     string        `mapstructure:"user_url"`
	ProductURL  string        `mapstructure:"product_url"`
	OrderURL    string        `mapstructure:"order_url"`
	UserGRPC    string        `mapstructure:"user_grpc"`
	ProductGRPC string        `mapstructure:"product_grpc"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type BreakerConfig struct {
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

var envBindings = map[string]string{
	"server.http_port":        "HTTP_PORT",
	"server.grpc_port":        "GRPC_PORT",
	"database.host":           "DB_HOST",
	"database.port":           "DB_PORT",
	"database.user":           "DB_USER",
	"database.password":       "DB_PASSWORD",
	"database.name":           "DB_NAME",
	"database.sslmode":        "DB_SSLMODE",
	"redis.host":              "REDIS_HOST",
	"redis.port":              "REDIS_PORT",
	"redis.password":          "REDIS_PASSWORD",
	"redis.ttl":               "REDIS_TTL",
	"kafka.enabled":           "KAFKA_ENABLED",
	"kafka.broker":            "KAFKA_BROKER",
	"kafka.topic":             "KAFKA_TOPIC",
	"log.level":               "LOG_LEVEL",
	"log.file":                "LOG_FILE",
	"tracing.enabled":         "TRACING_ENABLED",
	"tracing.jaeger_endpoint": "JAEGER_ENDPOINT",
	"upstream.user_url":       "USER_SERVICE_URL",
	"upstream.product_url":    "PRODUCT_SERVICE_URL",
	"upstream.order_url":      "ORDER_SERVICE_URL",
	"upstream.user_grpc":      "USER_SERVICE_GRPC",
	"upstream.product_grpc":   "PRODUCT_SERVICE_GRPC",
	"upstream.call_timeout":   "CALL_TIMEOUT",
	"breaker.max_failures":    "BREAKER_MAX_FAILURES",
	"breaker.reset_timeout":   "BREAKER_RESET_TIMEOUT",
	"rate_limit.rps":          "RATE_LIMIT_RPS",
	"rate_limit.burst":        "RATE_LIMIT_BURST",
	"cors.allow_origins":      "CORS_ALLOW_ORIGINS",
}

var databaseNames = map[string]string{
	"user-service":    "userdb",
	"product-service": "productdb",
	"order-service":   "orderdb",
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("service", service)
	v.SetDefault("server.http_port", "8080")
	v.SetDefault("server.grpc_port", "50051")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", databaseNames[service])
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.broker", "localhost:9092")
	v.SetDefault("kafka.topic", "orders")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")

	v.SetDefault("upstream.user_url", "http://localhost:8081")
	v.SetDefault("upstream.product_url", "http://localhost:8082")
	v.SetDefault("upstream.order_url", "http://localhost:8083")
	v.SetDefault("upstream.user_grpc", "localhost:50051")
	v.SetDefault("upstream.product_grpc", "localhost:50052")
	v.SetDefault("upstream.call_timeout", 5*time.Second)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.reset_timeout", 30*time.Second)

	v.SetDefault("rate_limit.rps", 100.0)
	v.SetDefault("rate_limit.burst", 200)
	v.SetDefault("cors.allow_origins", []string{"*"})
}

// Load builds the configuration for service. CONFIG_FILE, when set, names a
// YAML file read before the environment is applied.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	_ = v.BindEnv("config_file", "CONFIG_FILE")

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for i, origin := range cfg.CORS.AllowOrigins {
		cfg.CORS.AllowOrigins[i] = strings.TrimSpace(origin)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Upstream.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %s", c.Upstream.CallTimeout)
	}
	if c.Breaker.MaxFailures <= 0 {
		return fmt.Errorf("breaker max failures must be positive, got %d", c.Breaker.MaxFailures)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}
