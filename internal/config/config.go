package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport modes.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Auth modes.
const (
	AuthAPIKey = "api_key"
	AuthJWT    = "jwt"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Events    EventsConfig    `yaml:"events"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

// AuthConfig controls how bearer tokens map to ledger identities. With auth
// disabled every call acts as DefaultIdentity.
type AuthConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Mode            string `yaml:"mode"`
	JWTSecret       string `yaml:"jwt_secret"`
	JWTIssuer       string `yaml:"jwt_issuer"`
	DefaultIdentity string `yaml:"default_identity"`
}

type LedgerConfig struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
}

type EventsConfig struct {
	Buffer          int           `yaml:"buffer"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	DrainTimeout    time.Duration `yaml:"drain_timeout"`
	RedisURL        string        `yaml:"redis_url"`
	RedisChannel    string        `yaml:"redis_channel"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"`
	KafkaTopic      string        `yaml:"kafka_topic"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "sonetyo.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: TransportHTTP,
		},
		Auth: AuthConfig{
			Enabled:         true,
			Mode:            AuthAPIKey,
			DefaultIdentity: "local",
		},
		Events: EventsConfig{
			Buffer:          1024,
			DeliveryTimeout: 5 * time.Second,
			DrainTimeout:    10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("SONETYO_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("SONETYO_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("SONETYO_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid SONETYO_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("SONETYO_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("SONETYO_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("SONETYO_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if mode := os.Getenv("SONETYO_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if enabled := os.Getenv("SONETYO_AUTH_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid SONETYO_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = v
	}
	if mode := os.Getenv("SONETYO_AUTH_MODE"); mode != "" {
		cfg.Auth.Mode = mode
	}
	if secret := os.Getenv("SONETYO_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if issuer := os.Getenv("SONETYO_JWT_ISSUER"); issuer != "" {
		cfg.Auth.JWTIssuer = issuer
	}
	if identity := os.Getenv("SONETYO_DEFAULT_IDENTITY"); identity != "" {
		cfg.Auth.DefaultIdentity = identity
	}
	if v := os.Getenv("SONETYO_EVENT_DELIVERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SONETYO_EVENT_DELIVERY_TIMEOUT: %w", err)
		}
		cfg.Events.DeliveryTimeout = d
	}
	if v := os.Getenv("SONETYO_EVENT_DRAIN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SONETYO_EVENT_DRAIN_TIMEOUT: %w", err)
		}
		cfg.Events.DrainTimeout = d
	}
	if url := os.Getenv("SONETYO_REDIS_URL"); url != "" {
		cfg.Events.RedisURL = url
	}
	if brokers := os.Getenv("SONETYO_KAFKA_BROKERS"); brokers != "" {
		cfg.Events.KafkaBrokers = splitList(brokers)
	}
	if topic := os.Getenv("SONETYO_KAFKA_TOPIC"); topic != "" {
		cfg.Events.KafkaTopic = topic
	}
	if enabled := os.Getenv("SONETYO_METRICS_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid SONETYO_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = v
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	switch c.Transport.Mode {
	case TransportHTTP, TransportStdio:
	default:
		errs = append(errs, fmt.Errorf("unknown transport mode %q", c.Transport.Mode))
	}
	switch c.Auth.Mode {
	case AuthAPIKey:
	case AuthJWT:
		if c.Auth.Enabled && c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("jwt auth requires a secret"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.Auth.Mode))
	}
	if strings.TrimSpace(c.Auth.DefaultIdentity) == "" {
		switch {
		case !c.Auth.Enabled:
			errs = append(errs, errors.New("auth disabled without a default identity"))
		case c.Transport.Mode == TransportStdio:
			errs = append(errs, errors.New("stdio transport without a default identity"))
		}
	}
	if c.Events.Buffer < 0 {
		errs = append(errs, fmt.Errorf("negative event buffer %d", c.Events.Buffer))
	}
	if c.Events.DeliveryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("event delivery timeout must be positive, got %s", c.Events.DeliveryTimeout))
	}
	if c.Events.DrainTimeout <= 0 {
		errs = append(errs, fmt.Errorf("event drain timeout must be positive, got %s", c.Events.DrainTimeout))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
