package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const devSessionSecret = "recipewizard-development-secret"

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	GatewayURL string

	AWSRegion      string
	AWSEndpointURL string
	DynamoDBTable  string
	S3Bucket       string

	FontPath string

	SessionSecret string
	RedisURL      string

	CORSAllowedOrigins []string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPHeaders  string
	SentryDSN                string

	Port string

	Session SessionConfig
}

type SessionConfig struct {
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	CookieName string        `yaml:"cookie_name"`
	Secure     bool          `yaml:"secure"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		GatewayURL:               os.Getenv("GATEWAY_URL"),
		AWSRegion:                os.Getenv("AWS_REGION"),
		AWSEndpointURL:           os.Getenv("AWS_ENDPOINT_URL"),
		DynamoDBTable:            os.Getenv("DYNAMODB_TABLE"),
		S3Bucket:                 os.Getenv("S3_BUCKET"),
		FontPath:                 os.Getenv("FONT_PATH"),
		SessionSecret:            os.Getenv("SESSION_SECRET"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		CORSAllowedOrigins:       splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		SentryDSN:                os.Getenv("SENTRY_DSN"),
		Port:                     os.Getenv("PORT"),
	}
	cfg.Session.Backend = os.Getenv("SESSION_BACKEND")

	// Load from YAML file if available
	if err := cfg.LoadFromYAML("config.yaml"); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	// Set defaults
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "recipewizard"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.AWSRegion == "" {
		cfg.AWSRegion = "ap-southeast-1"
	}
	if cfg.DynamoDBTable == "" {
		cfg.DynamoDBTable = "test_team_1"
	}
	if cfg.S3Bucket == "" {
		cfg.S3Bucket = "wsu-pbl-team-1"
	}
	if cfg.FontPath == "" {
		cfg.FontPath = "./NanumGothic.ttf"
	}
	if cfg.SessionSecret == "" && cfg.Env != "production" {
		cfg.SessionSecret = devSessionSecret
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	cfg.SetSessionDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Session SessionConfig `yaml:"session"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment wins over the file for the backend selection
	if yamlConfig.Session.Backend != "" && c.Session.Backend == "" {
		c.Session.Backend = yamlConfig.Session.Backend
	}
	if yamlConfig.Session.TTL > 0 {
		c.Session.TTL = yamlConfig.Session.TTL
	}
	if yamlConfig.Session.CookieName != "" {
		c.Session.CookieName = yamlConfig.Session.CookieName
	}
	if yamlConfig.Session.Secure {
		c.Session.Secure = true
	}

	return nil
}

func (c *Config) SetSessionDefaults() {
	if c.Session.Backend == "" {
		c.Session.Backend = "memory"
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 12 * time.Hour
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "recipewizard_session"
	}
}

func (c *Config) validate() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("GATEWAY_URL is required")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required in production")
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when the session backend is redis")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	return nil
}

// OTLPHeaders parses OTEL_EXPORTER_OTLP_HEADERS ("k1=v1,k2=v2").
func (c *Config) OTLPHeaders() map[string]string {
	headers := make(map[string]string)
	for _, pair := range splitList(c.OtelExporterOTLPHeaders) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers
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
