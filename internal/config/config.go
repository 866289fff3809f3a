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

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// Gateway modes.
const (
	ModeHTTP     = "http"
	ModePostgres = "postgres"
	ModeMemory   = "memory"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	LogLevel string `yaml:"logLevel"`

	GatewayMode   string `yaml:"gatewayMode"`
	GatewayURL    string `yaml:"gatewayURL"`
	GatewayAPIKey string `yaml:"gatewayApiKey"`

	DatabaseURL string `yaml:"databaseURL"`
	JWTSecret   string `yaml:"jwtSecret"`
	SessionTTL  string `yaml:"sessionTTL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioPublicURL string `yaml:"minioPublicURL"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	SingleProposalPerProvider bool `yaml:"singleProposalPerProvider"`
}

// Load reads config from path (defaults to config.yaml), then applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("TAXMATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("TAXMATCH_GATEWAY_MODE"); v != "" {
		cfg.GatewayMode = strings.TrimSpace(v)
	}
	if v := os.Getenv("TAXMATCH_GATEWAY_URL"); v != "" {
		cfg.GatewayURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("TAXMATCH_GATEWAY_API_KEY"); v != "" {
		cfg.GatewayAPIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("TAXMATCH_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("TAXMATCH_SESSION_TTL"); v != "" {
		cfg.SessionTTL = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_PUBLIC_URL"); v != "" {
		cfg.MinioPublicURL = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("TAXMATCH_SINGLE_PROPOSAL_PER_PROVIDER"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.SingleProposalPerProvider = b
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	switch cfg.GatewayMode {
	case ModeHTTP:
		if cfg.GatewayURL == "" {
			return errors.New("config: gatewayURL is required for http mode")
		}
		if cfg.GatewayAPIKey == "" {
			return errors.New("config: gatewayApiKey is required for http mode")
		}
	case ModePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for postgres mode (set in config.yaml or DATABASE_URL)")
		}
		if cfg.JWTSecret == "" {
			return errors.New("config: jwtSecret is required for postgres mode")
		}
	case ModeMemory:
	case "":
		return errors.New("config: gatewayMode is required (http, postgres, or memory)")
	default:
		return fmt.Errorf("config: unknown gatewayMode %q", cfg.GatewayMode)
	}
	return nil
}

// ParseSessionTTL parses the optional session TTL duration string.
func ParseSessionTTL(ttl string) (time.Duration, error) {
	if ttl == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	return dur, nil
}
