// Package config provides client configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Transports.
const (
	TransportNATS = "nats"
	TransportGRPC = "grpc"
)

// Signature cache kinds.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
	CacheNone     = "none"
)

// Config holds inference client configuration.
type Config struct {
	// Credentials and default owner for resources given by id rather than URL.
	PAT    string `envconfig:"INFERENCE_PAT"`
	UserID string `envconfig:"INFERENCE_USER_ID"`
	AppID  string `envconfig:"INFERENCE_APP_ID"`

	// Transport selects nats or grpc.
	Transport    string `envconfig:"INFERENCE_TRANSPORT" default:"nats"`
	GRPCAddr     string `envconfig:"INFERENCE_GRPC_ADDR" default:"api.clarifai.com:443"`
	GRPCInsecure bool   `envconfig:"INFERENCE_GRPC_INSECURE" default:"false"`

	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL      string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName     string `envconfig:"SERVICE_NAME" default:"inference-client"`
	SubjectPrefix string `envconfig:"INFERENCE_SUBJECT_PREFIX" default:"inference"`

	// Timeouts
	RequestTimeout time.Duration `envconfig:"INFERENCE_REQUEST_TIMEOUT" default:"25s"`
	DeployCeiling  time.Duration `envconfig:"INFERENCE_DEPLOY_CEILING" default:"10m"`

	// Signature cache
	SignatureCache    string        `envconfig:"SIGNATURE_CACHE" default:"memory"`
	SignatureCacheTTL time.Duration `envconfig:"SIGNATURE_CACHE_TTL" default:"5m"`
	SignatureFile     string        `envconfig:"SIGNATURE_FILE"`
	RedisURL          string        `envconfig:"REDIS_URL"`

	// Database
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH"`

	// Stub server: METRICS_ADDR serves /health and /metrics. STUB_EMBED_COMMS
	// runs an in-process broker on the COMMS_URL host and port.
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:"127.0.0.1:9090"`
	DeployingCalls int    `envconfig:"STUB_DEPLOYING_CALLS" default:"0"`
	EmbedComms     bool   `envconfig:"STUB_EMBED_COMMS" default:"false"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForClient checks required config when calling remote resources.
func (c *Config) ValidateForClient() error {
	if c.PAT == "" {
		return fmt.Errorf("%s - INFERENCE_PAT is required", logPrefix)
	}
	switch c.Transport {
	case TransportNATS:
		if c.COMMSURL == "" {
			return fmt.Errorf("%s - COMMS_URL is required for the nats transport", logPrefix)
		}
	case TransportGRPC:
		if c.GRPCAddr == "" {
			return fmt.Errorf("%s - INFERENCE_GRPC_ADDR is required for the grpc transport", logPrefix)
		}
	default:
		return fmt.Errorf("%s - INFERENCE_TRANSPORT must be nats or grpc, got %q", logPrefix, c.Transport)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - INFERENCE_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.DeployCeiling <= 0 {
		return fmt.Errorf("%s - INFERENCE_DEPLOY_CEILING must be positive", logPrefix)
	}
	return c.validateCache()
}

func (c *Config) validateCache() error {
	switch c.SignatureCache {
	case CacheNone:
		return nil
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%s - REDIS_URL is required for the redis signature cache", logPrefix)
		}
	case CachePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s - DATABASE_URL is required for the postgres signature cache", logPrefix)
		}
	default:
		return fmt.Errorf("%s - SIGNATURE_CACHE must be memory, redis, postgres or none, got %q", logPrefix, c.SignatureCache)
	}
	if c.SignatureCacheTTL <= 0 {
		return fmt.Errorf("%s - SIGNATURE_CACHE_TTL must be positive", logPrefix)
	}
	return nil
}

// ValidateForStub checks required config when running the stub server.
func (c *Config) ValidateForStub() error {
	if c.COMMSURL == "" && c.GRPCAddr == "" {
		return fmt.Errorf("%s - COMMS_URL or INFERENCE_GRPC_ADDR is required for stub", logPrefix)
	}
	if c.DeployingCalls < 0 {
		return fmt.Errorf("%s - STUB_DEPLOYING_CALLS must not be negative", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
