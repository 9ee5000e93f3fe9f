package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var allEnv = []string{
	"INFERENCE_PAT", "INFERENCE_USER_ID", "INFERENCE_APP_ID",
	"INFERENCE_TRANSPORT", "INFERENCE_GRPC_ADDR", "INFERENCE_GRPC_INSECURE",
	"COMMS_URL", "SERVICE_NAME", "INFERENCE_SUBJECT_PREFIX",
	"INFERENCE_REQUEST_TIMEOUT", "INFERENCE_DEPLOY_CEILING",
	"SIGNATURE_CACHE", "SIGNATURE_CACHE_TTL", "SIGNATURE_FILE", "REDIS_URL",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"METRICS_ADDR", "STUB_DEPLOYING_CALLS", "LOG_LEVEL",
}

func clearEnv() {
	for _, env := range allEnv {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.Transport != TransportNATS {
		t.Errorf("config:config_test - Transport = %q, want %q", cfg.Transport, TransportNATS)
	}
	if cfg.GRPCAddr != "api.clarifai.com:443" {
		t.Errorf("config:config_test - GRPCAddr = %q", cfg.GRPCAddr)
	}
	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSName != "inference-client" {
		t.Errorf("config:config_test - COMMSName = %q", cfg.COMMSName)
	}
	if cfg.SubjectPrefix != "inference" {
		t.Errorf("config:config_test - SubjectPrefix = %q", cfg.SubjectPrefix)
	}
	if cfg.RequestTimeout != 25*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 25s", cfg.RequestTimeout)
	}
	if cfg.DeployCeiling != 10*time.Minute {
		t.Errorf("config:config_test - DeployCeiling = %v, want 10m", cfg.DeployCeiling)
	}
	if cfg.SignatureCache != CacheMemory || cfg.SignatureCacheTTL != 5*time.Minute {
		t.Errorf("config:config_test - cache = %q/%v", cfg.SignatureCache, cfg.SignatureCacheTTL)
	}
	if cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=false by default")
	}
	if cfg.MigrationPath != "" {
		t.Errorf("config:config_test - MigrationPath = %q, want embedded (empty)", cfg.MigrationPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv()
	overrides := map[string]string{
		"INFERENCE_PAT":             "pat",
		"INFERENCE_USER_ID":         "meta",
		"INFERENCE_APP_ID":          "Llama-3",
		"INFERENCE_TRANSPORT":       "grpc",
		"INFERENCE_GRPC_ADDR":       "localhost:50051",
		"INFERENCE_GRPC_INSECURE":   "true",
		"INFERENCE_REQUEST_TIMEOUT": "10s",
		"INFERENCE_DEPLOY_CEILING":  "30s",
		"SIGNATURE_CACHE":           "redis",
		"REDIS_URL":                 "redis://localhost:6379/1",
		"STUB_DEPLOYING_CALLS":      "3",
		"LOG_LEVEL":                 "debug",
	}
	for key, val := range overrides {
		os.Setenv(key, val)
	}
	defer clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.PAT != "pat" || cfg.UserID != "meta" || cfg.AppID != "Llama-3" {
		t.Errorf("config:config_test - credentials = %q/%q/%q", cfg.PAT, cfg.UserID, cfg.AppID)
	}
	if cfg.Transport != TransportGRPC || cfg.GRPCAddr != "localhost:50051" || !cfg.GRPCInsecure {
		t.Errorf("config:config_test - grpc = %q %q %v", cfg.Transport, cfg.GRPCAddr, cfg.GRPCInsecure)
	}
	if cfg.RequestTimeout != 10*time.Second || cfg.DeployCeiling != 30*time.Second {
		t.Errorf("config:config_test - timeouts = %v/%v", cfg.RequestTimeout, cfg.DeployCeiling)
	}
	if cfg.DeployingCalls != 3 {
		t.Errorf("config:config_test - DeployingCalls = %d, want 3", cfg.DeployingCalls)
	}
	if err := cfg.ValidateForClient(); err != nil {
		t.Errorf("config:config_test - ValidateForClient: %v", err)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv()
	os.Setenv("INFERENCE_DEPLOY_CEILING", "forever")
	defer clearEnv()

	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for unparseable duration")
	}
}

func TestValidateForClient(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PAT:               "pat",
			Transport:         TransportNATS,
			COMMSURL:          "nats://127.0.0.1:4222",
			RequestTimeout:    time.Second,
			DeployCeiling:     time.Minute,
			SignatureCache:    CacheMemory,
			SignatureCacheTTL: time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing pat", func(c *Config) { c.PAT = "" }, "INFERENCE_PAT"},
		{"bad transport", func(c *Config) { c.Transport = "http" }, "INFERENCE_TRANSPORT"},
		{"grpc without addr", func(c *Config) { c.Transport = TransportGRPC }, "INFERENCE_GRPC_ADDR"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "INFERENCE_REQUEST_TIMEOUT"},
		{"zero ceiling", func(c *Config) { c.DeployCeiling = 0 }, "INFERENCE_DEPLOY_CEILING"},
		{"redis without url", func(c *Config) { c.SignatureCache = CacheRedis }, "REDIS_URL"},
		{"postgres without url", func(c *Config) { c.SignatureCache = CachePostgres }, "DATABASE_URL"},
		{"unknown cache", func(c *Config) { c.SignatureCache = "disk" }, "SIGNATURE_CACHE"},
		{"no cache ignores ttl", func(c *Config) { c.SignatureCache = CacheNone; c.SignatureCacheTTL = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.ValidateForClient()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("config:config_test - unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("config:config_test - error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForDB(t *testing.T) {
	if err := (&Config{}).ValidateForDB(); err == nil {
		t.Error("config:config_test - expected error without DATABASE_URL")
	}
	if err := (&Config{DatabaseURL: "postgres://x"}).ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}

func TestValidateForStub(t *testing.T) {
	if err := (&Config{COMMSURL: "nats://x", DeployingCalls: -1}).ValidateForStub(); err == nil {
		t.Error("config:config_test - expected error for negative deploying calls")
	}
	if err := (&Config{COMMSURL: "nats://x", DeployingCalls: 2}).ValidateForStub(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}
