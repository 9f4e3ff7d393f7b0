package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server and worker configuration, read from LOWCODE_*
// environment variables.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"` // required
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr    string `env:"GRPC_ADDR" envDefault:":9090"` // health + reflection; empty disables
	NATSURL     string `env:"NATS_URL"`                     // empty = no bus
	RedisURL    string `env:"REDIS_URL"`                    // empty = builds cannot be queued
	BuildQueue  string `env:"BUILD_QUEUE" envDefault:"lowcode:builds"`

	JWTSecret string        `env:"JWT_SECRET"` // required
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	LLMBaseURL string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMAPIKey  string        `env:"LLM_API_KEY"`
	LLMModel   string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	ToolsAllowShell bool   `env:"TOOLS_ALLOW_SHELL" envDefault:"false"`
	ToolsFileRoot   string `env:"TOOLS_FILE_ROOT"`

	// Build destinations. Each is enabled when its required field is set.
	BuildS3Bucket   string `env:"BUILD_S3_BUCKET"`
	BuildS3Endpoint string `env:"BUILD_S3_ENDPOINT"` // custom endpoint for MinIO
	BuildS3Region   string `env:"BUILD_S3_REGION" envDefault:"us-east-1"`
	BuildS3Prefix   string `env:"BUILD_S3_PREFIX" envDefault:"lowcode/builds"`
	BuildGitRepo    string `env:"BUILD_GIT_REPO"` // path to a clone
	BuildGitBranch  string `env:"BUILD_GIT_BRANCH" envDefault:"main"`
	BuildDir        string `env:"BUILD_DIR"`

	WorkerPoll     time.Duration `env:"WORKER_POLL" envDefault:"5s"`
	HealthInterval time.Duration `env:"HEALTH_INTERVAL" envDefault:"30s"`
	HealthTimeout  time.Duration `env:"HEALTH_TIMEOUT" envDefault:"2m"`
}

// Prefix is prepended to every variable name in Config.
const Prefix = "LOWCODE_"

// Load parses the environment and checks the required settings.
func Load() (*Config, error) {
	c := &Config{}
	if err := env.ParseWithOptions(c, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports missing or out-of-range settings.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("%sDATABASE_URL is required", Prefix))
	}
	if c.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("%sJWT_SECRET is required", Prefix))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("%sTOKEN_TTL must be positive", Prefix))
	}
	if c.WorkerPoll <= 0 {
		errs = append(errs, fmt.Errorf("%sWORKER_POLL must be positive", Prefix))
	}
	if c.HealthInterval <= 0 {
		errs = append(errs, fmt.Errorf("%sHEALTH_INTERVAL must be positive", Prefix))
	}
	if c.HealthTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%sHEALTH_TIMEOUT must be positive", Prefix))
	}
	return errors.Join(errs...)
}

// LLMConfigured reports whether bot replies can be generated.
func (c *Config) LLMConfigured() bool {
	return c.LLMAPIKey != ""
}
