// Package config loads the research agent runtime's static, process-wide
// configuration from YAML, with environment variable overrides for
// vendor credentials. There is no hot reload.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"gopkg.in/yaml.v3"
)

// VendorEndpoint carries the per-vendor credentials and overrides the
// LLM client needs to build its adapters.
type VendorEndpoint struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	DefaultModel string       `yaml:"default_model"`
	Timeout     time.Duration `yaml:"timeout"`
	Region      string        `yaml:"region,omitempty"`
}

// LLMConfig bundles the ordered fallback candidate list with per-vendor
// endpoint configuration.
type LLMConfig struct {
	ConversationModels []llm.VendorModel         `yaml:"conversation_models"`
	Anthropic          VendorEndpoint            `yaml:"anthropic"`
	OpenAI             VendorEndpoint            `yaml:"openai"`
	Gemini             VendorEndpoint            `yaml:"gemini"`
	Bedrock            VendorEndpoint            `yaml:"bedrock"`
	Retries            int                       `yaml:"retries"`
	VendorRateLimitRPS float64                   `yaml:"vendor_rate_limit_rps"`
}

// Config is the static, process-wide policy bundle loaded once at
// startup, grounded on the teacher's nested per-concern config structs.
type Config struct {
	LLM                   LLMConfig                 `yaml:"llm"`
	CompactionPolicy      session.CompactionPolicy  `yaml:"compaction_policy"`
	SessionTimeout        time.Duration             `yaml:"session_timeout"`
	EvaluatorSleepSeconds int                        `yaml:"evaluator_sleep_seconds"`
	ToolExecConcurrency   int                        `yaml:"tool_exec_concurrency"`
	MetricsAddr           string                     `yaml:"metrics_addr"`
}

// Load reads a YAML file at path and applies environment variable
// overrides for vendor API keys, matching the teacher's loader shape:
// file defaults, env wins.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if cfg.ToolExecConcurrency <= 0 {
		cfg.ToolExecConcurrency = 4
	}
	if cfg.LLM.Retries <= 0 {
		cfg.LLM.Retries = 1
	}

	return &cfg, nil
}

// applyEnvOverrides never logs the values it reads, per spec.md §6
// Environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.Anthropic.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_BASE_URL"); v != "" {
		cfg.LLM.Anthropic.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.LLM.Bedrock.Region = v
	}
	// AWS credentials themselves are picked up by aws-sdk-go-v2's default
	// chain (env, shared config, IMDS); we never read AWS_SECRET_ACCESS_KEY
	// etc. directly here.
}

// Validate reports a ConfigError-equivalent when the static configuration
// cannot support a turn, per spec.md §4.7/§4.13.
func (c *Config) Validate() error {
	if len(c.LLM.ConversationModels) == 0 {
		return fmt.Errorf("config: conversation_models must not be empty")
	}
	return nil
}
