package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AIConfig struct {
	OpenRouterKey     string `yaml:"openrouter_key" env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `yaml:"openrouter_base_url"`
	OpenAIKey         string `yaml:"openai_key" env:"OPENAI_API_KEY"`
	GeminiKey         string `yaml:"gemini_key" env:"GEMINI_API_KEY"`
	GeminiURL         string `yaml:"gemini_url"`
	DefaultModel      string `yaml:"default_model"`
	ConcurrentLimit   int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

type WorkerConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type HITLConfig struct {
	// MaxFeedbackRounds caps rejection/rerun cycles per job; 0 leaves the
	// loop unbounded, matching the original behavior.
	MaxFeedbackRounds int `yaml:"max_feedback_rounds"`
}

type WebhookConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type CrewsConfig struct {
	// Enabled restricts which registered crews are exposed; empty means all.
	Enabled []string `yaml:"enabled"`
}

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	AI      AIConfig      `yaml:"ai"`
	Worker  WorkerConfig  `yaml:"worker"`
	HITL    HITLConfig    `yaml:"hitl"`
	Webhook WebhookConfig `yaml:"webhook"`
	Crews   CrewsConfig   `yaml:"crews"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path and overlays provider credentials
// from the environment. A local .env is loaded first when present, so dev
// setups don't need real exports.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Credentials from env win over the file; .env is best-effort. An env
	// var that is set but empty must not wipe a key from the file.
	_ = godotenv.Load()
	var envAI AIConfig
	if err := env.Parse(&envAI); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if envAI.OpenRouterKey != "" {
		cfg.AI.OpenRouterKey = envAI.OpenRouterKey
	}
	if envAI.OpenAIKey != "" {
		cfg.AI.OpenAIKey = envAI.OpenAIKey
	}
	if envAI.GeminiKey != "" {
		cfg.AI.GeminiKey = envAI.GeminiKey
	}

	cfg.applyDefaults()

	// Dev mode runs on the noop adapter and needs no credentials.
	if !dev && cfg.AI.OpenRouterKey == "" && cfg.AI.OpenAIKey == "" && cfg.AI.GeminiKey == "" {
		return nil, errors.New("no AI provider configured: set ai.openrouter_key, ai.openai_key or ai.gemini_key")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.AI.DefaultModel == "" {
		c.AI.DefaultModel = "gpt-4o-mini"
	}
	if c.AI.OpenRouterBaseURL == "" {
		c.AI.OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	}
	if c.AI.ConcurrentLimit <= 0 {
		c.AI.ConcurrentLimit = 16
	}
	if c.Worker.Workers <= 0 {
		c.Worker.Workers = 8
	}
	if c.Worker.QueueSize <= 0 {
		c.Worker.QueueSize = c.Worker.Workers * 4
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
	if c.HITL.MaxFeedbackRounds < 0 {
		c.HITL.MaxFeedbackRounds = 0
	}
}
