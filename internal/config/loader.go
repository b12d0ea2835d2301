package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultMaxResponseBytes caps a single model response (1 MiB)
const DefaultMaxResponseBytes = 1 << 20

// Default returns a complete configuration that needs no file. Models are
// left empty; only generation requires one.
func Default() *Config {
	cfg := &Config{
		Pipeline: PipelineConfig{
			ContextLines:     2,
			MaxResponseBytes: DefaultMaxResponseBytes,
			StripThinkTags:   true,
			Concurrency:      4,
			VerifySchema:     true,
		},
		Generation: GenerationConfig{
			Runs:               1,
			RecordsPerResponse: 10,
			MaxRegenerations:   2,
			OutputDir:          "output",
			CheckpointInterval: 1,
		},
		Repair: RepairConfig{
			AppendRemarks: true,
		},
		Models: map[string]ModelConfig{},
	}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file and environment variables.
// Keys absent from the file keep their Default values.
func Load(configPath string) (*Config, *Secrets, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.ValidateInputs(); err != nil {
		return nil, nil, fmt.Errorf("input validation failed: %w", err)
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return true, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Pipeline.MaxResponseBytes == 0 {
		cfg.Pipeline.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = 4
	}
	if cfg.Generation.Runs == 0 {
		cfg.Generation.Runs = 1
	}
	if cfg.Generation.RecordsPerResponse == 0 {
		cfg.Generation.RecordsPerResponse = 10
	}
	if cfg.Generation.OutputDir == "" {
		cfg.Generation.OutputDir = "output"
	}
	if cfg.Generation.CheckpointInterval <= 0 {
		cfg.Generation.CheckpointInterval = 1
	}

	for name, model := range cfg.Models {
		if model.Temperature == 0 {
			model.Temperature = 0.7
		}
		if model.TopP == 0 {
			model.TopP = 1.0
		}
		if model.MaxOutputTokens == 0 {
			model.MaxOutputTokens = 4096
		}
		if model.ContextSize == 0 {
			model.ContextSize = 16384
		}
		if model.RateLimitPerMinute == 0 {
			model.RateLimitPerMinute = 60
		}
		if model.MaxBackoffSeconds == 0 {
			model.MaxBackoffSeconds = 120
		}
		// TOML cannot distinguish 0 from unset: 0 means the default of 3, -1 unlimited
		if model.MaxRetries == 0 {
			model.MaxRetries = 3
		}
		if model.HTTPTimeoutSeconds == 0 {
			model.HTTPTimeoutSeconds = 120
		}
		cfg.Models[name] = model
	}

	if cfg.PromptTemplates.TestPoints == "" {
		cfg.PromptTemplates.TestPoints = GetDefaultTestPointsTemplate()
	}
	if cfg.PromptTemplates.TestCases == "" {
		cfg.PromptTemplates.TestCases = GetDefaultTestCasesTemplate()
	}
	if cfg.PromptTemplates.SystemPrompt == "" {
		cfg.PromptTemplates.SystemPrompt = GetDefaultSystemPrompt()
	}
}
