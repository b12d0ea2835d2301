package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/lamim/testforge/internal/fields"
	"github.com/lamim/testforge/pkg/models"
)

// Config represents the complete application configuration
type Config struct {
	Pipeline        PipelineConfig         `toml:"pipeline"`
	Generation      GenerationConfig       `toml:"generation"`
	Repair          RepairConfig           `toml:"repair"`
	Models          map[string]ModelConfig `toml:"models"`
	PromptTemplates PromptTemplates        `toml:"prompt_templates"`
	Metrics         MetricsConfig          `toml:"metrics"`
}

// PipelineConfig controls extraction, diagnosis and batch processing
type PipelineConfig struct {
	ContextLines        int  `toml:"context_lines"`         // Lines shown around a syntax error (default 2)
	MaxResponseBytes    int  `toml:"max_response_bytes"`    // Longer responses are truncated (default 1 MiB)
	StripThinkTags      bool `toml:"strip_think_tags"`      // Remove <think> blocks before extraction (default true)
	AttemptSyntaxRepair bool `toml:"attempt_syntax_repair"` // Reparse after conservative syntax fixes (default false)
	Concurrency         int  `toml:"concurrency"`           // Batch workers (default 4)
	VerifySchema        bool `toml:"verify_schema"`         // Check repaired records against the JSON Schema (default true)
}

// GenerationConfig controls the generate command
type GenerationConfig struct {
	Runs               int    `toml:"runs"`                // Model calls per invocation (default 1)
	RecordsPerResponse int    `toml:"records_per_response"` // Rendered into the prompt as .Count (default 10)
	MaxRegenerations   int    `toml:"max_regenerations"`    // Extra calls when a response is unusable (default 2)
	OutputDir          string `toml:"output_dir"`           // Parent of session directories (default "output")
	CheckpointInterval int    `toml:"checkpoint_interval"`  // Save the checkpoint every N finished runs (default 1)
}

// RepairConfig holds the placeholder values used when a field has to be synthesized
type RepairConfig struct {
	DefaultPriority    string `toml:"default_priority"`
	DefaultCaseName    string `toml:"default_case_name"`
	DefaultDescription string `toml:"default_description"`
	CaseIDPrefix       string `toml:"case_id_prefix"`
	PointIDPrefix      string `toml:"point_id_prefix"`
	AppendRemarks      bool   `toml:"append_remarks"` // Append an audit note to remarks (default true)
}

// FieldDefaults converts the repair section into fields.Defaults
func (r RepairConfig) FieldDefaults() fields.Defaults {
	d := fields.StandardDefaults()
	if r.DefaultPriority != "" {
		d.Priority = r.DefaultPriority
	}
	if r.DefaultCaseName != "" {
		d.CaseName = r.DefaultCaseName
	}
	if r.DefaultDescription != "" {
		d.Description = r.DefaultDescription
	}
	if r.CaseIDPrefix != "" {
		d.CaseIDPrefix = r.CaseIDPrefix
	}
	if r.PointIDPrefix != "" {
		d.PointIDPrefix = r.PointIDPrefix
	}
	return d
}

// ModelConfig represents configuration for a single model endpoint
type ModelConfig struct {
	BaseURL            string  `toml:"base_url"`
	ModelName          string  `toml:"model_name"`
	Temperature        float64 `toml:"temperature"`
	TopP               float64 `toml:"top_p"`
	MaxOutputTokens    int     `toml:"max_output_tokens"`
	ContextSize        int     `toml:"context_size"`
	RateLimitPerMinute int     `toml:"rate_limit_per_minute"`
	MaxBackoffSeconds  int     `toml:"max_backoff_seconds"`  // Optional: max backoff duration (default 120)
	MaxRetries         int     `toml:"max_retries"`          // Optional: max retry attempts (default 3, -1 = unlimited)
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds"` // Optional: HTTP request timeout (default 120)
	UseJSONMode        bool    `toml:"use_json_mode"`        // Request response_format=json_object
}

// PromptTemplates holds the generation prompts (Go text/template syntax)
type PromptTemplates struct {
	TestPoints   string `toml:"test_points"`
	TestCases    string `toml:"test_cases"`
	SystemPrompt string `toml:"system_prompt"`
}

// ForShape returns the user prompt template for a shape
func (p PromptTemplates) ForShape(shape models.Shape) string {
	if shape == models.ShapeTestPoints {
		return p.TestPoints
	}
	return p.TestCases
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"` // e.g. ":9090"; empty disables the endpoint
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys map[string]string
}

const (
	// MaxConcurrency is the maximum allowed batch concurrency
	MaxConcurrency = 256
	// MaxRegenerations caps generation.max_regenerations
	MaxRegenerations = 10
	// MaxContextLines caps the context snippet around syntax errors
	MaxContextLines = 20
	// MainModel is the models.<name> key used for generation
	MainModel = "main"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.ContextLines < 0 || p.ContextLines > MaxContextLines {
		return fmt.Errorf("pipeline.context_lines must be between 0 and %d (got %d)", MaxContextLines, p.ContextLines)
	}
	if p.MaxResponseBytes < 1 {
		return fmt.Errorf("pipeline.max_response_bytes must be at least 1")
	}
	if p.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	if p.Concurrency > MaxConcurrency {
		return fmt.Errorf("pipeline.concurrency must not exceed %d (got %d)", MaxConcurrency, p.Concurrency)
	}

	g := c.Generation
	if g.Runs < 1 {
		return fmt.Errorf("generation.runs must be at least 1")
	}
	if g.RecordsPerResponse < 1 {
		return fmt.Errorf("generation.records_per_response must be at least 1")
	}
	if g.MaxRegenerations < 0 || g.MaxRegenerations > MaxRegenerations {
		return fmt.Errorf("generation.max_regenerations must be between 0 and %d (got %d)", MaxRegenerations, g.MaxRegenerations)
	}

	switch c.Repair.DefaultPriority {
	case "", models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
	default:
		return fmt.Errorf("repair.default_priority must be one of: low, medium, high (got %s)", c.Repair.DefaultPriority)
	}

	for name, mc := range c.Models {
		if err := validateModelConfig(name, mc); err != nil {
			return err
		}
	}

	if c.PromptTemplates.TestPoints == "" {
		return fmt.Errorf("prompt_templates.test_points is required")
	}
	if c.PromptTemplates.TestCases == "" {
		return fmt.Errorf("prompt_templates.test_cases is required")
	}

	return nil
}

// Model returns a configured model or an error naming the missing section
func (c *Config) Model(name string) (ModelConfig, error) {
	mc, ok := c.Models[name]
	if !ok {
		return ModelConfig{}, fmt.Errorf("models.%s is required", name)
	}
	return mc, nil
}

func validateModelConfig(name string, mc ModelConfig) error {
	if mc.BaseURL == "" {
		return fmt.Errorf("models.%s.base_url is required", name)
	}
	if mc.ModelName == "" {
		return fmt.Errorf("models.%s.model_name is required", name)
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		return fmt.Errorf("models.%s.temperature must be between 0 and 2", name)
	}
	if mc.TopP < 0 || mc.TopP > 1 {
		return fmt.Errorf("models.%s.top_p must be between 0 and 1", name)
	}
	if mc.MaxOutputTokens < 1 {
		return fmt.Errorf("models.%s.max_output_tokens must be at least 1", name)
	}
	if mc.ContextSize < 1 {
		return fmt.Errorf("models.%s.context_size must be at least 1", name)
	}
	if mc.RateLimitPerMinute < 1 {
		return fmt.Errorf("models.%s.rate_limit_per_minute must be at least 1", name)
	}
	if mc.MaxOutputTokens > mc.ContextSize {
		return fmt.Errorf("models.%s.max_output_tokens (%d) must not exceed context_size (%d)", name, mc.MaxOutputTokens, mc.ContextSize)
	}
	return nil
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	// Load generic API key (provider-agnostic)
	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}

	// Provider-specific keys override the generic one
	for provider, env := range providerEnvVars {
		if key := os.Getenv(env); key != "" {
			secrets.APIKeys[provider] = key
		}
	}

	return secrets, nil
}

var providerEnvVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"dashscope": "DASHSCOPE_API_KEY",
	"together":  "TOGETHER_API_KEY",
}

// providerDomains maps base URL fragments to provider names
var providerDomains = []struct {
	fragment string
	provider string
}{
	{"openai.com", "openai"},
	{"deepseek.com", "deepseek"},
	{"dashscope.aliyuncs.com", "dashscope"},
	{"together.xyz", "together"},
	{"together.ai", "together"},
}

// GetAPIKey returns the API key for a given base URL
func (s *Secrets) GetAPIKey(baseURL string) string {
	provider := GetProviderName(baseURL)
	if key := s.APIKeys[provider]; key != "" {
		return key
	}

	// Fall back to generic API_KEY for any OpenAI-compatible provider
	if key := s.APIKeys["generic"]; key != "" {
		return key
	}

	// Local servers usually need no key
	return ""
}

// GetProviderName extracts a provider name from a base URL for rate limiting
func GetProviderName(baseURL string) string {
	for _, d := range providerDomains {
		if strings.Contains(baseURL, d.fragment) {
			return d.provider
		}
	}
	// For localhost or unknown providers, use the full base URL as provider name
	return baseURL
}
