package config

import (
	"strings"
	"testing"
)

func TestValidateIDPrefix(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "default", input: "TC"},
		{name: "empty uses default", input: ""},
		{name: "with dash", input: "CASE-API"},
		{name: "whitespace", input: "T C", wantErr: "whitespace"},
		{name: "control", input: "TC\x07", wantErr: "control"},
		{name: "too long", input: strings.Repeat("X", MaxIDPrefixLength+1), wantErr: "exceeds maximum length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateIDPrefix("repair.case_id_prefix", tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateIDPrefix(%q) returned unexpected error: %v", tt.input, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateIDPrefix(%q) error = %v, want substring %q", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaultText(t *testing.T) {
	if err := validateDefaultText("repair.default_case_name", "未命名测试用例"); err != nil {
		t.Errorf("validateDefaultText() returned unexpected error: %v", err)
	}
	// 200 CJK runes are within the limit even though they exceed 200 bytes
	if err := validateDefaultText("k", strings.Repeat("测", MaxDefaultTextLength)); err != nil {
		t.Errorf("validateDefaultText() counted bytes instead of runes: %v", err)
	}
	if err := validateDefaultText("k", strings.Repeat("a", MaxDefaultTextLength+1)); err == nil {
		t.Error("validateDefaultText() expected length error")
	}
	if err := validateDefaultText("k", "bad\x00name"); err == nil {
		t.Error("validateDefaultText() expected control character error")
	}
}

func TestValidateModelName_Valid(t *testing.T) {
	tests := []string{
		"gpt-4",
		"llama-3.1-70b-instruct",
		"claude-3-opus-20240229",
		"mixtral-8x7b-v0.1",
	}

	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			if err := validateModelName(tt, "test"); err != nil {
				t.Errorf("validateModelName(%q) returned unexpected error: %v", tt, err)
			}
		})
	}
}

func TestValidateModelName_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "too_long",
			input: strings.Repeat("a", MaxModelNameLength+1),
			want:  "exceeds maximum length",
		},
		{
			name:  "control_chars",
			input: "model\x00name",
			want:  "invalid control characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateModelName(tt.input, "test")
			if err == nil {
				t.Errorf("validateModelName(%q) expected error, got nil", tt.input)
			} else if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("validateModelName(%q) error = %v, want substring %q", tt.input, err, tt.want)
			}
		})
	}
}

func TestValidateBaseURL_Valid(t *testing.T) {
	tests := []string{
		"https://api.openai.com/v1",
		"http://localhost:8080",
		"https://api.anthropic.com",
		"http://192.168.1.100:11434",
	}

	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			if err := validateBaseURL(tt, "test"); err != nil {
				t.Errorf("validateBaseURL(%q) returned unexpected error: %v", tt, err)
			}
		})
	}
}

func TestValidateBaseURL_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "invalid_scheme",
			input: "ftp://example.com",
			want:  "must use http or https scheme",
		},
		{
			name:  "missing_scheme",
			input: "example.com",
			want:  "must use http or https scheme",
		},
		{
			name:  "no_host",
			input: "https://",
			want:  "must have a host",
		},
		{
			name:  "invalid_url",
			input: "ht!tp://invalid",
			want:  "invalid base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBaseURL(tt.input, "test")
			if err == nil {
				t.Errorf("validateBaseURL(%q) expected error, got nil", tt.input)
			} else if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("validateBaseURL(%q) error = %v, want substring %q", tt.input, err, tt.want)
			}
		})
	}
}

func TestValidateTemplateSizes(t *testing.T) {
	cfg := &Config{
		PromptTemplates: PromptTemplates{
			TestPoints:   "Small template",
			TestCases:    "Another small template",
			SystemPrompt: "Small",
		},
	}

	if err := cfg.validateTemplateSizes(); err != nil {
		t.Errorf("validateTemplateSizes() with small templates returned error: %v", err)
	}

	cfg.PromptTemplates.TestCases = strings.Repeat("a", MaxTemplateSize+1)
	err := cfg.validateTemplateSizes()
	if err == nil || !strings.Contains(err.Error(), "test_cases") {
		t.Errorf("validateTemplateSizes() error = %v, want test_cases size error", err)
	}
}

func TestContainsControlChars(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"normal text", false},
		{"with\nnewline", false},
		{"with\ttab", false},
		{"with\r\ncrlf", false},
		{"null\x00byte", true},
		{"bell\x07char", true},
		{"escape\x1bsequence", true},
		{"中文文本", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := containsControlChars(tt.input); got != tt.want {
				t.Errorf("containsControlChars(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateInputs_Integration(t *testing.T) {
	cfg := Default()
	cfg.Models["main"] = ModelConfig{BaseURL: "https://api.openai.com/v1", ModelName: "gpt-4o"}
	if err := cfg.ValidateInputs(); err != nil {
		t.Fatalf("ValidateInputs() unexpected error: %v", err)
	}

	cfg.Models["main"] = ModelConfig{BaseURL: "ftp://example.com", ModelName: "gpt-4o"}
	if err := cfg.ValidateInputs(); err == nil {
		t.Error("ValidateInputs() should reject a non-http base_url")
	}

	cfg = Default()
	cfg.Repair.CaseIDPrefix = "T C"
	if err := cfg.ValidateInputs(); err == nil || !strings.Contains(err.Error(), "repair.case_id_prefix") {
		t.Errorf("ValidateInputs() error = %v, want case_id_prefix error", err)
	}
}
