package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const (
	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB

	// MaxDefaultTextLength bounds the placeholder strings written into records
	MaxDefaultTextLength = 200

	// MaxIDPrefixLength bounds case_id_prefix and point_id_prefix
	MaxIDPrefixLength = 16
)

// ValidateInputs performs additional validation on user-controllable fields
func (c *Config) ValidateInputs() error {
	for name, mc := range c.Models {
		if err := validateModelName(mc.ModelName, name); err != nil {
			return err
		}

		if err := validateBaseURL(mc.BaseURL, name); err != nil {
			return err
		}
	}

	if err := c.validateTemplateSizes(); err != nil {
		return err
	}

	if err := validateDefaultText("repair.default_case_name", c.Repair.DefaultCaseName); err != nil {
		return err
	}
	if err := validateDefaultText("repair.default_description", c.Repair.DefaultDescription); err != nil {
		return err
	}
	if err := validateIDPrefix("repair.case_id_prefix", c.Repair.CaseIDPrefix); err != nil {
		return err
	}
	if err := validateIDPrefix("repair.point_id_prefix", c.Repair.PointIDPrefix); err != nil {
		return err
	}

	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName, configKey string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("model '%s' name exceeds maximum length of %d (got %d)",
			configKey, MaxModelNameLength, len(modelName))
	}

	if containsControlChars(modelName) {
		return fmt.Errorf("model '%s' name contains invalid control characters", configKey)
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL, configKey string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("model '%s' has invalid base_url: %w", configKey, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("model '%s' base_url must use http or https scheme (got %s)",
			configKey, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("model '%s' base_url must have a host", configKey)
	}

	return nil
}

// validateTemplateSizes checks that templates are within reasonable size limits
func (c *Config) validateTemplateSizes() error {
	templates := []struct {
		name  string
		value string
	}{
		{"test_points", c.PromptTemplates.TestPoints},
		{"test_cases", c.PromptTemplates.TestCases},
		{"system_prompt", c.PromptTemplates.SystemPrompt},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
	}

	return nil
}

// validateDefaultText checks a placeholder value that ends up inside records
func validateDefaultText(key, value string) error {
	if len([]rune(value)) > MaxDefaultTextLength {
		return fmt.Errorf("%s exceeds maximum length of %d characters", key, MaxDefaultTextLength)
	}
	if containsControlChars(value) {
		return fmt.Errorf("%s contains invalid control characters", key)
	}
	return nil
}

// validateIDPrefix rejects prefixes that would make generated IDs unparsable
func validateIDPrefix(key, prefix string) error {
	if len(prefix) > MaxIDPrefixLength {
		return fmt.Errorf("%s exceeds maximum length of %d (got %d)", key, MaxIDPrefixLength, len(prefix))
	}
	if strings.IndexFunc(prefix, unicode.IsSpace) >= 0 || containsControlChars(prefix) {
		return fmt.Errorf("%s must not contain whitespace or control characters", key)
	}
	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
