package util

import (
	"strings"
	"testing"
)

func TestRenderTemplate_TestCasePrompt(t *testing.T) {
	tmpl := "Requirement: {{.Requirement}}\nReturn {{.Shape}} as JSON."
	data := map[string]any{
		"Requirement": "用户登录",
		"Shape":       "test_cases",
	}

	result, err := RenderTemplate(tmpl, data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, "用户登录") {
		t.Errorf("Result should contain the requirement: %s", result)
	}
	if !strings.HasSuffix(result, "Return test_cases as JSON.") {
		t.Errorf("Unexpected rendering: %s", result)
	}
}

func TestRenderTemplate_InvalidTemplate(t *testing.T) {
	_, err := RenderTemplate("Requirement: {{.Requirement", map[string]any{"Requirement": "x"})
	if err == nil {
		t.Error("Expected error for invalid template, got nil")
	}
}

func TestRenderTemplate_MissingKey(t *testing.T) {
	_, err := RenderTemplate("Requirement: {{.Requirement}}", map[string]any{})
	if err == nil {
		t.Error("Expected error for missing key, got nil")
	}
}

func TestRenderTemplate_ForbiddenDirective(t *testing.T) {
	tests := []string{
		`{{define "x"}}y{{end}}`,
		`{{template "x"}}`,
		`{{call .Fn}}`,
		`{{block "x" .}}y{{end}}`,
	}

	for _, tmpl := range tests {
		if _, err := RenderTemplate(tmpl, map[string]any{}); err == nil {
			t.Errorf("Expected forbidden directive error for %q", tmpl)
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{input: "hello", maxLen: 10, want: "hello"},
		{input: "hello world", maxLen: 5, want: "hello..."},
		{input: "未命名测试用例", maxLen: 3, want: "未命名..."},
		{input: "", maxLen: 3, want: ""},
	}

	for _, tt := range tests {
		if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
