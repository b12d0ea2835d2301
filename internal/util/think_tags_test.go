package util

import (
	"testing"
)

func TestContainsReasoning(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "think tags",
			input:    "<think>list the flows</think>{\"test_cases\": []}",
			expected: true,
		},
		{
			name:     "thinking tags upper case",
			input:    "<THINKING>hmm</THINKING>{}",
			expected: true,
		},
		{
			name:     "chinese tags",
			input:    "<思考>先列出测试点</思考>{}",
			expected: true,
		},
		{
			name:     "plain answer",
			input:    "{\"test_points\": []}",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsReasoning(tt.input); got != tt.expected {
				t.Errorf("ContainsReasoning() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReasoningContent(t *testing.T) {
	input := "<think>first</think>{\"a\": 1}<思考>第二</思考>"
	want := "first\n\n第二"
	if got := ReasoningContent(input); got != want {
		t.Errorf("ReasoningContent() = %q, want %q", got, want)
	}
}

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "closed block before json",
			input:    "<think>The login flow has three paths</think>\n{\"test_cases\": []}",
			expected: "{\"test_cases\": []}",
		},
		{
			name:     "multiline block",
			input:    "<thinking>\nstep 1\nstep 2\n</thinking>```json\n{}\n```",
			expected: "```json\n{}\n```",
		},
		{
			name:     "unclosed block keeps json",
			input:    "<think>I will produce {\"test_points\": [1]}",
			expected: "{\"test_points\": [1]}",
		},
		{
			name:     "unclosed block without json",
			input:    "prefix <think>ran out of tokens",
			expected: "prefix",
		},
		{
			name:     "no tags",
			input:    "  {\"a\": 1}  ",
			expected: "{\"a\": 1}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripReasoning(tt.input); got != tt.expected {
				t.Errorf("StripReasoning() = %q, want %q", got, tt.expected)
			}
		})
	}
}
