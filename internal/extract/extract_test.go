package extract

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/testforge/pkg/models"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantMethod models.ExtractionMethod
		wantText   string
	}{
		{
			name:       "plain object",
			input:      `  {"test_points": []}  `,
			wantMethod: models.MethodDirect,
			wantText:   `{"test_points": []}`,
		},
		{
			name:       "json fence with prose",
			input:      "Here are the cases:\n```json\n{\"test_cases\": [{\"id\": \"1\"}]}\n```\nLet me know.",
			wantMethod: models.MethodFencedCodeBlock,
			wantText:   `{"test_cases": [{"id": "1"}]}`,
		},
		{
			name:       "generic fence",
			input:      "Result:\n```\n{\"a\": {\"b\": 1}}\n```",
			wantMethod: models.MethodFencedCodeBlockGeneric,
			wantText:   `{"a": {"b": 1}}`,
		},
		{
			name:       "uppercase fence",
			input:      "Result:\n```JSON\n{\"a\": 1}\n```",
			wantMethod: models.MethodFencedCodeBlockUppercase,
			wantText:   `{"a": 1}`,
		},
		{
			name:       "fence with broken json still extracted",
			input:      "```json\n{\"a\": 1,}\n```",
			wantMethod: models.MethodFencedCodeBlock,
			wantText:   `{"a": 1,}`,
		},
		{
			name:       "nested object in prose picks longest",
			input:      `Note {"x": 1} then the payload {"test_points": [{"title": "t", "meta": {"k": "v"}}]} done`,
			wantMethod: models.MethodNestedObjectScan,
			wantText:   `{"test_points": [{"title": "t", "meta": {"k": "v"}}]}`,
		},
		{
			name:       "braces inside strings do not break scan",
			input:      `Output: {"title": "use } carefully", "n": 2} end`,
			wantMethod: models.MethodNestedObjectScan,
			wantText:   `{"title": "use } carefully", "n": 2}`,
		},
		{
			name:       "truncated outer object yields complete inner object",
			input:      `Here: {"test_cases": [{"id": "1", "steps": ["a"]}, {"id": "2", "na`,
			wantMethod: models.MethodNestedObjectScan,
			wantText:   `{"id": "1", "steps": ["a"]}`,
		},
		{
			name:       "quotes in prose before the object",
			input:      `He said "here it is": {"n": 1} ok`,
			wantMethod: models.MethodNestedObjectScan,
			wantText:   `{"n": 1}`,
		},
		{
			name:       "unbalanced falls back to greedy match",
			input:      `Output: {"a": "unterminated} end`,
			wantMethod: models.MethodSimpleObjectScan,
			wantText:   `{"a": "unterminated}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, ok := Extract(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.wantMethod, payload.Method)
			assert.Equal(t, tt.wantText, payload.Text)
		})
	}
}

func TestExtractNoJSON(t *testing.T) {
	for _, input := range []string{"", "   ", "garbage text with no braces", "only an opening { brace"} {
		payload, ok := Extract(input)
		assert.False(t, ok, "input %q", input)
		assert.Empty(t, payload.Text)
	}
}

func TestExtractDirectAcceptsAnyJSONValue(t *testing.T) {
	payload, ok := Extract(`[{"title": "t"}]`)
	require.True(t, ok)
	assert.Equal(t, models.MethodDirect, payload.Method)

	var v []any
	require.NoError(t, json.Unmarshal([]byte(payload.Text), &v))
	assert.Len(t, v, 1)
}

func TestExtractIsIdempotent(t *testing.T) {
	input := "prose ```json\n{\"test_cases\": []}\n``` more prose"
	first, ok := Extract(input)
	require.True(t, ok)
	second, ok := Extract(first.Text)
	require.True(t, ok)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, models.MethodDirect, second.Method)
}

func TestExtractUnbalancedInputIsLinear(t *testing.T) {
	input := "Sure, here you go: " + strings.Repeat(`{"a":`, (1<<20)/5)

	start := time.Now()
	payload, ok := Extract(input)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Empty(t, payload.Text)
	assert.Less(t, elapsed, 5*time.Second, "scan of 1 MiB unbalanced input took %s", elapsed)
}
