package orchestrator

import (
	"fmt"
	"strings"
)

// Common refusal patterns from LLM responses. Only consulted once a response
// has already failed the pipeline.
var refusalPatterns = []string{
	"i'm sorry, but i can't help with that",
	"i cannot help with that",
	"i can't assist with that",
	"i'm unable to help with that",
	"i apologize, but i cannot",
	"i'm not able to assist",
	"i cannot provide",
	"i cannot generate",
	"i'm sorry, i cannot",
	"i'm sorry, but i cannot",
	"as an ai",
	"抱歉，我无法",
	"我不能提供",
}

// minResponseLength is shorter than any useful JSON payload
const minResponseLength = 20

// isRefusalResponse reports whether an unusable response reads like a refusal
func isRefusalResponse(text string) bool {
	if len(strings.TrimSpace(text)) < minResponseLength {
		return true
	}

	textLower := strings.ToLower(text)
	for _, pattern := range refusalPatterns {
		if strings.Contains(textLower, pattern) {
			return true
		}
	}
	return false
}

// getRefusalReason returns a description of why the response was considered a refusal
func getRefusalReason(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minResponseLength {
		return fmt.Sprintf("response too short (< %d chars): %q", minResponseLength, trimmed)
	}

	textLower := strings.ToLower(text)
	for _, pattern := range refusalPatterns {
		if strings.Contains(textLower, pattern) {
			return "contains refusal pattern: " + pattern
		}
	}
	return "unknown refusal"
}
