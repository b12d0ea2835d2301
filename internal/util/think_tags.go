package util

import (
	"regexp"
	"strings"
)

// Reasoning models often wrap their deliberation in tags before the JSON answer
var (
	reasoningBlockRegex = regexp.MustCompile(`(?is)<(think|thinking|reasoning|思考)>(.*?)</(?:think|thinking|reasoning|思考)>`)
	openReasoningRegex  = regexp.MustCompile(`(?i)<(?:think|thinking|reasoning|思考)>`)
)

// ContainsReasoning reports whether the response carries an opening reasoning tag
func ContainsReasoning(response string) bool {
	return openReasoningRegex.MatchString(response)
}

// ReasoningContent returns the text of every closed reasoning block, joined by blank lines
func ReasoningContent(response string) string {
	var parts []string
	for _, m := range reasoningBlockRegex.FindAllStringSubmatch(response, -1) {
		if text := strings.TrimSpace(m[2]); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// StripReasoning removes reasoning blocks so only the answer is left for extraction.
// An opening tag that is never closed (truncated reasoning) is dropped together with
// everything up to the first '{' or code fence that follows it.
func StripReasoning(response string) string {
	result := reasoningBlockRegex.ReplaceAllString(response, "")

	if loc := openReasoningRegex.FindStringIndex(result); loc != nil {
		rest := result[loc[1]:]
		cut := strings.IndexAny(rest, "{`")
		if cut < 0 {
			result = result[:loc[0]]
		} else {
			result = result[:loc[0]] + rest[cut:]
		}
	}

	return strings.TrimSpace(result)
}
